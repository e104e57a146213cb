package h264

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

var (
	emptyAccessUnit = fmt.Errorf("access unit has no nalu")
	naluEmpty       = fmt.Errorf("nalu is empty")
)

var naluAud = []byte{byte(h264.NALUTypeAccessUnitDelimiter), 0xf0}

// Assembler 는 NALU 들을 AUD 로 시작하는 Annex B access unit 으로 만든다.
// 한 번 본 SPS/PPS 를 기억해 두었다가, 그것 없이 들어온 IDR 앞에 다시 넣는다.
type Assembler struct {
	sps []byte
	pps []byte
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble 은 Annex B 바이트와 키 프레임 여부를 돌려준다.
func (a *Assembler) Assemble(nalus [][]byte) ([]byte, bool, error) {
	if len(nalus) == 0 {
		return nil, false, emptyAccessUnit
	}

	out := make(h264.AnnexB, 0, len(nalus)+3)
	out = append(out, naluAud)

	hasSpsPps := false
	hasWriteSpsPps := false
	isKey := false

	for _, n := range nalus {
		if len(n) == 0 {
			return nil, false, naluEmpty
		}
		switch h264.NALUType(n[0] & 0x1f) {
		case h264.NALUTypeAccessUnitDelimiter:
			// 이미 앞에 넣었다.
		case h264.NALUTypeSPS:
			a.sps = n
			hasSpsPps = true
			out = append(out, n)
		case h264.NALUTypePPS:
			a.pps = n
			hasSpsPps = true
			out = append(out, n)
		case h264.NALUTypeIDR:
			isKey = true
			if !hasSpsPps && !hasWriteSpsPps && a.sps != nil && a.pps != nil {
				out = append(out, a.sps, a.pps)
			}
			hasWriteSpsPps = true
			out = append(out, n)
		default:
			out = append(out, n)
		}
	}

	buf, err := out.Marshal()
	if err != nil {
		return nil, false, err
	}
	return buf, isKey, nil
}
