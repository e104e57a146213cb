package ts

import (
	"fmt"

	"github.com/gwuhaolin/tsgen/av"
)

const (
	pesFixedHeaderLen = 9
	ptsLen            = 5
	pesMaxHeaderLen   = pesFixedHeaderLen + 2*ptsLen
)

// PesFramer 는 AccessUnit 하나를 PES 유닛 하나로 감싼다.
// 같은 입력에 대해서는 항상 같은 결과를 낸다(클럭 상태만 변한다).
type PesFramer struct {
	clock    *av.Clock
	streamID av.StreamID
}

func NewPesFramer(clock *av.Clock) *PesFramer {
	return &PesFramer{
		clock:    clock,
		streamID: av.VideoSID,
	}
}

func (framer *PesFramer) Frame(au *av.AccessUnit) (*av.PesUnit, error) {
	pts, err := framer.clock.PTS(au.SequenceNumber)
	if err != nil {
		return nil, err
	}
	return &av.PesUnit{
		StreamID:       framer.streamID,
		PTS:            pts,
		Payload:        au.Payload,
		DataAlignment:  true,
		IsRandomAccess: au.IsRandomAccess,
		SequenceNumber: au.SequenceNumber,
	}, nil
}

// PES 헤더. start code, stream id, 길이, 플래그, PTS/DTS 까지 포함한다.
type pesHeader struct {
	len  byte
	data [pesMaxHeaderLen]byte
}

// packet 은 PES 헤더를 직렬화한다.
func (header *pesHeader) packet(u *av.PesUnit) error {
	i := 0
	header.data[i] = 0x00
	i++
	header.data[i] = 0x00
	i++
	header.data[i] = 0x01
	i++
	header.data[i] = byte(u.StreamID)
	i++

	flag := 0x80 // PTS
	headerSize := ptsLen
	if u.HasDTS {
		flag |= 0x40
		headerSize += ptsLen
	}

	// 0xffff 를 넘으면 0 (길이 미지정). 비디오 스트림에서만 허용된다.
	size := len(u.Payload) + headerSize + 3
	if size > 0xffff {
		if !u.StreamID.IsVideo() {
			return av.NewError(av.ErrFraming, u.SequenceNumber, "pes",
				fmt.Errorf("payload of %d bytes does not fit a non-video pes", len(u.Payload)))
		}
		size = 0
	}
	header.data[i] = byte(size >> 8)
	i++
	header.data[i] = byte(size)
	i++

	// '10' marker, data_alignment_indicator
	header.data[i] = 0x80
	if u.DataAlignment {
		header.data[i] |= 0x04
	}
	i++
	header.data[i] = byte(flag)
	i++
	header.data[i] = byte(headerSize)
	i++

	if err := header.writeTs(header.data[0:], i, flag>>6, u.PTS); err != nil {
		return av.NewError(av.ErrClockOverflow, u.SequenceNumber, "pes", err)
	}
	i += ptsLen
	if u.HasDTS {
		if err := header.writeTs(header.data[0:], i, 1, u.DTS); err != nil {
			return av.NewError(av.ErrClockOverflow, u.SequenceNumber, "pes", err)
		}
		i += ptsLen
	}

	header.len = byte(i)
	return nil
}

// writeTs 는 PTS/DTS 를 5바이트로 쓴다.
// 4비트 prefix + 상위 3비트 + marker, 15비트 + marker, 15비트 + marker
func (header *pesHeader) writeTs(src []byte, i int, fb int, ts uint64) error {
	if ts > av.MaxClock {
		return fmt.Errorf("timestamp %d exceeds 33 bits", ts)
	}
	val := uint32(fb<<4) | ((uint32(ts>>30) & 0x07) << 1) | 1
	src[i] = byte(val)
	i++

	val = ((uint32(ts>>15) & 0x7fff) << 1) | 1
	src[i] = byte(val >> 8)
	i++
	src[i] = byte(val)
	i++

	val = (uint32(ts&0x7fff) << 1) | 1
	src[i] = byte(val >> 8)
	i++
	src[i] = byte(val)
	return nil
}
