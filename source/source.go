package source

import (
	"io"
	"time"

	"github.com/gwuhaolin/tsgen/av"
	"github.com/gwuhaolin/tsgen/codec/h264"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Width     int
	Height    int
	PixFmt    PixFmt
	NumFrames uint64
}

// PatternSource 는 테스트 패턴을 무손실 H.264 로 인코딩해 access unit 으로 내보낸다.
type PatternSource struct {
	cfg  Config
	enc  *h264.Encoder
	asm  *h264.Assembler
	next uint64
}

func NewPatternSource(cfg Config) (*PatternSource, error) {
	if _, err := ParsePixFmt(string(cfg.PixFmt)); err != nil {
		return nil, err
	}
	enc, err := h264.NewEncoder(cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	return &PatternSource{
		cfg: cfg,
		enc: enc,
		asm: h264.NewAssembler(),
	}, nil
}

// Next 는 NumFrames 개를 내보낸 뒤 io.EOF 를 돌려준다.
func (s *PatternSource) Next() (*av.AccessUnit, error) {
	if s.next >= s.cfg.NumFrames {
		return nil, io.EOF
	}
	seq := s.next

	img, err := GenerateImage(seq, s.cfg.PixFmt, s.cfg.Width, s.cfg.Height)
	if err != nil {
		return nil, err
	}
	pic, err := img.YUV420()
	if err != nil {
		return nil, err
	}
	captured := time.Now()

	nalus, err := s.enc.Encode(pic)
	if err != nil {
		return nil, errors.Wrapf(err, "encode frame %d", seq)
	}
	payload, isKey, err := s.asm.Assemble(nalus)
	if err != nil {
		return nil, errors.Wrapf(err, "assemble frame %d", seq)
	}

	s.next++
	log.Debugf("source frame %d: %d bytes, key %v", seq, len(payload), isKey)
	return &av.AccessUnit{
		SequenceNumber: seq,
		CaptureTime:    captured,
		Payload:        payload,
		IsRandomAccess: isKey,
	}, nil
}

func (s *PatternSource) Produced() uint64 {
	return s.next
}
