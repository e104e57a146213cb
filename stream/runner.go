package stream

import (
	"context"
	"io"
	"time"

	"github.com/gwuhaolin/tsgen/av"
	"github.com/gwuhaolin/tsgen/container/ts"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const tsPacketLen = 188

type Config struct {
	Info     av.Info
	Streamer ts.StreamerConfig // Info.MpegTS 일 때만 쓴다
	// Progress 는 ProgressEvery 개의 access unit 마다, 그리고 끝날 때 호출된다.
	Progress      func(Status)
	ProgressEvery uint64
}

// 싱크에 쓴 바이트 수를 센다. Flush 는 아래 writer 로 넘긴다.
type countWriter struct {
	w io.Writer
	n uint64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

func (c *countWriter) Flush() error {
	if f, ok := c.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func newMuxer(cfg Config, w io.Writer) (av.Muxer, error) {
	if !cfg.Info.MpegTS {
		return av.NewRawMuxer(w), nil
	}
	s, err := ts.NewStreamer(w, cfg.Streamer)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Run 은 src 가 io.EOF 를 낼 때까지 access unit 을 하나씩 꺼내 w 에 쓴다.
// ctx 는 access unit 사이에서만 확인한다. 처음 만난 에러에서 멈춘다.
func Run(ctx context.Context, cfg Config, src av.Source, w io.Writer) (Status, error) {
	st := newStatus(cfg.Info)
	cw := &countWriter{w: w}

	m, err := newMuxer(cfg, cw)
	if err != nil {
		return *st, err
	}
	streamer, isTS := m.(*ts.Streamer)

	progress := func() {
		if cfg.Progress != nil {
			cfg.Progress(*st)
		}
	}
	fail := func(err error) (Status, error) {
		st.FinishedAt = time.Now()
		log.Errorf("[%v] stream aborted after %d frames: %v", cfg.Info, st.Frames, err)
		progress()
		return *st, err
	}

	log.Infof("[%v] stream start", cfg.Info)
	for {
		select {
		case <-ctx.Done():
			return fail(ctx.Err())
		default:
		}

		au, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(errors.Wrapf(err, "source frame %d", st.Frames))
		}

		if err := m.WriteAccessUnit(au); err != nil {
			return fail(err)
		}

		if isTS {
			st.update(cw.n, streamer.Packets(), true, streamer.LastPTS(), streamer.Elapsed())
		} else {
			st.update(cw.n, 0, false, 0, 0)
		}
		log.Debugf("[%v] Input count: %d, Output Frame Count: %d, bytes: %d",
			cfg.Info, au.SequenceNumber, st.Frames, st.Bytes)

		if cfg.ProgressEvery > 0 && st.Frames%cfg.ProgressEvery == 0 {
			progress()
		}
	}

	if err := m.Flush(); err != nil {
		return fail(err)
	}
	st.FinishedAt = time.Now()
	if isTS && st.Bytes != st.Packets*tsPacketLen {
		return fail(av.NewError(av.ErrFraming, st.Frames, "flush", errors.Errorf("%d bytes for %d packets", st.Bytes, st.Packets)))
	}
	log.Infof("[%v] stream done: %d frames, %d bytes, stream time %v, took %v",
		cfg.Info, st.Frames, st.Bytes, st.Duration(), st.Elapsed())
	progress()
	return *st, nil
}
