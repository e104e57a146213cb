package ts

import (
	"bytes"
	"io"
	"time"

	"github.com/gwuhaolin/tsgen/av"

	log "github.com/sirupsen/logrus"
)

type StreamerConfig struct {
	VideoPID          uint16
	PMTPID            uint16
	ProgramNumber     uint16
	TransportStreamID uint16
	FrameRate         float64
	InitialPTS        uint64
	WrapPTS           bool
	PCREveryUnit      bool
	PCRDelay          time.Duration // PCR 이 PTS 보다 앞서는 시간
	TableInterval     uint64
	TableIntervalTime time.Duration
}

func DefaultStreamerConfig() StreamerConfig {
	return StreamerConfig{
		VideoPID:          0x100,
		PMTPID:            0x1000,
		ProgramNumber:     1,
		TransportStreamID: 1,
		FrameRate:         30.0,
		PCREveryUnit:      true,
		TableInterval:     40,
	}
}

type flusher interface {
	Flush() error
}

// Streamer 는 AccessUnit 을 받아 PES -> TS 패킷으로 만들고 PAT/PMT 를 끼워 싱크에 쓴다.
// 하나의 AccessUnit 에서 나온 패킷들은 한 번의 Write 로 전달된다.
type Streamer struct {
	w          io.Writer
	cfg        StreamerConfig
	framer     *PesFramer
	packetizer *Packetizer
	tables     *TableEmitter

	buf          bytes.Buffer
	started      bool
	prevPTS      uint64
	elapsedTicks uint64 // 첫 프레임 이후 90kHz 틱. PTS 가 wrap 되어도 계속 증가한다.
	videoPackets uint64
	tablePackets uint64
	units        uint64
	lastSeq      uint64
}

func NewStreamer(w io.Writer, cfg StreamerConfig) (*Streamer, error) {
	clock, err := av.NewClock(cfg.FrameRate, cfg.InitialPTS, cfg.WrapPTS)
	if err != nil {
		return nil, err
	}
	tables, err := NewTableEmitter(TableConfig{
		TransportStreamID: cfg.TransportStreamID,
		ProgramNumber:     cfg.ProgramNumber,
		PMTPID:            cfg.PMTPID,
		VideoPID:          cfg.VideoPID,
		StreamType:        av.StreamTypeH264,
		IntervalPackets:   cfg.TableInterval,
		Interval:          cfg.TableIntervalTime,
	})
	if err != nil {
		return nil, err
	}
	if cfg.PCRDelay < 0 || av.DurationToTicks(cfg.PCRDelay) > av.MaxClock {
		return nil, av.ConfigError("invalid pcr delay %v", cfg.PCRDelay)
	}
	packetizer := NewPacketizer(NewContinuityState(), cfg.PCREveryUnit)
	packetizer.SetPCRDelay(av.DurationToTicks(cfg.PCRDelay))
	return &Streamer{
		w:          w,
		cfg:        cfg,
		framer:     NewPesFramer(clock),
		packetizer: packetizer,
		tables:     tables,
	}, nil
}

func (s *Streamer) WriteAccessUnit(au *av.AccessUnit) error {
	pes, err := s.framer.Frame(au)
	if err != nil {
		return err
	}
	packets, err := s.packetizer.Packetize(pes, s.cfg.VideoPID)
	if err != nil {
		return err
	}

	elapsedTicks := s.elapsedTicks
	if s.started {
		elapsedTicks += (pes.PTS - s.prevPTS) & av.MaxClock
	}
	elapsed := ticksToDuration(elapsedTicks)

	s.buf.Reset()
	videoPackets, tablePackets := s.videoPackets, uint64(0)
	tick := func() {
		if b, ok := s.tables.Tick(TableTick{Packets: videoPackets, Elapsed: elapsed}); ok {
			s.buf.Write(b)
			tablePackets += 2
		}
	}
	tick()
	for i := range packets {
		s.buf.Write(packets[i][:])
		videoPackets++
		if i < len(packets)-1 {
			tick()
		}
	}

	if _, err := s.w.Write(s.buf.Bytes()); err != nil {
		return av.NewError(av.ErrSink, au.SequenceNumber, "sink", err)
	}
	s.started = true
	s.prevPTS = pes.PTS
	s.elapsedTicks = elapsedTicks
	s.videoPackets = videoPackets
	s.tablePackets += tablePackets
	s.lastSeq = au.SequenceNumber
	s.units++

	log.Debugf("Input count: %d, Output Frame Count: %d, pts: %d, packets: %d",
		au.SequenceNumber, s.units, pes.PTS, len(packets))
	return nil
}

func ticksToDuration(ticks uint64) time.Duration {
	return time.Duration(ticks/av.ClockHZ)*time.Second +
		time.Duration(ticks%av.ClockHZ)*time.Second/av.ClockHZ
}

// Elapsed 는 첫 프레임부터 마지막 프레임까지의 스트림 시간이다.
func (s *Streamer) Elapsed() time.Duration {
	return ticksToDuration(s.elapsedTicks)
}

func (s *Streamer) Flush() error {
	if f, ok := s.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return av.NewError(av.ErrSink, s.lastSeq, "flush", err)
		}
	}
	return nil
}

// Packets 는 지금까지 싱크에 쓴 전체 TS 패킷 수이다.
func (s *Streamer) Packets() uint64 {
	return s.videoPackets + s.tablePackets
}

func (s *Streamer) LastPTS() uint64 {
	return s.framer.clock.LastPTS()
}

func (s *Streamer) Units() uint64 {
	return s.units
}
