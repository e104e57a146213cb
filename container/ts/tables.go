package ts

import (
	"fmt"
	"time"

	"github.com/gwuhaolin/tsgen/av"
)

/*
PAT (Program Association Table)
program_number 와 그 프로그램의 PMT PID 를 알려준다. 항상 PID 0x0000 으로 전송된다.

PMT (Program Map Table)
프로그램에 포함된 elementary stream 의 PID 와 stream_type 을 알려준다.

수신측이 중간에 붙어도 스트림을 찾을 수 있도록 일정 간격마다 다시 보낸다.
*/
type TableConfig struct {
	TransportStreamID uint16
	ProgramNumber     uint16
	PMTPID            uint16
	VideoPID          uint16
	StreamType        byte
	IntervalPackets   uint64        // 비디오 패킷 N개마다 (0 이면 사용 안 함)
	Interval          time.Duration // 스트림 시간 M 마다 (0 이면 사용 안 함)
}

type TableTick struct {
	Packets uint64        // 지금까지 보낸 비디오 패킷 수
	Elapsed time.Duration // 첫 프레임 이후 스트림 시간
}

type TableEmitter struct {
	cfg         TableConfig
	cc          *ContinuityState
	emitted     bool
	lastPackets uint64
	lastElapsed time.Duration
	pat         [tsPacketLen]byte
	pmt         [tsPacketLen]byte
	out         [2 * tsPacketLen]byte
}

func NewTableEmitter(cfg TableConfig) (*TableEmitter, error) {
	if cfg.PMTPID < minUserPID || cfg.PMTPID > maxUserPID {
		return nil, av.ConfigError("invalid pmt pid 0x%04x", cfg.PMTPID)
	}
	if cfg.VideoPID < minUserPID || cfg.VideoPID > maxUserPID {
		return nil, av.ConfigError("invalid video pid 0x%04x", cfg.VideoPID)
	}
	if cfg.PMTPID == cfg.VideoPID {
		return nil, av.ConfigError("pmt pid and video pid are both 0x%04x", cfg.PMTPID)
	}
	if cfg.ProgramNumber == 0 {
		return nil, av.ConfigError("program number 0 is reserved for the network pid")
	}
	if cfg.StreamType == 0 {
		cfg.StreamType = av.StreamTypeH264
	}
	return &TableEmitter{
		cfg: cfg,
		cc:  NewContinuityState(),
	}, nil
}

func (e *TableEmitter) Continuity() *ContinuityState {
	return e.cc
}

// Tick 은 PAT/PMT 를 보낼 때가 되었으면 두 패킷(376바이트)을 돌려준다.
// 첫 호출은 항상 보낸다.
func (e *TableEmitter) Tick(t TableTick) ([]byte, bool) {
	due := !e.emitted
	if e.cfg.IntervalPackets > 0 && t.Packets-e.lastPackets >= e.cfg.IntervalPackets {
		due = true
	}
	if e.cfg.Interval > 0 && t.Elapsed-e.lastElapsed >= e.cfg.Interval {
		due = true
	}
	if !due {
		return nil, false
	}
	e.emitted = true
	e.lastPackets = t.Packets
	e.lastElapsed = t.Elapsed

	copy(e.out[:tsPacketLen], e.PAT())
	copy(e.out[tsPacketLen:], e.PMT())
	return e.out[:], true
}

// PAT return pat data
func (e *TableEmitter) PAT() []byte {
	patHeader := []byte{
		0x00, 0xb0, 0x0d,
		byte(e.cfg.TransportStreamID >> 8), byte(e.cfg.TransportStreamID),
		0xc1, 0x00, 0x00,
		byte(e.cfg.ProgramNumber >> 8), byte(e.cfg.ProgramNumber),
		0xe0 | byte(e.cfg.PMTPID>>8)&0x1f, byte(e.cfg.PMTPID),
	}
	e.writeSection(e.pat[:], PATPID, patHeader)
	return e.pat[:]
}

// PMT return pmt data
func (e *TableEmitter) PMT() []byte {
	progInfo := []byte{
		e.cfg.StreamType, 0xe0 | byte(e.cfg.VideoPID>>8)&0x1f, byte(e.cfg.VideoPID), 0xf0, 0x00,
	}
	pmtHeader := []byte{
		0x02, 0xb0, 0x00,
		byte(e.cfg.ProgramNumber >> 8), byte(e.cfg.ProgramNumber),
		0xc1, 0x00, 0x00,
		0xe0 | byte(e.cfg.VideoPID>>8)&0x1f, byte(e.cfg.VideoPID), // PCR PID
		0xf0, 0x00,
	}
	pmtHeader[2] = byte(len(progInfo) + 9 + 4)
	e.writeSection(e.pmt[:], e.cfg.PMTPID, append(pmtHeader, progInfo...))
	return e.pmt[:]
}

// writeSection 은 TS 헤더, pointer_field, 섹션, CRC32, stuffing 순서로 한 패킷을 채운다.
func (e *TableEmitter) writeSection(dst []byte, pid uint16, section []byte) {
	if len(section)+tsHeaderLen+1+4 > tsPacketLen {
		panic(fmt.Sprintf("ts: psi section of %d bytes does not fit one packet", len(section)))
	}
	i := 0
	dst[i] = 0x47
	i++
	dst[i] = 0x40 | byte(pid>>8)&0x1f
	i++
	dst[i] = byte(pid)
	i++
	dst[i] = 0x10 | e.cc.Next(pid, true)
	i++
	dst[i] = 0x00 // pointer_field
	i++

	i += copy(dst[i:], section)
	crc32Value := GenCrc32(section)
	dst[i] = byte(crc32Value >> 24)
	i++
	dst[i] = byte(crc32Value >> 16)
	i++
	dst[i] = byte(crc32Value >> 8)
	i++
	dst[i] = byte(crc32Value)
	i++

	for ; i < tsPacketLen; i++ {
		dst[i] = 0xff
	}
}
