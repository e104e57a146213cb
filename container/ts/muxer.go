package ts

import (
	"fmt"

	"github.com/gwuhaolin/tsgen/av"
	"github.com/gwuhaolin/tsgen/utils/pool"
)

const (
	tsDefaultDataLen = 184
	tsPacketLen      = 188
	tsHeaderLen      = 4

	PATPID     uint16 = 0x0000
	minUserPID uint16 = 0x0010
	maxUserPID uint16 = 0x1ffe
)

/*
https://en.wikipedia.org/wiki/MPEG_transport_stream

Continuity Counter 는 PID 별 4비트 값으로, 페이로드를 가진 TS 패킷마다 1씩 증가하고 15 다음은 0 이다.
adaptation field 만 있는 패킷에서는 증가하지 않는다.
수신측은 이 값으로 패킷 손실이나 중복을 알아낸다.
*/
type ContinuityState struct {
	cc map[uint16]uint8
}

func NewContinuityState() *ContinuityState {
	return &ContinuityState{cc: make(map[uint16]uint8)}
}

// Set 은 pid 의 다음 패킷에 쓰일 값을 정한다.
func (s *ContinuityState) Set(pid uint16, cc uint8) {
	s.cc[pid] = cc & 0x0f
}

// Peek 은 pid 의 다음 페이로드 패킷에 쓰일 값을 돌려준다.
func (s *ContinuityState) Peek(pid uint16) uint8 {
	return s.cc[pid]
}

// Next 는 패킷에 찍을 값을 돌려주고, 페이로드가 있으면 카운터를 1 증가시킨다.
// 페이로드가 없는 패킷(adaptation field only)은 직전 페이로드 패킷과 같은 값을 쓴다.
// 아직 페이로드 패킷이 없었던 pid 는 다음 페이로드 패킷에 쓰일 값을 그대로 쓴다.
// Packetizer 가 만드는 패킷은 모두 페이로드를 가진다.
func (s *ContinuityState) Next(pid uint16, hasPayload bool) uint8 {
	cur, seen := s.cc[pid]
	if !hasPayload {
		if !seen {
			return cur
		}
		return (cur - 1) & 0x0f
	}
	s.cc[pid] = (cur + 1) & 0x0f
	return cur
}

// Packetizer 는 PES 유닛을 188바이트 TS 패킷들로 나눈다.
// CC 상태는 밖에서 넘겨받기 때문에 테스트에서 초기값을 정할 수 있다.
type Packetizer struct {
	cc           *ContinuityState
	pcrEveryUnit bool
	pcrDelay     uint64 // PCR 이 PTS 보다 앞서는 90kHz 틱
	pool         *pool.Pool
	pes          pesHeader
}

func NewPacketizer(cc *ContinuityState, pcrEveryUnit bool) *Packetizer {
	if cc == nil {
		cc = NewContinuityState()
	}
	return &Packetizer{
		cc:           cc,
		pcrEveryUnit: pcrEveryUnit,
		pool:         pool.NewPool(),
	}
}

// SetPCRDelay 는 PCR 을 PTS 보다 ticks 만큼 앞당긴다.
func (packetizer *Packetizer) SetPCRDelay(ticks uint64) {
	packetizer.pcrDelay = ticks & av.MaxClock
}

func (packetizer *Packetizer) Continuity() *ContinuityState {
	return packetizer.cc
}

// Packetize 는 PES 헤더 + 페이로드를 하나의 버퍼로 만든 뒤 184바이트씩 잘라 패킷을 만든다.
// 첫 패킷은 payload_unit_start_indicator 를 켜고, 키 프레임이거나 PCR 이 필요하면 adaptation field 를 싣는다.
// 마지막 패킷이 모자라면 adaptation field 의 0xff stuffing 으로 188바이트를 채운다.
func (packetizer *Packetizer) Packetize(u *av.PesUnit, pid uint16) ([]Packet, error) {
	if pid < minUserPID || pid > maxUserPID {
		return nil, av.NewError(av.ErrConfiguration, u.SequenceNumber, "packetize",
			fmt.Errorf("invalid pid 0x%04x", pid))
	}
	if err := packetizer.pes.packet(u); err != nil {
		return nil, err
	}

	pesHeaderLen := int(packetizer.pes.len)
	buf := packetizer.pool.Get(pesHeaderLen + len(u.Payload))
	copy(buf, packetizer.pes.data[:pesHeaderLen])
	copy(buf[pesHeaderLen:], u.Payload)

	withPcr := u.IsRandomAccess || packetizer.pcrEveryUnit
	packets := make([]Packet, 0, len(buf)/tsDefaultDataLen+1)
	offset := 0
	for first := true; first || offset < len(buf); first = false {
		var pkt Packet
		var af [tsDefaultDataLen]byte
		afLen := 0

		// random access indicator, PCR
		if first && withPcr {
			afLen = 2
			if u.IsRandomAccess {
				af[1] |= 0x40
			}
			af[1] |= 0x10
			base, ext := av.PCR(u.PTS, packetizer.pcrDelay)
			packetizer.writePcr(af[:], afLen, base, ext)
			afLen += 6
		}

		remain := len(buf) - offset
		space := tsDefaultDataLen - afLen
		if remain < space {
			afLen = packetizer.adaptationBufInit(af[:], afLen, space-remain)
		}
		if afLen > 0 {
			af[0] = byte(afLen - 1)
		}

		dataLen := tsDefaultDataLen - afLen
		if dataLen <= 0 || dataLen > remain {
			return nil, av.NewError(av.ErrFraming, u.SequenceNumber, "packetize",
				fmt.Errorf("packet %d: %d payload bytes for %d remaining", len(packets), dataLen, remain))
		}

		i := 0
		pkt[i] = 0x47
		i++
		pkt[i] = byte(pid>>8) & 0x1f
		if first {
			pkt[i] |= 0x40
		}
		i++
		pkt[i] = byte(pid)
		i++
		pkt[i] = 0x10 | packetizer.cc.Next(pid, true)
		if afLen > 0 {
			pkt[i] |= 0x20
		}
		i++

		i += copy(pkt[i:], af[:afLen])
		i += copy(pkt[i:], buf[offset:offset+dataLen])
		offset += dataLen
		if i != tsPacketLen {
			return nil, av.NewError(av.ErrFraming, u.SequenceNumber, "packetize",
				fmt.Errorf("packet %d is %d bytes", len(packets), i))
		}
		packets = append(packets, pkt)
	}

	if offset != len(buf) {
		return nil, av.NewError(av.ErrFraming, u.SequenceNumber, "packetize",
			fmt.Errorf("%d of %d pes bytes packetized", offset, len(buf)))
	}
	return packets, nil
}

// adaptationBufInit 는 adaptation field 끝에 stuffing 바이트를 덧붙이고 새 길이를 돌려준다.
// 이미 adaptation field 가 있으면 0xff 만 붙이고, 없으면 길이/플래그 2바이트를 포함해 만든다.
// stuffing 이 1바이트면 길이 바이트(0) 하나만 들어간다.
func (packetizer *Packetizer) adaptationBufInit(src []byte, afLen int, stuffing int) int {
	if afLen == 0 {
		if stuffing == 1 {
			return 1
		}
		src[1] = 0x00
		afLen = 2
		stuffing -= 2
	}
	for j := 0; j < stuffing; j++ {
		src[afLen+j] = 0xff
	}
	return afLen + stuffing
}

/*
Program clock reference, stored as 33 bits base,
6 bits reserved, 9 bits extension.
The value is calculated as base * 300 + extension.
*/
func (packetizer *Packetizer) writePcr(b []byte, i int, base uint64, ext uint16) {
	b[i] = byte(base >> 25)
	i++
	b[i] = byte((base >> 17) & 0xff)
	i++
	b[i] = byte((base >> 9) & 0xff)
	i++
	b[i] = byte((base >> 1) & 0xff)
	i++
	b[i] = byte(((base & 0x1) << 7) | 0x7e | uint64(ext>>8)&0x01)
	i++
	b[i] = byte(ext)
}
