package ts

// Packet 은 188바이트 TS 패킷 하나이다.
type Packet [tsPacketLen]byte

func (p *Packet) PID() uint16 {
	return uint16(p[1]&0x1f)<<8 | uint16(p[2])
}

func (p *Packet) PayloadUnitStart() bool {
	return p[1]&0x40 != 0
}

func (p *Packet) ContinuityCounter() uint8 {
	return p[3] & 0x0f
}

func (p *Packet) HasAdaptationField() bool {
	return p[3]&0x20 != 0
}

func (p *Packet) HasPayload() bool {
	return p[3]&0x10 != 0
}

// AdaptationField 는 길이 바이트를 뺀 adaptation field 내용이다.
func (p *Packet) AdaptationField() []byte {
	if !p.HasAdaptationField() {
		return nil
	}
	n := int(p[4])
	if n > tsDefaultDataLen-1 {
		n = tsDefaultDataLen - 1
	}
	return p[5 : 5+n]
}

func (p *Packet) RandomAccess() bool {
	af := p.AdaptationField()
	return len(af) > 0 && af[0]&0x40 != 0
}

func (p *Packet) Payload() []byte {
	if !p.HasPayload() {
		return nil
	}
	start := tsHeaderLen
	if p.HasAdaptationField() {
		start += 1 + int(p[4])
	}
	if start > tsPacketLen {
		return nil
	}
	return p[start:]
}
