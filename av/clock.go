package av

import (
	"fmt"
	"math"
	"time"
)

// PTS/DTS 는 90kHz, 33비트 값이다.
const (
	ClockHZ   = 90000
	MaxClock  = 1<<33 - 1
	clockWrap = uint64(1 << 33)
)

// Clock 은 프레임 번호를 90kHz PTS 로 바꾼다.
// 첫 프레임에서 기준값(base)이 고정되고 이후 프레임은 그 기준으로부터 계산된다.
type Clock struct {
	frameRate  float64
	initialPTS uint64
	wrap       bool

	started  bool
	firstSeq uint64
	lastSeq  uint64
	lastPTS  uint64
}

func NewClock(frameRate float64, initialPTS uint64, wrap bool) (*Clock, error) {
	if frameRate <= 0 || math.IsNaN(frameRate) || math.IsInf(frameRate, 0) {
		return nil, ConfigError("invalid frame rate %v", frameRate)
	}
	if initialPTS > MaxClock {
		return nil, ConfigError("initial pts %d exceeds 33 bits", initialPTS)
	}
	return &Clock{
		frameRate:  frameRate,
		initialPTS: initialPTS,
		wrap:       wrap,
	}, nil
}

// PTS 는 seq 번째 프레임의 presentation timestamp 를 계산한다.
// pts = initialPTS + round((seq - firstSeq) * 90000 / frameRate)
// 차이를 정수로 먼저 구하기 때문에 seq 가 아주 커도 값이 뭉개지지 않는다.
func (c *Clock) PTS(seq uint64) (uint64, error) {
	first := seq
	if c.started {
		if seq <= c.lastSeq {
			return 0, NewError(ErrConfiguration, seq, "clock",
				fmt.Errorf("sequence number not increasing (last %d)", c.lastSeq))
		}
		first = c.firstSeq
	}

	ticks := math.Round(float64(seq-first) * ClockHZ / c.frameRate)
	var pts uint64
	if c.wrap {
		pts = (c.initialPTS + uint64(math.Mod(ticks, float64(clockWrap)))) % clockWrap
	} else {
		if ticks > float64(MaxClock-c.initialPTS) {
			return 0, NewError(ErrClockOverflow, seq, "clock",
				fmt.Errorf("pts %d + %.0f exceeds 33 bits", c.initialPTS, ticks))
		}
		pts = c.initialPTS + uint64(ticks)
	}

	c.started = true
	c.firstSeq = first
	c.lastSeq = seq
	c.lastPTS = pts
	return pts, nil
}

func (c *Clock) LastPTS() uint64 {
	return c.lastPTS
}

// PCR 은 pts 보다 delay 틱 앞선 시각을 27MHz PCR 의 base/extension 으로 나눈다.
// PCR = base * 300 + ext. delay 만큼이 디코더의 버퍼링 여유가 된다.
func PCR(pts, delay uint64) (base uint64, ext uint16) {
	return (pts - delay) & MaxClock, 0
}

// DurationToTicks 는 d 를 90kHz 틱으로 바꾼다. 음수는 0 이다.
func DurationToTicks(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d/time.Second)*ClockHZ + uint64(d%time.Second)*ClockHZ/uint64(time.Second)
}
