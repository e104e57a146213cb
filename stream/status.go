package stream

import (
	"time"

	"github.com/gwuhaolin/tsgen/av"
)

type Status struct {
	Info          av.Info
	Frames        uint64    // 싱크까지 쓴 access unit 수
	Packets       uint64    // TS 패킷 수. raw 모드에서는 0
	Bytes         uint64    // 싱크에 쓴 바이트 수
	hasSetFirstTs bool      // 첫번째 타임스탬프가 설정되었는지 여부
	FirstPTS      uint64    // 첫 access unit 의 PTS (TS 모드)
	LastPTS       uint64    // 마지막 access unit 의 PTS (TS 모드)
	streamTime    time.Duration
	CreatedAt     time.Time // 실행 시작 시간
	FinishedAt    time.Time
}

func newStatus(info av.Info) *Status {
	return &Status{
		Info:      info,
		CreatedAt: time.Now(),
	}
}

// access unit 하나를 쓴 뒤 호출한다.
func (t *Status) update(bytes, packets uint64, hasPTS bool, pts uint64, streamTime time.Duration) {
	t.Frames++
	t.Bytes = bytes
	t.Packets = packets
	if !hasPTS {
		return
	}
	if !t.hasSetFirstTs {
		t.hasSetFirstTs = true
		t.FirstPTS = pts
	}
	t.LastPTS = pts
	t.streamTime = streamTime
}

// Duration 은 첫 프레임과 마지막 프레임 사이의 스트림 시간이다. PTS wrap 과 무관하다.
func (t *Status) Duration() time.Duration {
	return t.streamTime
}

func (t *Status) Elapsed() time.Duration {
	if t.FinishedAt.IsZero() {
		return time.Since(t.CreatedAt)
	}
	return t.FinishedAt.Sub(t.CreatedAt)
}
