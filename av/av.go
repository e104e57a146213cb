package av

import (
	"fmt"
	"io"
	"time"
)

// PES stream_id 값. 단일 비디오 스트림만 다루지만 오디오 값도 남겨둔다.
const (
	VideoSID StreamID = 0xe0
	AudioSID StreamID = 0xc0
)

// MPEG-TS stream_type (PMT)
const (
	StreamTypeH264 byte = 0x1b
)

type StreamID byte

func (sid StreamID) IsVideo() bool {
	return sid&0xf0 == 0xe0
}

// AccessUnit 은 인코더가 만든 한 프레임 분량의 압축 데이터이다.
// 생성 후에는 변경하지 않으며 PES Framer 가 한 번만 소비한다.
type AccessUnit struct {
	SequenceNumber uint64    // 입력 프레임 번호. PTS 계산의 기준이 된다.
	CaptureTime    time.Time // 프레임이 만들어진 벽시계 시간
	Payload        []byte    // Annex-B 형식의 압축 데이터. 내용은 해석하지 않는다.
	IsRandomAccess bool      // 키 프레임(IDR) 여부
}

// PesUnit 은 하나의 AccessUnit 을 PES 로 감싼 결과이다.
// PTS/DTS 는 90kHz 단위의 33비트 값이다.
type PesUnit struct {
	StreamID       StreamID
	PTS            uint64
	HasDTS         bool
	DTS            uint64
	Payload        []byte
	DataAlignment  bool
	IsRandomAccess bool
	SequenceNumber uint64
}

// Source 는 AccessUnit 을 순서대로 하나씩 내놓는다. 더 이상 없으면 io.EOF.
type Source interface {
	Next() (*AccessUnit, error)
}

// Muxer 는 AccessUnit 을 받아 컨테이너 포맷으로 직렬화해 싱크에 쓴다.
type Muxer interface {
	WriteAccessUnit(*AccessUnit) error
	Flush() error
}

// RawMuxer 는 컨테이너 없이 elementary stream 을 그대로 싱크에 쓴다.
type RawMuxer struct {
	w io.Writer
}

func NewRawMuxer(w io.Writer) *RawMuxer {
	return &RawMuxer{w: w}
}

func (m *RawMuxer) WriteAccessUnit(au *AccessUnit) error {
	if _, err := m.w.Write(au.Payload); err != nil {
		return NewError(ErrSink, au.SequenceNumber, "write", err)
	}
	return nil
}

func (m *RawMuxer) Flush() error {
	if f, ok := m.w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return NewError(ErrSink, 0, "flush", err)
		}
	}
	return nil
}

// 스트림 하나를 식별하기 위한 정보
type Info struct {
	Key    string // 실행마다 발급되는 고유 키
	URL    string // 출력 대상 주소
	MpegTS bool   // TS 컨테이너 사용 여부
}

func (info Info) String() string {
	return fmt.Sprintf("<key: %s, URL: %s, MpegTS: %v>",
		info.Key, info.URL, info.MpegTS)
}
