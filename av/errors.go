package av

import (
	"errors"
	"fmt"
)

// 에러 종류. 모두 현재 스트림을 중단시킨다.
var (
	ErrClockOverflow = errors.New("clock overflow")
	ErrFraming       = errors.New("framing error")
	ErrSink          = errors.New("sink error")
	ErrConfiguration = errors.New("configuration error")
)

// Error 는 어느 access unit 의 어느 단계에서 실패했는지를 함께 담는다.
type Error struct {
	Kind  error
	Seq   uint64
	Stage string
	Err   error
}

func NewError(kind error, seq uint64, stage string, err error) *Error {
	return &Error{Kind: kind, Seq: seq, Stage: stage, Err: err}
}

// ConfigError 는 패킷을 만들기 전에 검출되는 설정 오류를 만든다.
func ConfigError(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrConfiguration, Stage: "config", Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (seq=%d, stage=%s)", e.Kind, e.Seq, e.Stage)
	}
	return fmt.Sprintf("%v (seq=%d, stage=%s): %v", e.Kind, e.Seq, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}
