package sink

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gwuhaolin/tsgen/av"
)

type Kind int

const (
	KindFile Kind = iota
	KindUDP
	KindStdout
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindUDP:
		return "udp"
	case KindStdout:
		return "stdout"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Target 은 출력 목적지다. file 이면 Path, udp 이면 Addr(host:port) 를 쓴다.
type Target struct {
	Kind Kind
	Path string
	Addr string
}

func (t Target) String() string {
	switch t.Kind {
	case KindUDP:
		return "udp://" + t.Addr
	case KindStdout:
		return "-"
	}
	return "file://" + t.Path
}

/*
ParseTarget 은 목적지 문자열을 해석한다.

	file:///path/out.ts   파일
	udp://host:port       UDP, ':' 는 정확히 하나
	-                     표준 출력
	그 외                  파일 경로
*/
func ParseTarget(s string) (Target, error) {
	switch {
	case s == "":
		return Target{}, av.ConfigError("empty target")
	case s == "-":
		return Target{Kind: KindStdout}, nil
	case strings.HasPrefix(s, "file://"):
		p := s[len("file://"):]
		if p == "" {
			return Target{}, av.ConfigError("target %q has no path", s)
		}
		return Target{Kind: KindFile, Path: p}, nil
	case strings.HasPrefix(s, "udp://"):
		spl := strings.Split(s[len("udp://"):], ":")
		if len(spl) != 2 {
			return Target{}, av.ConfigError("UDP must have exactly one ':' in %q", s)
		}
		port, err := strconv.ParseUint(spl[1], 10, 16)
		if err != nil || port == 0 {
			return Target{}, av.ConfigError("invalid UDP port %q", spl[1])
		}
		return Target{Kind: KindUDP, Addr: net.JoinHostPort(spl[0], spl[1])}, nil
	}
	return Target{Kind: KindFile, Path: s}, nil
}
