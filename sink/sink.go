package sink

import (
	"io"
	"net"
	"os"

	"github.com/gwuhaolin/tsgen/av"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
)

const (
	tsPacketLen     = 188
	DefaultUDPBatch = 7 // 7*188 = 1316, 이더넷 MTU 안에 들어간다
	DefaultUDPTTL   = 1
)

type Options struct {
	UDPBatch int
	UDPTTL   int
}

func DefaultOptions() Options {
	return Options{UDPBatch: DefaultUDPBatch, UDPTTL: DefaultUDPTTL}
}

// Open 은 목적지에 맞는 sink 를 연다. 쓰기 한 번이 끝나면 그 바이트는 모두 전달된 상태다.
func Open(t Target, opts Options) (io.WriteCloser, error) {
	switch t.Kind {
	case KindStdout:
		return stdoutSink{os.Stdout}, nil
	case KindFile:
		f, err := os.Create(t.Path)
		if err != nil {
			return nil, av.NewError(av.ErrSink, 0, "open", errors.Wrapf(err, "create %s", t.Path))
		}
		log.Debugf("sink file %s opened", t.Path)
		return f, nil
	case KindUDP:
		s, err := openUDP(t.Addr, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, av.ConfigError("unknown target kind %v", t.Kind)
}

// 표준 출력은 닫지 않는다.
type stdoutSink struct {
	f *os.File
}

func (s stdoutSink) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

func (s stdoutSink) Close() error {
	return nil
}

// UDPSink 은 쓰기마다 최대 batch 개의 TS 패킷을 데이터그램 하나로 보낸다.
// 마지막 데이터그램은 짧을 수 있다.
type UDPSink struct {
	conn      *net.UDPConn
	batch     int
	datagrams uint64
}

func openUDP(addr string, opts Options) (*UDPSink, error) {
	if opts.UDPBatch <= 0 {
		return nil, av.ConfigError("udp batch %d must be positive", opts.UDPBatch)
	}
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, av.ConfigError("resolve %s: %v", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, av.NewError(av.ErrSink, 0, "open", errors.Wrapf(err, "dial %s", addr))
	}

	if raddr.IP.IsMulticast() && raddr.IP.To4() != nil {
		pc := ipv4.NewPacketConn(conn)
		if err := pc.SetMulticastTTL(opts.UDPTTL); err != nil {
			conn.Close()
			return nil, av.NewError(av.ErrSink, 0, "open", errors.Wrap(err, "set multicast ttl"))
		}
		if err := pc.SetMulticastLoopback(true); err != nil {
			log.Warning("multicast loopback: ", err)
		}
		log.Debugf("sink udp %s multicast ttl %d", addr, opts.UDPTTL)
	}

	return &UDPSink{conn: conn, batch: opts.UDPBatch}, nil
}

func (s *UDPSink) Write(p []byte) (int, error) {
	size := s.batch * tsPacketLen
	n := 0
	for n < len(p) {
		end := n + size
		if end > len(p) {
			end = len(p)
		}
		if _, err := s.conn.Write(p[n:end]); err != nil {
			return n, err
		}
		s.datagrams++
		n = end
	}
	return n, nil
}

func (s *UDPSink) Datagrams() uint64 {
	return s.datagrams
}

func (s *UDPSink) Close() error {
	return s.conn.Close()
}
