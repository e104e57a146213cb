package sink

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gwuhaolin/tsgen/av"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in   string
		want Target
	}{
		{"-", Target{Kind: KindStdout}},
		{"file:///tmp/out.ts", Target{Kind: KindFile, Path: "/tmp/out.ts"}},
		{"out.h264", Target{Kind: KindFile, Path: "out.h264"}},
		{"udp://127.0.0.1:1234", Target{Kind: KindUDP, Addr: "127.0.0.1:1234"}},
		{"udp://239.0.0.1:5000", Target{Kind: KindUDP, Addr: "239.0.0.1:5000"}},
	}
	for _, tt := range tests {
		got, err := ParseTarget(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, in := range []string{"", "file://", "udp://127.0.0.1", "udp://::1:5000", "udp://host:port", "udp://host:0", "udp://host:70000"} {
		_, err := ParseTarget(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, av.ErrConfiguration), in)
	}
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "-", Target{Kind: KindStdout}.String())
	assert.Equal(t, "file://a.ts", Target{Kind: KindFile, Path: "a.ts"}.String())
	assert.Equal(t, "udp://h:1", Target{Kind: KindUDP, Addr: "h:1"}.String())
	assert.Equal(t, "udp", KindUDP.String())
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ts")
	w, err := Open(Target{Kind: KindFile, Path: path}, DefaultOptions())
	require.NoError(t, err)

	_, err = w.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = w.Write([]byte("world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(b))
}

func TestFileSinkOpenError(t *testing.T) {
	_, err := Open(Target{Kind: KindFile, Path: filepath.Join(t.TempDir(), "missing", "out.ts")}, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, av.ErrSink))
}

func TestUDPSink(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()

	target, err := ParseTarget(fmt.Sprintf("udp://%s", ln.LocalAddr().String()))
	require.NoError(t, err)
	w, err := Open(target, Options{UDPBatch: 2, UDPTTL: 1})
	require.NoError(t, err)
	defer w.Close()

	// 5 패킷 -> 2, 2, 1
	data := make([]byte, 5*188)
	for i := range data {
		data[i] = byte(i / 188)
	}
	n, err := w.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, uint64(3), w.(*UDPSink).Datagrams())

	var got []byte
	buf := make([]byte, 65536)
	require.NoError(t, ln.SetReadDeadline(time.Now().Add(5*time.Second)))
	for _, want := range []int{376, 376, 188} {
		n, _, err := ln.ReadFromUDP(buf)
		require.NoError(t, err)
		assert.Equal(t, want, n)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, data, got)
}

func TestUDPSinkInvalidBatch(t *testing.T) {
	_, err := Open(Target{Kind: KindUDP, Addr: "127.0.0.1:5000"}, Options{UDPBatch: 0})
	assert.True(t, errors.Is(err, av.ErrConfiguration))
}

type slowWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	flushed int
	closed  bool
	failAt  int
	writes  int
}

func (w *slowWriter) Write(p []byte) (int, error) {
	time.Sleep(time.Millisecond)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	if w.failAt > 0 && w.writes >= w.failAt {
		return 0, fmt.Errorf("disk full")
	}
	return w.buf.Write(p)
}

func (w *slowWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushed++
	return nil
}

func (w *slowWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestQueueOrder(t *testing.T) {
	w := &slowWriter{}
	q := NewQueue(w, 4)

	var want bytes.Buffer
	chunk := make([]byte, 188)
	for i := 0; i < 50; i++ {
		for j := range chunk {
			chunk[j] = byte(i)
		}
		want.Write(chunk)
		// 같은 버퍼를 재사용해도 큐는 복사본을 쓴다.
		n, err := q.Write(chunk)
		require.NoError(t, err)
		assert.Equal(t, 188, n)
	}

	require.NoError(t, q.Flush())
	assert.Equal(t, want.Bytes(), w.buf.Bytes())
	assert.Equal(t, 1, w.flushed)

	require.NoError(t, q.Close())
	assert.True(t, w.closed)

	_, err := q.Write(chunk)
	assert.Error(t, err)
	assert.NoError(t, q.Close())
}

func TestQueueError(t *testing.T) {
	w := &slowWriter{failAt: 3}
	q := NewQueue(w, 2)

	for i := 0; i < 10; i++ {
		if _, err := q.Write([]byte{byte(i)}); err != nil {
			break
		}
	}
	err := q.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, []byte{0, 1}, w.buf.Bytes())

	assert.Error(t, q.Close())
	assert.True(t, w.closed)
}
