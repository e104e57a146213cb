package sink

import (
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

type flusher interface {
	Flush() error
}

// Queue 는 쓰기를 별도 고루틴으로 넘긴다. 순서는 Write 호출 순서 그대로 유지된다.
// 한 번 실패하면 이후 데이터는 버리고, 다음 Write/Flush/Close 가 그 에러를 돌려준다.
type Queue struct {
	w       io.Writer
	ch      chan []byte
	g       errgroup.Group
	pending sync.WaitGroup

	mu     sync.Mutex
	err    error
	closed bool
}

func NewQueue(w io.Writer, size int) *Queue {
	if size < 1 {
		size = 1
	}
	q := &Queue{
		w:  w,
		ch: make(chan []byte, size),
	}
	q.g.Go(q.loop)
	return q
}

func (q *Queue) loop() error {
	for b := range q.ch {
		if q.Err() == nil {
			if _, err := q.w.Write(b); err != nil {
				q.mu.Lock()
				q.err = err
				q.mu.Unlock()
			}
		}
		q.pending.Done()
	}
	return q.Err()
}

func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Write 는 p 를 복사해서 넣는다. 큐가 차 있으면 기다린다.
func (q *Queue) Write(p []byte) (int, error) {
	if err := q.Err(); err != nil {
		return 0, err
	}
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}

	b := make([]byte, len(p))
	copy(b, p)
	q.pending.Add(1)
	q.ch <- b
	return len(p), nil
}

// Flush 는 넣은 데이터가 모두 쓰일 때까지 기다린다.
func (q *Queue) Flush() error {
	q.pending.Wait()
	if err := q.Err(); err != nil {
		return err
	}
	if f, ok := q.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return q.Err()
	}
	q.closed = true
	q.mu.Unlock()

	close(q.ch)
	err := q.g.Wait()
	if c, ok := q.w.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
