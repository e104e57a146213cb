package pool

// 패킷 버퍼를 매번 새로 할당하지 않고 미리 잡아둔 큰 버퍼에서 잘라 쓴다.
// 돌려받는 슬라이스는 다음 Get 들이 한 바퀴 돌 때까지만 유효하다.

type Pool struct {
	pos int    // 현재까지 사용된 위치
	buf []byte // 미리 할당된 버퍼
}

// 메모리 풀 최대크기. 500 kb
const maxpoolsize = 500 * 1024

// Get 은 size 바이트 슬라이스를 돌려준다. 풀보다 큰 요청은 따로 할당한다.
func (pool *Pool) Get(size int) []byte {
	if size > maxpoolsize {
		return make([]byte, size)
	}
	if maxpoolsize-pool.pos < size {
		pool.pos = 0
		pool.buf = make([]byte, maxpoolsize)
	}
	b := pool.buf[pool.pos : pool.pos+size]
	pool.pos += size
	return b
}

func NewPool() *Pool {
	return &Pool{
		buf: make([]byte, maxpoolsize),
	}
}
