package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolGet(t *testing.T) {
	p := NewPool()

	a := p.Get(100)
	b := p.Get(200)
	assert.Len(t, a, 100)
	assert.Len(t, b, 200)

	a[99] = 1
	assert.Equal(t, byte(0), b[0])
}

func TestPoolLarge(t *testing.T) {
	p := NewPool()
	b := p.Get(maxpoolsize + 1)
	assert.Len(t, b, maxpoolsize+1)
	assert.Equal(t, 0, p.pos)
}

func TestPoolWrap(t *testing.T) {
	p := NewPool()
	p.Get(maxpoolsize - 10)
	b := p.Get(20)
	assert.Len(t, b, 20)
	assert.Equal(t, 20, p.pos)
}
