package av

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockPTS30fps(t *testing.T) {
	c, err := NewClock(30.0, 0, false)
	require.NoError(t, err)

	for n := uint64(0); n < 100; n++ {
		pts, err := c.PTS(n)
		require.NoError(t, err)
		assert.Equal(t, n*3000, pts)
	}
}

func TestClockRounding(t *testing.T) {
	c, err := NewClock(29.97, 0, false)
	require.NoError(t, err)

	var last uint64
	for n := uint64(0); n < 1000; n++ {
		pts, err := c.PTS(n)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, pts, last)
		last = pts
	}
	// round(999 * 90000 / 29.97) = 3000000
	assert.Equal(t, uint64(3000000), last)
}

func TestClockBaseFixedAtFirstFrame(t *testing.T) {
	c, err := NewClock(25.0, 90000, false)
	require.NoError(t, err)

	pts, err := c.PTS(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(90000), pts)

	pts, err = c.PTS(11)
	require.NoError(t, err)
	assert.Equal(t, uint64(93600), pts)

	pts, err = c.PTS(20)
	require.NoError(t, err)
	assert.Equal(t, uint64(90000+36000), pts)
}

func TestClockNonMonotonic(t *testing.T) {
	c, err := NewClock(30.0, 0, false)
	require.NoError(t, err)

	_, err = c.PTS(5)
	require.NoError(t, err)

	_, err = c.PTS(5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = c.PTS(3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))

	pts, err := c.PTS(6)
	require.NoError(t, err)
	assert.Equal(t, uint64(3000), pts)
}

func TestClockOverflow(t *testing.T) {
	c, err := NewClock(30.0, MaxClock-3000, false)
	require.NoError(t, err)

	_, err = c.PTS(0)
	require.NoError(t, err)
	pts, err := c.PTS(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(MaxClock), pts)

	_, err = c.PTS(2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClockOverflow))

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, uint64(2), e.Seq)
	assert.Equal(t, "clock", e.Stage)
}

func TestClockWrap(t *testing.T) {
	c, err := NewClock(30.0, MaxClock-2998, true)
	require.NoError(t, err)

	_, err = c.PTS(0)
	require.NoError(t, err)
	pts, err := c.PTS(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pts)
}

func TestClockInvalidRate(t *testing.T) {
	for _, rate := range []float64{0, -1} {
		_, err := NewClock(rate, 0, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfiguration))
	}
}

func TestClockLargeSequenceNumbers(t *testing.T) {
	c, err := NewClock(30.0, 0, false)
	require.NoError(t, err)

	for i, want := range []uint64{0, 90000, 180000} {
		pts, err := c.PTS(1<<62 + uint64(i)*30)
		require.NoError(t, err)
		assert.Equal(t, want, pts)
	}

	_, err = c.PTS(1 << 63)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClockOverflow))
	assert.Equal(t, uint64(180000), c.LastPTS())
}

func TestClockWrapLargeJump(t *testing.T) {
	c, err := NewClock(30.0, 0, true)
	require.NoError(t, err)

	_, err = c.PTS(0)
	require.NoError(t, err)
	// 2^33 / 3000 프레임을 건너뛰면 한 바퀴를 돈다.
	n := clockWrap / 3000
	pts, err := c.PTS(n + 1)
	require.NoError(t, err)
	assert.Equal(t, (n+1)*3000%clockWrap, pts)
	assert.LessOrEqual(t, pts, uint64(MaxClock))
}

func TestPCRDelay(t *testing.T) {
	base, ext := PCR(90000, 0)
	assert.Equal(t, uint64(90000), base)
	assert.Equal(t, uint16(0), ext)

	base, _ = PCR(90000, DurationToTicks(100*time.Millisecond))
	assert.Equal(t, uint64(81000), base)

	// PTS 가 wrap 직후면 PCR 은 wrap 직전 값이 된다.
	base, _ = PCR(1000, 3000)
	assert.Equal(t, uint64(MaxClock-1999), base)
}

func TestDurationToTicks(t *testing.T) {
	assert.Equal(t, uint64(0), DurationToTicks(0))
	assert.Equal(t, uint64(0), DurationToTicks(-time.Second))
	assert.Equal(t, uint64(90), DurationToTicks(time.Millisecond))
	assert.Equal(t, uint64(3*90000+45000), DurationToTicks(3500*time.Millisecond))
}
