package ts

import (
	"errors"
	"testing"
	"time"

	"github.com/gwuhaolin/tsgen/av"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultTables(t *testing.T) *TableEmitter {
	e, err := NewTableEmitter(TableConfig{
		TransportStreamID: 1,
		ProgramNumber:     1,
		PMTPID:            0x1000,
		VideoPID:          0x100,
		IntervalPackets:   10,
	})
	require.NoError(t, err)
	return e
}

func TestGenCrc32(t *testing.T) {
	section := []byte{0x00, 0xb0, 0x0d, 0x00, 0x01, 0xc1, 0x00, 0x00, 0x00, 0x01, 0xf0, 0x00}
	assert.Equal(t, uint32(0x2ab104b2), GenCrc32(section))

	withCrc := append(section, 0x2a, 0xb1, 0x04, 0xb2)
	assert.Equal(t, uint32(0), GenCrc32(withCrc))
}

func TestPAT(t *testing.T) {
	e := defaultTables(t)
	pat := e.PAT()
	require.Len(t, pat, 188)
	assert.Equal(t, []byte{
		0x47, 0x40, 0x00, 0x10, 0x00,
		0x00, 0xb0, 0x0d, 0x00, 0x01, 0xc1, 0x00, 0x00, 0x00, 0x01, 0xf0, 0x00,
		0x2a, 0xb1, 0x04, 0xb2,
	}, pat[:21])
	for _, b := range pat[21:] {
		require.Equal(t, byte(0xff), b)
	}
}

func TestPMT(t *testing.T) {
	e := defaultTables(t)
	pmt := e.PMT()
	require.Len(t, pmt, 188)
	assert.Equal(t, []byte{
		0x47, 0x50, 0x00, 0x10, 0x00,
		0x02, 0xb0, 0x12, 0x00, 0x01, 0xc1, 0x00, 0x00, 0xe1, 0x00, 0xf0, 0x00,
		0x1b, 0xe1, 0x00, 0xf0, 0x00,
		0x15, 0xbd, 0x4d, 0x56,
	}, pmt[:26])
	assert.Equal(t, uint32(0), GenCrc32(pmt[5:26]))
}

func TestTableContinuity(t *testing.T) {
	e := defaultTables(t)
	for i := 0; i < 40; i++ {
		pat := Packet{}
		copy(pat[:], e.PAT())
		pmt := Packet{}
		copy(pmt[:], e.PMT())
		assert.Equal(t, uint8(i%16), pat.ContinuityCounter())
		assert.Equal(t, uint8(i%16), pmt.ContinuityCounter())
		assert.Equal(t, PATPID, pat.PID())
		assert.Equal(t, uint16(0x1000), pmt.PID())
	}
}

func TestTableTickPackets(t *testing.T) {
	e := defaultTables(t)

	b, ok := e.Tick(TableTick{Packets: 0})
	require.True(t, ok)
	require.Len(t, b, 376)

	emitted := 0
	for n := uint64(1); n <= 100; n++ {
		if _, ok := e.Tick(TableTick{Packets: n}); ok {
			emitted++
			assert.Equal(t, uint64(0), n%10)
		}
	}
	assert.Equal(t, 10, emitted)
}

func TestTableTickElapsed(t *testing.T) {
	e, err := NewTableEmitter(TableConfig{
		ProgramNumber: 1,
		PMTPID:        0x1000,
		VideoPID:      0x100,
		Interval:      100 * time.Millisecond,
	})
	require.NoError(t, err)

	_, ok := e.Tick(TableTick{})
	require.True(t, ok)
	_, ok = e.Tick(TableTick{Packets: 1000, Elapsed: 99 * time.Millisecond})
	assert.False(t, ok)
	_, ok = e.Tick(TableTick{Packets: 1001, Elapsed: 100 * time.Millisecond})
	assert.True(t, ok)
	_, ok = e.Tick(TableTick{Packets: 1002, Elapsed: 150 * time.Millisecond})
	assert.False(t, ok)
}

func TestTableConfigErrors(t *testing.T) {
	cases := []TableConfig{
		{ProgramNumber: 1, PMTPID: 0x0000, VideoPID: 0x100},
		{ProgramNumber: 1, PMTPID: 0x1000, VideoPID: 0x1fff},
		{ProgramNumber: 1, PMTPID: 0x100, VideoPID: 0x100},
		{ProgramNumber: 0, PMTPID: 0x1000, VideoPID: 0x100},
	}
	for _, cfg := range cases {
		_, err := NewTableEmitter(cfg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, av.ErrConfiguration))
	}
}
