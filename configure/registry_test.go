package configure

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLocal(t *testing.T) {
	r, err := NewRegistry("", "")
	require.NoError(t, err)
	defer r.Close()

	key, err := r.Register("udp://127.0.0.1:5000")
	require.NoError(t, err)
	assert.Len(t, key, keyLen)

	info, err := r.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "udp://127.0.0.1:5000", info.Target)
	assert.Equal(t, RunStarted, info.State)
	assert.Len(t, info.ID, 16)

	require.NoError(t, r.Update(key, 10, 420))
	info, err = r.Get(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), info.Frames)
	assert.Equal(t, uint64(420), info.Packets)

	require.NoError(t, r.Finish(key, nil))
	info, err = r.Get(key)
	require.NoError(t, err)
	assert.Equal(t, RunFinished, info.State)
	assert.False(t, info.Finished.IsZero())

	other, err := r.Register("-")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
	require.NoError(t, r.Finish(other, fmt.Errorf("sink error")))
	info, err = r.Get(other)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, info.State)
	assert.Equal(t, "sink error", info.Error)

	assert.True(t, r.Delete(key))
	assert.False(t, r.Delete(key))
	_, err = r.Get(key)
	assert.Error(t, err)
	assert.Error(t, r.Update(key, 1, 1))
}

func TestRegistryGetCopies(t *testing.T) {
	r, err := NewRegistry("", "")
	require.NoError(t, err)

	key, err := r.Register("out.ts")
	require.NoError(t, err)
	info, err := r.Get(key)
	require.NoError(t, err)
	info.Frames = 100

	again, err := r.Get(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), again.Frames)
}

func TestRegistryRedisUnavailable(t *testing.T) {
	_, err := NewRegistry("127.0.0.1:1", "")
	assert.Error(t, err)
}
