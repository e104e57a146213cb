package source

import (
	"errors"
	"io"
	"testing"

	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/gwuhaolin/tsgen/av"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePixFmt(t *testing.T) {
	f, err := ParsePixFmt("RGB8")
	require.NoError(t, err)
	assert.Equal(t, PixFmtRGB8, f)

	f, err = ParsePixFmt("mono8")
	require.NoError(t, err)
	assert.Equal(t, PixFmtMono8, f)

	_, err = ParsePixFmt("yuv420")
	assert.True(t, errors.Is(err, av.ErrConfiguration))
}

func TestGenerateImage(t *testing.T) {
	a, err := GenerateImage(0, PixFmtRGB8, 64, 32)
	require.NoError(t, err)
	assert.Len(t, a.Data, 64*32*3)

	b, err := GenerateImage(1, PixFmtRGB8, 64, 32)
	require.NoError(t, err)
	assert.NotEqual(t, a.Data, b.Data)

	again, err := GenerateImage(0, PixFmtRGB8, 64, 32)
	require.NoError(t, err)
	assert.Equal(t, a.Data, again.Data)

	mono, err := GenerateImage(5, PixFmtMono8, 64, 32)
	require.NoError(t, err)
	assert.Len(t, mono.Data, 64*32)

	_, err = GenerateImage(0, PixFmt("bgr"), 64, 32)
	assert.Error(t, err)
	_, err = GenerateImage(0, PixFmtRGB8, 0, 32)
	assert.Error(t, err)
}

func TestYUV420(t *testing.T) {
	img := &Image{Width: 2, Height: 2, Fmt: PixFmtRGB8, Data: make([]byte, 12)}
	for i := range img.Data {
		img.Data[i] = 255
	}
	pic, err := img.YUV420()
	require.NoError(t, err)
	assert.Equal(t, []byte{235, 235, 235, 235}, pic.Y)
	assert.Equal(t, []byte{128}, pic.Cb)
	assert.Equal(t, []byte{128}, pic.Cr)

	black := &Image{Width: 2, Height: 2, Fmt: PixFmtMono8, Data: make([]byte, 4)}
	pic, err = black.YUV420()
	require.NoError(t, err)
	assert.Equal(t, []byte{16, 16, 16, 16}, pic.Y)
	assert.Equal(t, []byte{128}, pic.Cb)

	odd := &Image{Width: 3, Height: 2, Fmt: PixFmtMono8, Data: make([]byte, 6)}
	_, err = odd.YUV420()
	assert.Error(t, err)
}

func TestPatternSource(t *testing.T) {
	src, err := NewPatternSource(Config{Width: 48, Height: 32, PixFmt: PixFmtRGB8, NumFrames: 4})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		au, err := src.Next()
		require.NoError(t, err)
		assert.Equal(t, uint64(i), au.SequenceNumber)
		assert.True(t, au.IsRandomAccess)
		assert.False(t, au.CaptureTime.IsZero())

		var nalus mch264.AnnexB
		require.NoError(t, nalus.Unmarshal(au.Payload))
		require.Len(t, nalus, 4)
		assert.Equal(t, mch264.NALUTypeAccessUnitDelimiter, mch264.NALUType(nalus[0][0]&0x1f))
		assert.Equal(t, mch264.NALUTypeSPS, mch264.NALUType(nalus[1][0]&0x1f))
		assert.Equal(t, mch264.NALUTypePPS, mch264.NALUType(nalus[2][0]&0x1f))
		assert.Equal(t, mch264.NALUTypeIDR, mch264.NALUType(nalus[3][0]&0x1f))

		var sps mch264.SPS
		require.NoError(t, sps.Unmarshal(nalus[1]))
		assert.Equal(t, 48, sps.Width())
		assert.Equal(t, 32, sps.Height())
	}

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, uint64(4), src.Produced())
}

func TestPatternSourceInvalid(t *testing.T) {
	_, err := NewPatternSource(Config{Width: 33, Height: 32, PixFmt: PixFmtRGB8, NumFrames: 1})
	assert.True(t, errors.Is(err, av.ErrConfiguration))

	_, err = NewPatternSource(Config{Width: 32, Height: 32, PixFmt: "rgba", NumFrames: 1})
	assert.True(t, errors.Is(err, av.ErrConfiguration))
}
