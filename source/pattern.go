package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/gwuhaolin/tsgen/av"
	"github.com/gwuhaolin/tsgen/codec/h264"
	"github.com/patrickmn/go-cache"
)

type PixFmt string

const (
	PixFmtRGB8  PixFmt = "rgb8"
	PixFmtMono8 PixFmt = "mono8"
)

func ParsePixFmt(s string) (PixFmt, error) {
	switch f := PixFmt(strings.ToLower(s)); f {
	case PixFmtRGB8, PixFmtMono8:
		return f, nil
	}
	return "", av.ConfigError("unknown pixel format %q", s)
}

func (f PixFmt) bytesPerPixel() int {
	if f == PixFmtRGB8 {
		return 3
	}
	return 1
}

// Image 는 패킹된 rgb8 또는 mono8 한 장이다.
type Image struct {
	Width  int
	Height int
	Fmt    PixFmt
	Data   []byte
}

// 컬러 바 배경. (r, g, b)
var bars = [][3]byte{
	{235, 235, 235},
	{235, 235, 16},
	{16, 235, 235},
	{16, 235, 16},
	{235, 16, 235},
	{235, 16, 16},
	{16, 16, 235},
	{16, 16, 16},
}

// 배경은 크기와 포맷마다 한 번만 만든다.
var backgrounds = cache.New(10*time.Minute, 20*time.Minute)

func background(f PixFmt, width, height int) []byte {
	key := fmt.Sprintf("%s:%dx%d", f, width, height)
	if v, found := backgrounds.Get(key); found {
		return v.([]byte)
	}

	bpp := f.bytesPerPixel()
	data := make([]byte, width*height*bpp)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := bars[x*len(bars)/width]
			i := (y*width + x) * bpp
			if bpp == 3 {
				copy(data[i:i+3], c[:])
			} else {
				data[i] = byte((int(c[0])*77 + int(c[1])*150 + int(c[2])*29) >> 8)
			}
		}
	}
	backgrounds.SetDefault(key, data)
	return data
}

// GenerateImage 는 frame 번째 테스트 패턴을 만든다.
// 컬러 바 위로 흰 사각형이 프레임마다 오른쪽 아래로 움직이고, 맨 윗줄에는 프레임 번호가 비트로 찍힌다.
func GenerateImage(frame uint64, f PixFmt, width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, av.ConfigError("image size %dx%d", width, height)
	}
	if f != PixFmtRGB8 && f != PixFmtMono8 {
		return nil, av.ConfigError("unknown pixel format %q", f)
	}

	bg := background(f, width, height)
	img := &Image{
		Width:  width,
		Height: height,
		Fmt:    f,
		Data:   make([]byte, len(bg)),
	}
	copy(img.Data, bg)

	box := height / 4
	if box < 1 {
		box = 1
	}
	x0 := int(frame*4) % width
	y0 := int(frame*2) % height
	for y := y0; y < y0+box && y < height; y++ {
		for x := x0; x < x0+box && x < width; x++ {
			img.set(x, y, 255, 255, 255)
		}
	}

	// 프레임 번호, 32비트, 비트당 4 픽셀
	for bit := 0; bit < 32 && bit*4 < width; bit++ {
		var v byte
		if frame>>uint(31-bit)&1 == 1 {
			v = 255
		}
		for x := bit * 4; x < bit*4+4 && x < width; x++ {
			img.set(x, 0, v, v, v)
		}
	}
	return img, nil
}

func (img *Image) set(x, y int, r, g, b byte) {
	bpp := img.Fmt.bytesPerPixel()
	i := (y*img.Width + x) * bpp
	if bpp == 3 {
		img.Data[i], img.Data[i+1], img.Data[i+2] = r, g, b
		return
	}
	img.Data[i] = byte((int(r)*77 + int(g)*150 + int(b)*29) >> 8)
}

func (img *Image) rgb(x, y int) (int, int, int) {
	if img.Fmt == PixFmtRGB8 {
		i := (y*img.Width + x) * 3
		return int(img.Data[i]), int(img.Data[i+1]), int(img.Data[i+2])
	}
	v := int(img.Data[y*img.Width+x])
	return v, v, v
}

// YUV420 은 BT.601 limited range 로 변환한다. 색차는 2x2 평균.
func (img *Image) YUV420() (*h264.Picture, error) {
	if img.Width%2 != 0 || img.Height%2 != 0 {
		return nil, av.ConfigError("image size %dx%d must be even", img.Width, img.Height)
	}
	pic := h264.NewPicture(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.rgb(x, y)
			pic.Y[y*img.Width+x] = byte(((66*r + 129*g + 25*b + 128) >> 8) + 16)
		}
	}

	cw := img.Width / 2
	for cy := 0; cy < img.Height/2; cy++ {
		for cx := 0; cx < cw; cx++ {
			var r, g, b int
			for _, p := range [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
				pr, pg, pb := img.rgb(cx*2+p[0], cy*2+p[1])
				r, g, b = r+pr, g+pg, b+pb
			}
			r, g, b = (r+2)/4, (g+2)/4, (b+2)/4
			pic.Cb[cy*cw+cx] = byte(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
			pic.Cr[cy*cw+cx] = byte(((112*r - 94*g - 18*b + 128) >> 8) + 128)
		}
	}
	return pic, nil
}
