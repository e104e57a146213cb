package h264

import (
	"bytes"
	"math/bits"

	"github.com/asticode/go-astikit"
)

// rbspWriter 는 RBSP 비트열을 쓴다. u(n), ue(v), se(v) 는 H.264 7.2 의 descriptor 를 따른다.
type rbspWriter struct {
	buf bytes.Buffer
	w   *astikit.BitsWriter
	n   int
	err error
}

func newRbspWriter(size int) *rbspWriter {
	r := &rbspWriter{}
	r.buf.Grow(size)
	r.w = astikit.NewBitsWriter(astikit.BitsWriterOptions{Writer: &r.buf})
	return r
}

func (r *rbspWriter) u(n int, v uint64) {
	if r.err != nil || n == 0 {
		return
	}
	r.err = r.w.WriteN(v, n)
	r.n += n
}

func (r *rbspWriter) flag(b bool) {
	if b {
		r.u(1, 1)
	} else {
		r.u(1, 0)
	}
}

// ue 는 Exp-Golomb 부호로 쓴다.
func (r *rbspWriter) ue(v uint32) {
	x := uint64(v) + 1
	l := bits.Len64(x)
	r.u(l-1, 0)
	r.u(l, x)
}

func (r *rbspWriter) se(v int32) {
	if v > 0 {
		r.ue(uint32(2*v - 1))
	} else {
		r.ue(uint32(-2 * v))
	}
}

func (r *rbspWriter) aligned() bool {
	return r.n%8 == 0
}

// alignZero 는 pcm_alignment_zero_bit 처럼 0 으로 바이트 경계를 맞춘다.
func (r *rbspWriter) alignZero() {
	if rem := r.n % 8; rem != 0 {
		r.u(8-rem, 0)
	}
}

func (r *rbspWriter) bytes(b []byte) {
	if r.err != nil {
		return
	}
	if !r.aligned() {
		for _, c := range b {
			r.u(8, uint64(c))
		}
		return
	}
	r.err = r.w.Write(b)
	r.n += 8 * len(b)
}

// trailing 은 rbsp_trailing_bits() 를 쓰고 결과를 돌려준다.
func (r *rbspWriter) trailing() ([]byte, error) {
	r.u(1, 1)
	r.alignZero()
	if r.err != nil {
		return nil, r.err
	}
	return r.buf.Bytes(), nil
}

// nalu 는 NAL 헤더를 붙이고 emulation prevention 바이트를 넣는다.
func nalu(header byte, rbsp []byte) []byte {
	out := make([]byte, 0, len(rbsp)+len(rbsp)/64+1)
	out = append(out, header)
	zeros := 0
	for _, b := range rbsp {
		if zeros >= 2 && b <= 0x03 {
			out = append(out, 0x03)
			zeros = 0
		}
		out = append(out, b)
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}
