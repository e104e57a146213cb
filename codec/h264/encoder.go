package h264

import (
	"fmt"

	"github.com/gwuhaolin/tsgen/av"
)

/*
무손실 H.264 인코더.
모든 매크로블록을 I_PCM 으로 보내기 때문에 변환/양자화가 없고, 샘플이 그대로 비트스트림에 들어간다.
매 프레임이 IDR 이므로 어느 프레임에서든 디코딩을 시작할 수 있다.

Baseline profile, CAVLC, 4:2:0 8bit, pic_order_cnt_type 2.
*/

const (
	profileBaseline byte = 66
	levelIdc        byte = 51
	mbSize               = 16
	pcmMbBytes           = mbSize*mbSize + 2*(mbSize/2)*(mbSize/2)
	mbTypeIPCM           = 25
	sliceTypeI           = 7
	log2MaxFrameNum      = 4

	headerSPS = 0x67 // nal_ref_idc 3, type 7
	headerPPS = 0x68 // nal_ref_idc 3, type 8
	headerIDR = 0x65 // nal_ref_idc 3, type 5
)

// Picture 는 YUV 4:2:0 한 장이다. Cb, Cr 은 가로 세로 절반 크기.
type Picture struct {
	Width  int
	Height int
	Y      []byte
	Cb     []byte
	Cr     []byte
}

func NewPicture(width, height int) *Picture {
	return &Picture{
		Width:  width,
		Height: height,
		Y:      make([]byte, width*height),
		Cb:     make([]byte, width*height/4),
		Cr:     make([]byte, width*height/4),
	}
}

type Encoder struct {
	width    int
	height   int
	mbWidth  int
	mbHeight int
	frames   uint64
	sps      []byte
	pps      []byte
}

func NewEncoder(width, height int) (*Encoder, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, av.ConfigError("image size %dx%d must be positive and even", width, height)
	}
	e := &Encoder{
		width:    width,
		height:   height,
		mbWidth:  (width + mbSize - 1) / mbSize,
		mbHeight: (height + mbSize - 1) / mbSize,
	}
	var err error
	if e.sps, err = e.writeSPS(); err != nil {
		return nil, err
	}
	if e.pps, err = e.writePPS(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Encoder) SPS() []byte {
	return e.sps
}

func (e *Encoder) PPS() []byte {
	return e.pps
}

// Encode 는 한 프레임을 NAL unit 들로 만든다. 첫 프레임에만 SPS/PPS 가 앞에 붙는다.
func (e *Encoder) Encode(pic *Picture) ([][]byte, error) {
	if pic.Width != e.width || pic.Height != e.height {
		return nil, fmt.Errorf("picture %dx%d does not match encoder %dx%d",
			pic.Width, pic.Height, e.width, e.height)
	}
	if len(pic.Y) < e.width*e.height || len(pic.Cb) < e.width*e.height/4 || len(pic.Cr) < e.width*e.height/4 {
		return nil, fmt.Errorf("picture planes too short")
	}

	idr, err := e.writeIDR(pic)
	if err != nil {
		return nil, err
	}
	var nalus [][]byte
	if e.frames == 0 {
		nalus = append(nalus, e.sps, e.pps)
	}
	nalus = append(nalus, idr)
	e.frames++
	return nalus, nil
}

func (e *Encoder) writeSPS() ([]byte, error) {
	r := newRbspWriter(32)
	r.u(8, uint64(profileBaseline))
	r.u(8, 0) // constraint_set flags, reserved_zero_2bits
	r.u(8, uint64(levelIdc))
	r.ue(0) // seq_parameter_set_id
	r.ue(log2MaxFrameNum - 4)
	r.ue(2) // pic_order_cnt_type
	r.ue(0) // max_num_ref_frames
	r.flag(false)
	r.ue(uint32(e.mbWidth - 1))
	r.ue(uint32(e.mbHeight - 1))
	r.flag(true) // frame_mbs_only_flag
	r.flag(true) // direct_8x8_inference_flag

	cropRight := (e.mbWidth*mbSize - e.width) / 2
	cropBottom := (e.mbHeight*mbSize - e.height) / 2
	if cropRight > 0 || cropBottom > 0 {
		r.flag(true)
		r.ue(0)
		r.ue(uint32(cropRight))
		r.ue(0)
		r.ue(uint32(cropBottom))
	} else {
		r.flag(false)
	}
	r.flag(false) // vui_parameters_present_flag

	rbsp, err := r.trailing()
	if err != nil {
		return nil, err
	}
	return nalu(headerSPS, rbsp), nil
}

func (e *Encoder) writePPS() ([]byte, error) {
	r := newRbspWriter(16)
	r.ue(0) // pic_parameter_set_id
	r.ue(0) // seq_parameter_set_id
	r.flag(false) // entropy_coding_mode_flag
	r.flag(false) // bottom_field_pic_order_in_frame_present_flag
	r.ue(0)       // num_slice_groups_minus1
	r.ue(0)       // num_ref_idx_l0_default_active_minus1
	r.ue(0)       // num_ref_idx_l1_default_active_minus1
	r.flag(false) // weighted_pred_flag
	r.u(2, 0)     // weighted_bipred_idc
	r.se(0)       // pic_init_qp_minus26
	r.se(0)       // pic_init_qs_minus26
	r.se(0)       // chroma_qp_index_offset
	r.flag(true)  // deblocking_filter_control_present_flag
	r.flag(false) // constrained_intra_pred_flag
	r.flag(false) // redundant_pic_cnt_present_flag

	rbsp, err := r.trailing()
	if err != nil {
		return nil, err
	}
	return nalu(headerPPS, rbsp), nil
}

func (e *Encoder) writeIDR(pic *Picture) ([]byte, error) {
	r := newRbspWriter(16 + e.mbWidth*e.mbHeight*(pcmMbBytes+1))

	// slice_header
	r.ue(0) // first_mb_in_slice
	r.ue(sliceTypeI)
	r.ue(0)                    // pic_parameter_set_id
	r.u(log2MaxFrameNum, 0)    // frame_num
	r.ue(uint32(e.frames % 2)) // idr_pic_id, 연속된 IDR 끼리 달라야 한다
	r.flag(false)              // no_output_of_prior_pics_flag
	r.flag(false)              // long_term_reference_flag
	r.se(0)                    // slice_qp_delta
	r.ue(1)                    // disable_deblocking_filter_idc

	// slice_data
	var mb [pcmMbBytes]byte
	for my := 0; my < e.mbHeight; my++ {
		for mx := 0; mx < e.mbWidth; mx++ {
			r.ue(mbTypeIPCM)
			r.alignZero()
			e.fillMacroblock(mb[:], pic, mx, my)
			r.bytes(mb[:])
		}
	}
	if r.err != nil {
		return nil, r.err
	}

	rbsp, err := r.trailing()
	if err != nil {
		return nil, err
	}
	return nalu(headerIDR, rbsp), nil
}

// fillMacroblock 은 (mx, my) 매크로블록의 pcm 샘플을 luma 256, Cb 64, Cr 64 순서로 채운다.
// 그림 밖의 샘플은 가장자리 값을 반복한다.
func (e *Encoder) fillMacroblock(dst []byte, pic *Picture, mx, my int) {
	i := 0
	for y := 0; y < mbSize; y++ {
		py := clamp(my*mbSize+y, pic.Height)
		row := pic.Y[py*pic.Width:]
		for x := 0; x < mbSize; x++ {
			dst[i] = row[clamp(mx*mbSize+x, pic.Width)]
			i++
		}
	}

	cw, ch := pic.Width/2, pic.Height/2
	for _, plane := range [][]byte{pic.Cb, pic.Cr} {
		for y := 0; y < mbSize/2; y++ {
			py := clamp(my*mbSize/2+y, ch)
			row := plane[py*cw:]
			for x := 0; x < mbSize/2; x++ {
				dst[i] = row[clamp(mx*mbSize/2+x, cw)]
				i++
			}
		}
	}
}

func clamp(v, n int) int {
	if v >= n {
		return n - 1
	}
	return v
}
