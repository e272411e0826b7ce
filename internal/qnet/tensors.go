package qnet

import (
	"errors"
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// StackFrames packs flat frames of one modality into a [N, C, H, W] batch.
// Each frame must hold exactly C*H*W values in channel-first order.
func StackFrames[B tensor.Backend](frames [][]float32, dim []int, backend B) (*tensor.Tensor[float32, B], error) {
	if len(dim) != 3 {
		return nil, fmt.Errorf("stack frames: %w (got %d)", ErrFrameRank, len(dim))
	}
	if len(frames) == 0 {
		return nil, errors.New("stack frames: empty batch")
	}

	size := dim[0] * dim[1] * dim[2]
	data := make([]float32, 0, len(frames)*size)
	for i, f := range frames {
		if len(f) != size {
			return nil, fmt.Errorf("stack frames: frame %d has %d values, expected %d", i, len(f), size)
		}
		data = append(data, f...)
	}

	return tensor.FromSlice(data, tensor.Shape{len(frames), dim[0], dim[1], dim[2]}, backend)
}

// ToChannelsLast reorders a flat [C, H, W] frame into [H, W, C] order.
// frame must hold exactly C*H*W values.
func ToChannelsLast(frame []float32, dim []int) []float32 {
	c, h, w := dim[0], dim[1], dim[2]
	out := make([]float32, len(frame))
	for ch := 0; ch < c; ch++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out[(y*w+x)*c+ch] = frame[(ch*h+y)*w+x]
			}
		}
	}
	return out
}

// OneHot encodes actions as a [len(actions), n] batch.
func OneHot[B tensor.Backend](actions []int, n int, backend B) (*tensor.Tensor[float32, B], error) {
	if n <= 0 {
		return nil, ErrNoActions
	}
	if len(actions) == 0 {
		return nil, errors.New("one-hot: empty batch")
	}

	data := make([]float32, len(actions)*n)
	for i, a := range actions {
		if a < 0 || a >= n {
			return nil, fmt.Errorf("one-hot: action %d out of range [0, %d)", a, n)
		}
		data[i*n+a] = 1
	}
	return tensor.FromSlice(data, tensor.Shape{len(actions), n}, backend)
}

// CountParameters returns the number of scalar weights in params.
func CountParameters[B tensor.Backend](params []*nn.Parameter[B]) int {
	total := 0
	for _, p := range params {
		total += p.Tensor().Shape().NumElements()
	}
	return total
}

// CopyParameters overwrites dst with the values of src. Both lists must
// come from networks built with the same configuration.
func CopyParameters[B tensor.Backend](dst, src []*nn.Parameter[B]) error {
	if len(dst) != len(src) {
		return fmt.Errorf("copy parameters: length mismatch %d != %d", len(dst), len(src))
	}
	for i := range src {
		ds, ss := dst[i].Tensor().Shape(), src[i].Tensor().Shape()
		if !ds.Equal(ss) {
			return fmt.Errorf("copy parameters: %s shape %v != %v", src[i].Name(), ds, ss)
		}
	}
	for i := range src {
		copy(dst[i].Tensor().Data(), src[i].Tensor().Data())
	}
	return nil
}
