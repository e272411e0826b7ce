package qnet

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Tower hyperparameters.
const (
	conv1Filters = 8
	conv1Kernel  = 4
	conv1Stride  = 2
	conv2Filters = 16
	conv2Kernel  = 3
	conv3Filters = 16
	conv3Kernel  = 3
	poolSize     = 2
)

// convTower turns one modality's frames into a flat feature vector.
//
// Architecture:
//
//	Input: [batch, C, H, W]
//	Conv1: C → 8 channels, 4x4 kernel, stride 2
//	ReLU
//	Conv2: 8 → 16 channels, 3x3 kernel
//	ReLU
//	MaxPool: 2x2
//	Conv3: 16 → 16 channels, 3x3 kernel
//	ReLU
//	MaxPool: 2x2
//	Flatten -> [batch, 16*h*w]
type convTower[B tensor.Backend] struct {
	channels, height, width int
	layout                  Layout

	conv1 *nn.Conv2D[B]
	conv2 *nn.Conv2D[B]
	pool1 *nn.MaxPool2D[B]
	conv3 *nn.Conv2D[B]
	pool2 *nn.MaxPool2D[B]
	relu  *nn.ReLU[B]

	outH, outW int
}

func newConvTower[B tensor.Backend](dim []int, layout Layout, backend B) *convTower[B] {
	t := &convTower[B]{
		channels: dim[0],
		height:   dim[1],
		width:    dim[2],
		layout:   layout,
		conv1:    nn.NewConv2D(dim[0], conv1Filters, conv1Kernel, conv1Kernel, conv1Stride, 0, true, backend),
		conv2:    nn.NewConv2D(conv1Filters, conv2Filters, conv2Kernel, conv2Kernel, 1, 0, true, backend),
		pool1:    nn.NewMaxPool2D(poolSize, poolSize, backend),
		conv3:    nn.NewConv2D(conv2Filters, conv3Filters, conv3Kernel, conv3Kernel, 1, 0, true, backend),
		pool2:    nn.NewMaxPool2D(poolSize, poolSize, backend),
		relu:     nn.NewReLU[B](),
	}

	size := t.conv1.ComputeOutputSize(t.height, t.width)
	size = t.conv2.ComputeOutputSize(size[0], size[1])
	size = t.pool1.ComputeOutputSize(size[0], size[1])
	size = t.conv3.ComputeOutputSize(size[0], size[1])
	size = t.pool2.ComputeOutputSize(size[0], size[1])
	t.outH, t.outW = size[0], size[1]

	return t
}

// towerOutputSize mirrors the layer arithmetic without building layers.
func towerOutputSize(h, w int) (int, int) {
	conv := func(n, k, s int) int {
		if n < k {
			return 0
		}
		return (n-k)/s + 1
	}
	h, w = conv(h, conv1Kernel, conv1Stride), conv(w, conv1Kernel, conv1Stride)
	h, w = conv(h, conv2Kernel, 1), conv(w, conv2Kernel, 1)
	h, w = conv(h, poolSize, poolSize), conv(w, poolSize, poolSize)
	h, w = conv(h, conv3Kernel, 1), conv(w, conv3Kernel, 1)
	h, w = conv(h, poolSize, poolSize), conv(w, poolSize, poolSize)
	return h, w
}

// outFeatures is the flattened width produced by the tower.
func (t *convTower[B]) outFeatures() int {
	return conv3Filters * t.outH * t.outW
}

func (t *convTower[B]) convs() []*nn.Conv2D[B] {
	return []*nn.Conv2D[B]{t.conv1, t.conv2, t.conv3}
}

// Forward maps frames to [batch, outFeatures].
func (t *convTower[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("qnet: expected 4D frame batch, got shape %v", shape))
	}
	if t.layout == LayoutChannelsLast {
		x = x.Transpose(0, 3, 1, 2) // [N,H,W,C] -> [N,C,H,W]
		shape = x.Shape()
	}
	if shape[1] != t.channels || shape[2] != t.height || shape[3] != t.width {
		panic(fmt.Sprintf("qnet: expected frames [N,%d,%d,%d], got %v",
			t.channels, t.height, t.width, shape))
	}

	x = t.relu.Forward(t.conv1.Forward(x))
	x = t.relu.Forward(t.conv2.Forward(x))
	x = t.pool1.Forward(x)
	x = t.relu.Forward(t.conv3.Forward(x))
	x = t.pool2.Forward(x)

	return x.Reshape(shape[0], t.outFeatures())
}

// Parameters returns the conv weights and biases in layer order.
func (t *convTower[B]) Parameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0, 6)
	for _, c := range t.convs() {
		params = append(params, c.Parameters()...)
	}
	return params
}

func (t *convTower[B]) String() string {
	return fmt.Sprintf(`  %s
  ReLU()
  %s
  ReLU()
  %s
  %s
  ReLU()
  %s
  Flatten(out=%d)`,
		t.conv1.String(),
		t.conv2.String(),
		t.pool1.String(),
		t.conv3.String(),
		t.pool2.String(),
		t.outFeatures(),
	)
}
