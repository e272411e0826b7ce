package qnet

import (
	"math"
	"math/rand"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// xavierFill redraws p in place from U(-bound, bound) with
// bound = sqrt(6 / (fanIn + fanOut)), using rng instead of the global source.
func xavierFill[B tensor.Backend](p *nn.Parameter[B], fanIn, fanOut int, rng *rand.Rand) {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	data := p.Tensor().Data()
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
}

func zeroFill[B tensor.Backend](p *nn.Parameter[B]) {
	data := p.Tensor().Data()
	for i := range data {
		data[i] = 0
	}
}

func initConv[B tensor.Backend](c *nn.Conv2D[B], rng *rand.Rand) {
	k := c.KernelSize()
	params := c.Parameters()
	xavierFill(params[0], c.InChannels()*k[0]*k[1], c.OutChannels()*k[0]*k[1], rng)
	for _, p := range params[1:] {
		zeroFill(p)
	}
}

func initLinear[B tensor.Backend](l *nn.Linear[B], rng *rand.Rand) {
	xavierFill(l.Weight(), l.InFeatures(), l.OutFeatures(), rng)
	if l.Bias() != nil {
		zeroFill(l.Bias())
	}
}
