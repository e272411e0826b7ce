// Package qnet builds convolutional Q-value networks on Born.
//
// One convolution tower per input modality feeds a shared dense head:
//
//	frames[0] -> tower -> flatten ┐
//	frames[1] -> tower -> flatten ├─ concat -> Dense(50) -> ReLU -> Dense(20) -> ReLU -> Dense(out)
//	(one-hot action, optional)    ┘
//
// out is the number of actions, or 1 when the action is an input.
package qnet

import (
	"fmt"
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Dense head widths.
const (
	hidden1 = 50
	hidden2 = 20
)

// Network is a multi-input convolutional Q-network.
type Network[B tensor.Backend] struct {
	towers []*convTower[B]
	fc1    *nn.Linear[B]
	fc2    *nn.Linear[B]
	out    *nn.Linear[B]
	relu   *nn.ReLU[B]

	numActions    int
	actionAsInput bool
	features      int

	params []*nn.Parameter[B]
}

// Build assembles the network described by cfg and returns it with the
// flat list of its trainable parameters.
//
// The parameter list aliases the network's tensors: an optimizer stepping
// over it updates the network in place.
func Build[B tensor.Backend](cfg Config, backend B) (*Network[B], []*nn.Parameter[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("qnet: %w", err)
	}

	n := &Network[B]{
		towers:        make([]*convTower[B], 0, len(cfg.InputDims)),
		relu:          nn.NewReLU[B](),
		numActions:    cfg.NumActions(),
		actionAsInput: cfg.ActionAsInput,
	}

	for _, dim := range cfg.InputDims {
		t := newConvTower(dim, cfg.Layout, backend)
		n.towers = append(n.towers, t)
		n.features += t.outFeatures()
	}
	if n.actionAsInput {
		n.features += n.numActions
	}

	n.fc1 = nn.NewLinear(n.features, hidden1, backend)
	n.fc2 = nn.NewLinear(hidden1, hidden2, backend)
	n.out = nn.NewLinear(hidden2, n.OutputWidth(), backend)

	rng := cfg.rng()
	for _, t := range n.towers {
		for _, c := range t.convs() {
			initConv(c, rng)
		}
	}
	for _, l := range n.linears() {
		initLinear(l, rng)
	}

	n.params = collectParameters(n)
	return n, n.params, nil
}

func (n *Network[B]) linears() []*nn.Linear[B] {
	return []*nn.Linear[B]{n.fc1, n.fc2, n.out}
}

// collectParameters flattens every layer's parameters in layer order,
// dropping any tensor that was already collected.
func collectParameters[B tensor.Backend](n *Network[B]) []*nn.Parameter[B] {
	var all []*nn.Parameter[B]
	for _, t := range n.towers {
		all = append(all, t.Parameters()...)
	}
	for _, l := range n.linears() {
		all = append(all, l.Parameters()...)
	}

	seen := make(map[*tensor.RawTensor]struct{}, len(all))
	params := make([]*nn.Parameter[B], 0, len(all))
	for _, p := range all {
		raw := p.Tensor().Raw()
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		params = append(params, p)
	}
	return params
}

// NumInputs returns how many tensors Forward expects.
func (n *Network[B]) NumInputs() int {
	if n.actionAsInput {
		return len(n.towers) + 1
	}
	return len(n.towers)
}

// NumActions returns the size of the action space.
func (n *Network[B]) NumActions() int {
	return n.numActions
}

// ActionAsInput reports whether the action is fed as the last input.
func (n *Network[B]) ActionAsInput() bool {
	return n.actionAsInput
}

// OutputWidth is the number of values produced per sample.
func (n *Network[B]) OutputWidth() int {
	if n.actionAsInput {
		return 1
	}
	return n.numActions
}

// FeatureWidth is the width of the concatenated representation fed to
// the dense head.
func (n *Network[B]) FeatureWidth() int {
	return n.features
}

// Parameters returns all trainable parameters.
func (n *Network[B]) Parameters() []*nn.Parameter[B] {
	return n.params
}

// Features computes the concatenated pre-dense representation.
//
// inputs holds one frame batch per modality, followed by the one-hot
// action batch [batch, numActions] when the action is an input.
func (n *Network[B]) Features(inputs ...*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if len(inputs) != n.NumInputs() {
		panic(fmt.Sprintf("qnet: expected %d inputs, got %d", n.NumInputs(), len(inputs)))
	}

	outs := make([]*tensor.Tensor[float32, B], 0, len(inputs))
	for i, t := range n.towers {
		outs = append(outs, t.Forward(inputs[i]))
	}

	if n.actionAsInput {
		action := inputs[len(inputs)-1]
		shape := action.Shape()
		if len(shape) != 2 || shape[1] != n.numActions {
			panic(fmt.Sprintf("qnet: expected action input [N,%d], got %v", n.numActions, shape))
		}
		outs = append(outs, action)
	}

	batch := outs[0].Shape()[0]
	for i, o := range outs[1:] {
		if o.Shape()[0] != batch {
			panic(fmt.Sprintf("qnet: input %d has batch %d, input 0 has %d", i+1, o.Shape()[0], batch))
		}
	}

	if len(outs) == 1 {
		return outs[0]
	}
	return tensor.Cat(outs, 1)
}

// Forward returns [batch, OutputWidth()] values.
func (n *Network[B]) Forward(inputs ...*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := n.Features(inputs...)
	x = n.relu.Forward(n.fc1.Forward(x))
	x = n.relu.Forward(n.fc2.Forward(x))
	return n.out.Forward(x)
}

// String returns a string representation of the network architecture.
func (n *Network[B]) String() string {
	var sb strings.Builder
	sb.WriteString("QNetwork(\n")
	for i, t := range n.towers {
		fmt.Fprintf(&sb, " Input%d[%d,%d,%d] %s:\n%s\n", i, t.channels, t.height, t.width, t.layout, t)
	}
	if n.actionAsInput {
		fmt.Fprintf(&sb, " Action(one_hot=%d)\n", n.numActions)
	}
	if n.NumInputs() > 1 {
		fmt.Fprintf(&sb, " Concat(out=%d)\n", n.features)
	}
	fmt.Fprintf(&sb, "  Linear(in=%d, out=%d)\n  ReLU()\n", n.features, hidden1)
	fmt.Fprintf(&sb, "  Linear(in=%d, out=%d)\n  ReLU()\n", hidden1, hidden2)
	fmt.Fprintf(&sb, "  Linear(in=%d, out=%d)\n)", hidden2, n.OutputWidth())
	return sb.String()
}
