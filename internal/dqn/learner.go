// Package dqn trains convolutional Q-networks with deep Q-learning.
//
// A Learner owns an online network and a periodically synchronised
// target network. Each Update regresses the online network's value of
// the taken action onto the temporal-difference target
//
//	y = r + gamma * max_a Q_target(s', a)
//
// with no bootstrap on terminal transitions.
package dqn

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/optim"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/deepq/internal/qnet"
	"github.com/born-ml/deepq/internal/replay"
)

// Supported optimizers.
const (
	OptimizerAdam = "adam"
	OptimizerSGD  = "sgd"
)

// ErrEmptyBatch is returned by Update for an empty batch.
var ErrEmptyBatch = errors.New("dqn: empty batch")

// TapeBackend is a backend that records operations for backpropagation,
// such as *autodiff.Backend.
type TapeBackend interface {
	tensor.Backend
	Tape() *autodiff.GradientTape
}

// LearnerConfig configures a Learner.
type LearnerConfig struct {
	Net qnet.Config

	// Gamma is the discount factor.
	Gamma float64

	Optimizer    string
	LearningRate float64
	Momentum     float64 // SGD only

	// TargetSyncEvery copies the online weights into the target network
	// after this many updates. Zero syncs after every update.
	TargetSyncEvery int
}

// DefaultLearnerConfig returns the hyperparameters used by the CLI for
// the given network.
func DefaultLearnerConfig(net qnet.Config) LearnerConfig {
	return LearnerConfig{
		Net:             net,
		Gamma:           0.99,
		Optimizer:       OptimizerAdam,
		LearningRate:    1e-3,
		TargetSyncEvery: 100,
	}
}

// Validate checks the learner hyperparameters and the network config.
func (c LearnerConfig) Validate() error {
	if err := c.Net.Validate(); err != nil {
		return fmt.Errorf("dqn: %w", err)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("dqn: gamma must be in [0, 1] (got %g)", c.Gamma)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("dqn: learning rate must be positive (got %g)", c.LearningRate)
	}
	if c.TargetSyncEvery < 0 {
		return fmt.Errorf("dqn: target sync interval must not be negative (got %d)", c.TargetSyncEvery)
	}
	switch strings.ToLower(c.Optimizer) {
	case "", OptimizerAdam, OptimizerSGD:
	default:
		return fmt.Errorf("dqn: unknown optimizer %q", c.Optimizer)
	}
	return nil
}

// Learner holds the online and target networks and the optimizer.
type Learner[B TapeBackend] struct {
	cfg     LearnerConfig
	backend B

	online       *qnet.Network[B]
	params       []*nn.Parameter[B]
	target       *qnet.Network[B]
	targetParams []*nn.Parameter[B]

	optimizer optim.Optimizer
	updates   int
}

// NewLearner builds both networks and the optimizer. The target network
// starts as a copy of the online network.
func NewLearner[B TapeBackend](cfg LearnerConfig, backend B) (*Learner[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	online, params, err := qnet.Build(cfg.Net, backend)
	if err != nil {
		return nil, err
	}
	target, targetParams, err := qnet.Build(cfg.Net, backend)
	if err != nil {
		return nil, err
	}
	if err := qnet.CopyParameters(targetParams, params); err != nil {
		return nil, err
	}

	l := &Learner[B]{
		cfg:          cfg,
		backend:      backend,
		online:       online,
		params:       params,
		target:       target,
		targetParams: targetParams,
	}

	lr := float32(cfg.LearningRate)
	switch strings.ToLower(cfg.Optimizer) {
	case OptimizerSGD:
		l.optimizer = optim.NewSGD(params, optim.SGDConfig{LR: lr, Momentum: float32(cfg.Momentum)}, backend)
	default:
		l.optimizer = optim.NewAdam(params, optim.AdamConfig{
			LR:    lr,
			Betas: [2]float32{0.9, 0.999},
			Eps:   1e-8,
		}, backend)
	}

	return l, nil
}

// Online returns the network being trained.
func (l *Learner[B]) Online() *qnet.Network[B] {
	return l.online
}

// Target returns the target network.
func (l *Learner[B]) Target() *qnet.Network[B] {
	return l.target
}

// Parameters returns the online network's trainable parameters.
func (l *Learner[B]) Parameters() []*nn.Parameter[B] {
	return l.params
}

// Updates returns the number of completed gradient steps.
func (l *Learner[B]) Updates() int {
	return l.updates
}

// LearningRate returns the optimizer's current learning rate.
func (l *Learner[B]) LearningRate() float32 {
	return l.optimizer.GetLR()
}

// SyncTarget copies the online weights into the target network.
func (l *Learner[B]) SyncTarget() error {
	return qnet.CopyParameters(l.targetParams, l.params)
}

// QValues evaluates the online network on a batch of observations and
// returns one row of action values per observation.
func (l *Learner[B]) QValues(observations [][][]float32) ([][]float32, error) {
	return l.evaluate(l.online, observations)
}

// evaluate runs net without recording and returns [N][numActions] values.
func (l *Learner[B]) evaluate(net *qnet.Network[B], observations [][][]float32) ([][]float32, error) {
	inputs, err := l.frames(observations)
	if err != nil {
		return nil, err
	}

	tape := l.backend.Tape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()

	n, numActions := len(observations), net.NumActions()
	q := make([][]float32, n)
	for i := range q {
		q[i] = make([]float32, numActions)
	}

	if !net.ActionAsInput() {
		data := net.Forward(inputs...).Data()
		for i := range q {
			copy(q[i], data[i*numActions:(i+1)*numActions])
		}
		return q, nil
	}

	// One pass per action, each scoring the same action for every sample.
	actions := make([]int, n)
	for a := 0; a < numActions; a++ {
		for i := range actions {
			actions[i] = a
		}
		onehot, err := qnet.OneHot(actions, numActions, l.backend)
		if err != nil {
			return nil, err
		}
		data := net.Forward(append(inputs, onehot)...).Data()
		for i := range q {
			q[i][a] = data[i]
		}
	}
	return q, nil
}

// frames stacks per-sample channel-first observations into one batch
// tensor per modality, in the network's layout.
func (l *Learner[B]) frames(observations [][][]float32) ([]*tensor.Tensor[float32, B], error) {
	if len(observations) == 0 {
		return nil, ErrEmptyBatch
	}

	dims := l.cfg.Net.InputDims
	inputs := make([]*tensor.Tensor[float32, B], len(dims))
	batch := make([][]float32, len(observations))
	for m, dim := range dims {
		for i, obs := range observations {
			if len(obs) != len(dims) {
				return nil, fmt.Errorf("dqn: observation %d has %d modalities, expected %d", i, len(obs), len(dims))
			}
			batch[i] = obs[m]
		}
		if l.cfg.Net.Layout == qnet.LayoutChannelsLast {
			// Observations are channel-first; reorder the pixels, not
			// just the shape.
			for i, f := range batch {
				if len(f) == dim[0]*dim[1]*dim[2] {
					batch[i] = qnet.ToChannelsLast(f, dim)
				}
			}
			dim = []int{dim[1], dim[2], dim[0]}
		}
		x, err := qnet.StackFrames(batch, dim, l.backend)
		if err != nil {
			return nil, fmt.Errorf("dqn: input %d: %w", m, err)
		}
		inputs[m] = x
	}
	return inputs, nil
}

// Targets computes the temporal-difference targets for batch using the
// target network.
func (l *Learner[B]) Targets(batch []replay.Transition) ([]float32, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	next := make([][][]float32, len(batch))
	for i, t := range batch {
		next[i] = t.Next
	}
	q, err := l.evaluate(l.target, next)
	if err != nil {
		return nil, err
	}

	gamma := float32(l.cfg.Gamma)
	y := make([]float32, len(batch))
	for i, t := range batch {
		y[i] = t.Reward
		if !t.Terminal {
			y[i] += gamma * q[i][Greedy(q[i])]
		}
	}
	return y, nil
}

// Update performs one gradient step on batch and returns the mean
// squared TD error before the step.
func (l *Learner[B]) Update(batch []replay.Transition) (float32, error) {
	y, err := l.Targets(batch)
	if err != nil {
		return 0, err
	}

	obs := make([][][]float32, len(batch))
	actions := make([]int, len(batch))
	for i, t := range batch {
		obs[i] = t.Observation
		actions[i] = t.Action
	}
	inputs, err := l.frames(obs)
	if err != nil {
		return 0, err
	}
	onehot, err := qnet.OneHot(actions, l.online.NumActions(), l.backend)
	if err != nil {
		return 0, fmt.Errorf("dqn: %w", err)
	}

	// Target values laid out like the network output: y at the taken
	// action and zero elsewhere, or a single column when the action is
	// an input.
	n, width := len(batch), l.online.OutputWidth()
	targetData := make([]float32, n*width)
	for i := range batch {
		if l.online.ActionAsInput() {
			targetData[i] = y[i]
		} else {
			targetData[i*width+actions[i]] = y[i]
		}
	}
	target, err := tensor.FromSlice(targetData, tensor.Shape{n, width}, l.backend)
	if err != nil {
		return 0, err
	}

	tape := l.backend.Tape()
	wasRecording := tape.IsRecording()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.Clear()
		if !wasRecording {
			tape.StopRecording()
		}
	}()

	l.optimizer.ZeroGrad()

	var pred *tensor.Tensor[float32, B]
	if l.online.ActionAsInput() {
		pred = l.online.Forward(append(inputs, onehot)...)
	} else {
		pred = l.online.Forward(inputs...).Mul(onehot)
	}
	diff := pred.Sub(target)
	sq := diff.Mul(diff)

	var sum float64
	for _, v := range sq.Data() {
		sum += float64(v)
	}
	loss := float32(sum / float64(n))
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return loss, fmt.Errorf("dqn: loss diverged (%v)", loss)
	}

	// d(mean over batch)/d(sq) = 1/n for every element.
	outputGrad, err := tensor.NewRaw(sq.Shape(), tensor.Float32, l.backend.Device())
	if err != nil {
		return 0, err
	}
	g := outputGrad.AsFloat32()
	for i := range g {
		g[i] = 1 / float32(n)
	}

	grads := tape.Backward(outputGrad, l.backend)
	l.optimizer.Step(grads)

	l.updates++
	if l.cfg.TargetSyncEvery == 0 || l.updates%l.cfg.TargetSyncEvery == 0 {
		if err := l.SyncTarget(); err != nil {
			return loss, err
		}
	}
	return loss, nil
}
