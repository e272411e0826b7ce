package dqn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/deepq/internal/replay"
)

// Agent ties together exploration, replay memory and learning.
type Agent[B TapeBackend] struct {
	learner *Learner[B]
	policy  *Policy
	memory  *replay.Buffer
	rng     *rand.Rand

	batchSize int
}

// NewAgent creates an agent sampling minibatches of the learner's
// configured batch size from memory.
func NewAgent[B TapeBackend](learner *Learner[B], policy *Policy, memory *replay.Buffer, rng *rand.Rand) *Agent[B] {
	return &Agent[B]{
		learner:   learner,
		policy:    policy,
		memory:    memory,
		rng:       rng,
		batchSize: learner.cfg.Net.BatchSize,
	}
}

// Learner returns the underlying learner.
func (a *Agent[B]) Learner() *Learner[B] {
	return a.learner
}

// Policy returns the exploration policy.
func (a *Agent[B]) Policy() *Policy {
	return a.policy
}

// Memory returns the replay buffer.
func (a *Agent[B]) Memory() *replay.Buffer {
	return a.memory
}

// Act picks an action for a single observation.
func (a *Agent[B]) Act(observation [][]float32) (int, error) {
	q, err := a.learner.QValues([][][]float32{observation})
	if err != nil {
		return 0, fmt.Errorf("act: %w", err)
	}
	return a.policy.Select(q[0]), nil
}

// Remember stores a transition for later training.
func (a *Agent[B]) Remember(t replay.Transition) {
	a.memory.Add(t)
}

// Train samples a minibatch and performs one update. It reports false
// without training while memory holds fewer transitions than a batch.
func (a *Agent[B]) Train() (loss float32, trained bool, err error) {
	if a.memory.Len() < a.batchSize {
		return 0, false, nil
	}

	batch, err := a.memory.Sample(a.batchSize, a.rng)
	if err != nil {
		return 0, false, err
	}
	loss, err = a.learner.Update(batch)
	if err != nil {
		return loss, false, err
	}
	return loss, true, nil
}
