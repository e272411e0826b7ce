package dqn

import (
	"fmt"
	"math/rand"
)

// PolicyConfig configures epsilon-greedy exploration.
//
// Epsilon decays linearly from EpsilonStart to EpsilonEnd over
// DecaySteps calls to Select, then stays at EpsilonEnd.
type PolicyConfig struct {
	EpsilonStart float64
	EpsilonEnd   float64
	DecaySteps   int
}

// DefaultPolicyConfig returns the exploration schedule used by the CLI.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		EpsilonStart: 1.0,
		EpsilonEnd:   0.05,
		DecaySteps:   5000,
	}
}

// Validate checks that the schedule is well formed.
func (c PolicyConfig) Validate() error {
	if c.EpsilonStart < 0 || c.EpsilonStart > 1 || c.EpsilonEnd < 0 || c.EpsilonEnd > 1 {
		return fmt.Errorf("dqn: epsilon must be in [0, 1] (start %g, end %g)", c.EpsilonStart, c.EpsilonEnd)
	}
	if c.DecaySteps < 0 {
		return fmt.Errorf("dqn: decay steps must not be negative (got %d)", c.DecaySteps)
	}
	return nil
}

// Policy picks actions epsilon-greedily from Q-values.
type Policy struct {
	cfg   PolicyConfig
	rng   *rand.Rand
	steps int
}

// NewPolicy creates a policy drawing exploration decisions from rng.
func NewPolicy(cfg PolicyConfig, rng *rand.Rand) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Policy{cfg: cfg, rng: rng}, nil
}

// Epsilon returns the current exploration rate.
func (p *Policy) Epsilon() float64 {
	if p.cfg.DecaySteps == 0 || p.steps >= p.cfg.DecaySteps {
		return p.cfg.EpsilonEnd
	}
	frac := float64(p.steps) / float64(p.cfg.DecaySteps)
	return p.cfg.EpsilonStart + frac*(p.cfg.EpsilonEnd-p.cfg.EpsilonStart)
}

// Steps returns how many actions have been selected.
func (p *Policy) Steps() int {
	return p.steps
}

// Select returns a random action with probability Epsilon, otherwise
// the greedy one, and advances the schedule.
func (p *Policy) Select(q []float32) int {
	eps := p.Epsilon()
	p.steps++
	if p.rng.Float64() < eps {
		return p.rng.Intn(len(q))
	}
	return Greedy(q)
}

// Greedy returns the index of the largest value, preferring the lowest
// index on ties.
func Greedy(q []float32) int {
	best := 0
	for i, v := range q[1:] {
		if v > q[best] {
			best = i + 1
		}
	}
	return best
}
