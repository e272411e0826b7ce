// Package env defines the environments agents are trained against.
package env

import (
	"errors"
	"math/rand"
)

// Env errors.
var (
	ErrDone          = errors.New("env: episode is over, call Reset")
	ErrInvalidAction = errors.New("env: invalid action")
)

// Env is an episodic environment with frame observations.
type Env interface {
	// InputDims describes each observation modality as
	// [channels, height, width].
	InputDims() [][]int

	// Actions lists the action labels. The index is the action id.
	Actions() []string

	// Reset starts a new episode.
	Reset(rng *rand.Rand)

	// Observe returns one flat channel-first frame per modality.
	Observe() [][]float32

	// Step applies action and returns the reward and whether the
	// episode ended.
	Step(action int) (reward float32, done bool, err error)
}

// NumActions returns the size of e's action space.
func NumActions(e Env) int {
	return len(e.Actions())
}
