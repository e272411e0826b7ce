package dqn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/deepq/internal/replay"
)

func newTestAgent(t *testing.T, policy PolicyConfig) *Agent[Backend] {
	t.Helper()

	l, err := NewLearner(testConfig(3), newBackend())
	require.NoError(t, err)
	p, err := NewPolicy(policy, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	memory, err := replay.New(16)
	require.NoError(t, err)

	return NewAgent(l, p, memory, rand.New(rand.NewSource(6)))
}

func TestAgent_ActGreedy(t *testing.T) {
	a := newTestAgent(t, PolicyConfig{})

	obs := batch(1, 0, false)[0].Observation
	action, err := a.Act(obs)
	require.NoError(t, err)

	q, err := a.Learner().QValues([][][]float32{obs})
	require.NoError(t, err)
	assert.Equal(t, Greedy(q[0]), action)
	assert.Equal(t, 1, a.Policy().Steps())
}

func TestAgent_ActRejectsBadObservation(t *testing.T) {
	a := newTestAgent(t, PolicyConfig{})

	_, err := a.Act([][]float32{{1, 2}})
	assert.Error(t, err)
}

func TestAgent_TrainWaitsForBatch(t *testing.T) {
	a := newTestAgent(t, DefaultPolicyConfig())

	transitions := batch(4, 1, true)
	for _, tr := range transitions[:3] {
		a.Remember(tr)
	}
	_, trained, err := a.Train()
	require.NoError(t, err)
	assert.False(t, trained)
	assert.Equal(t, 0, a.Learner().Updates())

	a.Remember(transitions[3])
	assert.Equal(t, 4, a.Memory().Len())

	loss, trained, err := a.Train()
	require.NoError(t, err)
	assert.True(t, trained)
	assert.Greater(t, loss, float32(0))
	assert.Equal(t, 1, a.Learner().Updates())
}
