package trainer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"

	"github.com/born-ml/deepq/internal/dqn"
	"github.com/born-ml/deepq/internal/env"
	"github.com/born-ml/deepq/internal/qnet"
	"github.com/born-ml/deepq/internal/replay"
)

// corridor ends after length steps and pays the action id each step.
type corridor struct {
	length int
	pos    int
}

func (c *corridor) InputDims() [][]int { return [][]int{{1, 1, 1}} }
func (c *corridor) Actions() []string { return []string{"zero", "one"} }
func (c *corridor) Reset(*rand.Rand) { c.pos = 0 }
func (c *corridor) Observe() [][]float32 { return [][]float32{{float32(c.pos)}} }

func (c *corridor) Step(action int) (float32, bool, error) {
	if action < 0 || action > 1 {
		return 0, false, env.ErrInvalidAction
	}
	c.pos++
	return float32(action), c.pos >= c.length, nil
}

type fakeAgent struct {
	action     int
	remembered []replay.Transition
	trains     int
	actErr     error
	onAct      func()
}

func (a *fakeAgent) Act([][]float32) (int, error) {
	if a.onAct != nil {
		a.onAct()
	}
	return a.action, a.actErr
}

func (a *fakeAgent) Remember(t replay.Transition) {
	a.remembered = append(a.remembered, t)
}

func (a *fakeAgent) Train() (float32, bool, error) {
	a.trains++
	return 0.5, a.trains > 1, nil
}

func TestRun_InvalidConfig(t *testing.T) {
	_, err := Run(context.Background(), Config{}, &fakeAgent{}, &corridor{length: 1}, nil)
	assert.Error(t, err)

	_, err = Run(context.Background(), Config{Episodes: 1, MaxSteps: -1}, &fakeAgent{}, &corridor{length: 1}, nil)
	assert.Error(t, err)
}

func TestRun_Counts(t *testing.T) {
	agent := &fakeAgent{action: 1}
	sum, err := Run(context.Background(), Config{Episodes: 3, TrainEvery: 2}, agent, &corridor{length: 4}, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 3, sum.Episodes)
	assert.Equal(t, 12, sum.Steps)
	assert.Equal(t, []float64{4, 4, 4}, sum.Returns)
	assert.InDelta(t, 4, sum.MeanReturn, 1e-9)
	assert.InDelta(t, 0, sum.StdReturn, 1e-9)

	// Every second step trains; the fake reports the first call as a no-op.
	assert.Equal(t, 6, agent.trains)
	assert.Equal(t, 5, sum.Updates)
	assert.Equal(t, float32(0.5), sum.LastLoss)

	require.Len(t, agent.remembered, 12)
	last := agent.remembered[3]
	assert.True(t, last.Terminal)
	assert.Equal(t, [][]float32{{3}}, last.Observation)
	assert.Equal(t, [][]float32{{4}}, last.Next)
	assert.False(t, agent.remembered[2].Terminal)
}

func TestRun_MaxSteps(t *testing.T) {
	agent := &fakeAgent{}
	sum, err := Run(context.Background(), Config{Episodes: 2, MaxSteps: 3}, agent, &corridor{length: 100}, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Steps)
	for _, tr := range agent.remembered {
		assert.False(t, tr.Terminal)
	}
}

func TestRun_SingleEpisodeStats(t *testing.T) {
	sum, err := Run(context.Background(), Config{Episodes: 1}, &fakeAgent{action: 1}, &corridor{length: 2}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2, sum.MeanReturn, 1e-9)
	assert.Equal(t, float64(0), sum.StdReturn)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	agent := &fakeAgent{onAct: func() {
		calls++
		if calls == 5 {
			cancel()
		}
	}}

	sum, err := Run(ctx, Config{Episodes: 10}, agent, &corridor{length: 3}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sum.Episodes)
	assert.Equal(t, 5, sum.Steps)
}

func TestRun_AgentError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Run(context.Background(), Config{Episodes: 1}, &fakeAgent{actErr: boom}, &corridor{length: 3}, nil)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "episode 1")
}

func TestRun_Logs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sum, err := Run(context.Background(), Config{Episodes: 4, LogEvery: 2}, &fakeAgent{}, &corridor{length: 1}, logger)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "run="+sum.RunID)
	assert.Contains(t, out, "training started")
	assert.Contains(t, out, "episode=2")
	assert.Contains(t, out, "episode=4")
	assert.NotContains(t, out, "episode=3")
	assert.Contains(t, out, "training finished")
}

func TestWindow_Snapshot(t *testing.T) {
	var w Window
	w.Record(10, 2, time.Second, 1, 0.3)
	w.Record(30, 1, time.Second, 3, 0.2)

	snap := w.Snapshot()
	assert.Equal(t, 2, snap.Episodes)
	assert.InDelta(t, 2, snap.MeanReturn, 1e-9)
	assert.InDelta(t, 20, snap.StepsPerSec, 1e-9)
	assert.Equal(t, 3, snap.Updates)
	assert.Equal(t, float32(0.2), snap.LastLoss)

	empty := w.Snapshot()
	assert.Equal(t, 0, empty.Episodes)
	assert.Equal(t, float32(0.2), empty.LastLoss)
}

func TestRun_CatcherWithDQN(t *testing.T) {
	catcher, err := env.NewCatcher(env.CatcherConfig{Height: 22, Width: 22, PaddleWidth: 3, Motion: true})
	require.NoError(t, err)

	lcfg := dqn.DefaultLearnerConfig(qnet.Config{
		BatchSize: 4,
		InputDims: catcher.InputDims(),
		Actions:   qnet.ActionList(catcher.Actions()...),
		Seed:      1,
	})
	lcfg.TargetSyncEvery = 10
	learner, err := dqn.NewLearner(lcfg, autodiff.New(cpu.New()))
	require.NoError(t, err)
	policy, err := dqn.NewPolicy(dqn.DefaultPolicyConfig(), rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	memory, err := replay.New(256)
	require.NoError(t, err)
	agent := dqn.NewAgent(learner, policy, memory, rand.New(rand.NewSource(3)))

	sum, err := Run(context.Background(), Config{Episodes: 2, Seed: 4}, agent, catcher, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Episodes)
	assert.Equal(t, 42, sum.Steps)
	assert.Equal(t, 42, memory.Len())
	assert.Equal(t, sum.Updates, learner.Updates())
	assert.Equal(t, 39, sum.Updates)
	for _, r := range sum.Returns {
		assert.Contains(t, []float64{-1, 1}, r)
	}
}

func TestRun_DebugLogsEveryEpisode(t *testing.T) {
	var debug, info bytes.Buffer
	debugLogger := slog.New(slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}))
	infoLogger := slog.New(slog.NewTextHandler(&info, nil))

	cfg := Config{Episodes: 3, LogEvery: 10}
	_, err := Run(context.Background(), cfg, &fakeAgent{action: 1}, &corridor{length: 2}, debugLogger)
	require.NoError(t, err)
	_, err = Run(context.Background(), cfg, &fakeAgent{action: 1}, &corridor{length: 2}, infoLogger)
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(debug.String(), "episode done"))
	assert.Contains(t, debug.String(), "return=2")
	assert.NotContains(t, info.String(), "episode done")
}
