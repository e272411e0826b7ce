// Package trainer runs episodes of an agent against an environment.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/deepq/internal/env"
	"github.com/born-ml/deepq/internal/replay"
)

// Agent is what the loop drives. *dqn.Agent satisfies it.
type Agent interface {
	Act(observation [][]float32) (int, error)
	Remember(t replay.Transition)
	Train() (loss float32, trained bool, err error)
}

// Config captures the knobs required by the training loop.
type Config struct {
	Episodes int
	// MaxSteps caps episode length. Zero means no cap.
	MaxSteps int
	// TrainEvery runs one update after this many environment steps.
	TrainEvery int
	LogEvery   int
	Seed       int64
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Episodes int
	Steps    int
	Updates  int

	Returns    []float64
	MeanReturn float64
	StdReturn  float64
	LastLoss   float32

	Duration time.Duration
}

// Run plays cfg.Episodes episodes, storing every transition and training
// the agent as it goes. It stops early when ctx is cancelled and returns
// the summary of the completed episodes together with ctx.Err().
func Run(ctx context.Context, cfg Config, agent Agent, e env.Env, logger *slog.Logger) (Summary, error) {
	if cfg.Episodes <= 0 {
		return Summary{}, errors.New("trainer: episodes must be > 0")
	}
	if cfg.MaxSteps < 0 {
		return Summary{}, errors.New("trainer: max steps must not be negative")
	}
	if cfg.TrainEvery <= 0 {
		cfg.TrainEvery = 1
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 10
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sum := Summary{RunID: uuid.NewString()}
	logger = logger.With("run", sum.RunID)
	//nolint:gosec // episode start positions, not security sensitive
	rng := rand.New(rand.NewSource(cfg.Seed))

	start := time.Now()
	var window Window
	var runErr error

	logger.Info("training started", "episodes", cfg.Episodes, "max_steps", cfg.MaxSteps, "seed", cfg.Seed)

	for ep := 1; ep <= cfg.Episodes; ep++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		res, err := sum.episode(ctx, cfg, agent, e, rng)
		if err != nil {
			runErr = fmt.Errorf("trainer: episode %d: %w", ep, err)
			break
		}

		sum.Episodes++
		sum.Returns = append(sum.Returns, res.ret)
		window.Record(res.steps, res.updates, res.elapsed, res.ret, sum.LastLoss)
		logger.Debug("episode done",
			"episode", ep,
			"return", res.ret,
			"steps", res.steps,
			"updates", res.updates,
			"elapsed", res.elapsed,
		)

		if ep%cfg.LogEvery == 0 || ep == cfg.Episodes {
			snap := window.Snapshot()
			logger.Info("episodes",
				"episode", ep,
				"mean_return", snap.MeanReturn,
				"steps_per_sec", snap.StepsPerSec,
				"updates", snap.Updates,
				"loss", snap.LastLoss,
			)
		}
	}

	sum.Duration = time.Since(start)
	switch len(sum.Returns) {
	case 0:
	case 1:
		sum.MeanReturn = sum.Returns[0]
	default:
		sum.MeanReturn, sum.StdReturn = stat.MeanStdDev(sum.Returns, nil)
	}

	logger.Info("training finished",
		"episodes", sum.Episodes,
		"steps", sum.Steps,
		"updates", sum.Updates,
		"mean_return", sum.MeanReturn,
		"std_return", sum.StdReturn,
		"duration", sum.Duration,
	)

	return sum, runErr
}

type episodeResult struct {
	ret     float64
	steps   int
	updates int
	elapsed time.Duration
}

// episode plays one episode and folds its counters into s.
func (s *Summary) episode(ctx context.Context, cfg Config, agent Agent, e env.Env, rng *rand.Rand) (episodeResult, error) {
	var res episodeResult
	start := time.Now()

	e.Reset(rng)
	obs := e.Observe()
	for cfg.MaxSteps == 0 || res.steps < cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		action, err := agent.Act(obs)
		if err != nil {
			return res, err
		}
		reward, done, err := e.Step(action)
		if err != nil {
			return res, err
		}
		next := e.Observe()

		agent.Remember(replay.Transition{
			Observation: obs,
			Action:      action,
			Reward:      reward,
			Next:        next,
			Terminal:    done,
		})
		obs = next
		res.ret += float64(reward)
		res.steps++
		s.Steps++

		if s.Steps%cfg.TrainEvery == 0 {
			loss, trained, err := agent.Train()
			if err != nil {
				return res, err
			}
			if trained {
				res.updates++
				s.Updates++
				s.LastLoss = loss
			}
		}

		if done {
			break
		}
	}
	res.elapsed = time.Since(start)
	return res, nil
}
