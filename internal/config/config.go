// Package config loads training runs from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/deepq/internal/dqn"
	"github.com/born-ml/deepq/internal/env"
	"github.com/born-ml/deepq/internal/qnet"
	"github.com/born-ml/deepq/internal/trainer"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	Seed    int64   `yaml:"seed"`
	Network Network `yaml:"network"`
	Env     Env     `yaml:"env"`
	Learner Learner `yaml:"learner"`
	Policy  Policy  `yaml:"policy"`
	Replay  Replay  `yaml:"replay"`
	Train   Train   `yaml:"train"`
}

// Network configures the Q-network.
type Network struct {
	BatchSize     int    `yaml:"batch_size"`
	Layout        string `yaml:"layout"`
	ActionAsInput bool   `yaml:"action_as_input"`
}

// Env configures the Catcher environment.
type Env struct {
	Height      int  `yaml:"height"`
	Width       int  `yaml:"width"`
	PaddleWidth int  `yaml:"paddle_width"`
	Motion      bool `yaml:"motion"`
}

// Learner configures the DQN update.
type Learner struct {
	Gamma           float64 `yaml:"gamma"`
	Optimizer       string  `yaml:"optimizer"`
	LearningRate    float64 `yaml:"learning_rate"`
	Momentum        float64 `yaml:"momentum"`
	TargetSyncEvery int     `yaml:"target_sync_every"`
}

// Policy configures exploration.
type Policy struct {
	EpsilonStart float64 `yaml:"epsilon_start"`
	EpsilonEnd   float64 `yaml:"epsilon_end"`
	DecaySteps   int     `yaml:"decay_steps"`
}

// Replay configures the replay buffer.
type Replay struct {
	Capacity int `yaml:"capacity"`
}

// Train configures the episode loop.
type Train struct {
	Episodes   int `yaml:"episodes"`
	MaxSteps   int `yaml:"max_steps"`
	TrainEvery int `yaml:"train_every"`
	LogEvery   int `yaml:"log_every"`
}

// Overrides captures CLI supplied values. Zero values are ignored,
// except for Seed which applies whenever it is non-nil.
type Overrides struct {
	Episodes  int
	Seed      *int64
	LogEvery  int
	BatchSize int
}

const defaultLogEvery = 10

// Defaults returns a config that trains on a 24x24 Catcher board.
func Defaults() *Config {
	catcher := env.DefaultCatcherConfig()
	policy := dqn.DefaultPolicyConfig()
	learner := dqn.DefaultLearnerConfig(qnet.Config{})

	return &Config{
		Seed: 1,
		Network: Network{
			BatchSize: 32,
			Layout:    qnet.LayoutChannelsFirst.String(),
		},
		Env: Env{
			Height:      catcher.Height,
			Width:       catcher.Width,
			PaddleWidth: catcher.PaddleWidth,
		},
		Learner: Learner{
			Gamma:           learner.Gamma,
			Optimizer:       learner.Optimizer,
			LearningRate:    learner.LearningRate,
			TargetSyncEvery: learner.TargetSyncEvery,
		},
		Policy: Policy{
			EpsilonStart: policy.EpsilonStart,
			EpsilonEnd:   policy.EpsilonEnd,
			DecaySteps:   policy.DecaySteps,
		},
		Replay: Replay{Capacity: 10000},
		Train: Train{
			Episodes:   200,
			TrainEvery: 1,
			LogEvery:   defaultLogEvery,
		},
	}
}

// Load reads and validates a Config from YAML. Keys missing from the
// file keep their default value.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a Config from r. Unknown keys are an error.
func Parse(r io.Reader) (*Config, error) {
	cfg := Defaults()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if cfg.Train.LogEvery == 0 {
		cfg.Train.LogEvery = defaultLogEvery
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Episodes > 0 {
		c.Train.Episodes = o.Episodes
	}
	if o.Seed != nil {
		c.Seed = *o.Seed
	}
	if o.LogEvery > 0 {
		c.Train.LogEvery = o.LogEvery
	}
	if o.BatchSize > 0 {
		c.Network.BatchSize = o.BatchSize
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if _, err := c.layout(); err != nil {
		return err
	}
	if c.Replay.Capacity < c.Network.BatchSize {
		return fmt.Errorf("replay.capacity must be >= network.batch_size (got %d < %d)",
			c.Replay.Capacity, c.Network.BatchSize)
	}
	if c.Train.Episodes <= 0 {
		return fmt.Errorf("train.episodes must be > 0 (got %d)", c.Train.Episodes)
	}
	if c.Train.MaxSteps < 0 {
		return fmt.Errorf("train.max_steps must be >= 0 (got %d)", c.Train.MaxSteps)
	}
	if c.Train.TrainEvery <= 0 {
		return fmt.Errorf("train.train_every must be > 0 (got %d)", c.Train.TrainEvery)
	}
	if c.Train.LogEvery < 0 {
		return fmt.Errorf("train.log_every must be >= 0 (got %d)", c.Train.LogEvery)
	}

	catcher, err := env.NewCatcher(c.CatcherConfig())
	if err != nil {
		return err
	}
	if err := c.LearnerConfig(catcher.InputDims(), catcher.Actions()).Validate(); err != nil {
		return err
	}
	return c.PolicyConfig().Validate()
}

func (c *Config) layout() (qnet.Layout, error) {
	switch c.Network.Layout {
	case "", qnet.LayoutChannelsFirst.String():
		return qnet.LayoutChannelsFirst, nil
	case qnet.LayoutChannelsLast.String():
		return qnet.LayoutChannelsLast, nil
	default:
		return 0, fmt.Errorf("network.layout: unknown layout %q", c.Network.Layout)
	}
}

// NetworkConfig returns the Q-network config for the given observation
// dims and action labels.
func (c *Config) NetworkConfig(dims [][]int, actions []string) qnet.Config {
	layout, _ := c.layout()
	return qnet.Config{
		BatchSize:     c.Network.BatchSize,
		InputDims:     dims,
		Actions:       qnet.ActionList(actions...),
		Seed:          c.Seed,
		ActionAsInput: c.Network.ActionAsInput,
		Layout:        layout,
	}
}

// LearnerConfig returns the DQN learner config.
func (c *Config) LearnerConfig(dims [][]int, actions []string) dqn.LearnerConfig {
	return dqn.LearnerConfig{
		Net:             c.NetworkConfig(dims, actions),
		Gamma:           c.Learner.Gamma,
		Optimizer:       c.Learner.Optimizer,
		LearningRate:    c.Learner.LearningRate,
		Momentum:        c.Learner.Momentum,
		TargetSyncEvery: c.Learner.TargetSyncEvery,
	}
}

// PolicyConfig returns the exploration schedule.
func (c *Config) PolicyConfig() dqn.PolicyConfig {
	return dqn.PolicyConfig{
		EpsilonStart: c.Policy.EpsilonStart,
		EpsilonEnd:   c.Policy.EpsilonEnd,
		DecaySteps:   c.Policy.DecaySteps,
	}
}

// CatcherConfig returns the environment config.
func (c *Config) CatcherConfig() env.CatcherConfig {
	return env.CatcherConfig{
		Height:      c.Env.Height,
		Width:       c.Env.Width,
		PaddleWidth: c.Env.PaddleWidth,
		Motion:      c.Env.Motion,
	}
}

// TrainerConfig returns the episode loop config.
func (c *Config) TrainerConfig() trainer.Config {
	return trainer.Config{
		Episodes:   c.Train.Episodes,
		MaxSteps:   c.Train.MaxSteps,
		TrainEvery: c.Train.TrainEvery,
		LogEvery:   c.Train.LogEvery,
		Seed:       c.Seed,
	}
}
