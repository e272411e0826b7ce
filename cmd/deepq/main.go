// Package main provides the deepq CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"

	"github.com/klauspost/cpuid/v2"

	"github.com/born-ml/deepq/internal/config"
	"github.com/born-ml/deepq/internal/dqn"
	"github.com/born-ml/deepq/internal/env"
	"github.com/born-ml/deepq/internal/qnet"
	"github.com/born-ml/deepq/internal/replay"
	"github.com/born-ml/deepq/internal/trainer"
)

const version = "v0.1.0-dev"

type options struct {
	command string
	cfg     *config.Config
	gpu     bool
	verbose bool
}

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("deepq %s\n", version)
		return
	case "info":
		info()
		return
	case "summary", "train":
	default:
		usage()
		os.Exit(2)
	}

	opts, err := parseFlags(os.Args[1], os.Args[2:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
	if err := execute(opts); err != nil {
		log.Fatalf("%s: %v", opts.command, err)
	}
}

func usage() {
	fmt.Println("deepq - convolutional deep Q-learning on Born")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  info       Show CPU features and available backends")
	fmt.Println("  summary    Print the network built from a config")
	fmt.Println("  train      Train an agent on the Catcher environment")
	fmt.Println("")
	fmt.Println("Run 'deepq <command> -h' for command flags.")
}

func parseFlags(command string, args []string) (options, error) {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	path := fs.String("config", "", "YAML config file (defaults when empty)")
	gpu := fs.Bool("gpu", false, "Use the WebGPU backend when available")
	var o config.Overrides
	seed := new(int64)
	if command == "train" {
		fs.IntVar(&o.Episodes, "episodes", 0, "Override train.episodes")
		fs.Int64Var(seed, "seed", 0, "Override seed")
		fs.IntVar(&o.LogEvery, "log-every", 0, "Override train.log_every")
		fs.IntVar(&o.BatchSize, "batch", 0, "Override network.batch_size")
	}
	verbose := fs.Bool("v", false, "Debug logging")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			o.Seed = seed
		}
	})

	cfg := config.Defaults()
	if *path != "" {
		var err error
		if cfg, err = config.Load(*path); err != nil {
			return options{}, err
		}
	}
	cfg.ApplyOverrides(o)
	if err := cfg.Validate(); err != nil {
		return options{}, err
	}

	return options{command: command, cfg: cfg, gpu: *gpu, verbose: *verbose}, nil
}

// runCommand executes summary or train on backend.
func runCommand[B dqn.TapeBackend](opts options, backend B) error {
	catcher, err := env.NewCatcher(opts.cfg.CatcherConfig())
	if err != nil {
		return err
	}
	dims, actions := catcher.InputDims(), catcher.Actions()

	if opts.command == "summary" {
		return summary(opts.cfg.NetworkConfig(dims, actions), backend)
	}
	return train(opts, catcher, backend)
}

func summary[B dqn.TapeBackend](cfg qnet.Config, backend B) error {
	net, params, err := qnet.Build(cfg, backend)
	if err != nil {
		return err
	}
	fmt.Printf("Backend: %s\n", backend.Name())
	fmt.Println(net)
	fmt.Printf("Inputs: %d, output width: %d, feature width: %d\n",
		net.NumInputs(), net.OutputWidth(), net.FeatureWidth())
	fmt.Printf("Parameters: %d tensors, %d weights\n", len(params), qnet.CountParameters(params))
	return nil
}

func train[B dqn.TapeBackend](opts options, catcher *env.Catcher, backend B) error {
	cfg := opts.cfg

	learner, err := dqn.NewLearner(cfg.LearnerConfig(catcher.InputDims(), catcher.Actions()), backend)
	if err != nil {
		return err
	}
	//nolint:gosec // exploration, not security sensitive
	policy, err := dqn.NewPolicy(cfg.PolicyConfig(), rand.New(rand.NewSource(cfg.Seed+1)))
	if err != nil {
		return err
	}
	memory, err := replay.New(cfg.Replay.Capacity)
	if err != nil {
		return err
	}
	//nolint:gosec // minibatch sampling, not security sensitive
	agent := dqn.NewAgent(learner, policy, memory, rand.New(rand.NewSource(cfg.Seed+2)))

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Training on Catcher %dx%d (%s) with %s\n",
		cfg.Env.Height, cfg.Env.Width, strings.Join(catcher.Actions(), "/"), backend.Name())

	sum, err := trainer.Run(ctx, cfg.TrainerConfig(), agent, catcher, logger)
	fmt.Printf("\nRun %s\n", sum.RunID)
	fmt.Printf("  Episodes: %d, steps: %d, updates: %d\n", sum.Episodes, sum.Steps, sum.Updates)
	fmt.Printf("  Return: %.3f ± %.3f\n", sum.MeanReturn, sum.StdReturn)
	fmt.Printf("  Last loss: %.5f, epsilon: %.3f\n", sum.LastLoss, policy.Epsilon())
	fmt.Printf("  Duration: %s\n", sum.Duration)
	return err
}

func info() {
	fmt.Printf("deepq %s\n\n", version)
	fmt.Printf("CPU: %s\n", cpuid.CPU.BrandName)
	fmt.Printf("  Cores: %d physical, %d logical\n", cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores)

	features := []struct {
		name string
		id   cpuid.FeatureID
	}{
		{"SSE4.2", cpuid.SSE42},
		{"AVX", cpuid.AVX},
		{"AVX2", cpuid.AVX2},
		{"FMA3", cpuid.FMA3},
		{"AVX512F", cpuid.AVX512F},
		{"ASIMD", cpuid.ASIMD},
	}
	var supported []string
	for _, f := range features {
		if cpuid.CPU.Supports(f.id) {
			supported = append(supported, f.name)
		}
	}
	if len(supported) == 0 {
		supported = []string{"none detected"}
	}
	fmt.Printf("  SIMD: %s\n", strings.Join(supported, ", "))

	fmt.Println("\nBackends:")
	for _, b := range backends() {
		fmt.Printf("  %s\n", b)
	}
}
