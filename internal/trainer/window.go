package trainer

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Window accumulates episode stats between log lines.
type Window struct {
	returns  []float64
	steps    int
	updates  int
	elapsed  time.Duration
	lastLoss float32
}

// Record adds a finished episode to the window.
func (w *Window) Record(steps, updates int, elapsed time.Duration, ret float64, loss float32) {
	w.returns = append(w.returns, ret)
	w.steps += steps
	w.updates += updates
	w.elapsed += elapsed
	w.lastLoss = loss
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{
		Episodes: len(w.returns),
		Updates:  w.updates,
		LastLoss: w.lastLoss,
	}
	if len(w.returns) > 0 {
		snap.MeanReturn = stat.Mean(w.returns, nil)
	}
	if w.elapsed > 0 {
		snap.StepsPerSec = float64(w.steps) / w.elapsed.Seconds()
	}

	*w = Window{lastLoss: w.lastLoss}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Episodes    int
	MeanReturn  float64
	StepsPerSec float64
	Updates     int
	LastLoss    float32
}
