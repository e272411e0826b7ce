package env

import (
	"fmt"
	"math/rand"
)

// Catcher actions.
const (
	CatcherLeft = iota
	CatcherStay
	CatcherRight
)

// CatcherConfig configures a Catcher.
type CatcherConfig struct {
	Height      int
	Width       int
	PaddleWidth int

	// Motion adds the previous frame as a second modality.
	Motion bool
}

// DefaultCatcherConfig returns the smallest board the Q-network accepts.
func DefaultCatcherConfig() CatcherConfig {
	return CatcherConfig{Height: 24, Width: 24, PaddleWidth: 3}
}

// Catcher is a single-channel game: a ball falls one row per step and
// the agent slides a paddle along the bottom row to catch it.
// Catching scores +1, missing scores -1.
type Catcher struct {
	cfg CatcherConfig

	ballRow, ballCol int
	paddle           int // leftmost paddle column
	done             bool

	prev []float32
}

// NewCatcher validates cfg and returns a Catcher. Call Reset before use.
func NewCatcher(cfg CatcherConfig) (*Catcher, error) {
	if cfg.Height < 2 || cfg.Width < 1 {
		return nil, fmt.Errorf("catcher: board %dx%d is too small", cfg.Height, cfg.Width)
	}
	if cfg.PaddleWidth < 1 || cfg.PaddleWidth > cfg.Width {
		return nil, fmt.Errorf("catcher: paddle width %d must be in [1, %d]", cfg.PaddleWidth, cfg.Width)
	}
	return &Catcher{cfg: cfg, done: true}, nil
}

// InputDims implements Env.
func (c *Catcher) InputDims() [][]int {
	dim := []int{1, c.cfg.Height, c.cfg.Width}
	if c.cfg.Motion {
		return [][]int{dim, {1, c.cfg.Height, c.cfg.Width}}
	}
	return [][]int{dim}
}

// Actions implements Env.
func (c *Catcher) Actions() []string {
	return []string{"left", "stay", "right"}
}

// Reset implements Env.
func (c *Catcher) Reset(rng *rand.Rand) {
	c.ballRow = 0
	c.ballCol = rng.Intn(c.cfg.Width)
	c.paddle = rng.Intn(c.cfg.Width - c.cfg.PaddleWidth + 1)
	c.done = false
	c.prev = c.frame()
}

// Observe implements Env.
func (c *Catcher) Observe() [][]float32 {
	cur := c.frame()
	if c.cfg.Motion {
		return [][]float32{cur, append([]float32(nil), c.prev...)}
	}
	return [][]float32{cur}
}

// Step implements Env.
func (c *Catcher) Step(action int) (float32, bool, error) {
	if c.done {
		return 0, true, ErrDone
	}

	switch action {
	case CatcherLeft:
		if c.paddle > 0 {
			c.paddle--
		}
	case CatcherStay:
	case CatcherRight:
		if c.paddle+c.cfg.PaddleWidth < c.cfg.Width {
			c.paddle++
		}
	default:
		return 0, false, fmt.Errorf("%w %d", ErrInvalidAction, action)
	}

	c.prev = c.frame()
	c.ballRow++
	if c.ballRow < c.cfg.Height-1 {
		return 0, false, nil
	}

	c.done = true
	if c.Caught() {
		return 1, true, nil
	}
	return -1, true, nil
}

// Caught reports whether the paddle is under the ball.
func (c *Catcher) Caught() bool {
	return c.ballCol >= c.paddle && c.ballCol < c.paddle+c.cfg.PaddleWidth
}

// Done reports whether the episode has ended.
func (c *Catcher) Done() bool {
	return c.done
}

// Ball returns the ball position.
func (c *Catcher) Ball() (row, col int) {
	return c.ballRow, c.ballCol
}

// Paddle returns the leftmost paddle column.
func (c *Catcher) Paddle() int {
	return c.paddle
}

func (c *Catcher) frame() []float32 {
	w := c.cfg.Width
	f := make([]float32, c.cfg.Height*w)
	bottom := (c.cfg.Height - 1) * w
	for i := 0; i < c.cfg.PaddleWidth; i++ {
		f[bottom+c.paddle+i] = 1
	}
	f[c.ballRow*w+c.ballCol] = 1
	return f
}
