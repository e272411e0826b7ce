package qnet

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
)

// Validation errors returned by Build.
var (
	ErrBatchSize     = errors.New("batch size must be positive")
	ErrNoInputs      = errors.New("at least one input modality is required")
	ErrFrameRank     = errors.New("input dimensions must have exactly 3 elements (channels, height, width)")
	ErrFrameDims     = errors.New("input dimensions must be positive")
	ErrFrameTooSmall = errors.New("frame is too small for the convolution tower")
	ErrNoActions     = errors.New("action spec is empty")
)

// MinFrameSize is the smallest height or width that survives the
// convolution tower with at least one output cell.
const MinFrameSize = 22

// Layout is the memory layout of the frames fed to Forward.
type Layout int

// Supported frame layouts.
const (
	// LayoutChannelsFirst expects [batch, channels, height, width].
	LayoutChannelsFirst Layout = iota
	// LayoutChannelsLast expects [batch, height, width, channels] and
	// permutes to channel-first before the first convolution.
	LayoutChannelsLast
)

// String returns the layout name.
func (l Layout) String() string {
	switch l {
	case LayoutChannelsFirst:
		return "channels_first"
	case LayoutChannelsLast:
		return "channels_last"
	default:
		return "Layout(" + strconv.Itoa(int(l)) + ")"
	}
}

// ActionKind tells how an ActionSpec was declared.
type ActionKind int

// Action spec variants.
const (
	ActionCount ActionKind = iota + 1
	ActionLabels
)

// ActionSpec describes the discrete action space: either a plain count
// or an explicit list of labelled actions.
type ActionSpec struct {
	kind   ActionKind
	count  int
	labels []string
}

// Actions declares n anonymous actions.
func Actions(n int) ActionSpec {
	return ActionSpec{kind: ActionCount, count: n}
}

// ActionList declares one action per label.
func ActionList(labels ...string) ActionSpec {
	return ActionSpec{kind: ActionLabels, labels: append([]string(nil), labels...)}
}

// Kind returns how the spec was declared (zero for an unset spec).
func (a ActionSpec) Kind() ActionKind {
	return a.kind
}

// Len returns the number of actions.
func (a ActionSpec) Len() int {
	if a.kind == ActionLabels {
		return len(a.labels)
	}
	return a.count
}

// Label returns the label of action i. Count specs use the index.
func (a ActionSpec) Label(i int) string {
	if a.kind == ActionLabels && i >= 0 && i < len(a.labels) {
		return a.labels[i]
	}
	return strconv.Itoa(i)
}

// Config holds everything Build needs to assemble a network.
type Config struct {
	// BatchSize is the number of transitions per gradient step.
	BatchSize int

	// InputDims has one [channels, height, width] entry per modality.
	InputDims [][]int

	// Actions is the discrete action space.
	Actions ActionSpec

	// Rand draws the initial weights. When nil a source seeded with
	// Seed is used.
	Rand *rand.Rand
	Seed int64

	// ActionAsInput feeds a one-hot action as an extra input and
	// produces a single value instead of one value per action.
	ActionAsInput bool

	// Layout of the frame tensors passed to Forward.
	Layout Layout
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w (got %d)", ErrBatchSize, c.BatchSize)
	}
	if len(c.InputDims) == 0 {
		return ErrNoInputs
	}
	for i, dim := range c.InputDims {
		if len(dim) != 3 {
			return fmt.Errorf("input %d: %w (got %d)", i, ErrFrameRank, len(dim))
		}
		if dim[0] <= 0 || dim[1] <= 0 || dim[2] <= 0 {
			return fmt.Errorf("input %d: %w (got %v)", i, ErrFrameDims, dim)
		}
		if h, w := towerOutputSize(dim[1], dim[2]); h < 1 || w < 1 {
			return fmt.Errorf("input %d: %w (got %dx%d, need at least %dx%d)",
				i, ErrFrameTooSmall, dim[1], dim[2], MinFrameSize, MinFrameSize)
		}
	}
	if c.Actions.Len() <= 0 {
		return ErrNoActions
	}
	if c.Layout != LayoutChannelsFirst && c.Layout != LayoutChannelsLast {
		return fmt.Errorf("unknown frame layout %v", c.Layout)
	}
	return nil
}

// NumActions returns the size of the action space.
func (c Config) NumActions() int {
	return c.Actions.Len()
}

// FrameSize returns the number of elements in one frame of modality i.
func (c Config) FrameSize(i int) int {
	d := c.InputDims[i]
	return d[0] * d[1] * d[2]
}

func (c Config) rng() *rand.Rand {
	if c.Rand != nil {
		return c.Rand
	}
	//nolint:gosec // weight initialisation, not security sensitive
	return rand.New(rand.NewSource(c.Seed))
}
