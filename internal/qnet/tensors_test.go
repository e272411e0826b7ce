package qnet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born/tensor"
)

func TestStackFrames(t *testing.T) {
	backend := newBackend()

	frames := [][]float32{
		{1, 2, 3, 4, 5, 6},
		{7, 8, 9, 10, 11, 12},
	}
	x, err := StackFrames(frames, []int{1, 2, 3}, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1, 2, 3}, x.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, x.Data())
}

func TestStackFrames_Errors(t *testing.T) {
	backend := newBackend()

	_, err := StackFrames([][]float32{{1}}, []int{1, 1}, backend)
	assert.True(t, errors.Is(err, ErrFrameRank))

	_, err = StackFrames(nil, []int{1, 1, 1}, backend)
	assert.Error(t, err)

	_, err = StackFrames([][]float32{{1, 2}, {1}}, []int{1, 1, 2}, backend)
	assert.ErrorContains(t, err, "frame 1")
}

func TestOneHot(t *testing.T) {
	backend := newBackend()

	x, err := OneHot([]int{2, 0}, 3, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.Equal(t, []float32{0, 0, 1, 1, 0, 0}, x.Data())

	tests := []struct {
		name    string
		actions []int
		n       int
	}{
		{"no actions", []int{0}, 0},
		{"empty batch", nil, 3},
		{"negative", []int{-1}, 3},
		{"out of range", []int{3}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OneHot(tt.actions, tt.n, backend)
			assert.Error(t, err)
		})
	}
}

func TestCopyParameters(t *testing.T) {
	backend := newBackend()
	cfg := Config{
		BatchSize: 4,
		InputDims: [][]int{{1, 22, 22}},
		Actions:   Actions(2),
		Seed:      1,
	}

	_, src, err := Build(cfg, backend)
	require.NoError(t, err)
	cfg.Seed = 2
	_, dst, err := Build(cfg, backend)
	require.NoError(t, err)

	assert.NotEqual(t, src[0].Tensor().Data(), dst[0].Tensor().Data())
	require.NoError(t, CopyParameters(dst, src))
	for i := range src {
		assert.Equal(t, src[i].Tensor().Data(), dst[i].Tensor().Data())
	}

	// Copies, not aliases.
	dst[0].Tensor().Data()[0] += 1
	assert.NotEqual(t, src[0].Tensor().Data()[0], dst[0].Tensor().Data()[0])
}

func TestCopyParameters_Mismatch(t *testing.T) {
	backend := newBackend()

	_, a, err := Build(Config{BatchSize: 1, InputDims: [][]int{{1, 22, 22}}, Actions: Actions(2)}, backend)
	require.NoError(t, err)
	_, b, err := Build(Config{BatchSize: 1, InputDims: [][]int{{1, 22, 22}}, Actions: Actions(3)}, backend)
	require.NoError(t, err)
	_, c, err := Build(Config{BatchSize: 1, InputDims: [][]int{{1, 22, 22}, {1, 22, 22}}, Actions: Actions(2)}, backend)
	require.NoError(t, err)

	assert.ErrorContains(t, CopyParameters(a, b), "shape")
	assert.ErrorContains(t, CopyParameters(a, c), "length")
}

func TestToChannelsLast(t *testing.T) {
	// Two 2x3 planes.
	frame := []float32{
		0, 1, 2,
		3, 4, 5,

		10, 11, 12,
		13, 14, 15,
	}
	got := ToChannelsLast(frame, []int{2, 2, 3})
	assert.Equal(t, []float32{0, 10, 1, 11, 2, 12, 3, 13, 4, 14, 5, 15}, got)
	assert.Equal(t, float32(1), frame[1], "input is left untouched")

	single := []float32{1, 2, 3, 4}
	assert.Equal(t, single, ToChannelsLast(single, []int{1, 2, 2}))
}
