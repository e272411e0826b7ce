package replay

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transition(action int) Transition {
	return Transition{
		Observation: [][]float32{{float32(action)}},
		Action:      action,
		Reward:      1,
		Next:        [][]float32{{float32(action + 1)}},
	}
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		_, err := New(c)
		assert.Error(t, err)
	}
}

func TestBuffer_AddLen(t *testing.T) {
	b, err := New(3)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 3, b.Cap())

	b.Add(transition(0))
	b.Add(transition(1))
	assert.Equal(t, 2, b.Len())

	b.Add(transition(2))
	b.Add(transition(3))
	assert.Equal(t, 3, b.Len())
}

func TestBuffer_Eviction(t *testing.T) {
	b, err := New(2)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		b.Add(transition(i))
	}

	rng := rand.New(rand.NewSource(1))
	batch, err := b.Sample(100, rng)
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, tr := range batch {
		seen[tr.Action] = true
	}
	assert.Equal(t, map[int]bool{3: true, 4: true}, seen)
}

func TestBuffer_SampleEmpty(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)

	_, err = b.Sample(1, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestBuffer_SampleSize(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)
	b.Add(transition(7))

	_, err = b.Sample(0, rand.New(rand.NewSource(1)))
	assert.Error(t, err)

	batch, err := b.Sample(5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, batch, 5)
	for _, tr := range batch {
		assert.Equal(t, 7, tr.Action)
	}
}

func TestBuffer_Deterministic(t *testing.T) {
	b, err := New(10)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b.Add(transition(i))
	}

	a1, err := b.Sample(8, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	a2, err := b.Sample(8, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
}

func TestBuffer_Concurrent(t *testing.T) {
	b, err := New(64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Add(transition(w*100 + i))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 64, b.Len())
}
