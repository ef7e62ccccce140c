package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_PushPopOrder(t *testing.T) {
	r := newRing(4)
	r.push(Frame{Samples: []float32{1}})
	r.push(Frame{Samples: []float32{2}})

	f, ok := r.pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, []float32{1}, f.Samples)

	f, ok = r.pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, []float32{2}, f.Samples)
}

func TestRing_OverrunDropsOldest(t *testing.T) {
	r := newRing(2)
	r.push(Frame{Samples: []float32{1}})
	r.push(Frame{Samples: []float32{2}})
	r.push(Frame{Samples: []float32{3}}) // drops {1}

	f, ok := r.pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, []float32{2}, f.Samples)
	assert.Equal(t, 1, r.droppedAndReset())
}

func TestRing_PopTimesOutWhenEmpty(t *testing.T) {
	r := newRing(2)
	_, ok := r.pop(10 * time.Millisecond)
	assert.False(t, ok)
}
