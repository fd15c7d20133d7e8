package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int](3)
	done := make(chan struct{})
	for i := 1; i <= 3; i++ {
		require.True(t, q.Post(i, done))
	}
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 1, <-q.C())
	assert.Equal(t, 2, <-q.C())
	assert.Equal(t, 3, <-q.C())
}

func TestQueue_PostAfterDone(t *testing.T) {
	q := New[string](1)
	done := make(chan struct{})
	close(done)

	assert.False(t, q.Post("late", done))
	assert.Zero(t, q.Len())
}

func TestQueue_PostUnblocksWhenDoneCloses(t *testing.T) {
	q := New[int](1)
	done := make(chan struct{})
	require.True(t, q.Post(0, done))

	result := make(chan bool, 1)
	go func() { result <- q.Post(1, done) }()

	time.Sleep(10 * time.Millisecond)
	close(done)

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Post did not return after done was closed")
	}
	assert.Equal(t, 1, q.Len())
}

func TestQueue_OfferDropsWhenFull(t *testing.T) {
	q := New[string](2)

	assert.True(t, q.Offer("frame-1"))
	assert.True(t, q.Offer("frame-2"))
	assert.False(t, q.Offer("frame-3"))
	assert.False(t, q.Offer("frame-4"))

	assert.Equal(t, uint64(2), q.Dropped())
	assert.Equal(t, "frame-1", <-q.C())
	assert.True(t, q.Offer("frame-5"))
	assert.Equal(t, 2, q.Len())
}
