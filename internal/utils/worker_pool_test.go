package utils

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsJobs(t *testing.T) {
	// Setup
	pool := NewWorkerPool(2)
	var count atomic.Int32

	// Execute
	for i := 0; i < 10; i++ {
		assert.True(t, pool.Submit(func() { count.Add(1) }, time.Second))
	}
	pool.Shutdown()

	// Assert
	assert.Equal(t, int32(10), count.Load())
}

func TestWorkerPool_SubmitTimesOutWhenSaturated(t *testing.T) {
	// Setup
	pool := NewWorkerPool(1)
	release := make(chan struct{})
	started := make(chan struct{})
	assert.True(t, pool.Submit(func() { close(started); <-release }, time.Second))
	<-started
	assert.True(t, pool.Submit(func() {}, time.Second))

	// Execute
	queued := pool.Submit(func() {}, 20*time.Millisecond)

	// Assert
	assert.False(t, queued)
	close(release)
	pool.Shutdown()
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Shutdown()
	pool.Shutdown()

	assert.False(t, pool.Submit(func() {}, time.Millisecond))
}
