package utils

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(4, 16, nil)
	pool.Start()

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			count.Add(1)
		})
	}
	wg.Wait()
	pool.Stop()

	assert.Equal(t, int32(100), count.Load())
}

func TestWorkerPool_SurvivesPanic(t *testing.T) {
	pool := NewWorkerPool(1, 4, nil)
	pool.Start()
	defer pool.Stop()

	done := make(chan struct{})
	pool.Submit(func() { panic("boom") })
	pool.Submit(func() { close(done) })
	<-done
}

func TestWorkerPool_StopDrainsQueue(t *testing.T) {
	pool := NewWorkerPool(1, 8, nil)

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		pool.Submit(func() { count.Add(1) })
	}
	pool.Start()
	pool.Stop()
	pool.Stop()

	assert.Equal(t, int32(5), count.Load())
}

func TestWorkerPool_SubmitAfterStopDoesNotBlock(t *testing.T) {
	pool := NewWorkerPool(1, 1, nil)
	pool.Start()
	pool.Stop()

	var count atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			pool.Submit(func() { count.Add(1) })
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a stopped pool")
	}
	assert.Zero(t, count.Load())
	assert.Empty(t, pool.JobQueue)
}

func TestInlineExecutor(t *testing.T) {
	ran := false
	InlineExecutor{}.Submit(func() { ran = true })
	assert.True(t, ran)
}
