package fiberpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushRunsJob(t *testing.T) {
	p := New("test", 4)
	p.Start(2, true)
	defer p.End()

	done := make(chan struct{})
	p.Push(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
}

func TestPushCounterWaitsForAllJobs(t *testing.T) {
	p := New("test", 16)
	p.Start(4, true)
	defer p.End()

	const n = 50
	var ran atomic.Int32
	counter := NewCounter()
	counter.Reset(n)

	for i := 0; i < n; i++ {
		p.PushCounter(func() { ran.Add(1) }, counter)
	}
	counter.Wait()

	assert.Equal(t, int32(n), ran.Load())
}

func TestPanicInJobDoesNotKillWorker(t *testing.T) {
	p := New("test", 4)
	p.Start(1, true)
	defer p.End()

	counter := NewCounter()
	counter.Reset(2)

	p.PushCounter(func() { panic("boom") }, counter)

	var ran atomic.Bool
	p.PushCounter(func() { ran.Store(true) }, counter)

	counter.Wait()
	require.True(t, ran.Load(), "worker must keep processing jobs after a recovered panic")
}

func TestEndDrainsQueuedJobs(t *testing.T) {
	p := New("test", 16)
	p.Start(2, true)

	var ran atomic.Int32
	for i := 0; i < 8; i++ {
		p.Push(func() { ran.Add(1) })
	}
	p.End()

	assert.Equal(t, int32(8), ran.Load())
}
