package machine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out")
	}
}

func TestWFIAllAsleepHalts(t *testing.T) {
	g := newTestGlobal(t)
	all := append(append([]*Hart{}, g.Clusters[0].Harts...), g.Clusters[1].Harts...)
	for _, h := range all[1:] {
		h.Exit()
		h.Exit()
	}
	assert.Equal(t, int32(3), g.NumSleep.Load())
	h := all[0]
	h.WaitForInterrupt()
	assert.True(t, h.Halted)
	assert.NoError(t, h.Err)
}

func TestWFIPendingWake(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	waker := g.Clusters[1].Harts[1]
	waker.Store(0x40000008, h.ID, ^uint32(0), 4)
	h.WaitForInterrupt()
	assert.False(t, h.Halted)
	assert.Zero(t, g.NumSleep.Load())
}

func TestWFIWokenByOtherHart(t *testing.T) {
	g := newTestGlobal(t, WithLatency(true))
	h := g.Clusters[0].Harts[0]
	waker := g.Clusters[0].Harts[1]
	waker.Cycle = 100

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.WaitForInterrupt()
	}()
	require.Eventually(t, func() bool { return g.Sleeping[h.Index].Load() }, time.Second, time.Millisecond)
	g.Wake(waker, h.ID)
	waitDone(t, done)

	assert.False(t, h.Halted)
	assert.Equal(t, uint64(101), h.Cycle)
	assert.Zero(t, h.WFI)
	assert.Zero(t, g.NumSleep.Load())
}

func TestWFIWakeAll(t *testing.T) {
	g := newTestGlobal(t)
	var wg sync.WaitGroup
	sleepers := g.Clusters[1].Harts
	for _, h := range sleepers {
		wg.Add(1)
		go func(h *Hart) {
			defer wg.Done()
			h.WaitForInterrupt()
		}(h)
	}
	require.Eventually(t, func() bool { return g.NumSleep.Load() == 2 }, time.Second, time.Millisecond)
	g.Wake(g.Clusters[0].Harts[0], ^uint32(0))
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	waitDone(t, done)
	for _, h := range sleepers {
		assert.False(t, h.Halted)
	}
}

func TestWFIInterruptPending(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	h.IRQ.Mie = 1 << 3
	g.CLINT[h.Index].Store(1)
	h.WaitForInterrupt()
	assert.False(t, h.Halted)
	assert.Zero(t, g.NumSleep.Load())
}

func TestBarrier(t *testing.T) {
	g := newTestGlobal(t, WithLatency(true))
	c := g.Clusters[0]
	c.Harts[0].Cycle = 10
	c.Harts[1].Cycle = 50

	for round := 0; round < 3; round++ {
		var wg sync.WaitGroup
		for _, h := range c.Harts {
			wg.Add(1)
			go func(h *Hart) {
				defer wg.Done()
				h.Load(0x40000058, 4)
			}(h)
		}
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		waitDone(t, done)
	}
	assert.Equal(t, uint64(50), c.Harts[0].Cycle)
	assert.Equal(t, uint64(50), c.Harts[1].Cycle)
}

func TestBarrierSkipsExitedHarts(t *testing.T) {
	g := newTestGlobal(t)
	c := g.Clusters[1]
	c.Harts[1].Exit()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Barrier(c.Harts[0])
	}()
	waitDone(t, done)
}

func TestBarrierEscapesOnError(t *testing.T) {
	g := newTestGlobal(t)
	c := g.Clusters[0]
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Barrier(c.Harts[0])
	}()
	c.Harts[1].Abort(assert.AnError, 0x80000000)
	waitDone(t, done)
	assert.True(t, g.HadError.Load())
}
