package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T) (*Dispatcher, context.CancelFunc) {
	t.Helper()
	d := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d, cancel
}

func TestEffectsRunInOrder(t *testing.T) {
	d, _ := start(t)

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 50; i++ {
		i := i
		d.Enqueue("append", func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	require.NoError(t, d.Flush(context.Background()))

	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)

	pending, executed, _ := d.Stats()
	assert.Zero(t, pending)
	assert.Equal(t, uint64(50), executed)
}

func TestEnqueueFromEffect(t *testing.T) {
	d, _ := start(t)

	var order []string
	d.Enqueue("outer", func(context.Context) {
		order = append(order, "outer")
		d.Enqueue("inner", func(context.Context) { order = append(order, "inner") })
	})
	d.Enqueue("second", func(context.Context) { order = append(order, "second") })

	require.NoError(t, d.Flush(context.Background()))
	assert.Equal(t, []string{"outer", "second", "inner"}, order)
}

func TestPanicDoesNotStopDispatcher(t *testing.T) {
	d, _ := start(t)

	ran := false
	d.Enqueue("boom", func(context.Context) { panic("boom") })
	d.Enqueue("after", func(context.Context) { ran = true })

	require.NoError(t, d.Flush(context.Background()))
	assert.True(t, ran)

	_, _, panics := d.Stats()
	assert.Equal(t, uint64(1), panics)
}

func TestFlushHonoursContext(t *testing.T) {
	d := New() // not running
	d.Enqueue("never", func(context.Context) {})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Flush(ctx), context.DeadlineExceeded)
}

func TestCloseDrainsThenStops(t *testing.T) {
	d := New()
	count := 0
	for i := 0; i < 3; i++ {
		d.Enqueue("count", func(context.Context) { count++ })
	}
	d.Close()
	d.Enqueue("dropped", func(context.Context) { count += 100 })

	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
	assert.Equal(t, 3, count)
}

func TestCancelDropsPending(t *testing.T) {
	d := New()
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	d.Enqueue("block", func(context.Context) {
		close(started)
		<-release
	})
	d.Enqueue("dropped", func(context.Context) { t.Error("effect ran after cancel") })

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	<-started
	cancel()
	close(release)
	<-done

	pending, _, _ := d.Stats()
	assert.Zero(t, pending)
}
