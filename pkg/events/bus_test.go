package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(8)

	var mu sync.Mutex
	got := map[string][]string{}
	for _, name := range []string{"audit", "convert"} {
		bus.Subscribe(name, func(_ context.Context, e VersionCreated) {
			mu.Lock()
			defer mu.Unlock()
			got[name] = append(got[name], e.VersionID)
		})
	}

	bus.Publish(VersionCreated{VersionID: "v1"})
	bus.Publish(VersionCreated{VersionID: "v2"})
	require.NoError(t, bus.Close(context.Background()))

	assert.Equal(t, []string{"v1", "v2"}, got["audit"])
	assert.Equal(t, []string{"v1", "v2"}, got["convert"])
}

func TestFullQueueDropsWithoutBlocking(t *testing.T) {
	bus := NewBus(1)
	release := make(chan struct{})
	var handled []string
	var mu sync.Mutex

	bus.Subscribe("slow", func(_ context.Context, e VersionCreated) {
		<-release
		mu.Lock()
		handled = append(handled, e.VersionID)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		for _, id := range []string{"v1", "v2", "v3", "v4"} {
			bus.Publish(VersionCreated{VersionID: id})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	close(release)
	require.NoError(t, bus.Close(context.Background()))
	assert.Less(t, len(handled), 4)
	assert.NotEmpty(t, handled)
}

func TestPanickingHandlerDoesNotStopWorker(t *testing.T) {
	bus := NewBus(4)
	var count int
	bus.Subscribe("flaky", func(_ context.Context, e VersionCreated) {
		count++
		if e.VersionID == "boom" {
			panic("subscriber bug")
		}
	})

	bus.Publish(VersionCreated{VersionID: "boom"})
	bus.Publish(VersionCreated{VersionID: "ok"})
	require.NoError(t, bus.Close(context.Background()))
	assert.Equal(t, 2, count)
}

func TestCloseIsIdempotentAndStopsPublishing(t *testing.T) {
	bus := NewBus(0)
	require.NoError(t, bus.Close(context.Background()))
	require.NoError(t, bus.Close(context.Background()))

	bus.Publish(VersionCreated{VersionID: "late"})
	bus.Subscribe("late", func(context.Context, VersionCreated) {})
}

func TestCloseTimesOut(t *testing.T) {
	bus := NewBus(1)
	block := make(chan struct{})
	defer close(block)
	bus.Subscribe("stuck", func(ctx context.Context, _ VersionCreated) {
		select {
		case <-block:
		case <-ctx.Done():
		}
	})
	bus.Publish(VersionCreated{VersionID: "v1"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Close(ctx), context.DeadlineExceeded)
}
