package progressbus

import (
	"testing"
	"time"

	"github.com/meridianfs/core/jobctx"
	"github.com/stretchr/testify/require"
)

func TestPublishProgressDeliversToSubscriber(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.PublishProgress("job-1", jobctx.Count(1, 10))

	select {
	case ev := <-ch:
		require.Equal(t, JobProgress, ev.Type)
		require.Equal(t, "job-1", ev.JobID)
	case <-time.After(time.Second):
		t.Fatal("expected progress event")
	}
}

func TestPublishProgressDropsWhenSubscriberFull(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBufferSize+10; i++ {
		bus.PublishProgress("job-1", jobctx.Count(int64(i), 100))
	}

	// Draining should yield at most subscriberBufferSize events; excess
	// progress ticks were dropped rather than blocking the publisher.
	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			require.LessOrEqual(t, drained, subscriberBufferSize)
			return
		}
	}
}

func TestPublishLifecycleNeverDropsTerminalEvent(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	// Fill the buffer with progress events first.
	for i := 0; i < subscriberBufferSize; i++ {
		bus.PublishProgress("job-1", jobctx.Count(int64(i), 100))
	}

	done := make(chan struct{})
	go func() {
		bus.PublishLifecycle(Event{Type: JobCompleted, JobID: "job-1", Summary: "done"})
		close(done)
	}()

	// Drain concurrently so the lossless delivery can make progress.
	var sawCompleted bool
	timeout := time.After(2 * time.Second)
drain:
	for {
		select {
		case ev := <-ch:
			if ev.Type == JobCompleted {
				sawCompleted = true
				break drain
			}
		case <-timeout:
			break drain
		}
	}

	require.True(t, sawCompleted)
	<-done
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	_, ok := <-ch
	require.False(t, ok)
}

func TestMultipleSubscribersEachReceiveLifecycleEvent(t *testing.T) {
	bus := New()
	ch1, unsub1 := bus.Subscribe()
	defer unsub1()
	ch2, unsub2 := bus.Subscribe()
	defer unsub2()

	bus.PublishLifecycle(Event{Type: JobQueued, JobID: "job-1"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			require.Equal(t, JobQueued, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("expected queued event on every subscriber")
		}
	}
}
