// Package progressbus broadcasts per-job progress and lifecycle events
// to every subscriber of a library. It draws on two teacher patterns:
// memoryPubSub's non-blocking, drop-on-full delivery for high-frequency
// progress ticks, and InMemoryEventBus's concurrent fan-out for
// lifecycle events, strengthened here with bounded retry so a terminal
// event is never silently dropped.
package progressbus

import (
	"sync"
	"time"

	"github.com/meridianfs/core/jobctx"
)

const (
	subscriberBufferSize = 64
	lifecycleRetries     = 5
	lifecycleRetryWait   = 10 * time.Millisecond
)

type subscription struct {
	id   uint64
	ch   chan Event
	done chan struct{}
}

// Bus is a per-library broadcast hub. The zero value is not usable; use
// New.
type Bus struct {
	mu       sync.RWMutex
	subs     map[uint64]*subscription
	nextID   uint64
	closed   bool
	closeOne sync.Once
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[uint64]*subscription)}
}

// Subscribe registers a new listener and returns its event channel and
// an unsubscribe function. The channel is closed once unsubscribe runs.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	sub := &subscription{
		id:   id,
		ch:   make(chan Event, subscriberBufferSize),
		done: make(chan struct{}),
	}
	b.subs[id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.done)
			close(sub.ch)
		}
		b.mu.Unlock()
	}

	return sub.ch, unsubscribe
}

// PublishProgress satisfies jobctx.ProgressSink: a non-blocking, lossy
// broadcast of the job's latest progress snapshot. A slow or stalled
// subscriber misses ticks rather than stalling the job.
func (b *Bus) PublishProgress(jobID string, snap jobctx.Snapshot) {
	b.publish(Event{Type: JobProgress, JobID: jobID, Timestamp: time.Now(), Progress: snap})
}

// PublishLifecycle broadcasts a status-transition or terminal event.
// Unlike progress, these are never silently dropped: each subscriber
// gets bounded retries against a full channel, then a final blocking
// send that only gives up once the subscriber unsubscribes.
func (b *Bus) PublishLifecycle(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.publish(ev)
}

func (b *Bus) publish(ev Event) {
	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	if ev.Type.lifecycle() {
		b.deliverLossless(subs, ev)
		return
	}
	b.deliverLossy(subs, ev)
}

func (b *Bus) deliverLossy(subs []*subscription, ev Event) {
	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
		}
	}
}

func (b *Bus) deliverLossless(subs []*subscription, ev Event) {
	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()

			for attempt := 0; attempt < lifecycleRetries; attempt++ {
				select {
				case s.ch <- ev:
					return
				case <-s.done:
					return
				case <-time.After(lifecycleRetryWait):
				}
			}

			// Last resort: block until delivered or the subscriber leaves.
			select {
			case s.ch <- ev:
			case <-s.done:
			}
		}(s)
	}
	wg.Wait()
}

// Close unsubscribes every listener, closing their channels.
func (b *Bus) Close() {
	b.closeOne.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for id, s := range b.subs {
			close(s.done)
			close(s.ch)
			delete(b.subs, id)
		}
		b.closed = true
	})
}
