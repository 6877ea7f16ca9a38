// Package events fans job state and progress changes out to observers. The
// scheduler publishes and must never be stalled by a slow observer, so each
// subscriber gets its own bounded buffer that sheds intermediate progress
// events under pressure. Terminal events are never shed.
package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/anilpdv/video-downloader/internal/model"
)

// DefaultBufferSize is the per-subscriber event buffer capacity.
const DefaultBufferSize = 64

// Bridge distributes job events to any number of subscribers.
type Bridge struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	bufSize int
}

// NewBridge creates an event bridge with the default per-subscriber buffer.
func NewBridge() *Bridge {
	return &Bridge{
		subs:    make(map[*Subscription]struct{}),
		bufSize: DefaultBufferSize,
	}
}

// Subscribe registers an observer. jobID filters to a single job;
// uuid.Nil subscribes to every job. The caller must Close the subscription.
func (b *Bridge) Subscribe(jobID uuid.UUID) *Subscription {
	s := &Subscription{
		bridge: b,
		jobID:  jobID,
		max:    b.bufSize,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan *model.JobEvent),
	}
	go s.pump()

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	return s
}

// Publish delivers an event to all matching subscribers without blocking.
func (b *Bridge) Publish(ev *model.JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs {
		if s.jobID != uuid.Nil && ev.Job != nil && s.jobID != ev.Job.ID {
			continue
		}
		s.push(ev)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bridge) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bridge) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription is one observer's view of the event stream.
type Subscription struct {
	bridge *Bridge
	jobID  uuid.UUID
	max    int

	mu    sync.Mutex
	queue []*model.JobEvent

	notify    chan struct{}
	done      chan struct{}
	out       chan *model.JobEvent
	closeOnce sync.Once
}

// Events returns the subscriber's event channel. It closes after Close.
func (s *Subscription) Events() <-chan *model.JobEvent {
	return s.out
}

// Close detaches the subscription from the bridge.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.bridge.remove(s)
		close(s.done)
	})
}

// push enqueues an event, shedding the oldest droppable entry when the
// buffer is full. A missed percentage update is acceptable; a missed
// terminal notification is not.
func (s *Subscription) push(ev *model.JobEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) >= s.max {
		dropped := false
		for i, queued := range s.queue {
			if !queued.Terminal() {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			// Buffer is all terminal events; only a non-terminal
			// newcomer may be shed.
			if !ev.Terminal() {
				return
			}
		}
	}

	s.queue = append(s.queue, ev)

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}
	}
}
