package actors

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Recorder persists lifecycle events and dead letters. The journal
// subpackage provides a SQLite-backed implementation.
type Recorder interface {
	RecordEvent(Event) error
	RecordDeadLetter(DeadLetter) error
	Close() error
}

// EventType classifies lifecycle events published on the system stream.
type EventType string

const (
	EventActorStarted   EventType = "actor_started"
	EventActorStopped   EventType = "actor_stopped"
	EventActorRestarted EventType = "actor_restarted"
	EventDeadLetter     EventType = "dead_letter"
)

// Event is a lifecycle notification for one actor.
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
	Reason    string
}

// Subscription detaches a stream subscriber when cancelled.
type Subscription struct {
	cancel func()
	once   sync.Once
}

// Cancel detaches the subscriber. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// eventStream fans lifecycle events out to subscribers. Callbacks run on
// their own goroutines so a slow subscriber never blocks actor processing.
type eventStream struct {
	mu          sync.RWMutex
	subscribers map[string]func(Event)
	recorder    Recorder
	logger      *slog.Logger
}

func newEventStream(logger *slog.Logger) *eventStream {
	return &eventStream{
		subscribers: make(map[string]func(Event)),
		logger:      logger,
	}
}

func (s *eventStream) subscribe(fn func(Event)) *Subscription {
	id := uuid.NewString()
	s.mu.Lock()
	s.subscribers[id] = fn
	s.mu.Unlock()
	return &Subscription{cancel: func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}}
}

func (s *eventStream) publish(e Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	recorder := s.recorder
	s.mu.RUnlock()

	for _, fn := range fns {
		go fn(e)
	}
	if recorder != nil {
		if err := recorder.RecordEvent(e); err != nil {
			s.logger.Warn("event journal write failed", "event", e.Type, "error", err)
		}
	}
}

// deadLetterOffice keeps a bounded ring of undeliverable messages, notifies
// subscribers, and logs with a rate limit so a misbehaving sender cannot
// flood the log.
type deadLetterOffice struct {
	mu          sync.Mutex
	ring        []DeadLetter
	next        int
	total       uint64
	capacity    int
	subscribers map[string]func(DeadLetter)
	limiter     *rate.Limiter
	recorder    Recorder
	events      *eventStream
	logger      *slog.Logger
}

func newDeadLetterOffice(capacity int, logsPerSecond float64, logger *slog.Logger) *deadLetterOffice {
	if capacity <= 0 {
		capacity = 1000
	}
	if logsPerSecond <= 0 {
		logsPerSecond = 1
	}
	return &deadLetterOffice{
		ring:        make([]DeadLetter, 0, capacity),
		capacity:    capacity,
		subscribers: make(map[string]func(DeadLetter)),
		limiter:     rate.NewLimiter(rate.Limit(logsPerSecond), 10),
		logger:      logger,
	}
}

func (o *deadLetterOffice) record(dl DeadLetter) {
	o.mu.Lock()
	if len(o.ring) < o.capacity {
		o.ring = append(o.ring, dl)
	} else {
		o.ring[o.next] = dl
		o.next = (o.next + 1) % o.capacity
	}
	o.total++
	fns := make([]func(DeadLetter), 0, len(o.subscribers))
	for _, fn := range o.subscribers {
		fns = append(fns, fn)
	}
	recorder := o.recorder
	o.mu.Unlock()

	if o.limiter.Allow() {
		o.logger.Warn("dead letter",
			"recipient", dl.Recipient, "reason", dl.Reason, "message", dl.Message)
	}
	for _, fn := range fns {
		go fn(dl)
	}
	if o.events != nil {
		o.events.publish(Event{Type: EventDeadLetter, Path: dl.Recipient, Timestamp: dl.Timestamp, Reason: dl.Reason})
	}
	if recorder != nil {
		if err := recorder.RecordDeadLetter(dl); err != nil {
			o.logger.Warn("dead letter journal write failed", "error", err)
		}
	}
}

func (o *deadLetterOffice) subscribe(fn func(DeadLetter)) *Subscription {
	id := uuid.NewString()
	o.mu.Lock()
	o.subscribers[id] = fn
	o.mu.Unlock()
	return &Subscription{cancel: func() {
		o.mu.Lock()
		delete(o.subscribers, id)
		o.mu.Unlock()
	}}
}

// recent returns the retained dead letters, oldest first.
func (o *deadLetterOffice) recent() []DeadLetter {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]DeadLetter, 0, len(o.ring))
	out = append(out, o.ring[o.next:]...)
	out = append(out, o.ring[:o.next]...)
	return out
}

func (o *deadLetterOffice) count() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.total
}
