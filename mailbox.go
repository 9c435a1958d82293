package actors

import (
	"container/heap"
	"sync"
	"time"
)

// Mailbox is the per-actor message queue. A mailbox is owned by exactly one
// cell and never shared between actors.
//
// Dequeue takes a bound: with a zero or negative timeout it is a
// non-blocking poll, otherwise it waits at most that long. It never blocks
// indefinitely, so dispatcher workers stay available for other actors.
type Mailbox interface {
	// Enqueue adds an envelope. Bounded mailboxes in reject mode return
	// ErrMailboxFull when at capacity; closed mailboxes return
	// ErrMailboxClosed.
	Enqueue(env Envelope) error

	// Dequeue removes the next envelope, waiting at most timeout.
	Dequeue(timeout time.Duration) (Envelope, bool)

	// Len returns the number of queued envelopes.
	Len() int

	// IsEmpty reports whether the mailbox has no queued envelopes.
	IsEmpty() bool

	// Clear removes and returns all queued envelopes. Used on stop so the
	// cell can dead-letter or discard what remains.
	Clear() []Envelope

	// Close marks the mailbox closed and wakes any waiting Dequeue.
	Close()
}

// MailboxKind selects a queuing discipline.
type MailboxKind int

const (
	// MailboxUnbounded is a FIFO queue without a capacity limit.
	MailboxUnbounded MailboxKind = iota
	// MailboxBounded is a FIFO queue with a capacity limit.
	MailboxBounded
	// MailboxPriority orders envelopes by Envelope.Priority, preserving
	// FIFO order within one priority class.
	MailboxPriority
	// MailboxControlAware lets control-priority envelopes jump the queue.
	MailboxControlAware
)

// MailboxConfig configures the mailbox built for an actor.
type MailboxConfig struct {
	Kind MailboxKind

	// Capacity bounds the queue for MailboxBounded. Zero means unbounded.
	Capacity int

	// BlockOnFull makes a bounded Enqueue wait for space instead of
	// returning ErrMailboxFull.
	BlockOnFull bool
}

// DefaultMailboxConfig returns an unbounded FIFO mailbox config.
func DefaultMailboxConfig() MailboxConfig {
	return MailboxConfig{Kind: MailboxUnbounded}
}

// newMailbox builds a mailbox for the given config.
func newMailbox(cfg MailboxConfig) Mailbox {
	switch cfg.Kind {
	case MailboxBounded:
		return newQueueMailbox(cfg.Capacity, cfg.BlockOnFull)
	case MailboxPriority:
		return newPriorityMailbox()
	case MailboxControlAware:
		return newControlMailbox()
	default:
		return newQueueMailbox(0, false)
	}
}

// queueMailbox is a FIFO mailbox, optionally bounded. Blocked enqueuers
// wait on a cond so Close and Clear can wake every one of them at once.
type queueMailbox struct {
	mu          sync.Mutex
	notFull     *sync.Cond
	items       []Envelope
	seq         uint64
	capacity    int
	blockOnFull bool
	closed      bool
	notEmpty    chan struct{}
}

func newQueueMailbox(capacity int, blockOnFull bool) *queueMailbox {
	m := &queueMailbox{
		capacity:    capacity,
		blockOnFull: blockOnFull,
		notEmpty:    make(chan struct{}, 1),
	}
	m.notFull = sync.NewCond(&m.mu)
	return m
}

func (m *queueMailbox) Enqueue(env Envelope) error {
	m.mu.Lock()
	for {
		if m.closed {
			m.mu.Unlock()
			return ErrMailboxClosed
		}
		if m.capacity > 0 && len(m.items) >= m.capacity {
			if !m.blockOnFull {
				m.mu.Unlock()
				return ErrMailboxFull
			}
			m.notFull.Wait()
			continue
		}
		break
	}
	m.seq++
	env.seq = m.seq
	m.items = append(m.items, env)
	m.mu.Unlock()
	signal(m.notEmpty)
	return nil
}

func (m *queueMailbox) Dequeue(timeout time.Duration) (Envelope, bool) {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			env := m.items[0]
			m.items = m.items[1:]
			m.notFull.Signal()
			m.mu.Unlock()
			return env, true
		}
		closed := m.closed
		m.mu.Unlock()

		if closed || timeout <= 0 {
			return Envelope{}, false
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return Envelope{}, false
		}
		timer := time.NewTimer(wait)
		select {
		case <-m.notEmpty:
			timer.Stop()
		case <-timer.C:
			return Envelope{}, false
		}
	}
}

func (m *queueMailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *queueMailbox) IsEmpty() bool {
	return m.Len() == 0
}

func (m *queueMailbox) Clear() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := m.items
	m.items = nil
	m.notFull.Broadcast()
	return remaining
}

func (m *queueMailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.notFull.Broadcast()
	m.mu.Unlock()
	signal(m.notEmpty)
}

// priorityMailbox orders envelopes by priority class; ties keep send order.
type priorityMailbox struct {
	mu       sync.Mutex
	items    envelopeHeap
	seq      uint64
	closed   bool
	notEmpty chan struct{}
}

func newPriorityMailbox() *priorityMailbox {
	return &priorityMailbox{notEmpty: make(chan struct{}, 1)}
}

func (m *priorityMailbox) Enqueue(env Envelope) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMailboxClosed
	}
	m.seq++
	env.seq = m.seq
	heap.Push(&m.items, env)
	m.mu.Unlock()
	signal(m.notEmpty)
	return nil
}

func (m *priorityMailbox) Dequeue(timeout time.Duration) (Envelope, bool) {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		if m.items.Len() > 0 {
			env := heap.Pop(&m.items).(Envelope)
			m.mu.Unlock()
			return env, true
		}
		closed := m.closed
		m.mu.Unlock()

		if closed || timeout <= 0 {
			return Envelope{}, false
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return Envelope{}, false
		}
		timer := time.NewTimer(wait)
		select {
		case <-m.notEmpty:
			timer.Stop()
		case <-timer.C:
			return Envelope{}, false
		}
	}
}

func (m *priorityMailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items.Len()
}

func (m *priorityMailbox) IsEmpty() bool {
	return m.Len() == 0
}

func (m *priorityMailbox) Clear() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := make([]Envelope, 0, m.items.Len())
	for m.items.Len() > 0 {
		remaining = append(remaining, heap.Pop(&m.items).(Envelope))
	}
	return remaining
}

func (m *priorityMailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	signal(m.notEmpty)
}

// envelopeHeap implements heap.Interface: higher priority first, lower
// sequence number first within one priority.
type envelopeHeap []Envelope

func (h envelopeHeap) Len() int { return len(h) }

func (h envelopeHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h envelopeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *envelopeHeap) Push(x any) { *h = append(*h, x.(Envelope)) }

func (h *envelopeHeap) Pop() any {
	old := *h
	n := len(old)
	env := old[n-1]
	*h = old[:n-1]
	return env
}

// controlMailbox keeps two FIFO queues; control envelopes and system
// messages are delivered ahead of regular traffic.
type controlMailbox struct {
	mu       sync.Mutex
	control  []Envelope
	regular  []Envelope
	seq      uint64
	closed   bool
	notEmpty chan struct{}
}

func newControlMailbox() *controlMailbox {
	return &controlMailbox{notEmpty: make(chan struct{}, 1)}
}

func isControl(env Envelope) bool {
	if env.Priority == PriorityControl {
		return true
	}
	_, ok := env.Message.(SystemMessage)
	return ok
}

func (m *controlMailbox) Enqueue(env Envelope) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMailboxClosed
	}
	m.seq++
	env.seq = m.seq
	if isControl(env) {
		m.control = append(m.control, env)
	} else {
		m.regular = append(m.regular, env)
	}
	m.mu.Unlock()
	signal(m.notEmpty)
	return nil
}

func (m *controlMailbox) Dequeue(timeout time.Duration) (Envelope, bool) {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		if len(m.control) > 0 {
			env := m.control[0]
			m.control = m.control[1:]
			m.mu.Unlock()
			return env, true
		}
		if len(m.regular) > 0 {
			env := m.regular[0]
			m.regular = m.regular[1:]
			m.mu.Unlock()
			return env, true
		}
		closed := m.closed
		m.mu.Unlock()

		if closed || timeout <= 0 {
			return Envelope{}, false
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return Envelope{}, false
		}
		timer := time.NewTimer(wait)
		select {
		case <-m.notEmpty:
			timer.Stop()
		case <-timer.C:
			return Envelope{}, false
		}
	}
}

func (m *controlMailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.control) + len(m.regular)
}

func (m *controlMailbox) IsEmpty() bool {
	return m.Len() == 0
}

func (m *controlMailbox) Clear() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := make([]Envelope, 0, len(m.control)+len(m.regular))
	remaining = append(remaining, m.control...)
	remaining = append(remaining, m.regular...)
	m.control = nil
	m.regular = nil
	return remaining
}

func (m *controlMailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	signal(m.notEmpty)
}

// signal performs a non-blocking notification on a capacity-1 channel.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
