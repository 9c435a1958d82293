package actors

import (
	"container/heap"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Cancellable is the handle returned by the scheduling operations.
type Cancellable interface {
	// Cancel marks the task cancelled. It is idempotent and returns false
	// when the task already fired or was already cancelled.
	Cancel() bool

	// IsCancelled reports whether Cancel succeeded at some point.
	IsCancelled() bool
}

// ScheduledTask is one entry in the scheduler's timeline, ordered by its
// execution time. Cancellation is lazy: the heap skips cancelled entries
// when they surface.
type ScheduledTask struct {
	id       string
	at       time.Time
	interval time.Duration
	ref      *ActorRef
	message  any
	sender   *ActorRef
	fn       func()

	cancelled atomic.Bool
	fired     atomic.Bool
}

// Cancel implements Cancellable.
func (t *ScheduledTask) Cancel() bool {
	if t.interval <= 0 && t.fired.Load() {
		return false
	}
	return !t.cancelled.Swap(true)
}

// IsCancelled implements Cancellable.
func (t *ScheduledTask) IsCancelled() bool {
	return t.cancelled.Load()
}

// taskHeap is a min-heap over execution times.
type taskHeap []*ScheduledTask

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)         { *h = append(*h, x.(*ScheduledTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return task
}

// Scheduler delivers messages to refs at computed times. A single
// background goroutine drains a min-heap of tasks; cron-expression jobs
// run on an embedded cron runner.
type Scheduler struct {
	mu    sync.Mutex
	tasks taskHeap
	cron  *cron.Cron

	wake    chan struct{}
	stopCh  chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewScheduler creates and starts a scheduler. Systems own one; standalone
// use is fine too, as long as Stop is called.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// ScheduleOnce delivers message to ref once after delay.
func (s *Scheduler) ScheduleOnce(delay time.Duration, ref *ActorRef, message any) Cancellable {
	return s.schedule(&ScheduledTask{
		at:      time.Now().Add(delay),
		ref:     ref,
		message: message,
	})
}

// ScheduleAt delivers message to ref once at the given time.
func (s *Scheduler) ScheduleAt(at time.Time, ref *ActorRef, message any) Cancellable {
	return s.schedule(&ScheduledTask{at: at, ref: ref, message: message})
}

// ScheduleRepeatedly delivers message to ref after initial delay and then
// every interval until cancelled.
func (s *Scheduler) ScheduleRepeatedly(initial, interval time.Duration, ref *ActorRef, message any) Cancellable {
	if interval <= 0 {
		return s.ScheduleOnce(initial, ref, message)
	}
	return s.schedule(&ScheduledTask{
		at:       time.Now().Add(initial),
		interval: interval,
		ref:      ref,
		message:  message,
	})
}

// ScheduleWithSender is ScheduleOnce with an explicit sender on delivery.
func (s *Scheduler) ScheduleWithSender(delay time.Duration, ref *ActorRef, message any, sender *ActorRef) Cancellable {
	return s.schedule(&ScheduledTask{
		at:      time.Now().Add(delay),
		ref:     ref,
		message: message,
		sender:  sender,
	})
}

// scheduleFunc runs fn once after delay on the scheduler goroutine. Used
// for internal work such as delayed restarts.
func (s *Scheduler) scheduleFunc(delay time.Duration, fn func()) Cancellable {
	return s.schedule(&ScheduledTask{at: time.Now().Add(delay), fn: fn})
}

func (s *Scheduler) schedule(task *ScheduledTask) Cancellable {
	task.id = uuid.NewString()
	if s.stopped.Load() {
		task.cancelled.Store(true)
		return task
	}
	s.mu.Lock()
	heap.Push(&s.tasks, task)
	s.mu.Unlock()
	signal(s.wake)
	return task
}

// ScheduleCron delivers message to ref on a cron schedule (robfig/cron
// syntax). The returned Cancellable removes the job.
func (s *Scheduler) ScheduleCron(spec string, ref *ActorRef, message any) (Cancellable, error) {
	s.mu.Lock()
	if s.cron == nil {
		s.cron = cron.New()
		s.cron.Start()
	}
	c := s.cron
	s.mu.Unlock()

	job := &cronJob{scheduler: s}
	id, err := c.AddFunc(spec, func() {
		if !job.cancelled.Load() {
			ref.Tell(message, nil)
		}
	})
	if err != nil {
		return nil, err
	}
	job.entry = id
	return job, nil
}

// cronJob adapts a cron entry to Cancellable.
type cronJob struct {
	scheduler *Scheduler
	entry     cron.EntryID
	cancelled atomic.Bool
}

func (j *cronJob) Cancel() bool {
	if j.cancelled.Swap(true) {
		return false
	}
	j.scheduler.mu.Lock()
	if j.scheduler.cron != nil {
		j.scheduler.cron.Remove(j.entry)
	}
	j.scheduler.mu.Unlock()
	return true
}

func (j *cronJob) IsCancelled() bool {
	return j.cancelled.Load()
}

// Stop halts the scheduler. Pending tasks never fire. Idempotent.
func (s *Scheduler) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	close(s.stopCh)
	s.wg.Wait()

	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Len returns the number of queued (possibly cancelled) heap tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks.Len()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		// Lazily drop cancelled entries as they surface.
		for s.tasks.Len() > 0 && s.tasks[0].cancelled.Load() {
			heap.Pop(&s.tasks)
		}

		if s.tasks.Len() == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.stopCh:
				return
			}
		}

		next := s.tasks[0]
		delay := time.Until(next.at)
		if delay <= 0 {
			heap.Pop(&s.tasks)
			if next.interval > 0 && !next.cancelled.Load() {
				// Same task re-enters the heap, so one Cancellable covers
				// every recurrence.
				next.at = time.Now().Add(next.interval)
				heap.Push(&s.tasks, next)
			}
			s.mu.Unlock()
			s.fire(next)
			continue
		}
		s.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) fire(task *ScheduledTask) {
	if task.cancelled.Load() {
		return
	}
	task.fired.Store(true)
	if task.fn != nil {
		task.fn()
		return
	}
	task.ref.Tell(task.message, task.sender)
}
