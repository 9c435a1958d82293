package actors

import (
	"sync"
	"time"
)

// TimerScheduler is a per-actor convenience over the system scheduler.
// Timers are keyed: starting a timer under an existing key first cancels
// the old one. All deliveries go to the owning actor.
type TimerScheduler struct {
	owner     *ActorRef
	scheduler *Scheduler

	mu     sync.Mutex
	timers map[string]Cancellable
}

func newTimerScheduler(owner *ActorRef, scheduler *Scheduler) *TimerScheduler {
	return &TimerScheduler{
		owner:     owner,
		scheduler: scheduler,
		timers:    make(map[string]Cancellable),
	}
}

// StartSingleTimer delivers message to the owner once after delay.
func (t *TimerScheduler) StartSingleTimer(key string, message any, delay time.Duration) {
	t.replace(key, t.scheduler.ScheduleOnce(delay, t.owner, message))
}

// StartTimer delivers message to the owner every interval until cancelled.
func (t *TimerScheduler) StartTimer(key string, message any, interval time.Duration) {
	t.replace(key, t.scheduler.ScheduleRepeatedly(interval, interval, t.owner, message))
}

func (t *TimerScheduler) replace(key string, c Cancellable) {
	t.mu.Lock()
	if old, ok := t.timers[key]; ok {
		old.Cancel()
	}
	t.timers[key] = c
	t.mu.Unlock()
}

// Cancel stops the timer with the given key. Returns false if no live
// timer was registered under it.
func (t *TimerScheduler) Cancel(key string) bool {
	t.mu.Lock()
	c, ok := t.timers[key]
	delete(t.timers, key)
	t.mu.Unlock()
	if !ok {
		return false
	}
	return c.Cancel()
}

// CancelAll stops every timer. Call it from PostStop.
func (t *TimerScheduler) CancelAll() {
	t.mu.Lock()
	for key, c := range t.timers {
		c.Cancel()
		delete(t.timers, key)
	}
	t.mu.Unlock()
}

// IsTimerActive reports whether a timer with the key is registered and not
// cancelled.
func (t *TimerScheduler) IsTimerActive(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.timers[key]
	return ok && !c.IsCancelled()
}
