package actors

import (
	"sync/atomic"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler(testLogger())
	t.Cleanup(s.Stop)
	return s
}

func TestSchedulerRunsFuncAfterDelay(t *testing.T) {
	s := newTestScheduler(t)

	fired := make(chan time.Time, 1)
	start := time.Now()
	s.scheduleFunc(50*time.Millisecond, func() { fired <- time.Now() })

	select {
	case at := <-fired:
		if elapsed := at.Sub(start); elapsed < 40*time.Millisecond {
			t.Errorf("fired after %v, want at least ~50ms", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}
}

func TestSchedulerCancelPreventsFiring(t *testing.T) {
	s := newTestScheduler(t)

	var fired atomic.Bool
	c := s.scheduleFunc(50*time.Millisecond, func() { fired.Store(true) })
	if !c.Cancel() {
		t.Fatal("Cancel() = false on a pending task")
	}
	// Cancel is idempotent and keeps returning false afterwards.
	if c.Cancel() {
		t.Error("second Cancel() = true, want false")
	}

	time.Sleep(120 * time.Millisecond)
	if fired.Load() {
		t.Error("cancelled task fired anyway")
	}
}

func TestSchedulerRepeating(t *testing.T) {
	s := newTestScheduler(t)

	ticks := make(chan struct{}, 16)
	count := atomic.Int32{}
	c := s.schedule(&ScheduledTask{
		at:       time.Now().Add(20 * time.Millisecond),
		interval: 20 * time.Millisecond,
		fn: func() {
			count.Add(1)
			select {
			case ticks <- struct{}{}:
			default:
			}
		},
	})
	defer c.Cancel()

	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d ticks before timeout, want 3", i)
		}
	}

	c.Cancel()
	settled := count.Load()
	time.Sleep(100 * time.Millisecond)
	if after := count.Load(); after > settled+1 {
		t.Errorf("task kept firing after Cancel: %d -> %d", settled, after)
	}
}

func TestSchedulerOneShotCancelAfterFire(t *testing.T) {
	s := newTestScheduler(t)

	fired := make(chan struct{})
	c := s.scheduleFunc(10*time.Millisecond, func() { close(fired) })
	<-fired
	// Draining the heap entry is lazy, so give the loop a beat.
	time.Sleep(20 * time.Millisecond)
	if c.Cancel() {
		t.Error("Cancel() = true after a one-shot already fired")
	}
}

func TestSchedulerDeliversToActor(t *testing.T) {
	system := newTestSystem(t)

	got := make(chan any, 1)
	ref, err := system.ActorOf(NewProps(func() Actor { return &failOn{got: got} }), "target")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	system.Scheduler().ScheduleOnce(20*time.Millisecond, ref, "scheduled")
	select {
	case msg := <-got:
		if msg != "scheduled" {
			t.Errorf("got %v, want scheduled", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled message never arrived")
	}
}

func TestSchedulerScheduleAt(t *testing.T) {
	system := newTestSystem(t)

	got := make(chan any, 1)
	ref, err := system.ActorOf(NewProps(func() Actor { return &failOn{got: got} }), "target")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	system.Scheduler().ScheduleAt(time.Now().Add(20*time.Millisecond), ref, "at")
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("ScheduleAt message never arrived")
	}
}

func TestSchedulerCronRejectsBadSpec(t *testing.T) {
	s := newTestScheduler(t)
	if _, err := s.ScheduleCron("not a cron spec", nil, "x"); err == nil {
		t.Fatal("ScheduleCron accepted an invalid spec")
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler(testLogger())
	s.scheduleFunc(time.Hour, func() {})
	s.Stop()
	s.Stop()
}

func TestSchedulerLen(t *testing.T) {
	s := newTestScheduler(t)
	if got := s.Len(); got != 0 {
		t.Fatalf("Len() = %d on fresh scheduler", got)
	}
	s.scheduleFunc(time.Hour, func() {})
	s.scheduleFunc(time.Hour, func() {})
	if got := s.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}
