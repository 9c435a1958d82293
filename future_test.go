package actors

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFutureResultBeforeCompletion(t *testing.T) {
	f := newFuture()
	if f.Done() {
		t.Error("Done() = true on a fresh future")
	}
	if _, err := f.Result(); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("Result() = %v, want ErrNotCompleted", err)
	}
}

func TestFutureCompleteOnce(t *testing.T) {
	f := newFuture()
	f.complete("first", nil)
	f.complete("second", nil)

	value, err := f.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if value != "first" {
		t.Errorf("Result = %v; completion must be first-wins", value)
	}
}

func TestFutureAwait(t *testing.T) {
	f := newFuture()
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.complete(42, nil)
	}()

	value, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if value != 42 {
		t.Errorf("Await = %v, want 42", value)
	}
	if !f.Done() {
		t.Error("Done() = false after completion")
	}
}

func TestFutureAwaitContextCancelled(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await = %v, want context.DeadlineExceeded", err)
	}
}

func TestFutureCancel(t *testing.T) {
	f := newFuture()
	cleaned := make(chan struct{})
	f.setCleanup(func() { close(cleaned) })

	if !f.Cancel() {
		t.Fatal("Cancel() = false on a pending future")
	}
	if f.Cancel() {
		t.Error("Cancel() = true on an already cancelled future")
	}
	if _, err := f.Result(); !errors.Is(err, ErrFutureCancelled) {
		t.Errorf("Result() = %v, want ErrFutureCancelled", err)
	}
	select {
	case <-cleaned:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not run on Cancel")
	}

	// A late reply must not overwrite the cancellation.
	f.complete("late", nil)
	if _, err := f.Result(); !errors.Is(err, ErrFutureCancelled) {
		t.Errorf("Result() after late reply = %v, want ErrFutureCancelled", err)
	}
}

func TestFutureCancelAfterCompletion(t *testing.T) {
	f := newFuture()
	f.setCleanup(func() { t.Error("cleanup ran for a completed future") })
	f.complete("value", nil)

	if f.Cancel() {
		t.Error("Cancel() = true on a completed future")
	}
	if value, err := f.Result(); err != nil || value != "value" {
		t.Errorf("Result() = %v, %v; completion must survive Cancel", value, err)
	}
}

func TestFutureError(t *testing.T) {
	f := newFuture()
	boom := errors.New("boom")
	f.complete(nil, boom)

	if _, err := f.Await(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Await error = %v, want boom", err)
	}
}
