package actors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActorErrorWrapping(t *testing.T) {
	err := &ActorError{Path: "/test/user/w", Err: ErrMailboxFull}

	if !errors.Is(err, ErrMailboxFull) {
		t.Error("errors.Is failed to unwrap ActorError")
	}
	if !strings.Contains(err.Error(), "/test/user/w") {
		t.Errorf("Error() = %q, want the path included", err.Error())
	}

	wrapped := fmt.Errorf("spawn: %w", err)
	var actorErr *ActorError
	if !errors.As(wrapped, &actorErr) {
		t.Error("errors.As failed through an extra wrap")
	}
	if actorErr.Path != "/test/user/w" {
		t.Errorf("Path = %s", actorErr.Path)
	}
}

func TestEscalatedFailureWrapping(t *testing.T) {
	cause := errors.New("disk gone")
	err := &EscalatedFailure{ChildPath: "/test/user/p/c", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is failed to reach the cause")
	}
	if !strings.Contains(err.Error(), "/test/user/p/c") {
		t.Errorf("Error() = %q, want the child path included", err.Error())
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrActorAlreadyExists,
		ErrActorNotFound,
		ErrSystemTerminated,
		ErrAskTimeout,
		ErrDispatcherShutdown,
		ErrMailboxFull,
		ErrMailboxClosed,
		ErrActorKilled,
		ErrNotCompleted,
		ErrFutureCancelled,
		ErrInvalidName,
		ErrNoRoutees,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v matches %v", a, b)
			}
		}
	}
}
