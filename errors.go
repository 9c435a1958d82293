package actors

import (
	"errors"
	"fmt"
)

// Standard errors returned by the runtime.
var (
	// ErrActorAlreadyExists is returned by ActorOf when the path is taken.
	ErrActorAlreadyExists = errors.New("actor already exists")

	// ErrActorNotFound is returned when a path resolves to no live actor.
	ErrActorNotFound = errors.New("actor not found")

	// ErrSystemTerminated is returned for operations on a terminated system.
	ErrSystemTerminated = errors.New("actor system is terminated")

	// ErrAskTimeout is the failure of an ask future whose reply never arrived.
	ErrAskTimeout = errors.New("ask timed out")

	// ErrDispatcherShutdown is reported when a task is submitted to a
	// dispatcher that has already shut down. The task is dropped.
	ErrDispatcherShutdown = errors.New("dispatcher is shut down")

	// ErrMailboxFull is returned by bounded mailboxes in reject mode.
	ErrMailboxFull = errors.New("mailbox is full")

	// ErrMailboxClosed is returned when enqueueing into a closed mailbox.
	ErrMailboxClosed = errors.New("mailbox is closed")

	// ErrActorKilled is the failure reason used when an actor receives Kill.
	ErrActorKilled = errors.New("actor was killed")

	// ErrNotCompleted is returned by Future.Result before completion.
	ErrNotCompleted = errors.New("operation not completed")

	// ErrFutureCancelled is the failure of a future resolved by Cancel.
	ErrFutureCancelled = errors.New("future was cancelled")

	// ErrInvalidName is returned for actor names that cannot form a path.
	ErrInvalidName = errors.New("invalid actor name")

	// ErrNoRoutees is recorded when a router has nothing to route to.
	ErrNoRoutees = errors.New("router has no routees")
)

// ActorError wraps an error with the path of the actor it concerns.
type ActorError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ActorError) Error() string {
	return fmt.Sprintf("actor %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ActorError) Unwrap() error {
	return e.Err
}

// EscalatedFailure is the failure handed to a parent's supervisor when a
// child's strategy returned Escalate.
type EscalatedFailure struct {
	ChildPath string
	Err       error
}

// Error implements the error interface.
func (e *EscalatedFailure) Error() string {
	return fmt.Sprintf("failure escalated from %s: %v", e.ChildPath, e.Err)
}

// Unwrap returns the child's original failure.
func (e *EscalatedFailure) Unwrap() error {
	return e.Err
}
