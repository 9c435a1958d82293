package actors

import "time"

// Priority classifies envelopes for priority and control-aware mailboxes.
// Within one priority class FIFO order is preserved.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	// PriorityControl is reserved for runtime control messages. Control-aware
	// mailboxes deliver these ahead of everything else.
	PriorityControl
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityControl:
		return "control"
	default:
		return "unknown"
	}
}

// Envelope wraps a message with its sender and priority. Envelopes are
// immutable once enqueued.
type Envelope struct {
	Message  any
	Sender   *ActorRef
	Priority Priority

	// seq breaks ties inside one priority class so that same-priority
	// messages keep their send order.
	seq uint64
}

// SystemMessage marks runtime control messages. The cell handles these
// itself; they never reach the actor's Receive.
type SystemMessage interface {
	systemMessage()
}

// PoisonPill asks an actor to stop. Children are stopped first, the
// remaining mailbox is discarded, and watchers are notified.
type PoisonPill struct{}

// Kill makes the actor fail with ErrActorKilled, which is then routed to
// its supervisor like any other failure.
type Kill struct{}

// Identify requests an ActorIdentity reply carrying the receiver's ref.
type Identify struct {
	ID string
}

// ActorIdentity is the reply to an Identify request.
type ActorIdentity struct {
	ID  string
	Ref *ActorRef
}

// askExpired is delivered to an ask reply actor when the deadline passes.
// It is a regular message, not a SystemMessage: the reply actor handles it
// in its own Receive.
type askExpired struct{}

func (PoisonPill) systemMessage() {}
func (Kill) systemMessage()       {}
func (Identify) systemMessage()   {}

// Terminated is delivered to watchers exactly once when a watched actor
// reaches its terminal state.
type Terminated struct {
	Ref *ActorRef

	// ExistenceConfirmed is false when Watch was called on a ref that was
	// already dead; the notice is still delivered.
	ExistenceConfirmed bool
}

// DeadLetter records a message that could not be delivered to a live actor.
// Dead letters are recorded and broadcast to subscribers, never raised.
type DeadLetter struct {
	Message   any
	Sender    *ActorRef
	Recipient string
	Reason    string
	Timestamp time.Time
}
