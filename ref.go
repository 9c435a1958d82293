package actors

import "time"

// ActorRef is an immutable, shareable handle to an actor's mailbox, and the
// only way external code addresses an actor. A ref is a path plus a unique
// incarnation ID; liveness is checked by registry lookup, never by holding
// a pointer into the cell, so a ref may safely outlive its actor. Sends to
// a dead ref become dead letters.
type ActorRef struct {
	path   string
	id     string
	system *ActorSystem
}

// Path returns the actor path, e.g. "/my-system/user/worker".
func (r *ActorRef) Path() string { return r.path }

// ID returns the unique incarnation ID. A restarted actor keeps its ID; a
// stopped-and-respawned one gets a new one.
func (r *ActorRef) ID() string { return r.id }

// String returns the path.
func (r *ActorRef) String() string { return r.path }

// Equals reports whether the refs address the same actor incarnation.
func (r *ActorRef) Equals(other *ActorRef) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.path == other.path && r.id == other.id
}

// Tell enqueues a message for the actor at normal priority. sender may be
// nil.
func (r *ActorRef) Tell(message any, sender *ActorRef) {
	r.tell(Envelope{Message: message, Sender: sender, Priority: PriorityNormal})
}

// TellWithPriority enqueues a message with an explicit priority class.
// Only priority and control-aware mailboxes reorder on it.
func (r *ActorRef) TellWithPriority(message any, sender *ActorRef, priority Priority) {
	r.tell(Envelope{Message: message, Sender: sender, Priority: priority})
}

func (r *ActorRef) tell(env Envelope) {
	if r == nil || r.system == nil {
		return
	}
	r.system.deliver(r, env)
}

// Ask sends the message and returns a Future resolved by the first reply,
// or failed with ErrAskTimeout after the given timeout.
func (r *ActorRef) Ask(message any, timeout time.Duration) *Future {
	if r == nil || r.system == nil {
		f := newFuture()
		f.complete(nil, ErrActorNotFound)
		return f
	}
	return r.system.Ask(r, message, timeout)
}

// IsAlive reports whether this incarnation is still registered.
func (r *ActorRef) IsAlive() bool {
	if r == nil || r.system == nil {
		return false
	}
	cell, ok := r.system.cellFor(r)
	return ok && cell.lifecycleState() != stateStopped
}
