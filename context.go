package actors

import "log/slog"

// Context carries everything an actor may touch while processing one
// message. It is only valid for the duration of the hook or Receive call it
// was passed to.
type Context struct {
	system  *ActorSystem
	cell    *actorCell
	message any
	sender  *ActorRef
}

// System returns the owning actor system.
func (c *Context) System() *ActorSystem { return c.system }

// Self returns this actor's ref.
func (c *Context) Self() *ActorRef { return c.cell.ref }

// Sender returns the sender of the current message, nil when anonymous.
func (c *Context) Sender() *ActorRef { return c.sender }

// Message returns the message being processed. During lifecycle hooks it is
// the offending message for restarts, nil otherwise.
func (c *Context) Message() any { return c.message }

// Parent returns the parent's ref, nil for top-level actors.
func (c *Context) Parent() *ActorRef {
	if c.cell.parent == nil {
		return nil
	}
	return c.cell.parent.ref
}

// Children returns refs of this actor's live children.
func (c *Context) Children() []*ActorRef {
	return c.cell.childRefs()
}

// Logger returns the system logger scoped to this actor's path.
func (c *Context) Logger() *slog.Logger {
	return c.system.logger.With("actor", c.cell.path)
}

// Spawn creates a child actor supervised by this one.
func (c *Context) Spawn(props Props, name string) (*ActorRef, error) {
	return c.system.spawn(c.cell, props, name)
}

// Stop asks the given actor to stop. Stopping self is allowed and takes
// effect once the current message finishes.
func (c *Context) Stop(ref *ActorRef) {
	c.system.Stop(ref)
}

// Respond sends a reply to the current sender, if any.
func (c *Context) Respond(message any) {
	if c.sender != nil {
		c.sender.Tell(message, c.cell.ref)
	}
}

// Forward re-sends the current message to another actor, preserving the
// original sender.
func (c *Context) Forward(target *ActorRef) {
	if target != nil {
		target.Tell(c.message, c.sender)
	}
}

// Watch registers this actor to receive a Terminated notice when target
// stops. Watching an already-dead ref delivers the notice immediately with
// ExistenceConfirmed false.
func (c *Context) Watch(target *ActorRef) {
	c.system.watch(c.cell.ref, target)
}

// Unwatch removes a previously registered watch.
func (c *Context) Unwatch(target *ActorRef) {
	c.system.unwatch(c.cell.ref, target)
}

// Timers returns this actor's keyed timer scheduler. Timers deliver to self
// and should be cancelled in PostStop via CancelAll.
func (c *Context) Timers() *TimerScheduler {
	return c.cell.timerScheduler()
}
