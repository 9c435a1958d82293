package actors

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Lifecycle states form a strict machine:
// created -> starting -> running -> {restarting -> running} | stopping -> stopped.
// stopped is terminal.
const (
	stateCreated int32 = iota
	stateStarting
	stateRunning
	stateRestarting
	stateStopping
	stateStopped
)

func stateName(s int32) string {
	switch s {
	case stateCreated:
		return "created"
	case stateStarting:
		return "starting"
	case stateRunning:
		return "running"
	case stateRestarting:
		return "restarting"
	case stateStopping:
		return "stopping"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Internal control messages routed between cells so that restarts and
// escalations always run on the target actor's own processing path.
type doRestart struct {
	reason error
}

type childFailed struct {
	failure ChildFailure
}

func (doRestart) systemMessage()   {}
func (childFailed) systemMessage() {}

// ActorStats is a snapshot of one cell's counters.
type ActorStats struct {
	Path        string
	State       string
	MailboxSize int
	Processed   uint64
	Failures    uint64
	Restarts    uint64
}

// actorCell is the per-actor runtime container. It exclusively owns the
// actor instance, its mailbox, lifecycle state and watcher set, and
// schedules its own mailbox draining on the assigned dispatcher.
type actorCell struct {
	path   string
	ref    *ActorRef
	props  Props
	system *ActorSystem
	parent *actorCell

	mailbox        Mailbox
	dispatcher     Dispatcher
	ownsDispatcher bool

	actorMu sync.Mutex
	actor   Actor

	childrenMu sync.RWMutex
	children   map[string]*actorCell

	watchersMu sync.Mutex
	watchers   map[string]*ActorRef
	notified   bool

	timersMu sync.Mutex
	timers   *TimerScheduler

	fallback SupervisorStrategy

	state     atomic.Int32
	scheduled atomic.Bool
	stopDone  chan struct{}

	processed atomic.Uint64
	failures  atomic.Uint64
	restarts  atomic.Uint64
}

func newActorCell(system *ActorSystem, parent *actorCell, props Props, ref *ActorRef, mailbox Mailbox, dispatcher Dispatcher, ownsDispatcher bool) *actorCell {
	c := &actorCell{
		path:           ref.path,
		ref:            ref,
		props:          props,
		system:         system,
		parent:         parent,
		mailbox:        mailbox,
		dispatcher:     dispatcher,
		ownsDispatcher: ownsDispatcher,
		actor:          props.factory(),
		children:       make(map[string]*actorCell),
		watchers:       make(map[string]*ActorRef),
		fallback:       defaultSupervisorStrategy(),
		stopDone:       make(chan struct{}),
	}
	c.state.Store(stateCreated)
	return c
}

func (c *actorCell) lifecycleState() int32 {
	return c.state.Load()
}

// start runs PreStart and opens the cell for processing. A PreStart
// failure is routed into the regular failure path before any message is
// accepted.
func (c *actorCell) start() {
	c.state.Store(stateStarting)
	ctx := &Context{system: c.system, cell: c}
	err := c.invokeGuarded(func(a Actor) error { return a.PreStart(ctx) })
	if err != nil {
		c.failures.Add(1)
		c.handleFailure(err, Envelope{})
		// Resume leaves a starting cell in place; promote it.
		c.state.CompareAndSwap(stateStarting, stateRunning)
	} else {
		c.state.Store(stateRunning)
	}
	if c.state.Load() == stateRunning {
		c.system.events.publish(Event{Type: EventActorStarted, Path: c.path, Timestamp: time.Now()})
		if !c.mailbox.IsEmpty() {
			c.schedule()
		}
	}
}

// sendEnvelope enqueues and triggers draining. Dead or overflowing targets
// turn the message into a dead letter.
func (c *actorCell) sendEnvelope(env Envelope) {
	st := c.state.Load()
	if st == stateStopping || st == stateStopped {
		c.system.deadLetters.record(DeadLetter{
			Message:   env.Message,
			Sender:    env.Sender,
			Recipient: c.path,
			Reason:    "actor stopped",
			Timestamp: time.Now(),
		})
		return
	}
	if err := c.mailbox.Enqueue(env); err != nil {
		c.system.deadLetters.record(DeadLetter{
			Message:   env.Message,
			Sender:    env.Sender,
			Recipient: c.path,
			Reason:    err.Error(),
			Timestamp: time.Now(),
		})
		return
	}
	c.schedule()
}

// schedule submits one drain pass unless one is already in flight. The
// flag gate is what guarantees at most one concurrent processing task per
// actor regardless of how many dispatcher workers exist.
func (c *actorCell) schedule() {
	if c.scheduled.CompareAndSwap(false, true) {
		c.dispatcher.Execute(c.processMailbox)
	}
}

// processMailbox drains up to the configured throughput, then yields the
// worker and re-submits itself if messages remain.
func (c *actorCell) processMailbox() {
	limit := c.props.dispatcher.throughput()
	for i := 0; i < limit; i++ {
		if c.state.Load() != stateRunning {
			break
		}
		env, ok := c.mailbox.Dequeue(0)
		if !ok {
			break
		}
		c.invoke(env)
	}
	c.scheduled.Store(false)
	if c.state.Load() == stateRunning && !c.mailbox.IsEmpty() {
		c.schedule()
	}
}

// invoke handles one envelope. Control messages are handled by the cell
// itself; everything else goes to the actor inside the failure boundary.
func (c *actorCell) invoke(env Envelope) {
	switch msg := env.Message.(type) {
	case PoisonPill:
		c.stop()
	case Kill:
		c.failures.Add(1)
		c.handleFailure(ErrActorKilled, env)
	case Identify:
		if env.Sender != nil {
			env.Sender.Tell(ActorIdentity{ID: msg.ID, Ref: c.ref}, c.ref)
		}
	case doRestart:
		c.beginRestart(msg.reason, nil, 0)
	case childFailed:
		c.handleChildFailure(msg.failure)
	default:
		ctx := &Context{system: c.system, cell: c, message: env.Message, sender: env.Sender}
		if err := c.invokeGuarded(func(a Actor) error { return a.Receive(ctx) }); err != nil {
			c.failures.Add(1)
			c.handleFailure(err, env)
			return
		}
		c.processed.Add(1)
	}
}

// invokeGuarded runs an actor callback, converting panics into errors so
// nothing ever escapes to a dispatcher worker.
func (c *actorCell) invokeGuarded(fn func(Actor) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("actor panic: %v", r)
		}
	}()
	c.actorMu.Lock()
	actor := c.actor
	c.actorMu.Unlock()
	// No cell lock is held while user code runs.
	return fn(actor)
}

// strategy resolves the supervisor for this cell: its own Props first, then
// the parent's, then the per-cell default.
func (c *actorCell) strategy() SupervisorStrategy {
	if s := c.props.supervisor; s != nil {
		return s
	}
	if c.parent != nil {
		if s := c.parent.props.supervisor; s != nil {
			return s
		}
	}
	return c.fallback
}

func (c *actorCell) handleFailure(reason error, env Envelope) {
	strategy := c.strategy()
	failure := ChildFailure{Ref: c.ref, Err: reason, Message: env.Message}
	directive := strategy.HandleFailure(failure)
	c.system.logger.Debug("actor failure",
		"actor", c.path, "error", reason, "directive", directive.String())
	c.applyDirective(strategy, directive, reason, env)
}

// handleChildFailure runs a parent's supervision decision for an escalated
// child failure, on the parent's own processing path.
func (c *actorCell) handleChildFailure(failure ChildFailure) {
	escalated := &EscalatedFailure{ChildPath: failure.Ref.Path(), Err: failure.Err}
	c.failures.Add(1)
	c.handleFailure(escalated, Envelope{Message: failure.Message})
}

func (c *actorCell) applyDirective(strategy SupervisorStrategy, directive Directive, reason error, env Envelope) {
	switch directive {
	case DirectiveResume:
		// Keep state, drop the offending message.

	case DirectiveRestart:
		var delay time.Duration
		if d, ok := strategy.(restartDelayer); ok {
			delay = d.NextDelay()
		}
		c.beginRestart(reason, env.Message, delay)
		if strategy.Scope() == ScopeAll && c.parent != nil {
			for _, sibling := range c.parent.childCells() {
				if sibling != c {
					sibling.ref.TellWithPriority(doRestart{reason: reason}, nil, PriorityControl)
				}
			}
		}

	case DirectiveStop:
		if strategy.Scope() == ScopeAll && c.parent != nil {
			for _, sibling := range c.parent.childCells() {
				if sibling != c {
					sibling.ref.TellWithPriority(PoisonPill{}, nil, PriorityControl)
				}
			}
		}
		c.stop()

	case DirectiveEscalate:
		parent := c.parent
		failure := ChildFailure{Ref: c.ref, Err: reason, Message: env.Message}
		c.stop()
		if parent != nil {
			parent.ref.TellWithPriority(childFailed{failure: failure}, nil, PriorityControl)
		}
	}
}

// beginRestart moves the cell into restarting; the swap itself may be
// delayed through the scheduler for backoff strategies. Mailbox and
// watcher set survive a restart.
func (c *actorCell) beginRestart(reason error, offending any, delay time.Duration) {
	if !c.state.CompareAndSwap(stateRunning, stateRestarting) &&
		!c.state.CompareAndSwap(stateStarting, stateRestarting) {
		return
	}
	if delay > 0 {
		c.system.scheduler.scheduleFunc(delay, func() { c.completeRestart(reason, offending) })
		return
	}
	c.completeRestart(reason, offending)
}

// completeRestart replaces the actor instance with a fresh one from the
// same Props. It only ever runs with no drain in flight: either inline on
// the cell's own processing path, or from the scheduler after the
// restarting state has stopped all draining.
func (c *actorCell) completeRestart(reason error, offending any) {
	if c.state.Load() != stateRestarting {
		return
	}
	c.restarts.Add(1)

	ctx := &Context{system: c.system, cell: c, message: offending}
	if err := c.invokeGuarded(func(a Actor) error { return a.PreRestart(ctx, reason) }); err != nil {
		c.system.logger.Warn("pre-restart hook failed", "actor", c.path, "error", err)
	}

	fresh := c.props.factory()
	c.actorMu.Lock()
	c.actor = fresh
	c.actorMu.Unlock()

	err := c.invokeGuarded(func(a Actor) error { return a.PostRestart(ctx) })
	c.state.Store(stateRunning)
	c.system.events.publish(Event{Type: EventActorRestarted, Path: c.path, Timestamp: time.Now(), Reason: reason.Error()})

	if err != nil {
		// Route the hook failure back through supervision; the restart
		// window bounds the loop.
		c.failures.Add(1)
		c.handleFailure(err, Envelope{})
		return
	}
	if !c.mailbox.IsEmpty() {
		c.schedule()
	}
}

// stop runs the termination sequence: children first (depth-first), then
// the mailbox is discarded, PostStop runs, watchers are notified exactly
// once and the cell is removed from the system.
func (c *actorCell) stop() {
	for {
		st := c.state.Load()
		if st == stateStopping || st == stateStopped {
			return
		}
		if c.state.CompareAndSwap(st, stateStopping) {
			break
		}
	}

	children := c.childCells()
	for _, child := range children {
		child.ref.TellWithPriority(PoisonPill{}, nil, PriorityControl)
	}
	for _, child := range children {
		child.awaitStop(c.system.config.StopTimeout)
	}

	c.timersMu.Lock()
	if c.timers != nil {
		c.timers.CancelAll()
	}
	c.timersMu.Unlock()

	remaining := c.mailbox.Clear()
	c.mailbox.Close()
	now := time.Now()
	for _, env := range remaining {
		if _, ok := env.Message.(SystemMessage); ok {
			continue
		}
		c.system.deadLetters.record(DeadLetter{
			Message:   env.Message,
			Sender:    env.Sender,
			Recipient: c.path,
			Reason:    "actor stopping",
			Timestamp: now,
		})
	}

	ctx := &Context{system: c.system, cell: c}
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.system.logger.Warn("post-stop hook panicked", "actor", c.path, "error", r)
			}
		}()
		c.actorMu.Lock()
		actor := c.actor
		c.actorMu.Unlock()
		actor.PostStop(ctx)
	}()

	c.state.Store(stateStopped)
	close(c.stopDone)
	c.notifyWatchers()

	c.system.removeCell(c)
	if c.parent != nil {
		c.parent.removeChild(c)
	}
	if c.ownsDispatcher {
		// This runs on the owned dispatcher's worker, so it must not wait
		// for itself to drain.
		c.dispatcher.Shutdown(false)
	}
	c.system.events.publish(Event{Type: EventActorStopped, Path: c.path, Timestamp: time.Now()})
}

// awaitStop waits until the cell reaches its terminal state, bounded.
func (c *actorCell) awaitStop(timeout time.Duration) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-c.stopDone:
	case <-time.After(timeout):
		c.system.logger.Warn("timeout waiting for child to stop", "actor", c.path)
	}
}

// addWatcher registers a termination watcher. Watching a cell that has
// already notified delivers the notice immediately, keeping the
// exactly-once guarantee.
func (c *actorCell) addWatcher(watcher *ActorRef) {
	c.watchersMu.Lock()
	if c.notified {
		c.watchersMu.Unlock()
		watcher.Tell(Terminated{Ref: c.ref, ExistenceConfirmed: true}, nil)
		return
	}
	c.watchers[watcher.path+"#"+watcher.id] = watcher
	c.watchersMu.Unlock()
}

func (c *actorCell) removeWatcher(watcher *ActorRef) {
	c.watchersMu.Lock()
	delete(c.watchers, watcher.path+"#"+watcher.id)
	c.watchersMu.Unlock()
}

func (c *actorCell) notifyWatchers() {
	c.watchersMu.Lock()
	if c.notified {
		c.watchersMu.Unlock()
		return
	}
	c.notified = true
	watchers := make([]*ActorRef, 0, len(c.watchers))
	for _, w := range c.watchers {
		watchers = append(watchers, w)
	}
	c.watchers = nil
	c.watchersMu.Unlock()

	for _, w := range watchers {
		w.Tell(Terminated{Ref: c.ref, ExistenceConfirmed: true}, nil)
	}
}

func (c *actorCell) addChild(child *actorCell) {
	c.childrenMu.Lock()
	c.children[child.path] = child
	c.childrenMu.Unlock()
}

func (c *actorCell) removeChild(child *actorCell) {
	c.childrenMu.Lock()
	delete(c.children, child.path)
	c.childrenMu.Unlock()
}

func (c *actorCell) childCells() []*actorCell {
	c.childrenMu.RLock()
	defer c.childrenMu.RUnlock()
	cells := make([]*actorCell, 0, len(c.children))
	for _, child := range c.children {
		cells = append(cells, child)
	}
	return cells
}

func (c *actorCell) childRefs() []*ActorRef {
	cells := c.childCells()
	refs := make([]*ActorRef, len(cells))
	for i, cell := range cells {
		refs[i] = cell.ref
	}
	return refs
}

func (c *actorCell) timerScheduler() *TimerScheduler {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	if c.timers == nil {
		c.timers = newTimerScheduler(c.ref, c.system.scheduler)
	}
	return c.timers
}

// statsSnapshot returns the cell's counters.
func (c *actorCell) statsSnapshot() ActorStats {
	return ActorStats{
		Path:        c.path,
		State:       stateName(c.state.Load()),
		MailboxSize: c.mailbox.Len(),
		Processed:   c.processed.Load(),
		Failures:    c.failures.Load(),
		Restarts:    c.restarts.Load(),
	}
}
