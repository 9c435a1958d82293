package actors

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Option configures an ActorSystem at construction time.
type Option func(*ActorSystem)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *ActorSystem) { s.config = cfg }
}

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ActorSystem) { s.logger = logger }
}

// WithJournal attaches a persistent recorder for lifecycle events and dead
// letters. The system closes it on Terminate.
func WithJournal(journal Recorder) Option {
	return func(s *ActorSystem) { s.journal = journal }
}

// ActorSystem owns the actor registry, the shared dispatcher, the scheduler
// and the dead letter office. All actors are spawned through it and die
// with it.
type ActorSystem struct {
	name     string
	rootPath string
	config   Config
	logger   *slog.Logger

	cellsMu sync.RWMutex
	cells   map[string]*actorCell

	shared      Dispatcher
	scheduler   *Scheduler
	events      *eventStream
	deadLetters *deadLetterOffice
	journal     Recorder

	startedAt  time.Time
	stopping   atomic.Bool
	terminated atomic.Bool
	termOnce   sync.Once
	termDone   chan struct{}
}

// NewActorSystem creates and starts a system. The name becomes the root of
// every actor path, e.g. "/my-system/user/worker".
func NewActorSystem(name string, opts ...Option) (*ActorSystem, error) {
	if !validActorName(name) {
		return nil, fmt.Errorf("%w: system name %q", ErrInvalidName, name)
	}
	s := &ActorSystem{
		name:      name,
		rootPath:  "/" + name,
		config:    DefaultConfig(),
		logger:    slog.Default(),
		cells:     make(map[string]*actorCell),
		startedAt: time.Now(),
		termDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	s.shared = NewPoolDispatcher(s.config.Dispatcher.PoolSize, s.config.Dispatcher.QueueSize, s.logger)
	s.scheduler = NewScheduler(s.logger)
	s.events = newEventStream(s.logger)
	s.deadLetters = newDeadLetterOffice(s.config.DeadLetter.Capacity, s.config.DeadLetter.LogsPerSecond, s.logger)
	s.deadLetters.events = s.events
	if s.journal != nil {
		s.events.recorder = s.journal
		s.deadLetters.recorder = s.journal
	}

	s.logger.Info("actor system started", "system", name)
	return s, nil
}

// Name returns the system name.
func (s *ActorSystem) Name() string { return s.name }

// Logger returns the system logger.
func (s *ActorSystem) Logger() *slog.Logger { return s.logger }

// Scheduler returns the system scheduler.
func (s *ActorSystem) Scheduler() *Scheduler { return s.scheduler }

// ActorOf spawns a top-level actor under /user.
func (s *ActorSystem) ActorOf(props Props, name string) (*ActorRef, error) {
	return s.spawn(nil, props, name)
}

// ActorSelection resolves a full actor path to a live ref.
func (s *ActorSystem) ActorSelection(path string) (*ActorRef, bool) {
	s.cellsMu.RLock()
	cell, ok := s.cells[path]
	s.cellsMu.RUnlock()
	if !ok || cell.lifecycleState() == stateStopped {
		return nil, false
	}
	return cell.ref, true
}

func validActorName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, "/ \t\n#")
}

// spawn builds a cell, registers it and runs its start sequence. The
// returned ref is valid once spawn returns.
func (s *ActorSystem) spawn(parent *actorCell, props Props, name string) (*ActorRef, error) {
	if s.stopping.Load() {
		return nil, ErrSystemTerminated
	}
	if !validActorName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if parent != nil {
		if st := parent.lifecycleState(); st == stateStopping || st == stateStopped {
			return nil, &ActorError{Path: parent.path, Err: ErrActorNotFound}
		}
	}

	var path string
	if parent == nil {
		path = s.rootPath + "/user/" + name
	} else {
		path = parent.path + "/" + name
	}

	mbCfg := props.mailbox
	if mbCfg.Kind == MailboxBounded && mbCfg.Capacity == 0 {
		mbCfg.Capacity = s.config.Mailbox.Capacity
	}
	if props.dispatcher.Throughput == 0 {
		props.dispatcher.Throughput = s.config.Dispatcher.Throughput
	}
	dispatcher, owned := s.dispatcherFor(props.dispatcher)

	ref := &ActorRef{path: path, id: uuid.NewString(), system: s}
	cell := newActorCell(s, parent, props, ref, newMailbox(mbCfg), dispatcher, owned)

	s.cellsMu.Lock()
	if existing, ok := s.cells[path]; ok && existing.lifecycleState() != stateStopped {
		s.cellsMu.Unlock()
		if owned {
			dispatcher.Shutdown(false)
		}
		return nil, &ActorError{Path: path, Err: ErrActorAlreadyExists}
	}
	s.cells[path] = cell
	s.cellsMu.Unlock()

	if parent != nil {
		parent.addChild(cell)
	}
	cell.start()
	return ref, nil
}

// dispatcherFor returns the shared pool for default configs and a dedicated
// dispatcher, owned by the cell, for everything else.
func (s *ActorSystem) dispatcherFor(cfg DispatcherConfig) (Dispatcher, bool) {
	if cfg.Kind == DispatcherDefault && cfg.PoolSize == 0 && cfg.QueueSize == 0 {
		return s.shared, false
	}
	return newDispatcher(cfg, s.logger), true
}

// cellFor resolves a ref to its live cell, matching both path and
// incarnation ID so a ref to a dead incarnation never reaches a respawned
// namesake.
func (s *ActorSystem) cellFor(ref *ActorRef) (*actorCell, bool) {
	s.cellsMu.RLock()
	cell, ok := s.cells[ref.path]
	s.cellsMu.RUnlock()
	if !ok || cell.ref.id != ref.id {
		return nil, false
	}
	return cell, true
}

func (s *ActorSystem) removeCell(c *actorCell) {
	s.cellsMu.Lock()
	if s.cells[c.path] == c {
		delete(s.cells, c.path)
	}
	s.cellsMu.Unlock()
}

// deliver routes an envelope to the ref's cell, or to the dead letter
// office when the incarnation is gone or the system is down.
func (s *ActorSystem) deliver(ref *ActorRef, env Envelope) {
	if s.terminated.Load() {
		s.deadLetters.record(DeadLetter{
			Message:   env.Message,
			Sender:    env.Sender,
			Recipient: ref.path,
			Reason:    "system terminated",
			Timestamp: time.Now(),
		})
		return
	}
	cell, ok := s.cellFor(ref)
	if !ok {
		s.deadLetters.record(DeadLetter{
			Message:   env.Message,
			Sender:    env.Sender,
			Recipient: ref.path,
			Reason:    "no such actor",
			Timestamp: time.Now(),
		})
		return
	}
	cell.sendEnvelope(env)
}

// Stop asks the actor to stop. The actor finishes its current message,
// stops its children, then terminates.
func (s *ActorSystem) Stop(ref *ActorRef) {
	if ref != nil {
		ref.TellWithPriority(PoisonPill{}, nil, PriorityControl)
	}
}

// StopAndWait stops the actor and blocks until it has fully terminated or
// the timeout passes.
func (s *ActorSystem) StopAndWait(ref *ActorRef, timeout time.Duration) {
	cell, ok := s.cellFor(ref)
	if !ok {
		return
	}
	s.Stop(ref)
	cell.awaitStop(timeout)
}

// watch delivers a Terminated notice to watcher exactly once when target
// stops. An already-dead target is confirmed immediately with
// ExistenceConfirmed false.
func (s *ActorSystem) watch(watcher, target *ActorRef) {
	cell, ok := s.cellFor(target)
	if !ok {
		watcher.Tell(Terminated{Ref: target, ExistenceConfirmed: false}, nil)
		return
	}
	cell.addWatcher(watcher)
}

func (s *ActorSystem) unwatch(watcher, target *ActorRef) {
	if cell, ok := s.cellFor(target); ok {
		cell.removeWatcher(watcher)
	}
}

// replyActor resolves one ask future with the first message it receives,
// then stops itself.
type replyActor struct {
	BaseActor
	future *Future

	mu    sync.Mutex
	timer Cancellable
}

func (a *replyActor) setTimer(t Cancellable) {
	a.mu.Lock()
	a.timer = t
	a.mu.Unlock()
}

func (a *replyActor) cancelTimer() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Cancel()
	}
	a.mu.Unlock()
}

func (a *replyActor) Receive(ctx *Context) error {
	switch ctx.Message().(type) {
	case askExpired:
		a.future.complete(nil, ErrAskTimeout)
	default:
		a.future.complete(ctx.Message(), nil)
		a.mu.Lock()
		if a.timer != nil {
			a.timer.Cancel()
		}
		a.mu.Unlock()
	}
	ctx.Stop(ctx.Self())
	return nil
}

// Ask sends message to target with a temporary reply actor as sender and
// returns a Future for the first reply. The future fails with ErrAskTimeout
// if no reply arrives in time.
func (s *ActorSystem) Ask(target *ActorRef, message any, timeout time.Duration) *Future {
	f := newFuture()
	if s.stopping.Load() {
		f.complete(nil, ErrSystemTerminated)
		return f
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ra := &replyActor{future: f}
	ref := s.spawnTemp(ra, s.rootPath+"/temp/ask-"+uuid.NewString())

	ra.setTimer(s.scheduler.ScheduleOnce(timeout, ref, askExpired{}))
	f.setCleanup(func() {
		ra.cancelTimer()
		s.Stop(ref)
	})
	target.Tell(message, ref)
	return f
}

// spawnTemp registers a short-lived system actor outside the /user
// hierarchy. Paths carry a fresh UUID, so no duplicate check is needed.
func (s *ActorSystem) spawnTemp(actor Actor, path string) *ActorRef {
	ref := &ActorRef{path: path, id: uuid.NewString(), system: s}
	cell := newActorCell(s, nil, NewProps(func() Actor { return actor }), ref, newMailbox(DefaultMailboxConfig()), s.shared, false)
	s.cellsMu.Lock()
	s.cells[path] = cell
	s.cellsMu.Unlock()
	cell.start()
	return ref
}

// SubscribeEvents registers a callback for lifecycle events. Callbacks run
// on their own goroutines.
func (s *ActorSystem) SubscribeEvents(fn func(Event)) *Subscription {
	return s.events.subscribe(fn)
}

// SubscribeDeadLetters registers a callback for dead letters.
func (s *ActorSystem) SubscribeDeadLetters(fn func(DeadLetter)) *Subscription {
	return s.deadLetters.subscribe(fn)
}

// DeadLetters returns the retained dead letters, oldest first.
func (s *ActorSystem) DeadLetters() []DeadLetter {
	return s.deadLetters.recent()
}

// SystemStats is a snapshot of system-wide counters.
type SystemStats struct {
	Name           string
	Actors         int
	DeadLetters    uint64
	ScheduledTasks int
	Uptime         time.Duration
}

// Stats returns a snapshot of system-wide counters.
func (s *ActorSystem) Stats() SystemStats {
	s.cellsMu.RLock()
	actors := len(s.cells)
	s.cellsMu.RUnlock()
	return SystemStats{
		Name:           s.name,
		Actors:         actors,
		DeadLetters:    s.deadLetters.count(),
		ScheduledTasks: s.scheduler.Len(),
		Uptime:         time.Since(s.startedAt),
	}
}

// ActorStats returns per-actor snapshots for every registered cell.
func (s *ActorSystem) ActorStats() []ActorStats {
	s.cellsMu.RLock()
	cells := make([]*actorCell, 0, len(s.cells))
	for _, c := range s.cells {
		cells = append(cells, c)
	}
	s.cellsMu.RUnlock()

	stats := make([]ActorStats, len(cells))
	for i, c := range cells {
		stats[i] = c.statsSnapshot()
	}
	return stats
}

// IsTerminated reports whether Terminate has completed.
func (s *ActorSystem) IsTerminated() bool {
	return s.terminated.Load()
}

// Done is closed once Terminate completes.
func (s *ActorSystem) Done() <-chan struct{} {
	return s.termDone
}

// Terminate stops every actor, shuts the dispatchers and scheduler down and
// closes the journal. Idempotent; later calls wait for the first.
func (s *ActorSystem) Terminate() {
	s.termOnce.Do(func() {
		s.stopping.Store(true)
		s.logger.Info("actor system terminating", "system", s.name)

		tops := s.topLevelCells()
		for _, c := range tops {
			c.ref.TellWithPriority(PoisonPill{}, nil, PriorityControl)
		}
		deadline := time.Now().Add(s.config.ShutdownTimeout)
		for _, c := range tops {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				remaining = time.Millisecond
			}
			c.awaitStop(remaining)
		}

		s.terminated.Store(true)
		s.scheduler.Stop()
		s.shared.Shutdown(true)
		if s.journal != nil {
			if err := s.journal.Close(); err != nil {
				s.logger.Warn("journal close failed", "error", err)
			}
		}
		s.logger.Info("actor system terminated", "system", s.name)
		close(s.termDone)
	})
	<-s.termDone
}

func (s *ActorSystem) topLevelCells() []*actorCell {
	s.cellsMu.RLock()
	defer s.cellsMu.RUnlock()
	cells := make([]*actorCell, 0, len(s.cells))
	for _, c := range s.cells {
		if c.parent == nil {
			cells = append(cells, c)
		}
	}
	return cells
}
