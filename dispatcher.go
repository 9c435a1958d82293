package actors

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher executes actor processing work. Implementations own their
// worker goroutines; Shutdown stops accepting tasks and, when wait is true,
// blocks until running workers drain.
type Dispatcher interface {
	// Execute submits a task. Submissions after shutdown are dropped with a
	// warning, never raised to the caller.
	Execute(task func())

	// Shutdown stops the dispatcher. With wait it blocks until all workers
	// have finished their queues.
	Shutdown(wait bool)

	// IsShutdown reports whether Shutdown has been called.
	IsShutdown() bool
}

// DispatcherKind selects a thread-pool strategy.
type DispatcherKind int

const (
	// DispatcherDefault is a shared worker pool.
	DispatcherDefault DispatcherKind = iota
	// DispatcherPinned gives the actor a dedicated worker goroutine,
	// suitable for actors performing blocking I/O.
	DispatcherPinned
	// DispatcherCallingThread runs tasks synchronously on the caller's
	// goroutine. Deterministic, for testing only: actors messaging each
	// other in a cycle on it will deadlock.
	DispatcherCallingThread
	// DispatcherForkJoin runs per-worker queues with work stealing.
	DispatcherForkJoin
	// DispatcherBalancing round-robins submissions over child dispatchers.
	DispatcherBalancing
)

// DispatcherConfig configures the dispatcher assigned to an actor.
type DispatcherConfig struct {
	Kind DispatcherKind

	// PoolSize is the worker count for pool kinds. Zero means
	// 2 x GOMAXPROCS for the default pool and GOMAXPROCS for fork-join.
	PoolSize int

	// QueueSize is the backlog high-water mark of pool dispatchers.
	// Crossing it logs a warning; the queue itself is unbounded so a
	// worker never blocks submitting to its own pool.
	QueueSize int

	// Throughput is the number of messages an actor drains per dispatch
	// before yielding the worker. Zero means DefaultThroughput.
	Throughput int
}

// DefaultThroughput bounds per-actor latency under load: a cell drains at
// most this many messages per dispatch, then re-submits itself.
const DefaultThroughput = 5

// DefaultDispatcherConfig returns the shared-pool config.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{Kind: DispatcherDefault}
}

// throughput returns the effective drain limit.
func (c DispatcherConfig) throughput() int {
	if c.Throughput > 0 {
		return c.Throughput
	}
	return DefaultThroughput
}

// newDispatcher builds a dispatcher for the given config. Pinned dispatchers
// are built per actor by the system, everything else may be shared.
func newDispatcher(cfg DispatcherConfig, logger *slog.Logger) Dispatcher {
	switch cfg.Kind {
	case DispatcherPinned:
		return NewPinnedDispatcher(cfg.QueueSize, logger)
	case DispatcherCallingThread:
		return NewCallingThreadDispatcher()
	case DispatcherForkJoin:
		return NewForkJoinDispatcher(cfg.PoolSize, logger)
	case DispatcherBalancing:
		size := cfg.PoolSize
		if size <= 0 {
			size = 2
		}
		children := make([]Dispatcher, size)
		for i := range children {
			children[i] = NewPoolDispatcher(0, cfg.QueueSize, logger)
		}
		return NewBalancingDispatcher(children...)
	default:
		return NewPoolDispatcher(cfg.PoolSize, cfg.QueueSize, logger)
	}
}

// taskQueue is an unbounded FIFO shared by pool workers. Submitters never
// block: a cell re-submits itself from the worker draining it, so a
// blocking submission would park the worker inside its own task.
type taskQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	tasks     []func()
	closed    bool
	highWater int
	flooded   bool
}

func newTaskQueue(highWater int) *taskQueue {
	q := &taskQueue{highWater: highWater}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends a task. crossed is true when the backlog first exceeds the
// high-water mark since it last drained below half of it.
func (q *taskQueue) push(task func()) (ok, crossed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false, false
	}
	q.tasks = append(q.tasks, task)
	if q.highWater > 0 && len(q.tasks) > q.highWater && !q.flooded {
		q.flooded = true
		crossed = true
	}
	q.cond.Signal()
	return true, crossed
}

// pop blocks until a task is available or the queue is closed and drained.
func (q *taskQueue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.tasks) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.tasks) == 0 {
		return nil, false
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	if q.flooded && len(q.tasks) <= q.highWater/2 {
		q.flooded = false
	}
	return task, true
}

func (q *taskQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// poolDispatcher is a fixed pool of workers draining one shared task queue.
type poolDispatcher struct {
	queue    *taskQueue
	wg       sync.WaitGroup
	shutdown atomic.Bool
	logger   *slog.Logger
}

// NewPoolDispatcher creates the shared-pool dispatcher. size zero defaults
// to 2 x GOMAXPROCS, queueSize zero defaults to a 1024 high-water mark.
func NewPoolDispatcher(size, queueSize int, logger *slog.Logger) Dispatcher {
	if size <= 0 {
		size = 2 * runtime.GOMAXPROCS(0)
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &poolDispatcher{
		queue:  newTaskQueue(queueSize),
		logger: logger,
	}
	d.wg.Add(size)
	for i := 0; i < size; i++ {
		go d.worker()
	}
	return d
}

func (d *poolDispatcher) worker() {
	defer d.wg.Done()
	for {
		task, ok := d.queue.pop()
		if !ok {
			return
		}
		task()
	}
}

func (d *poolDispatcher) Execute(task func()) {
	if d.shutdown.Load() {
		d.logger.Warn("dispatcher rejected task", "reason", ErrDispatcherShutdown)
		return
	}
	ok, crossed := d.queue.push(task)
	if !ok {
		d.logger.Warn("dispatcher rejected task", "reason", ErrDispatcherShutdown)
		return
	}
	if crossed {
		d.logger.Warn("dispatcher backlog past high-water mark", "backlog", d.queue.len())
	}
}

func (d *poolDispatcher) Shutdown(wait bool) {
	if !d.shutdown.Swap(true) {
		d.queue.close()
	}
	if wait {
		d.wg.Wait()
	}
}

func (d *poolDispatcher) IsShutdown() bool {
	return d.shutdown.Load()
}

// pinnedDispatcher owns one dedicated worker goroutine, started lazily on
// the first Execute. ReleaseThread reclaims it.
type pinnedDispatcher struct {
	queue    *taskQueue
	once     sync.Once
	wg       sync.WaitGroup
	shutdown atomic.Bool
	logger   *slog.Logger
}

// NewPinnedDispatcher creates a dedicated-worker dispatcher.
func NewPinnedDispatcher(queueSize int, logger *slog.Logger) *pinnedDispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &pinnedDispatcher{
		queue:  newTaskQueue(queueSize),
		logger: logger,
	}
}

func (d *pinnedDispatcher) Execute(task func()) {
	if d.shutdown.Load() {
		d.logger.Warn("pinned dispatcher rejected task", "reason", ErrDispatcherShutdown)
		return
	}
	d.once.Do(func() {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			// The dedicated worker may block as long as the actor needs;
			// no other actor shares it.
			for {
				t, ok := d.queue.pop()
				if !ok {
					return
				}
				t()
			}
		}()
	})
	if ok, _ := d.queue.push(task); !ok {
		d.logger.Warn("pinned dispatcher rejected task", "reason", ErrDispatcherShutdown)
	}
}

// ReleaseThread reclaims the dedicated worker. Equivalent to Shutdown(true).
func (d *pinnedDispatcher) ReleaseThread() {
	d.Shutdown(true)
}

func (d *pinnedDispatcher) Shutdown(wait bool) {
	if !d.shutdown.Swap(true) {
		d.queue.close()
	}
	if wait {
		d.wg.Wait()
	}
}

func (d *pinnedDispatcher) IsShutdown() bool {
	return d.shutdown.Load()
}

// callingThreadDispatcher executes tasks synchronously on the caller.
type callingThreadDispatcher struct {
	shutdown atomic.Bool
}

// NewCallingThreadDispatcher creates the synchronous test dispatcher.
func NewCallingThreadDispatcher() Dispatcher {
	return &callingThreadDispatcher{}
}

func (d *callingThreadDispatcher) Execute(task func()) {
	if d.shutdown.Load() {
		return
	}
	task()
}

func (d *callingThreadDispatcher) Shutdown(wait bool) {
	d.shutdown.Store(true)
}

func (d *callingThreadDispatcher) IsShutdown() bool {
	return d.shutdown.Load()
}

// forkJoinDispatcher runs one queue per worker; idle workers steal from
// the other queues before sleeping briefly.
type forkJoinDispatcher struct {
	queues   []*stealQueue
	next     atomic.Uint64
	stop     chan struct{}
	wg       sync.WaitGroup
	shutdown atomic.Bool
	logger   *slog.Logger
}

type stealQueue struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *stealQueue) push(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// tryPop removes the oldest task without blocking.
func (q *stealQueue) tryPop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, false
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, true
}

// NewForkJoinDispatcher creates a work-stealing dispatcher with size
// workers (zero means GOMAXPROCS).
func NewForkJoinDispatcher(size int, logger *slog.Logger) Dispatcher {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &forkJoinDispatcher{
		queues: make([]*stealQueue, size),
		stop:   make(chan struct{}),
		logger: logger,
	}
	for i := range d.queues {
		d.queues[i] = &stealQueue{}
	}
	d.wg.Add(size)
	for i := 0; i < size; i++ {
		go d.worker(i)
	}
	return d
}

func (d *forkJoinDispatcher) worker(index int) {
	defer d.wg.Done()
	own := d.queues[index]
	for {
		if task, ok := own.tryPop(); ok {
			task()
			continue
		}
		// Steal from the other queues.
		stolen := false
		for i := range d.queues {
			if i == index {
				continue
			}
			if task, ok := d.queues[i].tryPop(); ok {
				task()
				stolen = true
				break
			}
		}
		if stolen {
			continue
		}
		select {
		case <-d.stop:
			// Drain whatever remains before exiting.
			for {
				task, ok := own.tryPop()
				if !ok {
					return
				}
				task()
			}
		case <-time.After(time.Millisecond):
		}
	}
}

func (d *forkJoinDispatcher) Execute(task func()) {
	if d.shutdown.Load() {
		d.logger.Warn("fork-join dispatcher rejected task", "reason", ErrDispatcherShutdown)
		return
	}
	// Round-robin initial assignment; idle workers rebalance by stealing.
	index := int(d.next.Add(1)-1) % len(d.queues)
	d.queues[index].push(task)
}

func (d *forkJoinDispatcher) Shutdown(wait bool) {
	if d.shutdown.Swap(true) {
		if wait {
			d.wg.Wait()
		}
		return
	}
	close(d.stop)
	if wait {
		d.wg.Wait()
	}
}

func (d *forkJoinDispatcher) IsShutdown() bool {
	return d.shutdown.Load()
}

// balancingDispatcher round-robins submissions over child dispatchers.
type balancingDispatcher struct {
	children []Dispatcher
	next     atomic.Uint64
	shutdown atomic.Bool
}

// NewBalancingDispatcher wraps the given dispatchers.
func NewBalancingDispatcher(children ...Dispatcher) Dispatcher {
	return &balancingDispatcher{children: children}
}

func (d *balancingDispatcher) Execute(task func()) {
	if d.shutdown.Load() || len(d.children) == 0 {
		return
	}
	index := int(d.next.Add(1)-1) % len(d.children)
	d.children[index].Execute(task)
}

func (d *balancingDispatcher) Shutdown(wait bool) {
	d.shutdown.Store(true)
	for _, child := range d.children {
		child.Shutdown(wait)
	}
}

func (d *balancingDispatcher) IsShutdown() bool {
	return d.shutdown.Load()
}
