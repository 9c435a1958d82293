package actors

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Directive is a supervisor's decision about a failed child.
type Directive int

const (
	// DirectiveResume keeps the actor and its state; the offending message
	// is dropped.
	DirectiveResume Directive = iota
	// DirectiveRestart replaces the actor instance with a fresh one from
	// the same Props. Mailbox and watchers are preserved.
	DirectiveRestart
	// DirectiveStop stops the actor permanently.
	DirectiveStop
	// DirectiveEscalate stops the actor and raises the failure to the
	// parent's own supervisor. At the root, escalation just stops.
	DirectiveEscalate
)

// String returns the directive name.
func (d Directive) String() string {
	switch d {
	case DirectiveResume:
		return "resume"
	case DirectiveRestart:
		return "restart"
	case DirectiveStop:
		return "stop"
	case DirectiveEscalate:
		return "escalate"
	default:
		return "unknown"
	}
}

// SupervisionScope determines which actors a directive applies to.
type SupervisionScope int

const (
	// ScopeOne applies the directive to the failing actor only.
	ScopeOne SupervisionScope = iota
	// ScopeAll applies it to the failing actor and all its siblings.
	ScopeAll
)

// ChildFailure describes one failure handed to a supervisor strategy.
type ChildFailure struct {
	Ref     *ActorRef
	Err     error
	Message any
}

// Decider maps a failure to a directive. A nil Decider restarts everything.
type Decider func(err error) Directive

// SupervisorStrategy decides what happens when an actor fails. Strategies
// carry restart-window state and are stateful per supervised set.
type SupervisorStrategy interface {
	// HandleFailure returns the directive for the failure. Restart
	// decisions are counted against the strategy's sliding window; once
	// the window is exhausted the strategy returns DirectiveStop instead.
	HandleFailure(failure ChildFailure) Directive

	// Scope reports whether directives apply to one actor or all siblings.
	Scope() SupervisionScope
}

// restartDelayer is implemented by strategies that want a delay between
// failure and restart; the cell schedules the restart instead of running
// it immediately.
type restartDelayer interface {
	NextDelay() time.Duration
}

// restartWindow counts restarts in a sliding time window.
type restartWindow struct {
	mu          sync.Mutex
	maxRestarts int
	within      time.Duration
	failures    []time.Time
}

// allow records a restart attempt and reports whether it is within budget.
// maxRestarts < 0 means unlimited.
func (w *restartWindow) allow() bool {
	if w.maxRestarts < 0 {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.failures = append(w.failures, now)

	if w.within > 0 {
		cutoff := now.Add(-w.within)
		kept := w.failures[:0]
		for _, t := range w.failures {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		w.failures = kept
	}

	return len(w.failures) <= w.maxRestarts
}

// OneForOneStrategy restarts only the failing child, up to maxRestarts
// times within the window; past that it stops the child instead.
type OneForOneStrategy struct {
	window  restartWindow
	decider Decider
}

// NewOneForOneStrategy creates the strategy. maxRestarts < 0 means
// unlimited; within <= 0 means the window never expires old failures.
func NewOneForOneStrategy(maxRestarts int, within time.Duration) *OneForOneStrategy {
	return &OneForOneStrategy{
		window: restartWindow{maxRestarts: maxRestarts, within: within},
	}
}

// WithDecider returns the strategy with a custom failure decider.
func (s *OneForOneStrategy) WithDecider(d Decider) *OneForOneStrategy {
	s.decider = d
	return s
}

func (s *OneForOneStrategy) HandleFailure(failure ChildFailure) Directive {
	return decideWithWindow(s.decider, &s.window, failure)
}

func (s *OneForOneStrategy) Scope() SupervisionScope { return ScopeOne }

// AllForOneStrategy applies its directive to all sibling children; restart
// counting uses the same sliding window as OneForOneStrategy.
type AllForOneStrategy struct {
	window  restartWindow
	decider Decider
}

// NewAllForOneStrategy creates the strategy.
func NewAllForOneStrategy(maxRestarts int, within time.Duration) *AllForOneStrategy {
	return &AllForOneStrategy{
		window: restartWindow{maxRestarts: maxRestarts, within: within},
	}
}

// WithDecider returns the strategy with a custom failure decider.
func (s *AllForOneStrategy) WithDecider(d Decider) *AllForOneStrategy {
	s.decider = d
	return s
}

func (s *AllForOneStrategy) HandleFailure(failure ChildFailure) Directive {
	return decideWithWindow(s.decider, &s.window, failure)
}

func (s *AllForOneStrategy) Scope() SupervisionScope { return ScopeAll }

func decideWithWindow(decider Decider, window *restartWindow, failure ChildFailure) Directive {
	directive := DirectiveRestart
	if decider != nil {
		directive = decider(failure.Err)
	}
	if directive != DirectiveRestart {
		return directive
	}
	if !window.allow() {
		return DirectiveStop
	}
	return DirectiveRestart
}

// BackoffConfig configures the delay growth between restarts.
type BackoffConfig struct {
	// Initial delay before the first restart.
	Initial time.Duration

	// Max caps the delay. Zero means uncapped.
	Max time.Duration

	// Multiplier for exponential growth; defaults to 2.
	Multiplier float64

	// Jitter adds randomness (0.0-1.0) to spread restarts out.
	Jitter float64
}

// ExponentialBackoffStrategy restarts the failing child with a growing
// delay between attempts, scheduled through the system scheduler.
type ExponentialBackoffStrategy struct {
	window  restartWindow
	backoff BackoffConfig
	decider Decider

	mu       sync.Mutex
	restarts int
}

// NewExponentialBackoffStrategy creates the strategy.
func NewExponentialBackoffStrategy(maxRestarts int, within time.Duration, backoff BackoffConfig) *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		window:  restartWindow{maxRestarts: maxRestarts, within: within},
		backoff: backoff,
	}
}

// WithDecider returns the strategy with a custom failure decider.
func (s *ExponentialBackoffStrategy) WithDecider(d Decider) *ExponentialBackoffStrategy {
	s.decider = d
	return s
}

func (s *ExponentialBackoffStrategy) HandleFailure(failure ChildFailure) Directive {
	return decideWithWindow(s.decider, &s.window, failure)
}

func (s *ExponentialBackoffStrategy) Scope() SupervisionScope { return ScopeOne }

// NextDelay returns the delay to apply before the next restart attempt.
func (s *ExponentialBackoffStrategy) NextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restarts++
	if s.backoff.Initial == 0 {
		return 0
	}

	multiplier := s.backoff.Multiplier
	if multiplier == 0 {
		multiplier = 2.0
	}
	delay := time.Duration(float64(s.backoff.Initial) * math.Pow(multiplier, float64(s.restarts-1)))

	if s.backoff.Max > 0 && delay > s.backoff.Max {
		delay = s.backoff.Max
	}
	if s.backoff.Jitter > 0 {
		jitter := float64(delay) * s.backoff.Jitter * (rand.Float64()*2 - 1)
		delay = time.Duration(float64(delay) + jitter)
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// defaultSupervisorStrategy is used when Props carry no strategy.
func defaultSupervisorStrategy() SupervisorStrategy {
	return NewOneForOneStrategy(10, time.Minute)
}
