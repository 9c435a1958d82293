package actors

// Actor is a unit of behavior processing one message at a time. The runtime
// invokes lifecycle hooks around Receive; embed BaseActor for no-op
// defaults.
//
// A handler signals failure by returning an error or panicking; either way
// the failure is caught by the owning cell and handed to the supervisor
// strategy. It never reaches a dispatcher worker.
type Actor interface {
	// PreStart runs before the first message is processed.
	PreStart(ctx *Context) error

	// Receive handles the message in ctx.Message.
	Receive(ctx *Context) error

	// PostStop runs after the actor has stopped processing.
	PostStop(ctx *Context)

	// PreRestart runs on the failed instance before it is replaced. The
	// offending message, if any, is available via ctx.Message.
	PreRestart(ctx *Context, reason error) error

	// PostRestart runs on the fresh instance after a restart.
	PostRestart(ctx *Context) error
}

// BaseActor provides no-op lifecycle hooks. Embed it and override Receive.
type BaseActor struct{}

func (BaseActor) PreStart(ctx *Context) error { return nil }

func (BaseActor) Receive(ctx *Context) error { return nil }

func (BaseActor) PostStop(ctx *Context) {}

func (BaseActor) PreRestart(ctx *Context, reason error) error { return nil }

func (BaseActor) PostRestart(ctx *Context) error { return nil }

// Props is the immutable blueprint for constructing an actor: a factory
// plus dispatcher, mailbox and supervision choices. Props are safe to share
// across goroutines and may be reused to spawn many independent actors.
// Deriving a modified Props always returns a new value.
type Props struct {
	factory    func() Actor
	dispatcher DispatcherConfig
	mailbox    MailboxConfig
	supervisor SupervisorStrategy
}

// NewProps creates Props from an actor factory. Constructor arguments are
// captured by the factory closure.
func NewProps(factory func() Actor) Props {
	return Props{
		factory:    factory,
		dispatcher: DefaultDispatcherConfig(),
		mailbox:    DefaultMailboxConfig(),
	}
}

// WithDispatcher returns a copy using the given dispatcher config.
func (p Props) WithDispatcher(cfg DispatcherConfig) Props {
	p.dispatcher = cfg
	return p
}

// WithMailbox returns a copy using the given mailbox config.
func (p Props) WithMailbox(cfg MailboxConfig) Props {
	p.mailbox = cfg
	return p
}

// WithSupervisor returns a copy using the given supervisor strategy.
// Strategies carry restart-window state, so one strategy value shared by
// several Props counts their restarts together.
func (p Props) WithSupervisor(s SupervisorStrategy) Props {
	p.supervisor = s
	return p
}

// Dispatcher returns the dispatcher config.
func (p Props) Dispatcher() DispatcherConfig { return p.dispatcher }

// Mailbox returns the mailbox config.
func (p Props) Mailbox() MailboxConfig { return p.mailbox }

// Supervisor returns the supervisor strategy, nil if unset.
func (p Props) Supervisor() SupervisorStrategy { return p.supervisor }

// PropsBuilder assembles Props fluently. The zero value is not usable;
// start with NewPropsBuilder.
type PropsBuilder struct {
	props Props
}

// NewPropsBuilder starts a builder from an actor factory.
func NewPropsBuilder(factory func() Actor) *PropsBuilder {
	return &PropsBuilder{props: NewProps(factory)}
}

// Dispatcher sets the dispatcher config.
func (b *PropsBuilder) Dispatcher(cfg DispatcherConfig) *PropsBuilder {
	b.props.dispatcher = cfg
	return b
}

// Mailbox sets the mailbox config.
func (b *PropsBuilder) Mailbox(cfg MailboxConfig) *PropsBuilder {
	b.props.mailbox = cfg
	return b
}

// Supervisor sets the supervisor strategy.
func (b *PropsBuilder) Supervisor(s SupervisorStrategy) *PropsBuilder {
	b.props.supervisor = s
	return b
}

// Build returns the assembled Props value.
func (b *PropsBuilder) Build() Props {
	return b.props
}
