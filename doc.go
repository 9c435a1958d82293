// Package actors provides a fault-tolerant actor runtime with Erlang-style
// supervision.
//
// Actors are plain Go values with a Receive method, addressed only through
// refs, processing one message at a time from a private mailbox. The
// runtime provides:
//
//   - Mailboxes: unbounded, bounded, priority and control-aware
//   - Dispatchers: shared pool, pinned, work-stealing and calling-thread
//   - Supervision trees with one-for-one and all-for-one strategies,
//     sliding restart windows and exponential backoff
//   - A timer-wheel-free scheduler with one-shot, repeating and cron tasks
//   - Routers: round-robin, random, broadcast, smallest-mailbox,
//     scatter-gather and consistent hashing
//   - Ask with futures, death watch, dead letters and a lifecycle event
//     stream
//
// # Quick Start
//
// Define an actor and spawn it:
//
//	type Greeter struct {
//	    actors.BaseActor
//	}
//
//	func (g *Greeter) Receive(ctx *actors.Context) error {
//	    name, ok := ctx.Message().(string)
//	    if !ok {
//	        return fmt.Errorf("unexpected message %T", ctx.Message())
//	    }
//	    ctx.Respond("hello, " + name)
//	    return nil
//	}
//
//	system, err := actors.NewActorSystem("demo")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer system.Terminate()
//
//	ref, err := system.ActorOf(actors.NewProps(func() actors.Actor { return &Greeter{} }), "greeter")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reply, err := ref.Ask("world", time.Second).Await(context.Background())
//
// # Supervision
//
// A parent decides what happens when a child fails:
//
//	props := actors.NewProps(newWorker).
//	    WithSupervisor(actors.NewOneForOneStrategy(10, time.Minute))
//
// Failures are counted in a sliding window; exceeding it stops the actor
// instead of restarting it. Restarts keep the mailbox and the ref.
package actors
