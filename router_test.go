package actors

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type tallyActor struct {
	BaseActor
	mu     *sync.Mutex
	counts map[string]int
	done   chan struct{}
}

func (a *tallyActor) Receive(ctx *Context) error {
	a.mu.Lock()
	a.counts[ctx.Self().Path()]++
	a.mu.Unlock()
	select {
	case a.done <- struct{}{}:
	default:
	}
	return nil
}

func newTally() (*sync.Mutex, map[string]int, chan struct{}, Props) {
	mu := &sync.Mutex{}
	counts := map[string]int{}
	done := make(chan struct{}, 4096)
	props := NewProps(func() Actor {
		return &tallyActor{mu: mu, counts: counts, done: done}
	})
	return mu, counts, done, props
}

func waitN(t *testing.T, done chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d messages processed", i, n)
		}
	}
}

func TestRoundRobinPoolDistributesEvenly(t *testing.T) {
	system := newTestSystem(t)
	mu, counts, done, workerProps := newTally()

	router, err := system.ActorOf(RoundRobinPool(workerProps, 3), "rr")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	const n = 300
	for i := 0; i < n; i++ {
		router.Tell(i, nil)
	}
	waitN(t, done, n)

	mu.Lock()
	defer mu.Unlock()
	if len(counts) != 3 {
		t.Fatalf("messages reached %d routees, want 3: %v", len(counts), counts)
	}
	for path, c := range counts {
		if c != n/3 {
			t.Errorf("routee %s got %d messages, want %d", path, c, n/3)
		}
	}
}

func TestRandomPoolReachesAllRoutees(t *testing.T) {
	system := newTestSystem(t)
	mu, counts, done, workerProps := newTally()

	router, err := system.ActorOf(RandomPool(workerProps, 3), "rand")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	const n = 600
	for i := 0; i < n; i++ {
		router.Tell(i, nil)
	}
	waitN(t, done, n)

	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, c := range counts {
		total += c
	}
	if total != n {
		t.Errorf("total = %d, want %d", total, n)
	}
	if len(counts) != 3 {
		t.Errorf("random routing reached %d of 3 routees over %d messages", len(counts), n)
	}
}

func TestBroadcastPoolHitsEveryRoutee(t *testing.T) {
	system := newTestSystem(t)
	mu, counts, done, workerProps := newTally()

	router, err := system.ActorOf(BroadcastPool(workerProps, 4), "bcast")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	router.Tell("all", nil)
	waitN(t, done, 4)

	mu.Lock()
	defer mu.Unlock()
	for path, c := range counts {
		if c != 1 {
			t.Errorf("routee %s got %d copies, want 1", path, c)
		}
	}
}

func TestBroadcastMessageOverridesLogic(t *testing.T) {
	system := newTestSystem(t)
	mu, counts, done, workerProps := newTally()

	router, err := system.ActorOf(RoundRobinPool(workerProps, 3), "rr-bcast")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	router.Tell(Broadcast{Message: "everyone"}, nil)
	waitN(t, done, 3)

	mu.Lock()
	defer mu.Unlock()
	if len(counts) != 3 {
		t.Errorf("Broadcast reached %d of 3 routees", len(counts))
	}
}

type keyedMessage struct {
	Key     string
	Payload int
}

func (m keyedMessage) HashKey() string { return m.Key }

type keyRecorder struct {
	BaseActor
}

func (keyRecorder) Receive(ctx *Context) error {
	if msg, ok := ctx.Message().(keyedMessage); ok {
		ctx.Respond(fmt.Sprintf("%s@%s", msg.Key, ctx.Self().Path()))
	}
	return nil
}

func TestConsistentHashingIsStable(t *testing.T) {
	system := newTestSystem(t)

	props := NewProps(func() Actor { return keyRecorder{} })
	router, err := system.ActorOf(ConsistentHashingPool(props, 5, 16), "hashing")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	// The same key must land on the same routee every time.
	first := map[string]string{}
	for round := 0; round < 3; round++ {
		for k := 0; k < 20; k++ {
			key := fmt.Sprintf("key-%d", k)
			value, err := router.Ask(keyedMessage{Key: key, Payload: round}, 2*time.Second).Await(context.Background())
			if err != nil {
				t.Fatalf("Ask round %d key %s: %v", round, key, err)
			}
			got := value.(string)
			if prev, ok := first[key]; ok && prev != got {
				t.Fatalf("key %s moved from %s to %s with a stable routee set", key, prev, got)
			}
			first[key] = got
		}
	}

	// Sanity: keys spread over more than one routee.
	targets := map[string]bool{}
	for _, v := range first {
		targets[v] = true
	}
	if len(targets) < 2 {
		t.Errorf("all 20 keys landed on one routee; ring looks degenerate")
	}
}

func TestGetRouteesAndManagement(t *testing.T) {
	system := newTestSystem(t)
	_, _, _, workerProps := newTally()

	router, err := system.ActorOf(RoundRobinPool(workerProps, 2), "managed")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	value, err := router.Ask(GetRoutees{}, 2*time.Second).Await(context.Background())
	if err != nil {
		t.Fatalf("Ask(GetRoutees): %v", err)
	}
	routees, ok := value.(Routees)
	if !ok {
		t.Fatalf("reply %T, want Routees", value)
	}
	if len(routees.Refs) != 2 {
		t.Fatalf("Routees = %d, want 2", len(routees.Refs))
	}

	// Detach one; traffic must only hit the remaining routee.
	removed := routees.Refs[0]
	router.Tell(RemoveRoutee{Ref: removed}, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		value, err = router.Ask(GetRoutees{}, 2*time.Second).Await(context.Background())
		if err != nil {
			t.Fatalf("Ask(GetRoutees): %v", err)
		}
		if len(value.(Routees).Refs) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("RemoveRoutee never took effect")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Re-attach it.
	router.Tell(AddRoutee{Ref: removed}, nil)
	deadline = time.Now().Add(2 * time.Second)
	for {
		value, err = router.Ask(GetRoutees{}, 2*time.Second).Await(context.Background())
		if err != nil {
			t.Fatalf("Ask(GetRoutees): %v", err)
		}
		if len(value.(Routees).Refs) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("AddRoutee never took effect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRouterWithNoRouteesDeadLetters(t *testing.T) {
	system := newTestSystem(t)

	router, err := system.ActorOf(RoundRobinGroup(), "empty")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	letters := make(chan DeadLetter, 1)
	sub := system.SubscribeDeadLetters(func(dl DeadLetter) {
		select {
		case letters <- dl:
		default:
		}
	})
	defer sub.Cancel()

	router.Tell("nowhere", nil)
	select {
	case dl := <-letters:
		if dl.Reason != ErrNoRoutees.Error() {
			t.Errorf("DeadLetter.Reason = %q", dl.Reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("routing with no routees did not dead-letter")
	}
}

func TestGroupRouterUsesExistingActors(t *testing.T) {
	system := newTestSystem(t)
	mu, counts, done, workerProps := newTally()

	if _, err := system.ActorOf(workerProps, "g1"); err != nil {
		t.Fatalf("ActorOf: %v", err)
	}
	if _, err := system.ActorOf(workerProps, "g2"); err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	router, err := system.ActorOf(RoundRobinGroup("/test/user/g1", "/test/user/g2"), "group")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	const n = 10
	for i := 0; i < n; i++ {
		router.Tell(i, nil)
	}
	waitN(t, done, n)

	mu.Lock()
	defer mu.Unlock()
	if counts["/test/user/g1"] != n/2 || counts["/test/user/g2"] != n/2 {
		t.Errorf("group distribution = %v, want %d each", counts, n/2)
	}
}

func TestScatterGatherFirstReplyWins(t *testing.T) {
	system := newTestSystem(t)

	props := NewProps(func() Actor { return echoActor{} })
	router, err := system.ActorOf(ScatterGatherPool(props, 3, time.Second), "scatter")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	got := make(chan any, 4)
	asker, err := system.ActorOf(NewProps(func() Actor { return &failOn{got: got} }), "asker")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}

	router.Tell("race", asker)
	select {
	case msg := <-got:
		if msg != "echo:race" {
			t.Errorf("reply = %v, want echo:race", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no scatter-gather reply")
	}
	// Only the first reply is forwarded.
	select {
	case msg := <-got:
		t.Fatalf("extra reply %v forwarded", msg)
	case <-time.After(200 * time.Millisecond):
	}
}
