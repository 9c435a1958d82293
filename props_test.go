package actors

import (
	"testing"
	"time"
)

func TestPropsAreImmutable(t *testing.T) {
	base := NewProps(func() Actor { return &BaseActor{} })

	pinned := base.WithDispatcher(DispatcherConfig{Kind: DispatcherPinned})
	if base.Dispatcher().Kind != DispatcherDefault {
		t.Error("WithDispatcher mutated the original Props")
	}
	if pinned.Dispatcher().Kind != DispatcherPinned {
		t.Error("WithDispatcher did not apply to the copy")
	}

	bounded := base.WithMailbox(MailboxConfig{Kind: MailboxBounded, Capacity: 8})
	if base.Mailbox().Kind != MailboxUnbounded {
		t.Error("WithMailbox mutated the original Props")
	}
	if bounded.Mailbox().Capacity != 8 {
		t.Error("WithMailbox did not apply to the copy")
	}

	strategy := NewOneForOneStrategy(3, time.Minute)
	supervised := base.WithSupervisor(strategy)
	if base.Supervisor() != nil {
		t.Error("WithSupervisor mutated the original Props")
	}
	if supervised.Supervisor() != strategy {
		t.Error("WithSupervisor did not apply to the copy")
	}
}

func TestPropsBuilder(t *testing.T) {
	strategy := NewAllForOneStrategy(5, time.Minute)
	props := NewPropsBuilder(func() Actor { return &BaseActor{} }).
		Dispatcher(DispatcherConfig{Kind: DispatcherForkJoin, PoolSize: 2}).
		Mailbox(MailboxConfig{Kind: MailboxPriority}).
		Supervisor(strategy).
		Build()

	if props.Dispatcher().Kind != DispatcherForkJoin {
		t.Errorf("Dispatcher().Kind = %v", props.Dispatcher().Kind)
	}
	if props.Mailbox().Kind != MailboxPriority {
		t.Errorf("Mailbox().Kind = %v", props.Mailbox().Kind)
	}
	if props.Supervisor() != strategy {
		t.Error("Supervisor() lost the configured strategy")
	}
}

func TestPropsSpawnWithCustomMailboxAndDispatcher(t *testing.T) {
	system := newTestSystem(t)

	got := make(chan any, 8)
	props := NewProps(func() Actor { return &failOn{got: got} }).
		WithDispatcher(DispatcherConfig{Kind: DispatcherPinned}).
		WithMailbox(MailboxConfig{Kind: MailboxPriority})

	ref, err := system.ActorOf(props, "custom")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}
	ref.Tell("hello", nil)
	select {
	case msg := <-got:
		if msg != "hello" {
			t.Errorf("got %v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message never delivered through custom dispatcher")
	}
}
