package journal

import (
	"path/filepath"
	"testing"
	"time"

	actors "github.com/ajsinha/abhikarta-llm-sub002"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListEvents(t *testing.T) {
	s := openTestStore(t)

	events := []actors.Event{
		{Type: actors.EventActorStarted, Path: "/sys/user/a", Timestamp: time.Now()},
		{Type: actors.EventActorRestarted, Path: "/sys/user/a", Timestamp: time.Now(), Reason: "boom"},
		{Type: actors.EventActorStopped, Path: "/sys/user/a", Timestamp: time.Now()},
	}
	for _, e := range events {
		if err := s.RecordEvent(e); err != nil {
			t.Fatalf("RecordEvent(%s): %v", e.Type, err)
		}
	}

	got, err := s.ListEvents(10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListEvents returned %d rows, want 3", len(got))
	}
	// Newest first.
	if got[0].Type != actors.EventActorStopped {
		t.Errorf("newest event = %s, want %s", got[0].Type, actors.EventActorStopped)
	}
	if got[1].Reason != "boom" {
		t.Errorf("restart reason = %q", got[1].Reason)
	}
}

func TestRecordAndListDeadLetters(t *testing.T) {
	s := openTestStore(t)

	dl := actors.DeadLetter{
		Message:   map[string]int{"n": 1},
		Recipient: "/sys/user/gone",
		Reason:    "no such actor",
		Timestamp: time.Now(),
	}
	if err := s.RecordDeadLetter(dl); err != nil {
		t.Fatalf("RecordDeadLetter: %v", err)
	}

	got, err := s.ListDeadLetters(10)
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListDeadLetters returned %d rows, want 1", len(got))
	}
	if got[0].Recipient != "/sys/user/gone" {
		t.Errorf("Recipient = %s", got[0].Recipient)
	}
	if got[0].Message == "" {
		t.Error("Message column empty; payload formatting lost")
	}
}

func TestListEventsLimit(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		if err := s.RecordEvent(actors.Event{Type: actors.EventActorStarted, Path: "/sys/user/x", Timestamp: time.Now()}); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}
	got, err := s.ListEvents(2)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ListEvents(2) returned %d rows", len(got))
	}
}

func TestStoreAsSystemJournal(t *testing.T) {
	s := openTestStore(t)

	system, err := actors.NewActorSystem("journaled", actors.WithJournal(s))
	if err != nil {
		t.Fatalf("NewActorSystem: %v", err)
	}

	ref, err := system.ActorOf(actors.NewProps(func() actors.Actor { return &actors.BaseActor{} }), "w")
	if err != nil {
		t.Fatalf("ActorOf: %v", err)
	}
	system.StopAndWait(ref, 2*time.Second)

	events, err := s.ListEvents(10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) == 0 {
		t.Error("no lifecycle events journaled")
	}
	system.Terminate()
}
