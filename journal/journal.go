// Package journal persists actor lifecycle events and dead letters to
// SQLite using modernc.org/sqlite (pure Go).
package journal

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	actors "github.com/ajsinha/abhikarta-llm-sub002"
)

// Store implements actors.Recorder on a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates a journal database at the given path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		type      TEXT NOT NULL,
		path      TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		reason    TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS dead_letters (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		recipient TEXT NOT NULL,
		sender    TEXT NOT NULL DEFAULT '',
		message   TEXT NOT NULL DEFAULT '',
		reason    TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_path ON events(path);
	CREATE INDEX IF NOT EXISTS idx_dead_letters_recipient ON dead_letters(recipient);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordEvent appends one lifecycle event.
func (s *Store) RecordEvent(e actors.Event) error {
	_, err := s.db.Exec(
		`INSERT INTO events (type, path, timestamp, reason) VALUES (?, ?, ?, ?)`,
		string(e.Type), e.Path, e.Timestamp, e.Reason,
	)
	return err
}

// RecordDeadLetter appends one dead letter. The message is stored as its
// formatted value; arbitrary payloads need not be serializable.
func (s *Store) RecordDeadLetter(dl actors.DeadLetter) error {
	sender := ""
	if dl.Sender != nil {
		sender = dl.Sender.Path()
	}
	_, err := s.db.Exec(
		`INSERT INTO dead_letters (recipient, sender, message, reason, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		dl.Recipient, sender, fmt.Sprintf("%v", dl.Message), dl.Reason, dl.Timestamp,
	)
	return err
}

// ListEvents returns recent lifecycle events, newest first.
func (s *Store) ListEvents(limit int) ([]actors.Event, error) {
	rows, err := s.db.Query(
		`SELECT type, path, timestamp, reason FROM events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []actors.Event
	for rows.Next() {
		var e actors.Event
		var typ string
		if err := rows.Scan(&typ, &e.Path, &e.Timestamp, &e.Reason); err != nil {
			return nil, err
		}
		e.Type = actors.EventType(typ)
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeadLetterRecord is one persisted dead letter row.
type DeadLetterRecord struct {
	Recipient string
	Sender    string
	Message   string
	Reason    string
}

// ListDeadLetters returns recent dead letters, newest first.
func (s *Store) ListDeadLetters(limit int) ([]DeadLetterRecord, error) {
	rows, err := s.db.Query(
		`SELECT recipient, sender, message, reason FROM dead_letters ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DeadLetterRecord
	for rows.Next() {
		var r DeadLetterRecord
		if err := rows.Scan(&r.Recipient, &r.Sender, &r.Message, &r.Reason); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

var _ actors.Recorder = (*Store)(nil)
