// Package sessionlog keeps the per-room append-only event log that
// backs history replay. The store runs on an in-memory SQLite database:
// the log needs ordered append and ranged reads but must not outlive
// the process, and a room's rows are deleted the moment the room is
// destroyed.
package sessionlog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"liveroom/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_log (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    TEXT NOT NULL,
	entry_type TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_log_room ON session_log(room_id, seq);
`

// Store implements interfaces.SessionLog on SQLite.
type Store struct {
	db       *sql.DB
	writeCh  chan writeOp
	shutdown chan struct{}
	wg       sync.WaitGroup
	closed   bool
	mu       sync.RWMutex
}

type writeOp struct {
	run    func(*sql.DB) error
	result chan error
}

// Open creates the store. An empty dsn selects the in-memory database;
// cache=shared keeps the schema visible across pooled connections.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = "file:liveroom?mode=memory&cache=shared"
	}
	sep := "&"
	if !strings.Contains(dsn, "?") {
		sep = "?"
	}
	db, err := sql.Open("sqlite3", dsn+sep+"_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}
	// A single connection avoids write contention and keeps the shared
	// in-memory database alive for the process lifetime.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create session log schema: %w", err)
	}

	s := &Store{
		db:       db,
		writeCh:  make(chan writeOp, 100),
		shutdown: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// writeLoop serializes all writes through one goroutine.
func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writeCh:
			op.result <- op.run(s.db)
		case <-s.shutdown:
			return
		}
	}
}

func (s *Store) executeWrite(run func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeCh <- writeOp{run: run, result: result}:
		return <-result
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-s.shutdown:
		return ErrStoreClosed
	}
}

// Append records one entry at the end of the room's log.
func (s *Store) Append(ctx context.Context, roomID string, entry types.SessionLogEntry) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO session_log (room_id, entry_type, payload, created_at) VALUES (?, ?, ?, ?)`,
			roomID, entry.Type, string(entry.Payload), time.Now(),
		)
		if err != nil {
			return fmt.Errorf("failed to append log entry: %w", err)
		}
		return nil
	})
}

// History returns the room's full log in append order.
func (s *Store) History(ctx context.Context, roomID string) ([]types.SessionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_type, payload FROM session_log WHERE room_id = ? ORDER BY seq`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query session log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []types.SessionLogEntry
	for rows.Next() {
		var entry types.SessionLogEntry
		var payload string
		if err := rows.Scan(&entry.Type, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entry.Payload = []byte(payload)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session log: %w", err)
	}
	return entries, nil
}

// Purge discards a room's log when the room is destroyed.
func (s *Store) Purge(ctx context.Context, roomID string) error {
	return s.executeWrite(func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, `DELETE FROM session_log WHERE room_id = ?`, roomID); err != nil {
			return fmt.Errorf("failed to purge session log: %w", err)
		}
		return nil
	})
}

// Close shuts down the write loop and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
	log.Println("Session log store closed")
	return s.db.Close()
}
