package client

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

const (
	// snapshotDebounce batches rapid state changes into one write; the
	// pending write is rescheduled on every change inside the window.
	snapshotDebounce = 500 * time.Millisecond

	// snapshotMaxBytes bounds the cache. The snapshot holds minimal
	// identifiers, never bulk content; anything bigger is a bug and is
	// refused rather than written.
	snapshotMaxBytes = 4096
)

// Snapshot is the minimal state a reload needs to resume quickly while
// the authoritative state is re-fetched from the server.
type Snapshot struct {
	Room       string `json:"room"`
	LessonID   string `json:"lessonId"`
	SlideIndex int    `json:"slideIndex"`
	SavedAt    int64  `json:"savedAt"`
}

// SnapshotStore is the best-effort local cache. It is a convenience,
// not authoritative state: every failure is swallowed with only a
// diagnostic log line, and a corrupt cache is discarded at parse time.
type SnapshotStore struct {
	path string

	mu      sync.Mutex
	pending *Snapshot
	timer   *time.Timer
	closed  bool
}

func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Queue schedules a debounced write. A change arriving within the
// debounce window cancels and replaces the previous pending write.
func (s *SnapshotStore) Queue(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.pending = &snap
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(snapshotDebounce, s.flushPending)
}

// Flush writes any pending snapshot immediately.
func (s *SnapshotStore) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.flushPending()
}

// Load reads the cached snapshot. Malformed or oversized caches are
// discarded; restoration proceeds without them.
func (s *SnapshotStore) Load() (*Snapshot, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false
	}
	if len(data) > snapshotMaxBytes {
		log.Printf("Discarding oversized snapshot cache: %d bytes", len(data))
		_ = os.Remove(s.path)
		return nil, false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("Discarding corrupt snapshot cache: %v", err)
		_ = os.Remove(s.path)
		return nil, false
	}
	if snap.Room == "" {
		return nil, false
	}
	return &snap, true
}

// Close stops the debounce timer without writing.
func (s *SnapshotStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *SnapshotStore) flushPending() {
	s.mu.Lock()
	snap := s.pending
	s.pending = nil
	s.mu.Unlock()
	if snap == nil {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("Snapshot encode failed: %v", err)
		return
	}
	if len(data) > snapshotMaxBytes {
		log.Printf("Refusing oversized snapshot: %d bytes", len(data))
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		// Quota or permission problems must never surface to the
		// interactive path.
		log.Printf("Snapshot write failed: %v", err)
	}
}
