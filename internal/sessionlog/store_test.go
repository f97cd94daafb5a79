package sessionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"liveroom/pkg/types"
)

var dsnCounter int

// openTestStore gives each test its own named in-memory database so
// tests cannot see each other's rows.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsnCounter++
	dsn := fmt.Sprintf("file:sessionlog_test_%d?mode=memory&cache=shared", dsnCounter)
	store, err := Open(dsn)
	if err != nil {
		t.Fatalf("Expected store to open, got %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func entry(entryType, text string) types.SessionLogEntry {
	payload, _ := json.Marshal(map[string]string{"text": text})
	return types.SessionLogEntry{Type: entryType, Payload: payload}
}

func TestAppendAndHistoryOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, "room-1", entry(types.MessageTypeChat, fmt.Sprintf("msg-%d", i))); err != nil {
			t.Fatalf("Expected append %d to succeed, got %v", i, err)
		}
	}

	entries, err := store.History(ctx, "room-1")
	if err != nil {
		t.Fatalf("Expected history read to succeed, got %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(entries))
	}
	for i, e := range entries {
		var payload map[string]string
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			t.Fatalf("Expected decodable payload, got %v", err)
		}
		if want := fmt.Sprintf("msg-%d", i); payload["text"] != want {
			t.Errorf("Expected entry %d to be %q, got %q", i, want, payload["text"])
		}
	}
}

func TestHistoryIsScopedToRoom(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, "room-a", entry(types.MessageTypeChat, "a")); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, "room-b", entry(types.MessageTypeChat, "b")); err != nil {
		t.Fatal(err)
	}

	entries, err := store.History(ctx, "room-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry for room-a, got %d", len(entries))
	}
}

func TestHistoryEmptyRoom(t *testing.T) {
	store := openTestStore(t)

	entries, err := store.History(context.Background(), "empty")
	if err != nil {
		t.Fatalf("Expected empty history read to succeed, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(entries))
	}
}

func TestPurgeRemovesOnlyTargetRoom(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, "room-a", entry(types.MessageTypeChat, "a")); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, "room-b", entry(types.MessageTypeChat, "b")); err != nil {
		t.Fatal(err)
	}

	if err := store.Purge(ctx, "room-a"); err != nil {
		t.Fatalf("Expected purge to succeed, got %v", err)
	}

	if entries, _ := store.History(ctx, "room-a"); len(entries) != 0 {
		t.Errorf("Expected room-a purged, got %d entries", len(entries))
	}
	if entries, _ := store.History(ctx, "room-b"); len(entries) != 1 {
		t.Errorf("Expected room-b untouched, got %d entries", len(entries))
	}
}

func TestAppendAfterCloseFails(t *testing.T) {
	dsnCounter++
	store, err := Open(fmt.Sprintf("file:sessionlog_closed_%d?mode=memory&cache=shared", dsnCounter))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Expected close to succeed, got %v", err)
	}

	err = store.Append(context.Background(), "room-1", entry(types.MessageTypeChat, "late"))
	if err != ErrStoreClosed {
		t.Errorf("Expected ErrStoreClosed, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	dsnCounter++
	store, err := Open(fmt.Sprintf("file:sessionlog_idem_%d?mode=memory&cache=shared", dsnCounter))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Expected second close to be a no-op, got %v", err)
	}
}
