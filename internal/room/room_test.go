package room

import (
	"context"
	"sync"
	"testing"

	"liveroom/pkg/types"
)

// fakeSessionLog records appends in memory for assertions.
type fakeSessionLog struct {
	mu      sync.Mutex
	entries map[string][]types.SessionLogEntry
	purged  []string
}

func newFakeSessionLog() *fakeSessionLog {
	return &fakeSessionLog{entries: make(map[string][]types.SessionLogEntry)}
}

func (f *fakeSessionLog) Append(ctx context.Context, roomID string, entry types.SessionLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[roomID] = append(f.entries[roomID], entry)
	return nil
}

func (f *fakeSessionLog) History(ctx context.Context, roomID string) ([]types.SessionLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.SessionLogEntry(nil), f.entries[roomID]...), nil
}

func (f *fakeSessionLog) Purge(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, roomID)
	f.purged = append(f.purged, roomID)
	return nil
}

func TestApplyZoneActionMergesKeywise(t *testing.T) {
	rm := newRoom("room-1", newFakeSessionLog())
	ctx := context.Background()

	_, err := rm.ApplyZoneAction(ctx, types.ActivityMatching, map[string]any{
		"matches": map[string]any{"q1": "a1"},
	})
	if err != nil {
		t.Fatalf("Expected first update to succeed, got %v", err)
	}

	zone, err := rm.ApplyZoneAction(ctx, types.ActivityMatching, map[string]any{
		"resultsRevealed": true,
	})
	if err != nil {
		t.Fatalf("Expected second update to succeed, got %v", err)
	}

	if _, ok := zone.Fields["matches"]; !ok {
		t.Error("Expected earlier matches field to survive the merge")
	}
	if zone.Fields["resultsRevealed"] != true {
		t.Error("Expected new field to be present after the merge")
	}
}

func TestApplyZoneActionMergeOrderIndependentAcrossKeys(t *testing.T) {
	// Two concurrent updates touching disjoint keys must converge to the
	// same state regardless of server arrival order.
	ctx := context.Background()
	a := map[string]any{"matches": map[string]any{"q1": "a1"}}
	b := map[string]any{"resultsRevealed": true}

	first := newRoom("room-ab", newFakeSessionLog())
	if _, err := first.ApplyZoneAction(ctx, types.ActivityMatching, a); err != nil {
		t.Fatal(err)
	}
	zoneAB, err := first.ApplyZoneAction(ctx, types.ActivityMatching, b)
	if err != nil {
		t.Fatal(err)
	}

	second := newRoom("room-ba", newFakeSessionLog())
	if _, err := second.ApplyZoneAction(ctx, types.ActivityMatching, b); err != nil {
		t.Fatal(err)
	}
	zoneBA, err := second.ApplyZoneAction(ctx, types.ActivityMatching, a)
	if err != nil {
		t.Fatal(err)
	}

	if len(zoneAB.Fields) != len(zoneBA.Fields) {
		t.Fatalf("Expected same field count, got %d vs %d", len(zoneAB.Fields), len(zoneBA.Fields))
	}
	for k := range zoneAB.Fields {
		if _, ok := zoneBA.Fields[k]; !ok {
			t.Errorf("Expected field %q in both orders", k)
		}
	}
	if zoneAB.Fields["resultsRevealed"] != zoneBA.Fields["resultsRevealed"] {
		t.Error("Expected resultsRevealed to agree across arrival orders")
	}
}

func TestApplyZoneActionSameKeyLastWriteWins(t *testing.T) {
	rm := newRoom("room-1", newFakeSessionLog())
	ctx := context.Background()

	if _, err := rm.ApplyZoneAction(ctx, types.ActivityPaginatedDocument, map[string]any{"page": 1}); err != nil {
		t.Fatal(err)
	}
	zone, err := rm.ApplyZoneAction(ctx, types.ActivityPaginatedDocument, map[string]any{"page": 5})
	if err != nil {
		t.Fatal(err)
	}

	if zone.Fields["page"] != 5 {
		t.Errorf("Expected last write to win, got page=%v", zone.Fields["page"])
	}
}

func TestApplyZoneActionActivitySwitchReplacesState(t *testing.T) {
	rm := newRoom("room-1", newFakeSessionLog())
	ctx := context.Background()

	if _, err := rm.ApplyZoneAction(ctx, types.ActivityMatching, map[string]any{
		"matches": map[string]any{"q1": "a1"},
	}); err != nil {
		t.Fatal(err)
	}

	zone, err := rm.ApplyZoneAction(ctx, types.ActivityDrawing, map[string]any{
		"shapes": []any{},
	})
	if err != nil {
		t.Fatal(err)
	}

	if zone.ActivityType != types.ActivityDrawing {
		t.Errorf("Expected activity %q, got %q", types.ActivityDrawing, zone.ActivityType)
	}
	if _, leaked := zone.Fields["matches"]; leaked {
		t.Error("Expected previous activity's fields to be discarded on switch")
	}
}

func TestClearBoardEmptiesShapes(t *testing.T) {
	rm := newRoom("room-1", newFakeSessionLog())
	ctx := context.Background()

	if _, err := rm.ApplyZoneAction(ctx, types.ActivityDrawing, map[string]any{
		"shapes": []any{map[string]any{"id": "s1"}},
	}); err != nil {
		t.Fatal(err)
	}

	zone, err := rm.ClearBoard(ctx)
	if err != nil {
		t.Fatalf("Expected clear to succeed, got %v", err)
	}

	shapes, ok := zone.Fields["shapes"].([]any)
	if !ok {
		t.Fatalf("Expected shapes list, got %T", zone.Fields["shapes"])
	}
	if len(shapes) != 0 {
		t.Errorf("Expected empty shape list, got %d shapes", len(shapes))
	}
}

func TestZoneUpdatesAreLogged(t *testing.T) {
	logStore := newFakeSessionLog()
	rm := newRoom("room-1", logStore)
	ctx := context.Background()

	if _, err := rm.ApplyZoneAction(ctx, types.ActivityGapFill, map[string]any{
		"answers": map[string]any{"g1": "went"},
	}); err != nil {
		t.Fatal(err)
	}

	entries, _ := logStore.History(ctx, "room-1")
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Type != types.MessageTypeZoneStateUpdate {
		t.Errorf("Expected entry type %q, got %q", types.MessageTypeZoneStateUpdate, entries[0].Type)
	}
}

func TestApplyMediaTracksPlaybackState(t *testing.T) {
	rm := newRoom("room-1", newFakeSessionLog())

	if _, ok := rm.Media(); ok {
		t.Error("Expected no media state before any event")
	}

	rm.ApplyMedia(types.MessageTypeVideoPlay, types.VideoEvent{T: 12.5})
	state, ok := rm.Media()
	if !ok {
		t.Fatal("Expected media state after a play event")
	}
	if !state.Playing || state.T != 12.5 {
		t.Errorf("Expected playing at 12.5, got %+v", state)
	}

	rm.ApplyMedia(types.MessageTypeVideoSync, types.VideoEvent{T: 19.5})
	state, _ = rm.Media()
	if !state.Playing || state.T != 19.5 {
		t.Errorf("Expected heartbeat to advance position only, got %+v", state)
	}

	rm.ApplyMedia(types.MessageTypeVideoPause, types.VideoEvent{T: 21})
	state, _ = rm.Media()
	if state.Playing {
		t.Error("Expected pause to stop playback state")
	}
}

func TestSetLessonAndChatAreLogged(t *testing.T) {
	logStore := newFakeSessionLog()
	rm := newRoom("room-1", logStore)
	ctx := context.Background()

	chat := &types.Envelope{Type: types.MessageTypeChat, Data: map[string]any{"name": "a", "text": "hi"}}
	if err := rm.AppendChat(ctx, chat); err != nil {
		t.Fatal(err)
	}
	lesson := &types.Envelope{Type: types.MessageTypeLessonUpdate, Data: map[string]any{
		"lesson": map[string]any{"id": "l1"}, "slideIndex": 0,
	}}
	if err := rm.SetLesson(ctx, lesson); err != nil {
		t.Fatal(err)
	}

	entries, _ := logStore.History(ctx, "room-1")
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Type != types.MessageTypeChat || entries[1].Type != types.MessageTypeLessonUpdate {
		t.Errorf("Expected append order preserved, got %q then %q", entries[0].Type, entries[1].Type)
	}
}
