package client

import (
	"encoding/json"
	"sync"
)

// Sync concerns. Echo detection is scoped per concern so one concern's
// echo cannot suppress detection of another concern's concurrent change.
const (
	concernDrawing = "drawing"
	concernMatch   = "matching"
	concernGapFill = "gap_fill"
	concernPage    = "page"
)

// concernFields maps each concern to the zone fields it owns; only
// these fields participate in that concern's echo fingerprint.
var concernFields = map[string][]string{
	concernDrawing: {"shapes"},
	concernMatch:   {"matches", "resultsRevealed"},
	concernGapFill: {"answers", "submitted"},
	concernPage:    {"page"},
}

// EchoFilter decides whether an incoming ZONE_STATE_UPDATE is the
// server's echo of this client's own last update. The server echoes
// every update back to its sender, so without this check a client
// would reprocess its own changes as remote ones.
type EchoFilter struct {
	mu       sync.Mutex
	lastSent map[string]string // concern -> fingerprint of last sent state
	live     map[string]bool   // concern -> local operation in progress
}

func NewEchoFilter() *EchoFilter {
	return &EchoFilter{
		lastSent: make(map[string]string),
		live:     make(map[string]bool),
	}
}

// Verdict classifies one incoming update for a concern.
type Verdict int

const (
	// ApplyRemote: a genuine remote change, apply it.
	ApplyRemote Verdict = iota
	// DropEcho: this client's own update coming back, discard.
	DropEcho
	// DropLive: a local operation is in progress for this concern;
	// the update is superseded by the local state that will be sent
	// when the operation completes, and the server's next full
	// broadcast reconverges both sides.
	DropLive
)

// RecordSent remembers the state this client just broadcast so the
// server's echo of it can be recognized.
func (f *EchoFilter) RecordSent(concern string, fields map[string]any) {
	fp := fingerprint(concern, fields)
	f.mu.Lock()
	f.lastSent[concern] = fp
	f.mu.Unlock()
}

// Classify is the pure reconciliation decision for one incoming
// concern-scoped update.
func (f *EchoFilter) Classify(concern string, fields map[string]any) Verdict {
	fp := fingerprint(concern, fields)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lastSent[concern] == fp && fp != "" {
		return DropEcho
	}
	if f.live[concern] {
		return DropLive
	}
	return ApplyRemote
}

// BeginLive marks a local operation (a stroke in progress, an
// optimistic toggle awaiting its echo) for a concern. Only that
// concern is held; everything else keeps flowing.
func (f *EchoFilter) BeginLive(concern string) {
	f.mu.Lock()
	f.live[concern] = true
	f.mu.Unlock()
}

// EndLive releases the hold.
func (f *EchoFilter) EndLive(concern string) {
	f.mu.Lock()
	delete(f.live, concern)
	f.mu.Unlock()
}

// fingerprint serializes only the concern's own fields, in canonical
// form, so that structurally equal states compare equal regardless of
// whether they came from local structs or decoded JSON.
func fingerprint(concern string, fields map[string]any) string {
	keys, ok := concernFields[concern]
	if !ok {
		return ""
	}
	scoped := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, present := fields[k]; present {
			scoped[k] = v
		}
	}
	if len(scoped) == 0 {
		return ""
	}
	return canonicalJSON(scoped)
}

// canonicalJSON round-trips through generic JSON values so maps come
// out key-sorted and numbers take one representation.
func canonicalJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return ""
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return ""
	}
	return string(out)
}
