package client

import (
	"testing"

	"liveroom/pkg/types"
)

func TestMatchingSetMatchEmitsPartialUpdate(t *testing.T) {
	cap := &capture{}
	sync := NewMatchingSync(cap.send, NewEchoFilter())

	if err := sync.SetMatch("q1", "a1"); err != nil {
		t.Fatalf("Expected match to emit, got %v", err)
	}

	if len(cap.sent) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(cap.sent))
	}
	env := cap.sent[0]
	if env.Type != types.MessageTypeZoneAction {
		t.Errorf("Expected ZONE_ACTION, got %q", env.Type)
	}
	if env.Data["activity_type"] != types.ActivityMatching {
		t.Errorf("Expected matching activity, got %v", env.Data["activity_type"])
	}
	matches := env.Data["matches"].(map[string]string)
	if matches["q1"] != "a1" {
		t.Errorf("Expected q1->a1, got %v", matches)
	}
	if _, present := env.Data["resultsRevealed"]; present {
		t.Error("Expected a partial update without untouched fields")
	}
}

func TestMatchingResetIsAtomic(t *testing.T) {
	cap := &capture{}
	sync := NewMatchingSync(cap.send, NewEchoFilter())

	if err := sync.SetMatch("q1", "a1"); err != nil {
		t.Fatal(err)
	}
	if err := sync.SetRevealed(); err != nil {
		t.Fatal(err)
	}
	if err := sync.Reset(); err != nil {
		t.Fatal(err)
	}

	// Both fields must travel in the single reset frame; two frames
	// would let a peer observe empty matches with reveal still set.
	env := cap.sent[len(cap.sent)-1]
	matches, ok := env.Data["matches"].(map[string]string)
	if !ok || len(matches) != 0 {
		t.Errorf("Expected empty matches in the reset frame, got %v", env.Data["matches"])
	}
	if env.Data["resultsRevealed"] != false {
		t.Errorf("Expected resultsRevealed=false in the same frame, got %v", env.Data["resultsRevealed"])
	}

	state := sync.State()
	if len(state.Matches) != 0 || state.ResultsRevealed {
		t.Errorf("Expected clean local state, got %+v", state)
	}
}

func TestMatchingApplyRemote(t *testing.T) {
	sync := NewMatchingSync((&capture{}).send, NewEchoFilter())

	fields := wireFields(t, map[string]any{
		"matches":         map[string]string{"q1": "a2", "q2": "a1"},
		"resultsRevealed": true,
	})
	if err := sync.ApplyRemote(fields); err != nil {
		t.Fatalf("Expected remote apply to succeed, got %v", err)
	}

	state := sync.State()
	if state.Matches["q2"] != "a1" || !state.ResultsRevealed {
		t.Errorf("Expected adopted remote state, got %+v", state)
	}
}

func TestMatchingOwnEchoClassifiesAsDrop(t *testing.T) {
	echo := NewEchoFilter()
	cap := &capture{}
	sync := NewMatchingSync(cap.send, echo)

	if err := sync.SetMatch("q1", "a1"); err != nil {
		t.Fatal(err)
	}

	sent := cap.sent[0]
	echoed := wireFields(t, map[string]any{"matches": sent.Data["matches"]})
	if got := echo.Classify(concernMatch, echoed); got != DropEcho {
		t.Errorf("Expected own echo to drop, got %v", got)
	}
}

func TestGapFillFlow(t *testing.T) {
	cap := &capture{}
	sync := NewGapFillSync(cap.send, NewEchoFilter())

	if err := sync.SetAnswer("g1", "went"); err != nil {
		t.Fatal(err)
	}
	if err := sync.SetAnswer("g2", "gone"); err != nil {
		t.Fatal(err)
	}
	if err := sync.Submit(); err != nil {
		t.Fatal(err)
	}

	state := sync.State()
	if state.Answers["g1"] != "went" || state.Answers["g2"] != "gone" {
		t.Errorf("Expected both answers recorded, got %v", state.Answers)
	}
	if !state.Submitted {
		t.Error("Expected submitted state")
	}

	// The submit frame carries only the flag; answers already traveled.
	last := cap.sent[len(cap.sent)-1]
	if last.Data["submitted"] != true {
		t.Errorf("Expected submitted=true, got %v", last.Data["submitted"])
	}
	if _, present := last.Data["answers"]; present {
		t.Error("Expected submit to be a partial update")
	}
}

func TestGapFillResetIsAtomic(t *testing.T) {
	cap := &capture{}
	sync := NewGapFillSync(cap.send, NewEchoFilter())

	if err := sync.SetAnswer("g1", "went"); err != nil {
		t.Fatal(err)
	}
	if err := sync.Submit(); err != nil {
		t.Fatal(err)
	}
	if err := sync.Reset(); err != nil {
		t.Fatal(err)
	}

	env := cap.sent[len(cap.sent)-1]
	answers, ok := env.Data["answers"].(map[string]string)
	if !ok || len(answers) != 0 {
		t.Errorf("Expected empty answers in the reset frame, got %v", env.Data["answers"])
	}
	if env.Data["submitted"] != false {
		t.Errorf("Expected submitted=false in the same frame, got %v", env.Data["submitted"])
	}
}

func TestPagerAuthoritativeBroadcasts(t *testing.T) {
	cap := &capture{}
	pager := NewPagerSync(cap.send, NewEchoFilter(), true)

	if err := pager.SetPage(4); err != nil {
		t.Fatal(err)
	}

	if pager.Page() != 4 {
		t.Errorf("Expected local page 4, got %d", pager.Page())
	}
	if len(cap.sent) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(cap.sent))
	}
	env := cap.sent[0]
	if env.Data["activity_type"] != types.ActivityPaginatedDocument {
		t.Errorf("Expected paginated_document activity, got %v", env.Data["activity_type"])
	}
	if env.Data["page"] != 4 {
		t.Errorf("Expected page 4, got %v", env.Data["page"])
	}
}

func TestPagerNonAuthoritativeStaysLocal(t *testing.T) {
	cap := &capture{}
	pager := NewPagerSync(cap.send, NewEchoFilter(), false)

	if err := pager.SetPage(9); err != nil {
		t.Fatal(err)
	}

	if pager.Page() != 9 {
		t.Errorf("Expected local navigation to work, got page %d", pager.Page())
	}
	if len(cap.sent) != 0 {
		t.Errorf("Expected no frames from a non-authoritative pager, got %d", len(cap.sent))
	}

	// The next remote update overwrites the local pointer.
	if err := pager.ApplyRemote(wireFields(t, map[string]any{"page": 2})); err != nil {
		t.Fatal(err)
	}
	if pager.Page() != 2 {
		t.Errorf("Expected remote page to win, got %d", pager.Page())
	}
}
