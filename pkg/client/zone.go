package client

import (
	"encoding/json"
	"sync"

	"liveroom/pkg/types"
)

// The activity synchronizers share one protocol: emit a partial state,
// the server merges it key-wise and broadcasts the full result, every
// client applies it after echo classification. Each activity defines
// its own partial-state shape.
//
// Quiz answers deliberately have no synchronizer: a quiz is a private
// assessment per participant, not a shared artifact, so selections and
// submissions never leave the client.

// MatchingState is the shared state of a matching activity.
type MatchingState struct {
	Matches         map[string]string `json:"matches"`
	ResultsRevealed bool              `json:"resultsRevealed"`
}

// MatchingSync synchronizes matched pairs and the reveal flag. The
// reveal flag is shared state, not local: correctness feedback must be
// simultaneous for both participants, late joiners included.
type MatchingSync struct {
	send sendFunc
	echo *EchoFilter

	mu    sync.Mutex
	state MatchingState
}

func NewMatchingSync(send sendFunc, echo *EchoFilter) *MatchingSync {
	return &MatchingSync{
		send:  send,
		echo:  echo,
		state: MatchingState{Matches: map[string]string{}},
	}
}

// SetMatch records one question→answer pair and emits the partial
// update.
func (m *MatchingSync) SetMatch(question, answer string) error {
	m.mu.Lock()
	m.state.Matches[question] = answer
	fields := map[string]any{"matches": copyStringMap(m.state.Matches)}
	m.mu.Unlock()

	return m.emit(fields)
}

// SetRevealed toggles the shared reveal flag on.
func (m *MatchingSync) SetRevealed() error {
	m.mu.Lock()
	m.state.ResultsRevealed = true
	m.mu.Unlock()

	return m.emit(map[string]any{"resultsRevealed": true})
}

// Reset clears matches and the reveal flag together in one broadcast.
// The two fields must never travel separately: no client may observe
// empty matches with the prior reveal still set.
func (m *MatchingSync) Reset() error {
	m.mu.Lock()
	m.state = MatchingState{Matches: map[string]string{}}
	m.mu.Unlock()

	return m.emit(map[string]any{
		"matches":         map[string]string{},
		"resultsRevealed": false,
	})
}

// ApplyRemote adopts the server's merged state.
func (m *MatchingSync) ApplyRemote(fields map[string]any) error {
	var state MatchingState
	if err := decodeFields(fields, &state); err != nil {
		return err
	}
	if state.Matches == nil {
		state.Matches = map[string]string{}
	}
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	return nil
}

// State returns a copy of the current matching state.
func (m *MatchingSync) State() MatchingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MatchingState{
		Matches:         copyStringMap(m.state.Matches),
		ResultsRevealed: m.state.ResultsRevealed,
	}
}

func (m *MatchingSync) emit(fields map[string]any) error {
	m.echo.RecordSent(concernMatch, fields)
	return sendZoneAction(m.send, types.ActivityMatching, fields)
}

// GapFillState is the shared state of a gap-fill activity.
type GapFillState struct {
	Answers   map[string]string `json:"answers"`
	Submitted bool              `json:"submitted"`
}

// GapFillSync synchronizes fill-in answers and the submission flag so
// the teacher watches the student's answers arrive in real time.
type GapFillSync struct {
	send sendFunc
	echo *EchoFilter

	mu    sync.Mutex
	state GapFillState
}

func NewGapFillSync(send sendFunc, echo *EchoFilter) *GapFillSync {
	return &GapFillSync{
		send:  send,
		echo:  echo,
		state: GapFillState{Answers: map[string]string{}},
	}
}

// SetAnswer records one gap's text and emits the partial update.
func (g *GapFillSync) SetAnswer(gap, text string) error {
	g.mu.Lock()
	g.state.Answers[gap] = text
	fields := map[string]any{"answers": copyStringMap(g.state.Answers)}
	g.mu.Unlock()

	return g.emit(fields)
}

// Submit marks the activity submitted.
func (g *GapFillSync) Submit() error {
	g.mu.Lock()
	g.state.Submitted = true
	g.mu.Unlock()

	return g.emit(map[string]any{"submitted": true})
}

// Reset clears answers and submission together, atomically.
func (g *GapFillSync) Reset() error {
	g.mu.Lock()
	g.state = GapFillState{Answers: map[string]string{}}
	g.mu.Unlock()

	return g.emit(map[string]any{
		"answers":   map[string]string{},
		"submitted": false,
	})
}

// ApplyRemote adopts the server's merged state.
func (g *GapFillSync) ApplyRemote(fields map[string]any) error {
	var state GapFillState
	if err := decodeFields(fields, &state); err != nil {
		return err
	}
	if state.Answers == nil {
		state.Answers = map[string]string{}
	}
	g.mu.Lock()
	g.state = state
	g.mu.Unlock()
	return nil
}

// State returns a copy of the current gap-fill state.
func (g *GapFillSync) State() GapFillState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GapFillState{
		Answers:   copyStringMap(g.state.Answers),
		Submitted: g.state.Submitted,
	}
}

func (g *GapFillSync) emit(fields map[string]any) error {
	g.echo.RecordSent(concernGapFill, fields)
	return sendZoneAction(g.send, types.ActivityGapFill, fields)
}

// PagerSync synchronizes the current page of a paginated document.
// Only the teacher's navigation is authoritative: a non-authoring
// participant's local pointer is always overwritten by an incoming
// update, never merged.
type PagerSync struct {
	send          sendFunc
	echo          *EchoFilter
	authoritative bool

	mu   sync.Mutex
	page int
}

func NewPagerSync(send sendFunc, echo *EchoFilter, authoritative bool) *PagerSync {
	return &PagerSync{send: send, echo: echo, authoritative: authoritative}
}

// SetPage navigates to a page. Non-authoritative participants only
// move locally until the next authoritative update overwrites them.
func (p *PagerSync) SetPage(page int) error {
	p.mu.Lock()
	p.page = page
	p.mu.Unlock()

	if !p.authoritative {
		return nil
	}
	fields := map[string]any{"page": page}
	p.echo.RecordSent(concernPage, fields)
	return sendZoneAction(p.send, types.ActivityPaginatedDocument, fields)
}

// ApplyRemote always adopts the incoming page.
func (p *PagerSync) ApplyRemote(fields map[string]any) error {
	var state struct {
		Page int `json:"page"`
	}
	if err := decodeFields(fields, &state); err != nil {
		return err
	}
	p.mu.Lock()
	p.page = state.Page
	p.mu.Unlock()
	return nil
}

// Page returns the current local page.
func (p *PagerSync) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

func sendZoneAction(send sendFunc, activityType string, fields map[string]any) error {
	data := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		data[k] = v
	}
	data["activity_type"] = activityType
	return send(&types.Envelope{Type: types.MessageTypeZoneAction, Data: data})
}

func decodeFields(fields map[string]any, v any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
