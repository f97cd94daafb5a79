package types

import (
	"encoding/json"
)

// Participant roles. A room holds exactly one of each.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Wire message types. Field names and casing must match the protocol
// exactly; the uppercase types are part of the established wire format.
const (
	MessageTypeChat            = "chat_message"
	MessageTypeLessonUpdate    = "lesson_update"
	MessageTypeLessonState     = "lesson_state" // accepted alias of lesson_update
	MessageTypeHistoryDump     = "history_dump"
	MessageTypeZoneAction      = "ZONE_ACTION"
	MessageTypeZoneStateUpdate = "ZONE_STATE_UPDATE"
	MessageTypeBoardClear      = "board_clear"
	MessageTypeVideoPlay       = "VIDEO_PLAY"
	MessageTypeVideoPause      = "VIDEO_PAUSE"
	MessageTypeVideoSeek       = "VIDEO_SEEK"
	MessageTypeVideoSync       = "VIDEO_SYNC"
	MessageTypeVideoState      = "VIDEO_STATE"
	MessageTypeSystem          = "system"
)

// Activity types carried in lesson snapshots and zone actions.
const (
	ActivityDrawing           = "drawing"
	ActivityMatching          = "matching"
	ActivityGapFill           = "gap_fill"
	ActivityQuiz              = "quiz"
	ActivityPaginatedDocument = "paginated_document"
	ActivityVideo             = "video"
)

// Envelope is the generic wire frame: a "type" discriminator plus the
// remaining top-level fields. Several message types spread their payload
// at the top level (ZONE_ACTION, ZONE_STATE_UPDATE), so the payload is
// kept as a flat map rather than a nested object.
type Envelope struct {
	Type string
	Data map[string]any
}

// NewEnvelope builds an envelope from a typed payload by flattening its
// JSON fields next to the type discriminator.
func NewEnvelope(msgType string, payload any) (*Envelope, error) {
	data := map[string]any{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
	}
	return &Envelope{Type: msgType, Data: data}, nil
}

// Decode unmarshals the envelope's payload fields into a typed struct.
func (e *Envelope) Decode(v any) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (e *Envelope) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		m[k] = v
	}
	m["type"] = e.Type
	return json.Marshal(m)
}

// UnmarshalJSON parses a wire frame. The legacy "lesson_state" alias is
// normalized here so the rest of the pipeline only ever sees one type.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	msgType, ok := m["type"].(string)
	if !ok || msgType == "" {
		return ErrMissingMessageType
	}
	if msgType == MessageTypeLessonState {
		msgType = MessageTypeLessonUpdate
	}
	delete(m, "type")
	e.Type = msgType
	e.Data = m
	return nil
}

// ChatMessage is appended to the room log and broadcast as-is.
// Ordering is arrival order at the server.
type ChatMessage struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Time int64  `json:"time"` // unix milliseconds
}

// LessonSnapshot is immutable once broadcast; the next lesson_update
// replaces it wholesale, it is never patched.
type LessonSnapshot struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Activities []Activity `json:"activities"`
}

// Activity content is opaque to the sync core except for the fields the
// relevant sub-synchronizer reads.
type Activity struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Order   int            `json:"order"`
	Content map[string]any `json:"content,omitempty"`
}

// LessonUpdate replaces the room's lesson state wholesale.
type LessonUpdate struct {
	Lesson     LessonSnapshot `json:"lesson"`
	SlideIndex int            `json:"slideIndex"`
}

// SessionLogEntry wraps one logged room event for history replay.
type SessionLogEntry struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HistoryDump carries the room's full session log, sent once per
// connection immediately after open.
type HistoryDump struct {
	Data []SessionLogEntry `json:"data"`
}

// VideoEvent carries a playback position in seconds. Playing is only
// meaningful on VIDEO_STATE, which describes the room's current media
// state to a late joiner.
type VideoEvent struct {
	T       float64 `json:"t"`
	Playing bool    `json:"playing,omitempty"`
}

// Point is one sample of a freehand or eraser path, in unit coordinates
// on the wire.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is a parametric rectangle anchored at its top-left corner.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Circle is a parametric circle. The radius is normalized against the
// horizontal axis.
type Circle struct {
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`
	R  float64 `json:"r"`
}

// Geometry holds exactly one of a point sequence or a parametric form.
type Geometry struct {
	Points []Point `json:"points,omitempty"`
	Box    *Box    `json:"box,omitempty"`
	Circle *Circle `json:"circle,omitempty"`
}

// DrawShape is one shape on the shared board. Geometry is stored and
// transmitted in normalized unit coordinates so participants with
// different canvas sizes agree on placement.
type DrawShape struct {
	ID          string   `json:"id"`
	Tool        string   `json:"tool"`
	Stroke      string   `json:"stroke"`
	StrokeWidth float64  `json:"strokeWidth"`
	Geometry    Geometry `json:"geometry"`
}
