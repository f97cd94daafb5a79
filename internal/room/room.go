// Package room holds the server-side authoritative state for live
// lesson sessions: one mutable structure per room, mutated only through
// the hub's serializing loop, plus the append-only session log used for
// history replay.
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"liveroom/pkg/interfaces"
	"liveroom/pkg/types"
)

// Room is the shared state of one lesson session. It is created on the
// first participant join and discarded when the last participant
// disconnects. All mutation happens on the hub goroutine; the struct
// itself is not locked.
type Room struct {
	ID string

	lesson *types.Envelope // last lesson_update payload, replaced wholesale
	zone   *ZoneState
	media  *MediaState

	sessionLog interfaces.SessionLog
	createdAt  time.Time
}

// ZoneState is the live shared state of whichever single activity is on
// screen. Switching the active activity replaces the whole zone so
// stale fields from a previous activity type cannot leak into a new one.
type ZoneState struct {
	ActivityType string
	Fields       map[string]any
}

// MediaState tracks the last teacher-authoritative playback state, kept
// only so a late joiner can catch up via VIDEO_STATE.
type MediaState struct {
	Playing   bool
	Position  float64
	UpdatedAt time.Time
}

func newRoom(id string, sessionLog interfaces.SessionLog) *Room {
	return &Room{
		ID:         id,
		sessionLog: sessionLog,
		createdAt:  time.Now(),
	}
}

// ApplyZoneAction merges a partial update into the room's zone state
// and returns the complete merged state for broadcast. Order is fixed:
// read current, merge key-wise, persist, log, then the caller
// broadcasts the full result to every participant including the sender.
func (r *Room) ApplyZoneAction(ctx context.Context, activityType string, fields map[string]any) (*ZoneState, error) {
	current := r.zone
	if current == nil || current.ActivityType != activityType {
		current = &ZoneState{ActivityType: activityType, Fields: map[string]any{}}
	}

	merged := make(map[string]any, len(current.Fields)+len(fields))
	for k, v := range current.Fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	r.zone = &ZoneState{ActivityType: activityType, Fields: merged}

	if err := r.appendLog(ctx, types.MessageTypeZoneStateUpdate, r.zone.wireData()); err != nil {
		return nil, err
	}
	return r.zone, nil
}

// ClearBoard atomically empties the shared shape list. The emptied
// state is logged and broadcast like any other zone update so receivers
// rebaseline against it.
func (r *Room) ClearBoard(ctx context.Context) (*ZoneState, error) {
	r.zone = &ZoneState{
		ActivityType: types.ActivityDrawing,
		Fields:       map[string]any{"shapes": []any{}},
	}
	if err := r.appendLog(ctx, types.MessageTypeZoneStateUpdate, r.zone.wireData()); err != nil {
		return nil, err
	}
	return r.zone, nil
}

// SetLesson replaces the room's lesson state wholesale and logs it.
func (r *Room) SetLesson(ctx context.Context, env *types.Envelope) error {
	r.lesson = env
	return r.appendLog(ctx, types.MessageTypeLessonUpdate, env.Data)
}

// AppendChat logs a chat message. Ordering is arrival order here.
func (r *Room) AppendChat(ctx context.Context, env *types.Envelope) error {
	return r.appendLog(ctx, types.MessageTypeChat, env.Data)
}

// ApplyMedia updates the tracked playback state from a teacher media
// event. Heartbeats mutate in-memory state only; nothing per-event is
// logged, the media channel has its own catch-up message.
func (r *Room) ApplyMedia(msgType string, event types.VideoEvent) {
	state := r.media
	if state == nil {
		state = &MediaState{}
		r.media = state
	}
	state.Position = event.T
	state.UpdatedAt = time.Now()
	switch msgType {
	case types.MessageTypeVideoPlay:
		state.Playing = true
	case types.MessageTypeVideoPause:
		state.Playing = false
	}
}

// Media returns the last known playback state, if any.
func (r *Room) Media() (types.VideoEvent, bool) {
	if r.media == nil {
		return types.VideoEvent{}, false
	}
	return types.VideoEvent{T: r.media.Position, Playing: r.media.Playing}, true
}

// Zone returns the current zone state, if any.
func (r *Room) Zone() *ZoneState {
	return r.zone
}

// History returns the room's full session log in append order.
func (r *Room) History(ctx context.Context) ([]types.SessionLogEntry, error) {
	return r.sessionLog.History(ctx, r.ID)
}

func (r *Room) appendLog(ctx context.Context, entryType string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode log payload: %w", err)
	}
	return r.sessionLog.Append(ctx, r.ID, types.SessionLogEntry{Type: entryType, Payload: payload})
}

// wireData lays the zone out the way ZONE_STATE_UPDATE spreads it on
// the wire: merged fields at the top level next to activity_type.
func (z *ZoneState) wireData() map[string]any {
	data := make(map[string]any, len(z.Fields)+1)
	for k, v := range z.Fields {
		data[k] = v
	}
	data["activity_type"] = z.ActivityType
	return data
}

// Envelope builds the ZONE_STATE_UPDATE frame for this state.
func (z *ZoneState) Envelope() *types.Envelope {
	return &types.Envelope{Type: types.MessageTypeZoneStateUpdate, Data: z.wireData()}
}
