package types

import (
	"encoding/json"
	"regexp"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// maxFrameBytes bounds a single inbound frame. Continuous drawing sends
// the full shape list every frame, so the cap is generous.
const maxFrameBytes = 65536

// IsValidRoomID checks a lesson-session room identifier.
func IsValidRoomID(roomID string) bool {
	if len(roomID) < 1 || len(roomID) > 64 {
		return false
	}
	return idRegex.MatchString(roomID)
}

// IsValidUserID checks a participant identifier.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return idRegex.MatchString(userID)
}

// IsValidRole checks the participant role.
func IsValidRole(role string) bool {
	return role == RoleTeacher || role == RoleStudent
}

// IsValidActivityType checks the activity type discriminator.
func IsValidActivityType(activityType string) bool {
	switch activityType {
	case ActivityDrawing, ActivityMatching, ActivityGapFill,
		ActivityQuiz, ActivityPaginatedDocument, ActivityVideo:
		return true
	default:
		return false
	}
}

// IsValidClientMessageType checks whether the type is one a client may
// send. Server-originated types (history_dump, ZONE_STATE_UPDATE,
// VIDEO_STATE, system) are rejected on the inbound path.
func IsValidClientMessageType(msgType string) bool {
	switch msgType {
	case MessageTypeChat, MessageTypeLessonUpdate, MessageTypeZoneAction,
		MessageTypeBoardClear, MessageTypeVideoPlay, MessageTypeVideoPause,
		MessageTypeVideoSeek, MessageTypeVideoSync:
		return true
	default:
		return false
	}
}

// CanSend reports whether a role is permitted to send a message type.
// Lesson navigation, media control and board clearing are teacher-only;
// chat and zone actions are open to both participants.
func CanSend(role, msgType string) bool {
	switch msgType {
	case MessageTypeChat, MessageTypeZoneAction:
		return IsValidRole(role)
	case MessageTypeLessonUpdate, MessageTypeBoardClear,
		MessageTypeVideoPlay, MessageTypeVideoPause,
		MessageTypeVideoSeek, MessageTypeVideoSync:
		return role == RoleTeacher
	default:
		return false
	}
}

// Validate checks an inbound envelope before it enters routing.
func (e *Envelope) Validate() error {
	if !IsValidClientMessageType(e.Type) {
		return ErrInvalidMessageType
	}

	raw, err := json.Marshal(e.Data)
	if err != nil {
		return ErrInvalidPayload
	}
	if len(raw) > maxFrameBytes {
		return ErrPayloadTooLarge
	}

	if e.Type == MessageTypeZoneAction {
		activityType, _ := e.Data["activity_type"].(string)
		if !IsValidActivityType(activityType) {
			return ErrInvalidActivityType
		}
	}
	return nil
}
