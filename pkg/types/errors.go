package types

import "errors"

var (
	ErrMissingMessageType  = errors.New("frame has no type field")
	ErrInvalidMessageType  = errors.New("invalid message type")
	ErrInvalidActivityType = errors.New("invalid activity type")
	ErrInvalidPayload      = errors.New("invalid JSON payload")
	ErrPayloadTooLarge     = errors.New("payload exceeds 64KB limit")
)
