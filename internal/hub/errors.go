package hub

import "errors"

var (
	ErrHubAlreadyRunning       = errors.New("hub is already running")
	ErrHubNotRunning           = errors.New("hub is not running")
	ErrChannelFull             = errors.New("hub channel is full")
	ErrRoomNotFound            = errors.New("room not found")
	ErrInvalidMessageType      = errors.New("invalid message type")
	ErrUnauthorizedMessageType = errors.New("role not authorized to send this message type")
)
