package client

import "errors"

// ErrChannelClosed is returned when sending on a closed channel.
var ErrChannelClosed = errors.New("channel closed")
