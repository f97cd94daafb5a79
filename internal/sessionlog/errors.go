package sessionlog

import "errors"

var (
	ErrStoreClosed  = errors.New("session log store is closed")
	ErrWriteTimeout = errors.New("session log write timeout")
)
