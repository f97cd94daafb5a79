// Package interfaces defines the narrow contracts between the sync core
// and its collaborators, so components can be exercised with fakes.
package interfaces

import (
	"context"

	"liveroom/pkg/types"
)

// Channel is one participant's persistent, ordered, best-effort duplex
// connection to the room. There is no redelivery: a transport error is
// terminal and a caller must open a fresh channel to rejoin.
type Channel interface {
	// Send transmits one frame. Safe for concurrent use.
	Send(env *types.Envelope) error

	// Messages returns the inbound frame stream. The channel is closed
	// when the connection reaches its terminal state.
	Messages() <-chan *types.Envelope

	// Close tears down the connection and releases resources.
	Close() error
}

// SessionLog is the append-only per-room event log backing history
// replay. Entries live only for the room's lifetime.
type SessionLog interface {
	// Append records one entry at the end of the room's log.
	Append(ctx context.Context, roomID string, entry types.SessionLogEntry) error

	// History returns the room's full log in append order.
	History(ctx context.Context, roomID string) ([]types.SessionLogEntry, error)

	// Purge discards the room's log when the room is destroyed.
	Purge(ctx context.Context, roomID string) error
}

// LessonFetcher reads lesson bodies from the external content API. Used
// only as the best-effort fallback when replay-derived lesson state does
// not resolve.
type LessonFetcher interface {
	FetchLesson(ctx context.Context, lessonID string) (*types.LessonSnapshot, error)
}
