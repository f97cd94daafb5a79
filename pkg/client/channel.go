// Package client implements the participant-side half of the room sync
// core: the channel transport, echo suppression against the server's
// rebroadcasts, the drawing and activity synchronizers, media position
// sync, history replay and the local resilience snapshot.
package client

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"liveroom/pkg/types"
)

// WSChannel is the gorilla-backed Channel implementation. A read or
// write error is terminal: the inbound stream closes and the caller
// must dial again to rejoin.
type WSChannel struct {
	conn      *websocket.Conn
	inbound   chan *types.Envelope
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens the room channel. The join token authenticates the
// connection at open time; there is no re-authentication afterwards.
func Dial(ctx context.Context, serverURL, roomID, token string) (*WSChannel, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("room_id", roomID)
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	ch := &WSChannel{
		conn:    conn,
		inbound: make(chan *types.Envelope, 100),
		done:    make(chan struct{}),
	}
	go ch.readLoop()
	return ch, nil
}

func (ch *WSChannel) readLoop() {
	defer close(ch.inbound)
	for {
		_, data, err := ch.conn.ReadMessage()
		if err != nil {
			return
		}
		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("Discarding malformed frame: %v", err)
			continue
		}
		select {
		case ch.inbound <- &env:
		case <-ch.done:
			return
		}
	}
}

// Send transmits one frame. Safe for concurrent use.
func (ch *WSChannel) Send(env *types.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()

	select {
	case <-ch.done:
		return ErrChannelClosed
	default:
	}
	return ch.conn.WriteMessage(websocket.TextMessage, data)
}

// Messages returns the inbound frame stream; closed on terminal error.
func (ch *WSChannel) Messages() <-chan *types.Envelope {
	return ch.inbound
}

// Close tears the channel down.
func (ch *WSChannel) Close() error {
	var err error
	ch.closeOnce.Do(func() {
		close(ch.done)
		err = ch.conn.Close()
	})
	return err
}
