package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"liveroom/internal/auth"
	"liveroom/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is a deployment concern; the join token is the
		// actual gate.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// FrameSink receives connection lifecycle events and inbound frames.
// Implemented by the hub; defined here so the handler does not depend
// on the hub package.
type FrameSink interface {
	NotifyJoin(conn *Connection) error
	NotifyLeave(conn *Connection) error
	SubmitFrame(conn *Connection, env *types.Envelope) error
}

// Handler upgrades HTTP requests to room channels. Authentication is
// token-based and happens before the upgrade: a request without a valid
// join token never consumes a WebSocket.
type Handler struct {
	verifier *auth.Verifier
	sink     FrameSink
}

func NewHandler(verifier *auth.Verifier, sink FrameSink) *Handler {
	return &Handler{verifier: verifier, sink: sink}
}

// HandleWebSocket validates room id and join token, upgrades, and runs
// the connection's read pump until the channel reaches its terminal
// state.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	token := r.URL.Query().Get("token")

	if roomID == "" || token == "" {
		http.Error(w, "Missing required query parameters: room_id, token", http.StatusBadRequest)
		return
	}
	if !types.IsValidRoomID(roomID) {
		http.Error(w, "Invalid room_id format", http.StatusBadRequest)
		return
	}

	userID, role, err := h.verifier.Verify(token, roomID)
	if err != nil {
		http.Error(w, "Invalid join token", http.StatusForbidden)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn := NewConnection(wsConn, userID, role, roomID)

	if err := h.sink.NotifyJoin(conn); err != nil {
		log.Printf("Join rejected: room=%s user=%s err=%v", roomID, userID, err)
		_ = conn.Close()
		return
	}
	log.Printf("Participant joined: room=%s user=%s role=%s", roomID, userID, role)

	go h.readPump(conn)
}

// readPump reads frames until the connection dies, then reports the
// leave. Heartbeat is ping/pong with a rolling read deadline.
func (h *Handler) readPump(conn *Connection) {
	defer func() {
		if err := h.sink.NotifyLeave(conn); err != nil {
			log.Printf("Leave notification failed: user=%s err=%v", conn.UserID(), err)
		}
		_ = conn.Close()
		log.Printf("Participant left: room=%s user=%s", conn.RoomID(), conn.UserID())
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	ticker := time.NewTicker(30 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: user=%s err=%v", conn.UserID(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("Discarding malformed frame: user=%s err=%v", conn.UserID(), err)
			continue
		}
		if err := h.sink.SubmitFrame(conn, &env); err != nil {
			log.Printf("Frame dropped: user=%s type=%s err=%v", conn.UserID(), env.Type, err)
		}
	}
}
