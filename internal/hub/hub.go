// Package hub serializes all room mutation. Every join, leave and
// inbound frame flows through one goroutine's select loop, so the
// authoritative room state never sees partial or interleaved updates;
// concurrent messages from the two participants resolve to server
// arrival order.
package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"liveroom/internal/room"
	"liveroom/internal/websocket"
	"liveroom/pkg/types"
)

// Hub coordinates frame routing and connection lifecycle.
type Hub struct {
	frameCh    chan *frameContext
	joinCh     chan *websocket.Connection
	leaveCh    chan *websocket.Connection
	shutdownCh chan struct{}

	registry *websocket.Registry
	rooms    *room.Manager

	running bool
	mu      sync.RWMutex
}

type frameContext struct {
	conn *websocket.Connection
	env  *types.Envelope
}

func NewHub(registry *websocket.Registry, rooms *room.Manager) *Hub {
	return &Hub{
		frameCh:    make(chan *frameContext, 1000),
		joinCh:     make(chan *websocket.Connection, 100),
		leaveCh:    make(chan *websocket.Connection, 100),
		shutdownCh: make(chan struct{}),
		registry:   registry,
		rooms:      rooms,
	}
}

// Start begins hub processing on a single goroutine.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	log.Println("Starting room hub...")
	go h.run(ctx)
	return nil
}

// Stop shuts the hub down.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	select {
	case <-h.shutdownCh:
	default:
		close(h.shutdownCh)
	}
	return nil
}

// NotifyJoin queues a new connection for registration.
func (h *Hub) NotifyJoin(conn *websocket.Connection) error {
	return h.queue(h.joinCh, conn)
}

// NotifyLeave queues a connection for deregistration.
func (h *Hub) NotifyLeave(conn *websocket.Connection) error {
	return h.queue(h.leaveCh, conn)
}

func (h *Hub) queue(ch chan *websocket.Connection, conn *websocket.Connection) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	select {
	case ch <- conn:
		return nil
	default:
		return ErrChannelFull
	}
}

// SubmitFrame queues an inbound frame for routing.
func (h *Hub) SubmitFrame(conn *websocket.Connection, env *types.Envelope) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	select {
	case h.frameCh <- &frameContext{conn: conn, env: env}:
		return nil
	default:
		return ErrChannelFull
	}
}

func (h *Hub) run(ctx context.Context) {
	defer log.Println("Hub processing stopped")

	for {
		select {
		case fc := <-h.frameCh:
			h.handleFrame(ctx, fc)
		case conn := <-h.joinCh:
			h.handleJoin(ctx, conn)
		case conn := <-h.leaveCh:
			h.handleLeave(ctx, conn)
		case <-h.shutdownCh:
			log.Println("Hub shutdown requested")
			return
		case <-ctx.Done():
			log.Println("Hub context cancelled")
			return
		}
	}
}

// handleJoin registers the connection, creating the room on first join,
// then replays the session log and the current media state so the
// participant lands exactly where the room is.
func (h *Hub) handleJoin(ctx context.Context, conn *websocket.Connection) {
	if conn == nil {
		return
	}

	displaced, err := h.registry.Register(conn)
	if err != nil {
		log.Printf("Connection registration failed: user=%s err=%v", conn.UserID(), err)
		_ = conn.Close()
		return
	}

	// The new connection's hold must be taken before the displaced one
	// is released: with a solo participant the count must go 1→2→1,
	// never touch zero, or the room and its log are destroyed mid-
	// reconnect.
	rm := h.rooms.Join(conn.RoomID())
	if displaced != nil {
		// The displaced connection's leave will no longer match the
		// registry, so its room hold is released here.
		go func() { _ = displaced.Close() }()
		h.rooms.Leave(ctx, displaced.RoomID())
	}
	h.sendHistory(ctx, rm, conn)

	if media, ok := rm.Media(); ok {
		env, err := types.NewEnvelope(types.MessageTypeVideoState, media)
		if err == nil {
			if err := conn.WriteJSON(env); err != nil {
				log.Printf("Failed to send media state: user=%s err=%v", conn.UserID(), err)
			}
		}
	}
}

func (h *Hub) handleLeave(ctx context.Context, conn *websocket.Connection) {
	if conn == nil {
		return
	}
	if h.registry.Unregister(conn) {
		h.rooms.Leave(ctx, conn.RoomID())
	}
}

// sendHistory delivers the one-shot history_dump. Failure to read the
// log is non-fatal for the connection: the client is told and waits for
// live updates instead.
func (h *Hub) sendHistory(ctx context.Context, rm *room.Room, conn *websocket.Connection) {
	entries, err := rm.History(ctx)
	if err != nil {
		log.Printf("Failed to read session log: room=%s err=%v", rm.ID, err)
		h.sendSystem(conn, "history_unavailable", "Unable to load room history")
		return
	}
	if entries == nil {
		entries = []types.SessionLogEntry{}
	}
	env, err := types.NewEnvelope(types.MessageTypeHistoryDump, types.HistoryDump{Data: entries})
	if err != nil {
		log.Printf("Failed to encode history dump: room=%s err=%v", rm.ID, err)
		return
	}
	if err := conn.WriteJSON(env); err != nil {
		log.Printf("Failed to send history dump: user=%s err=%v", conn.UserID(), err)
	}
}

// handleFrame validates and routes one inbound frame. Routing failures
// are reported to the sender and never crash the loop; shared state
// either advances atomically or not at all.
func (h *Hub) handleFrame(ctx context.Context, fc *frameContext) {
	conn, env := fc.conn, fc.env

	if err := env.Validate(); err != nil {
		h.rejectFrame(conn, env, err)
		return
	}
	if !types.CanSend(conn.Role(), env.Type) {
		h.rejectFrame(conn, env, ErrUnauthorizedMessageType)
		return
	}

	rm, exists := h.rooms.Get(conn.RoomID())
	if !exists {
		h.rejectFrame(conn, env, ErrRoomNotFound)
		return
	}

	var err error
	switch env.Type {
	case types.MessageTypeChat:
		err = h.handleChat(ctx, rm, conn, env)
	case types.MessageTypeLessonUpdate:
		if err = rm.SetLesson(ctx, env); err == nil {
			h.broadcast(rm.ID, env)
		}
	case types.MessageTypeZoneAction:
		err = h.handleZoneAction(ctx, rm, conn, env)
	case types.MessageTypeBoardClear:
		var zone *room.ZoneState
		if zone, err = rm.ClearBoard(ctx); err == nil {
			h.broadcast(rm.ID, zone.Envelope())
		}
	case types.MessageTypeVideoPlay, types.MessageTypeVideoPause,
		types.MessageTypeVideoSeek, types.MessageTypeVideoSync:
		err = h.handleVideo(rm, conn, env)
	default:
		err = ErrInvalidMessageType
	}

	if err != nil {
		log.Printf("Frame routing failed: user=%s room=%s type=%s err=%v",
			conn.UserID(), conn.RoomID(), env.Type, err)
		h.rejectFrame(conn, env, err)
	}
}

func (h *Hub) handleChat(ctx context.Context, rm *room.Room, conn *websocket.Connection, env *types.Envelope) error {
	// Arrival order at the server is the chat order; a missing client
	// timestamp is stamped here.
	if _, ok := env.Data["time"]; !ok {
		env.Data["time"] = time.Now().UnixMilli()
	}
	if err := rm.AppendChat(ctx, env); err != nil {
		return err
	}
	h.broadcast(rm.ID, env)
	return nil
}

func (h *Hub) handleZoneAction(ctx context.Context, rm *room.Room, conn *websocket.Connection, env *types.Envelope) error {
	activityType, _ := env.Data["activity_type"].(string)

	// Document navigation is teacher-authoritative; a student's local
	// page pointer never reaches the shared state.
	if activityType == types.ActivityPaginatedDocument && conn.Role() != types.RoleTeacher {
		return ErrUnauthorizedMessageType
	}

	fields := make(map[string]any, len(env.Data))
	for k, v := range env.Data {
		if k == "activity_type" || k == "action" {
			continue
		}
		fields[k] = v
	}

	zone, err := rm.ApplyZoneAction(ctx, activityType, fields)
	if err != nil {
		return err
	}
	// The echo back to the sender is deliberate: the server's merged
	// state is the single source of truth and clients reconcile
	// against it.
	h.broadcast(rm.ID, zone.Envelope())
	return nil
}

func (h *Hub) handleVideo(rm *room.Room, conn *websocket.Connection, env *types.Envelope) error {
	var event types.VideoEvent
	if err := env.Decode(&event); err != nil {
		return types.ErrInvalidPayload
	}
	rm.ApplyMedia(env.Type, event)

	// Media events relay to the other participant only; the sender's
	// player is already at the broadcast position.
	if other, ok := h.registry.Counterpart(conn); ok {
		if err := other.WriteJSON(env); err != nil {
			log.Printf("Failed to relay media event: user=%s err=%v", other.UserID(), err)
		}
	}
	return nil
}

func (h *Hub) broadcast(roomID string, env *types.Envelope) {
	for _, conn := range h.registry.RoomConnections(roomID) {
		if err := conn.WriteJSON(env); err != nil {
			log.Printf("Failed to deliver frame: user=%s err=%v", conn.UserID(), err)
		}
	}
}

func (h *Hub) rejectFrame(conn *websocket.Connection, env *types.Envelope, cause error) {
	log.Printf("Frame rejected: user=%s type=%s err=%v", conn.UserID(), env.Type, cause)
	h.sendSystem(conn, "message_error", cause.Error())
}

func (h *Hub) sendSystem(conn *websocket.Connection, event, message string) {
	env := &types.Envelope{
		Type: types.MessageTypeSystem,
		Data: map[string]any{
			"event":   event,
			"message": message,
			"time":    time.Now().UnixMilli(),
		},
	}
	if err := conn.WriteJSON(env); err != nil {
		log.Printf("Failed to send system frame: user=%s err=%v", conn.UserID(), err)
	}
}
