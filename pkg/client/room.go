package client

import (
	"context"
	"log"
	"sync"
	"time"

	"liveroom/pkg/interfaces"
	"liveroom/pkg/types"
)

// RoomClient ties the synchronizers to one channel. All inbound frames
// are applied from the single Run goroutine, so state transitions are
// sequential; outbound calls (drawing, chat, activity updates) may come
// from any goroutine.
type RoomClient struct {
	RoomID string
	Role   string

	Draw     *DrawEngine
	Matching *MatchingSync
	GapFill  *GapFillSync
	Pager    *PagerSync
	Media    *MediaSync

	channel   interfaces.Channel
	echo      *EchoFilter
	fetcher   interfaces.LessonFetcher
	snapshots *SnapshotStore

	// OnChat and OnLesson notify the presentation layer; both are
	// invoked from the Run goroutine and may be nil.
	OnChat   func(msg types.ChatMessage)
	OnLesson func(update *types.LessonUpdate)

	mu     sync.Mutex
	lesson *types.LessonUpdate
	chat   []types.ChatMessage
}

// RoomClientOptions configures a room client.
type RoomClientOptions struct {
	RoomID  string
	Role    string
	CanvasW float64
	CanvasH float64
	Player  Player                   // nil disables media sync
	Fetcher interfaces.LessonFetcher // nil disables the lesson fallback
	Cache   *SnapshotStore           // nil disables the local snapshot
}

func NewRoomClient(channel interfaces.Channel, opts RoomClientOptions) *RoomClient {
	echo := NewEchoFilter()
	send := channel.Send
	teacher := opts.Role == types.RoleTeacher

	c := &RoomClient{
		RoomID:    opts.RoomID,
		Role:      opts.Role,
		Draw:      NewDrawEngine(send, echo, opts.CanvasW, opts.CanvasH),
		Matching:  NewMatchingSync(send, echo),
		GapFill:   NewGapFillSync(send, echo),
		Pager:     NewPagerSync(send, echo, teacher),
		channel:   channel,
		echo:      echo,
		fetcher:   opts.Fetcher,
		snapshots: opts.Cache,
	}
	if opts.Player != nil {
		c.Media = NewMediaSync(send, opts.Player, teacher)
	}
	return c
}

// Run consumes the inbound stream until the channel closes or the
// context is cancelled. It returns nil on a clean channel close; the
// caller decides whether to redial.
func (c *RoomClient) Run(ctx context.Context) error {
	defer c.shutdown()

	for {
		select {
		case env, ok := <-c.channel.Messages():
			if !ok {
				return nil
			}
			c.handle(ctx, env)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SendChat broadcasts one chat line. The server stamps the timestamp.
func (c *RoomClient) SendChat(name, text string) error {
	env, err := types.NewEnvelope(types.MessageTypeChat, types.ChatMessage{Name: name, Text: text})
	if err != nil {
		return err
	}
	return c.channel.Send(env)
}

// PresentLesson broadcasts a lesson navigation. Teacher only; the
// server rejects it from a student.
func (c *RoomClient) PresentLesson(update types.LessonUpdate) error {
	env, err := types.NewEnvelope(types.MessageTypeLessonUpdate, update)
	if err != nil {
		return err
	}
	if err := c.channel.Send(env); err != nil {
		return err
	}
	c.adoptLesson(&update)
	return nil
}

// Lesson returns the current lesson state, nil before the first update.
func (c *RoomClient) Lesson() *types.LessonUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lesson
}

// Chat returns a copy of the transcript in server order.
func (c *RoomClient) Chat() []types.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.ChatMessage, len(c.chat))
	copy(out, c.chat)
	return out
}

func (c *RoomClient) handle(ctx context.Context, env *types.Envelope) {
	switch env.Type {
	case types.MessageTypeHistoryDump:
		c.handleHistory(ctx, env)
	case types.MessageTypeChat:
		c.handleChat(env)
	case types.MessageTypeLessonUpdate:
		c.handleLesson(env)
	case types.MessageTypeZoneStateUpdate:
		c.handleZoneState(env)
	case types.MessageTypeVideoPlay, types.MessageTypeVideoPause,
		types.MessageTypeVideoSeek, types.MessageTypeVideoSync,
		types.MessageTypeVideoState:
		c.handleVideo(env)
	case types.MessageTypeSystem:
		log.Printf("System message: room=%s data=%v", c.RoomID, env.Data)
	default:
		log.Printf("Ignoring unknown frame type: %s", env.Type)
	}
}

// handleHistory restores the transcript and the last lesson and zone
// states from the one-shot dump sent on join.
func (c *RoomClient) handleHistory(ctx context.Context, env *types.Envelope) {
	var dump types.HistoryDump
	if err := env.Decode(&dump); err != nil {
		log.Printf("Discarding malformed history dump: %v", err)
		return
	}

	result := ApplyHistory(dump)
	c.mu.Lock()
	c.chat = result.Chat
	c.mu.Unlock()

	if lesson := ResolveLesson(ctx, result, c.fetcher); lesson != nil {
		c.adoptLesson(lesson)
		if c.OnLesson != nil {
			c.OnLesson(lesson)
		}
	}
	if result.Zone != nil {
		c.handleZoneState(result.Zone)
	}
}

func (c *RoomClient) handleChat(env *types.Envelope) {
	var msg types.ChatMessage
	if err := env.Decode(&msg); err != nil {
		log.Printf("Discarding malformed chat frame: %v", err)
		return
	}
	c.mu.Lock()
	c.chat = append(c.chat, msg)
	c.mu.Unlock()

	if c.OnChat != nil {
		c.OnChat(msg)
	}
}

func (c *RoomClient) handleLesson(env *types.Envelope) {
	var update types.LessonUpdate
	if err := env.Decode(&update); err != nil {
		log.Printf("Discarding malformed lesson frame: %v", err)
		return
	}
	c.adoptLesson(&update)
	if c.OnLesson != nil {
		c.OnLesson(&update)
	}
}

// handleZoneState runs the echo classification for the update's
// activity, then hands genuine remote state to its synchronizer.
func (c *RoomClient) handleZoneState(env *types.Envelope) {
	activityType, _ := env.Data["activity_type"].(string)

	fields := make(map[string]any, len(env.Data))
	for k, v := range env.Data {
		if k == "activity_type" {
			continue
		}
		fields[k] = v
	}

	concern, apply := c.dispatchFor(activityType)
	if apply == nil {
		log.Printf("Ignoring zone update for unhandled activity: %s", activityType)
		return
	}
	if verdict := c.echo.Classify(concern, fields); verdict != ApplyRemote {
		return
	}
	if err := apply(fields); err != nil {
		log.Printf("Failed to apply zone update: activity=%s err=%v", activityType, err)
	}
}

// dispatchFor maps an activity type to its echo concern and apply
// function. Quiz is intentionally absent; quiz answers are private and
// never synchronized.
func (c *RoomClient) dispatchFor(activityType string) (string, func(map[string]any) error) {
	switch activityType {
	case types.ActivityDrawing:
		return concernDrawing, c.Draw.ApplyRemote
	case types.ActivityMatching:
		return concernMatch, c.Matching.ApplyRemote
	case types.ActivityGapFill:
		return concernGapFill, c.GapFill.ApplyRemote
	case types.ActivityPaginatedDocument:
		return concernPage, c.Pager.ApplyRemote
	default:
		return "", nil
	}
}

func (c *RoomClient) handleVideo(env *types.Envelope) {
	if c.Media == nil {
		return
	}
	var event types.VideoEvent
	if err := env.Decode(&event); err != nil {
		log.Printf("Discarding malformed media frame: %v", err)
		return
	}
	c.Media.HandleEvent(env.Type, event)
}

func (c *RoomClient) adoptLesson(update *types.LessonUpdate) {
	c.mu.Lock()
	c.lesson = update
	c.mu.Unlock()

	if c.snapshots != nil {
		c.snapshots.Queue(Snapshot{
			Room:       c.RoomID,
			LessonID:   update.Lesson.ID,
			SlideIndex: update.SlideIndex,
			SavedAt:    time.Now().UnixMilli(),
		})
	}
}

func (c *RoomClient) shutdown() {
	if c.Media != nil {
		c.Media.Stop()
	}
	if c.snapshots != nil {
		c.snapshots.Flush()
	}
	_ = c.channel.Close()
}
