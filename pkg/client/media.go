package client

import (
	"log"
	"sync"
	"time"

	"liveroom/pkg/types"
)

const (
	// mediaHeartbeatEvery is the teacher's periodic position broadcast
	// while playing.
	mediaHeartbeatEvery = 7 * time.Second

	// mediaDriftThreshold is the tolerated position difference in
	// seconds. Smaller drift is left alone; correcting it would cause
	// visible jitter from constant micro-seeks.
	mediaDriftThreshold = 0.7

	// mediaSuppressWindow covers the receiver's own state-change
	// handlers after a programmatic correction, so the correction is
	// not rebroadcast as if the receiver initiated it.
	mediaSuppressWindow = time.Second
)

// Player is the local media surface the synchronizer drives. The
// actual video element lives outside this core.
type Player interface {
	Position() float64
	Seek(position float64)
	Play()
	Pause()
}

// MediaSync keeps a secondary video stream's play state aligned across
// participants. Only the teacher's control actions are authoritative.
type MediaSync struct {
	send          sendFunc
	player        Player
	authoritative bool

	mu            sync.Mutex
	ready         bool
	buffered      *bufferedEvent // latest event seen before the surface was ready
	suppressUntil time.Time
	heartbeatStop chan struct{}
	now           func() time.Time
}

type bufferedEvent struct {
	msgType string
	event   types.VideoEvent
}

func NewMediaSync(send sendFunc, player Player, authoritative bool) *MediaSync {
	return &MediaSync{
		send:          send,
		player:        player,
		authoritative: authoritative,
		now:           time.Now,
	}
}

// Play broadcasts the play event and starts the position heartbeat.
// Teacher only; a non-authoritative call is a no-op.
func (m *MediaSync) Play(position float64) error {
	if !m.authoritative {
		return nil
	}
	if err := m.broadcast(types.MessageTypeVideoPlay, position); err != nil {
		return err
	}
	m.startHeartbeat()
	return nil
}

// Pause broadcasts immediately, unthrottled, and stops the heartbeat.
func (m *MediaSync) Pause(position float64) error {
	if !m.authoritative {
		return nil
	}
	m.stopHeartbeat()
	return m.broadcast(types.MessageTypeVideoPause, position)
}

// Seek broadcasts immediately, unthrottled.
func (m *MediaSync) Seek(position float64) error {
	if !m.authoritative {
		return nil
	}
	return m.broadcast(types.MessageTypeVideoSeek, position)
}

// Stop cancels any running heartbeat.
func (m *MediaSync) Stop() {
	m.stopHeartbeat()
}

// HandleEvent applies an incoming media event. Events arriving before
// the media surface is ready are buffered, not dropped; only the
// latest matters since each event carries absolute position.
func (m *MediaSync) HandleEvent(msgType string, event types.VideoEvent) {
	m.mu.Lock()
	if !m.ready {
		m.buffered = &bufferedEvent{msgType: msgType, event: event}
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.apply(msgType, event)
}

// SetReady marks the media surface usable and applies any buffered
// event.
func (m *MediaSync) SetReady() {
	m.mu.Lock()
	m.ready = true
	pending := m.buffered
	m.buffered = nil
	m.mu.Unlock()

	if pending != nil {
		m.apply(pending.msgType, pending.event)
	}
}

// ShouldBroadcastLocalChange reports whether a local player state
// change was user-initiated. Within the suppression window the change
// is the synchronizer's own correction and must not be rebroadcast.
func (m *MediaSync) ShouldBroadcastLocalChange() bool {
	if !m.authoritative {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now().After(m.suppressUntil)
}

func (m *MediaSync) apply(msgType string, event types.VideoEvent) {
	switch msgType {
	case types.MessageTypeVideoPlay:
		m.correct(event.T, true)
		m.player.Play()
	case types.MessageTypeVideoPause:
		m.player.Pause()
		m.correct(event.T, true)
	case types.MessageTypeVideoSeek:
		m.correct(event.T, true)
	case types.MessageTypeVideoSync:
		m.correct(event.T, false)
	case types.MessageTypeVideoState:
		m.correct(event.T, true)
		if event.Playing {
			m.player.Play()
		} else {
			m.player.Pause()
		}
	}
}

// correct seeks the local player to the broadcast position. Heartbeat
// corrections are gated on the drift threshold; explicit events
// (play/pause/seek/state) always land.
func (m *MediaSync) correct(position float64, always bool) {
	if !always {
		drift := m.player.Position() - position
		if drift < 0 {
			drift = -drift
		}
		if drift <= mediaDriftThreshold {
			return
		}
	}

	m.mu.Lock()
	m.suppressUntil = m.now().Add(mediaSuppressWindow)
	m.mu.Unlock()
	m.player.Seek(position)
}

func (m *MediaSync) broadcast(msgType string, position float64) error {
	env, err := types.NewEnvelope(msgType, types.VideoEvent{T: position})
	if err != nil {
		return err
	}
	return m.send(env)
}

func (m *MediaSync) startHeartbeat() {
	m.mu.Lock()
	if m.heartbeatStop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.heartbeatStop = stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(mediaHeartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := m.broadcast(types.MessageTypeVideoSync, m.player.Position()); err != nil {
					log.Printf("Media heartbeat failed: %v", err)
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

func (m *MediaSync) stopHeartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}
