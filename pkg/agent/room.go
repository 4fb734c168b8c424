package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/NovaByte/NovaVoice/pkg/logger"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"
)

// RoomEvents receives room lifecycle events for one call.
type RoomEvents interface {
	NotifyParticipantJoined(identity string)
	NotifyDisconnected()
}

// RoomConfig realtime room connection parameters
type RoomConfig struct {
	URL           string
	APIKey        string
	APISecret     string
	AgentIdentity string
}

// RoomAdapter connects the agent to a realtime media room and funnels
// its callbacks into the orchestrator's event queue. It also carries
// the Broadcaster and AudioController ports for that room.
type RoomAdapter struct {
	cfg RoomConfig

	mu     sync.RWMutex
	room   *lksdk.Room
	micPub *lksdk.LocalTrackPublication
}

// NewRoomAdapter creates a disconnected adapter.
func NewRoomAdapter(cfg RoomConfig) *RoomAdapter {
	return &RoomAdapter{cfg: cfg}
}

// Connect joins the named room and starts delivering events to sink.
// onText, if non-nil, receives user data-channel text payloads.
func (a *RoomAdapter) Connect(roomName string, sink RoomEvents, onText func(identity string, payload []byte)) error {
	callback := &lksdk.RoomCallback{
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			sink.NotifyParticipantJoined(rp.Identity())
		},
		OnDisconnected: func() {
			sink.NotifyDisconnected()
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnDataPacket: func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
				if onText == nil {
					return
				}
				if p, ok := data.(*lksdk.UserDataPacket); ok {
					onText(params.SenderIdentity, p.Payload)
				}
			},
		},
	}

	room, err := lksdk.ConnectToRoom(a.cfg.URL, lksdk.ConnectInfo{
		APIKey:              a.cfg.APIKey,
		APISecret:           a.cfg.APISecret,
		RoomName:            roomName,
		ParticipantIdentity: a.cfg.AgentIdentity,
		ParticipantName:     a.cfg.AgentIdentity,
	}, callback)
	if err != nil {
		return fmt.Errorf("failed to connect to room %s: %w", roomName, err)
	}

	a.mu.Lock()
	a.room = room
	a.mu.Unlock()

	logger.Info("Connected to room",
		zap.String("room", roomName),
		zap.String("identity", a.cfg.AgentIdentity))
	return nil
}

// CallerIdentity returns the first remote participant's identity. For
// inbound calls this is the caller's phone number.
func (a *RoomAdapter) CallerIdentity() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.room == nil {
		return "unknown"
	}
	for _, rp := range a.room.GetRemoteParticipants() {
		return rp.Identity()
	}
	return "unknown"
}

// SetMicPublication registers the agent's published audio track so it
// can be muted on handoff.
func (a *RoomAdapter) SetMicPublication(pub *lksdk.LocalTrackPublication) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.micPub = pub
}

// Broadcast publishes a reliable data message to all room participants.
func (a *RoomAdapter) Broadcast(_ context.Context, payload []byte) error {
	a.mu.RLock()
	room := a.room
	a.mu.RUnlock()
	if room == nil {
		return fmt.Errorf("room not connected")
	}
	return room.LocalParticipant.PublishData(payload, lksdk.WithDataPublishReliable(true))
}

// SetAudioEnabled mutes or unmutes both AI audio directions: the
// agent's published track and its subscriptions to remote audio. The
// session itself stays up so audio can resume later.
func (a *RoomAdapter) SetAudioEnabled(enabled bool) {
	a.mu.RLock()
	room := a.room
	micPub := a.micPub
	a.mu.RUnlock()

	if micPub != nil {
		micPub.SetMuted(!enabled)
	}

	if room == nil {
		return
	}
	for _, rp := range room.GetRemoteParticipants() {
		for _, pub := range rp.TrackPublications() {
			remote, ok := pub.(*lksdk.RemoteTrackPublication)
			if !ok || remote.Kind() != lksdk.TrackKindAudio {
				continue
			}
			// only microphone tracks carry the caller's voice
			if remote.Source() != livekit.TrackSource_MICROPHONE {
				continue
			}
			if err := remote.SetSubscribed(enabled); err != nil {
				logger.Warn("Failed to change audio subscription",
					zap.String("identity", rp.Identity()),
					zap.Bool("enabled", enabled),
					zap.Error(err))
			}
		}
	}
	logger.Info("AI audio state changed", zap.Bool("enabled", enabled))
}

// Disconnect leaves the room.
func (a *RoomAdapter) Disconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.room != nil {
		a.room.Disconnect()
		a.room = nil
	}
}
