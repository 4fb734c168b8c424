package agent

import (
	"sync"
	"time"

	"github.com/NovaByte/NovaVoice/internal/models"
	"github.com/NovaByte/NovaVoice/pkg/store"
)

// AudioOwner which party currently drives the call's audio path
type AudioOwner string

const (
	AudioOwnerAgent AudioOwner = "agent"
	AudioOwnerHuman AudioOwner = "human"
	AudioOwnerNone  AudioOwner = "none"
)

// CallState effective call-handling state derived from the session flags
type CallState string

const (
	StateAIActive       CallState = "ai_active"       // AI fully drives the call
	StateHandoffPending CallState = "handoff_pending" // handoff requested, human not yet present
	StateHumanActive    CallState = "human_active"    // human operator owns the audio
	StateHandoffIgnored CallState = "handoff_ignored" // operator joined without a requested handoff
	StateCompleted      CallState = "completed"       // room disconnected, terminal
)

// CallSession in-memory state of one live call. Exclusively owned by
// its orchestrator; the orchestrator's event loop is the single writer
// for audio ownership, while the handoff flag may be set synchronously
// from the tool handler before its side effects are dispatched.
type CallSession struct {
	CallID   string
	RoomName string
	Phone    string
	OrderCtx store.OrderContext

	mutex            sync.RWMutex
	handoffRequested bool
	handoffReason    string
	audioOwner       AudioOwner
	operatorIgnored  bool
	completed        bool
	transcript       []models.TranscriptEntry
}

// NewCallSession creates a session with the agent owning the audio.
func NewCallSession(callID, roomName, phone string, octx store.OrderContext) *CallSession {
	return &CallSession{
		CallID:     callID,
		RoomName:   roomName,
		Phone:      phone,
		OrderCtx:   octx,
		audioOwner: AudioOwnerAgent,
	}
}

// RequestHandoff sets the handoff flag. Set once: the first call
// records the reason and returns true, later calls return false and
// leave the recorded reason untouched.
func (s *CallSession) RequestHandoff(reason string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.handoffRequested {
		return false
	}
	s.handoffRequested = true
	s.handoffReason = reason
	return true
}

// HandoffRequested reports whether a handoff has been requested.
func (s *CallSession) HandoffRequested() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.handoffRequested
}

// HandoffReason returns the reason recorded with the first handoff request.
func (s *CallSession) HandoffReason() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.handoffReason
}

// AudioOwner returns the current audio owner.
func (s *CallSession) AudioOwner() AudioOwner {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.audioOwner
}

func (s *CallSession) setAudioOwner(owner AudioOwner) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.audioOwner = owner
}

func (s *CallSession) markOperatorIgnored() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.operatorIgnored = true
}

func (s *CallSession) complete() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.completed = true
	s.audioOwner = AudioOwnerNone
}

// Completed reports whether the room has disconnected.
func (s *CallSession) Completed() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.completed
}

// State derives the effective call-handling state.
func (s *CallSession) State() CallState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	switch {
	case s.completed:
		return StateCompleted
	case s.audioOwner == AudioOwnerHuman:
		return StateHumanActive
	case s.handoffRequested:
		return StateHandoffPending
	case s.operatorIgnored:
		return StateHandoffIgnored
	default:
		return StateAIActive
	}
}

// AppendTranscript appends one utterance. Entries are never edited or
// removed afterwards.
func (s *CallSession) AppendTranscript(speaker, text string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.transcript = append(s.transcript, models.TranscriptEntry{
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
}

// TranscriptSnapshot returns a copy of the transcript so far.
func (s *CallSession) TranscriptSnapshot() []models.TranscriptEntry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]models.TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}
