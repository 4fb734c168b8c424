package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/NovaByte/NovaVoice/internal/models"
	"github.com/NovaByte/NovaVoice/pkg/dispatch"
	"github.com/NovaByte/NovaVoice/pkg/logger"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// CallStore persists call lifecycle events. All methods are
// best-effort and never fail the caller.
type CallStore interface {
	UpdateStatus(callID string, status models.CallStatus)
	AppendTranscript(callID, speaker, text string)
	MarkHandoff(callID, reason string)
}

// LinkDispatcher sends an out-of-band link to the customer.
type LinkDispatcher interface {
	Send(ctx context.Context, req dispatch.LinkRequest) bool
}

// HandoffRegistrar notifies the operator dashboard about a handoff.
type HandoffRegistrar interface {
	Register(ctx context.Context, reg dispatch.HandoffRegistration)
}

// Broadcaster publishes a reliable data message to room participants.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte) error
}

// AudioController mutes or unmutes the AI's audio path, both
// directions at once. The AI is muted, not torn down.
type AudioController interface {
	SetAudioEnabled(enabled bool)
}

// HandoffNotice realtime payload broadcast when a handoff is requested
type HandoffNotice struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Reason string `json:"reason"`
}

type eventKind int

const (
	eventHandoffRequested eventKind = iota
	eventParticipantJoined
	eventDisconnected
)

type callEvent struct {
	kind     eventKind
	reason   string // handoff reason
	first    bool   // first handoff request for this call
	identity string // joining participant identity
}

// Options tunes orchestrator behavior.
type Options struct {
	OperatorPrefix string // participant identities matching this prefix are human operators
	// Rebroadcast re-runs the dashboard registration and room
	// broadcast on repeated handoff requests instead of dropping them.
	Rebroadcast   bool
	EffectTimeout time.Duration // per side-effect deadline
}

// Orchestrator owns one call's handoff state machine. Room callbacks
// and tool invocations enqueue events; the Run loop applies the state
// transition synchronously and dispatches side effects to supervised
// goroutines, so no effect can block or reorder event processing.
type Orchestrator struct {
	Session *CallSession

	store       CallStore
	registrar   HandoffRegistrar
	broadcaster Broadcaster
	audio       AudioController
	opts        Options

	events chan callEvent
	quit   chan struct{}
	once   sync.Once
	tasks  sync.WaitGroup
}

// NewOrchestrator wires an orchestrator around a call session.
func NewOrchestrator(sess *CallSession, store CallStore, registrar HandoffRegistrar, broadcaster Broadcaster, audio AudioController, opts Options) *Orchestrator {
	if opts.OperatorPrefix == "" {
		opts.OperatorPrefix = "human_operator"
	}
	if opts.EffectTimeout <= 0 {
		opts.EffectTimeout = 10 * time.Second
	}
	return &Orchestrator{
		Session:     sess,
		store:       store,
		registrar:   registrar,
		broadcaster: broadcaster,
		audio:       audio,
		opts:        opts,
		events:      make(chan callEvent, 32),
		quit:        make(chan struct{}),
	}
}

// Run processes events in arrival order until the room disconnects or
// ctx is cancelled. Events for one call never interleave.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.quit:
			return
		case ev := <-o.events:
			if o.transition(ev) {
				o.shutdown()
				return
			}
		}
	}
}

// Close stops event processing and waits for in-flight side effects.
func (o *Orchestrator) Close() {
	o.shutdown()
	o.tasks.Wait()
}

func (o *Orchestrator) shutdown() {
	o.once.Do(func() { close(o.quit) })
}

func (o *Orchestrator) enqueue(ev callEvent) {
	select {
	case o.events <- ev:
	case <-o.quit:
		logger.Debug("Event dropped after call completion",
			zap.String("call_id", o.Session.CallID))
	}
}

// NotifyParticipantJoined feeds a participant-connected room event.
func (o *Orchestrator) NotifyParticipantJoined(identity string) {
	o.enqueue(callEvent{kind: eventParticipantJoined, identity: identity})
}

// NotifyDisconnected feeds the room-disconnected event.
func (o *Orchestrator) NotifyDisconnected() {
	o.enqueue(callEvent{kind: eventDisconnected})
}

// transition applies one event. Returns true when the call reached its
// terminal state. In-memory mutations happen here, synchronously;
// side effects go to supervised goroutines and never touch state.
func (o *Orchestrator) transition(ev callEvent) (terminal bool) {
	if o.Session.Completed() {
		return true
	}

	switch ev.kind {
	case eventHandoffRequested:
		o.handleHandoff(ev)
	case eventParticipantJoined:
		o.handleJoin(ev.identity)
	case eventDisconnected:
		o.handleDisconnect()
		return true
	}
	return false
}

func (o *Orchestrator) handleHandoff(ev callEvent) {
	if !ev.first && !o.opts.Rebroadcast {
		logger.Info("Repeated handoff request ignored",
			zap.String("call_id", o.Session.CallID),
			zap.String("reason", ev.reason))
		return
	}

	logger.Info("Handoff requested",
		zap.String("call_id", o.Session.CallID),
		zap.String("reason", ev.reason))

	// three independent best-effort effects; one failing must not
	// block the others
	callID := o.Session.CallID
	reason := ev.reason
	transcript := o.Session.TranscriptSnapshot()

	o.spawn("mark-handoff", func(ctx context.Context) {
		o.store.MarkHandoff(callID, reason)
	})

	o.spawn("dashboard-register", func(ctx context.Context) {
		entries := make([]dispatch.HandoffTranscriptEntry, 0, len(transcript))
		for _, t := range transcript {
			entries = append(entries, dispatch.HandoffTranscriptEntry{
				Speaker:   t.Speaker,
				Text:      t.Text,
				Timestamp: t.Timestamp,
			})
		}
		o.registrar.Register(ctx, dispatch.HandoffRegistration{
			CallID:       callID,
			RoomName:     o.Session.RoomName,
			PhoneNumber:  o.Session.Phone,
			CustomerName: o.Session.OrderCtx.CustomerName,
			ProductName:  o.Session.OrderCtx.ProductName,
			Reason:       reason,
			Transcript:   entries,
		})
	})

	o.spawn("handoff-broadcast", func(ctx context.Context) {
		payload, err := sonic.Marshal(HandoffNotice{Type: "handoff", CallID: callID, Reason: reason})
		if err != nil {
			logger.Error("Failed to encode handoff notice", zap.Error(err))
			return
		}
		if err := o.broadcaster.Broadcast(ctx, payload); err != nil {
			logger.Warn("Could not broadcast handoff notice",
				zap.String("call_id", callID),
				zap.Error(err))
		}
	})
}

func (o *Orchestrator) handleJoin(identity string) {
	if !strings.HasPrefix(identity, o.opts.OperatorPrefix) {
		logger.Debug("Participant joined",
			zap.String("call_id", o.Session.CallID),
			zap.String("identity", identity))
		return
	}

	logger.Info("Human operator joined",
		zap.String("call_id", o.Session.CallID),
		zap.String("identity", identity))

	// read-then-branch is atomic with respect to tool invocations:
	// the handoff flag is set before the tool's effects are dispatched
	if !o.Session.HandoffRequested() {
		o.Session.markOperatorIgnored()
		logger.Info("Human operator joined but no handoff was requested",
			zap.String("call_id", o.Session.CallID),
			zap.String("identity", identity))
		return
	}

	o.Session.setAudioOwner(AudioOwnerHuman)
	o.audio.SetAudioEnabled(false)
	logger.Info("AI audio disabled, human operator now handling call",
		zap.String("call_id", o.Session.CallID))

	callID := o.Session.CallID
	o.spawn("status-human-handling", func(ctx context.Context) {
		o.store.UpdateStatus(callID, models.CallStatusHumanHandling)
	})
}

func (o *Orchestrator) handleDisconnect() {
	o.Session.complete()
	logger.Info("Call completed", zap.String("call_id", o.Session.CallID))

	callID := o.Session.CallID
	o.spawn("status-completed", func(ctx context.Context) {
		o.store.UpdateStatus(callID, models.CallStatusCompleted)
	})
}

// spawn runs a side effect on its own goroutine with its own deadline.
// Panics are caught at this boundary so a bad effect cannot take down
// the call loop or the process.
func (o *Orchestrator) spawn(name string, fn func(ctx context.Context)) {
	o.tasks.Add(1)
	go func() {
		defer o.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Side effect panicked",
					zap.String("task", name),
					zap.String("call_id", o.Session.CallID),
					zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), o.opts.EffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}
