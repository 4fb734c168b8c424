package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/NovaByte/NovaVoice/pkg/llm"
	"github.com/NovaByte/NovaVoice/pkg/logger"
	"github.com/NovaByte/NovaVoice/pkg/store"
	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// Worker assembles and runs call sessions. One Worker serves many
// calls; each call gets its own session, orchestrator and handler.
type Worker struct {
	orders    *store.OrderProvider
	calls     *store.CallStore
	links     LinkDispatcher
	registrar HandoffRegistrar
	roomCfg   RoomConfig
	llmCfg    llm.Config
	opts      Options
	log       *logrus.Logger
}

// NewWorker wires a call worker from shared, concurrency-safe deps.
func NewWorker(orders *store.OrderProvider, calls *store.CallStore, links LinkDispatcher, registrar HandoffRegistrar, roomCfg RoomConfig, llmCfg llm.Config, opts Options, log *logrus.Logger) *Worker {
	return &Worker{
		orders:    orders,
		calls:     calls,
		links:     links,
		registrar: registrar,
		roomCfg:   roomCfg,
		llmCfg:    llmCfg,
		opts:      opts,
		log:       log,
	}
}

// userText inbound data-channel message from the caller's client
type userText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// agentText outbound data-channel message carrying the agent's reply
type agentText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// transcriptTee mirrors utterances into the in-memory session and the
// call record store.
type transcriptTee struct {
	sess  *CallSession
	calls *store.CallStore
}

func (t *transcriptTee) AppendTranscript(speaker, text string) {
	t.sess.AppendTranscript(speaker, text)
	t.calls.AppendTranscript(t.sess.CallID, speaker, text)
}

// HandleRoom runs one call to completion: joins the room, resolves the
// caller's order context, creates the call record and drives the
// conversation until the room disconnects or ctx is cancelled.
func (w *Worker) HandleRoom(ctx context.Context, roomName string) error {
	sess := NewCallSession("", roomName, "unknown", store.OrderContext{})
	orch := NewOrchestrator(sess, w.calls, w.registrar, nil, nil, w.opts)

	adapter := NewRoomAdapter(w.roomCfg)
	orch.broadcaster = adapter
	orch.audio = adapter

	// the handler is built only after the caller's context is known
	var handler atomic.Pointer[llm.Handler]
	onText := func(identity string, payload []byte) {
		var msg userText
		if err := sonic.Unmarshal(payload, &msg); err != nil || msg.Type != "user_text" {
			return
		}
		w.handleUserTurn(ctx, handler.Load(), adapter, msg.Text)
	}

	if err := adapter.Connect(roomName, orch, onText); err != nil {
		return err
	}
	defer adapter.Disconnect()

	// for inbound calls the first remote participant is the caller
	phone := adapter.CallerIdentity()
	octx := w.orders.Resolve(phone)
	callID := w.calls.Create(roomName, phone, octx)

	sess.CallID = callID
	sess.Phone = phone
	sess.OrderCtx = octx

	logger.Info("Starting sales call",
		zap.String("call_id", callID),
		zap.String("phone", phone),
		zap.String("product", octx.ProductName))

	tools := NewToolSurface(orch, w.links)
	handler.Store(llm.NewHandler(w.llmCfg, BuildInstructions(octx), tools,
		&transcriptTee{sess: sess, calls: w.calls}, w.log))

	orch.Run(ctx)
	orch.Close()

	logger.Info("Call finished",
		zap.String("call_id", callID),
		zap.String("state", string(sess.State())))
	return nil
}

// handleUserTurn feeds one user utterance through the model and sends
// the reply back over the data channel. Errors never escape the turn.
func (w *Worker) handleUserTurn(ctx context.Context, handler *llm.Handler, adapter *RoomAdapter, text string) {
	if handler == nil || text == "" {
		return
	}

	turnCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	reply, err := handler.QueryStream(turnCtx, text, nil)
	if err != nil {
		w.log.WithError(err).Error("LLM turn failed")
		return
	}
	if reply == "" {
		return
	}

	payload, err := sonic.Marshal(agentText{Type: "agent_text", Text: reply})
	if err != nil {
		w.log.WithError(err).Error("Failed to encode agent reply")
		return
	}
	if err := adapter.Broadcast(turnCtx, payload); err != nil {
		w.log.WithError(err).Warn("Failed to publish agent reply")
	}
}

// Validate checks the worker has what it needs to join rooms.
func (w *Worker) Validate() error {
	if w.roomCfg.URL == "" || w.roomCfg.APIKey == "" || w.roomCfg.APISecret == "" {
		return fmt.Errorf("room connection not configured: need LIVEKIT_URL, LIVEKIT_API_KEY, LIVEKIT_API_SECRET")
	}
	return nil
}
