package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NovaByte/NovaVoice/internal/models"
	"github.com/NovaByte/NovaVoice/pkg/dispatch"
	"github.com/NovaByte/NovaVoice/pkg/store"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	statuses []models.CallStatus
	handoffs []string
}

func (f *fakeStore) UpdateStatus(callID string, status models.CallStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeStore) AppendTranscript(callID, speaker, text string) {}

func (f *fakeStore) MarkHandoff(callID, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handoffs = append(f.handoffs, reason)
}

func (f *fakeStore) handoffCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handoffs)
}

func (f *fakeStore) lastStatus() models.CallStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return ""
	}
	return f.statuses[len(f.statuses)-1]
}

type fakeRegistrar struct {
	mu   sync.Mutex
	regs []dispatch.HandoffRegistration
}

func (f *fakeRegistrar) Register(ctx context.Context, reg dispatch.HandoffRegistration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs = append(f.regs, reg)
}

func (f *fakeRegistrar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.regs)
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type fakeAudio struct {
	mu      sync.Mutex
	calls   []bool
	enabled bool
}

func newFakeAudio() *fakeAudio { return &fakeAudio{enabled: true} }

func (f *fakeAudio) SetAudioEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
	f.calls = append(f.calls, enabled)
}

func (f *fakeAudio) isEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

type fakeLinks struct {
	mu   sync.Mutex
	ok   bool
	reqs []dispatch.LinkRequest
}

func (f *fakeLinks) Send(ctx context.Context, req dispatch.LinkRequest) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.ok
}

type testRig struct {
	sess      *CallSession
	orch      *Orchestrator
	store     *fakeStore
	registrar *fakeRegistrar
	broadcast *fakeBroadcaster
	audio     *fakeAudio
	cancel    context.CancelFunc
}

func newTestRig(t *testing.T, opts Options) *testRig {
	t.Helper()
	sess := NewCallSession("call-test-1", "room-test", "+380501234567", store.FallbackOrderContext())
	st := &fakeStore{}
	reg := &fakeRegistrar{}
	bc := &fakeBroadcaster{}
	au := newFakeAudio()
	orch := NewOrchestrator(sess, st, reg, bc, au, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go orch.Run(ctx)
	t.Cleanup(func() {
		cancel()
		orch.Close()
	})
	return &testRig{sess: sess, orch: orch, store: st, registrar: reg, broadcast: bc, audio: au, cancel: cancel}
}

func waitState(t *testing.T, sess *CallSession, want CallState) {
	t.Helper()
	require.Eventually(t, func() bool { return sess.State() == want },
		2*time.Second, 5*time.Millisecond, "expected state %s, got %s", want, sess.State())
}

func TestHandoffRequestTransition(t *testing.T) {
	rig := newTestRig(t, Options{})
	rig.sess.AppendTranscript("user", "I want to talk to a manager")

	tools := NewToolSurface(rig.orch, &fakeLinks{ok: true})
	resp := tools.RequestHandoff("customer requested manager")
	assert.Contains(t, resp, "connecting you with one of our team members")

	// flag is set synchronously by the tool handler
	assert.True(t, rig.sess.HandoffRequested())
	assert.Equal(t, StateHandoffPending, rig.sess.State())
	assert.Equal(t, AudioOwnerAgent, rig.sess.AudioOwner())

	require.Eventually(t, func() bool {
		return rig.store.handoffCount() == 1 && rig.registrar.count() == 1 && rig.broadcast.count() == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"customer requested manager"}, rig.store.handoffs)

	var notice HandoffNotice
	require.NoError(t, sonic.Unmarshal(rig.broadcast.payloads[0], &notice))
	assert.Equal(t, "handoff", notice.Type)
	assert.Equal(t, "call-test-1", notice.CallID)
	assert.Equal(t, "customer requested manager", notice.Reason)

	reg := rig.registrar.regs[0]
	assert.Equal(t, "room-test", reg.RoomName)
	assert.Equal(t, "+380501234567", reg.PhoneNumber)
	require.Len(t, reg.Transcript, 1)
	assert.Equal(t, "I want to talk to a manager", reg.Transcript[0].Text)
	assert.False(t, reg.Transcript[0].Timestamp.IsZero())
}

func TestOperatorJoinAfterHandoff(t *testing.T) {
	rig := newTestRig(t, Options{})
	tools := NewToolSurface(rig.orch, &fakeLinks{ok: true})
	tools.RequestHandoff("complex issue")

	rig.orch.NotifyParticipantJoined("human_operator_42")
	waitState(t, rig.sess, StateHumanActive)

	// invariant: human audio owner implies a requested handoff
	assert.True(t, rig.sess.HandoffRequested())
	assert.Equal(t, AudioOwnerHuman, rig.sess.AudioOwner())
	assert.False(t, rig.audio.isEnabled())

	require.Eventually(t, func() bool {
		return rig.store.lastStatus() == models.CallStatusHumanHandling
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOperatorJoinWithoutHandoff(t *testing.T) {
	rig := newTestRig(t, Options{})

	rig.orch.NotifyParticipantJoined("human_operator_7")
	waitState(t, rig.sess, StateHandoffIgnored)

	// audio ownership never changes on an unrequested operator join
	assert.Equal(t, AudioOwnerAgent, rig.sess.AudioOwner())
	assert.True(t, rig.audio.isEnabled())
	assert.False(t, rig.sess.HandoffRequested())
}

func TestNonOperatorJoinIsIgnored(t *testing.T) {
	rig := newTestRig(t, Options{})

	rig.orch.NotifyParticipantJoined("+380509999999")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateAIActive, rig.sess.State())
	assert.Equal(t, AudioOwnerAgent, rig.sess.AudioOwner())
}

func TestDisconnectIsTerminal(t *testing.T) {
	rig := newTestRig(t, Options{})

	rig.orch.NotifyDisconnected()
	waitState(t, rig.sess, StateCompleted)
	assert.Equal(t, AudioOwnerNone, rig.sess.AudioOwner())

	rig.orch.Close()
	assert.Equal(t, models.CallStatusCompleted, rig.store.lastStatus())

	// no further events are processed after completion
	rig.orch.NotifyParticipantJoined("human_operator_1")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateCompleted, rig.sess.State())
	assert.Equal(t, AudioOwnerNone, rig.sess.AudioOwner())
}

func TestDisconnectFromHumanActive(t *testing.T) {
	rig := newTestRig(t, Options{})
	tools := NewToolSurface(rig.orch, &fakeLinks{ok: true})
	tools.RequestHandoff("escalation")
	rig.orch.NotifyParticipantJoined("human_operator_3")
	waitState(t, rig.sess, StateHumanActive)

	rig.orch.NotifyDisconnected()
	waitState(t, rig.sess, StateCompleted)
	rig.orch.Close()
	assert.Equal(t, models.CallStatusCompleted, rig.store.lastStatus())
}

func TestRepeatedHandoffIsIdempotent(t *testing.T) {
	rig := newTestRig(t, Options{})
	tools := NewToolSurface(rig.orch, &fakeLinks{ok: true})

	first := tools.RequestHandoff("first reason")
	second := tools.RequestHandoff("second reason")
	assert.Equal(t, first, second) // fixed announcement either way

	require.Eventually(t, func() bool { return rig.broadcast.count() >= 1 },
		2*time.Second, 5*time.Millisecond)
	rig.cancel()
	rig.orch.Close()

	assert.True(t, rig.sess.HandoffRequested())
	assert.Equal(t, "first reason", rig.sess.HandoffReason())
	assert.Equal(t, 1, rig.store.handoffCount())
	assert.Equal(t, 1, rig.registrar.count())
	assert.Equal(t, 1, rig.broadcast.count())
}

func TestRepeatedHandoffRebroadcast(t *testing.T) {
	rig := newTestRig(t, Options{Rebroadcast: true})
	tools := NewToolSurface(rig.orch, &fakeLinks{ok: true})

	tools.RequestHandoff("first reason")
	tools.RequestHandoff("dashboard missed it")

	require.Eventually(t, func() bool { return rig.broadcast.count() == 2 },
		2*time.Second, 5*time.Millisecond)
	// the recorded reason stays from the first request
	assert.Equal(t, "first reason", rig.sess.HandoffReason())
}

func TestOperatorJoinRacesHandoffSideEffects(t *testing.T) {
	// the join must observe the handoff flag even before any of the
	// handoff side effects have run
	rig := newTestRig(t, Options{})
	tools := NewToolSurface(rig.orch, &fakeLinks{ok: true})

	tools.RequestHandoff("race")
	rig.orch.NotifyParticipantJoined("human_operator_99")

	waitState(t, rig.sess, StateHumanActive)
	assert.True(t, rig.sess.HandoffRequested())
}

func TestBroadcastFailureDoesNotBlockOtherEffects(t *testing.T) {
	rig := newTestRig(t, Options{})
	rig.broadcast.err = errors.New("data channel closed")
	tools := NewToolSurface(rig.orch, &fakeLinks{ok: true})

	tools.RequestHandoff("broadcast down")

	require.Eventually(t, func() bool {
		return rig.store.handoffCount() == 1 && rig.registrar.count() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateHandoffPending, rig.sess.State())
}

func TestSendLinkResponses(t *testing.T) {
	rig := newTestRig(t, Options{})
	links := &fakeLinks{ok: true}
	tools := NewToolSurface(rig.orch, links)

	resp := tools.SendLink(context.Background(), "telegram", "https://rozetka.ua/p/123")
	assert.Equal(t, "Link successfully sent via telegram. Ask if they received it.", resp)
	require.Len(t, links.reqs, 1)
	assert.Equal(t, "+380501234567", links.reqs[0].Phone)
	assert.Equal(t, "Premium Protection Plan", links.reqs[0].ProductName)

	links.ok = false
	resp = tools.SendLink(context.Background(), "telegram", "https://rozetka.ua/p/123")
	assert.Contains(t, resp, "couldn't send the link via telegram")
	assert.Contains(t, resp, "give you the link verbally")

	resp = tools.SendLink(context.Background(), "whatsapp", "https://rozetka.ua/p/123")
	assert.Contains(t, resp, "not supported")
	assert.Len(t, links.reqs, 2) // no gateway call for an unsupported platform
}

func TestBuildInstructions(t *testing.T) {
	octx := store.FallbackOrderContext()
	got := BuildInstructions(octx)
	assert.Contains(t, got, "Valued Customer")
	assert.Contains(t, got, "Samsung Galaxy S24")
	assert.Contains(t, got, "25999 UAH")
	assert.Contains(t, got, "Premium Protection Plan")
}
