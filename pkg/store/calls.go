package store

import (
	"fmt"
	"time"

	"github.com/NovaByte/NovaVoice/internal/models"
	"github.com/NovaByte/NovaVoice/pkg/logger"
	"github.com/NovaByte/NovaVoice/pkg/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CallStore persists call lifecycle events. Every write is best-effort:
// failures are logged and never surfaced to the live call. With a nil
// db the store runs in mock mode and logs every write instead of
// persisting it, with the same non-failing contract.
type CallStore struct {
	db *gorm.DB
}

// NewCallStore creates a call store. Pass nil db for mock mode.
func NewCallStore(db *gorm.DB) *CallStore {
	return &CallStore{db: db}
}

// MockMode reports whether writes are logged instead of persisted.
func (s *CallStore) MockMode() bool {
	return s.db == nil
}

// Create records the start of a call and returns a fresh call ID.
// Always creates a new record; a failed insert still returns a usable
// ID so the in-memory call can proceed.
func (s *CallStore) Create(roomName, phone string, octx OrderContext) string {
	if s.db == nil {
		callID := fmt.Sprintf("mock-call-%s", roomName)
		logger.Info("[MOCK] Call started",
			zap.String("call_id", callID),
			zap.String("room", roomName),
			zap.String("phone", phone),
			zap.String("order_id", octx.OrderID))
		return callID
	}

	callID := utils.NewCallID()
	record := &models.CallRecord{
		CallID:       callID,
		RoomName:     roomName,
		Phone:        phone,
		OrderID:      octx.OrderID,
		CustomerName: octx.CustomerName,
		ProductName:  octx.ProductName,
		Status:       models.CallStatusInProgress,
		StartedAt:    time.Now().UTC(),
		Transcript:   make(models.Transcript, 0),
	}

	if err := models.CreateCallRecord(s.db, record); err != nil {
		logger.Error("Failed to create call record",
			zap.String("call_id", callID),
			zap.String("room", roomName),
			zap.Error(err))
	}
	return callID
}

// UpdateStatus updates the call status.
func (s *CallStore) UpdateStatus(callID string, status models.CallStatus) {
	if s.db == nil {
		logger.Info("[MOCK] Call status updated",
			zap.String("call_id", callID),
			zap.String("status", string(status)))
		return
	}

	record, err := models.GetCallRecordByCallID(s.db, callID)
	if err != nil {
		logger.Error("Failed to find call record for status update",
			zap.String("call_id", callID),
			zap.Error(err))
		return
	}

	record.Status = status
	if err := models.UpdateCallRecord(s.db, record); err != nil {
		logger.Error("Failed to update call status",
			zap.String("call_id", callID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

// AppendTranscript appends one utterance to the call transcript.
func (s *CallStore) AppendTranscript(callID, speaker, text string) {
	if s.db == nil {
		logger.Info("[MOCK] Transcript entry",
			zap.String("call_id", callID),
			zap.String("speaker", speaker),
			zap.String("text", text))
		return
	}

	record, err := models.GetCallRecordByCallID(s.db, callID)
	if err != nil {
		logger.Error("Failed to find call record for transcript append",
			zap.String("call_id", callID),
			zap.Error(err))
		return
	}

	record.Transcript = append(record.Transcript, models.TranscriptEntry{
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	if err := models.UpdateCallRecord(s.db, record); err != nil {
		logger.Error("Failed to append transcript entry",
			zap.String("call_id", callID),
			zap.Error(err))
	}
}

// MarkHandoff marks a call as needing human handoff.
func (s *CallStore) MarkHandoff(callID, reason string) {
	if s.db == nil {
		logger.Info("[MOCK] Handoff marked",
			zap.String("call_id", callID),
			zap.String("reason", reason))
		return
	}

	record, err := models.GetCallRecordByCallID(s.db, callID)
	if err != nil {
		logger.Error("Failed to find call record for handoff",
			zap.String("call_id", callID),
			zap.Error(err))
		return
	}

	now := time.Now().UTC()
	record.Status = models.CallStatusHandoff
	record.HandoffRequested = true
	record.HandoffReason = reason
	record.HandoffRequestedAt = &now
	if err := models.UpdateCallRecord(s.db, record); err != nil {
		logger.Error("Failed to mark handoff",
			zap.String("call_id", callID),
			zap.Error(err))
	}
}

// PendingHandoffs returns calls waiting for a human operator, newest
// first. In mock mode nothing is persisted, so there is nothing to list.
func (s *CallStore) PendingHandoffs(limit int) []models.CallRecord {
	if s.db == nil {
		return nil
	}

	records, err := models.GetCallRecordsByStatus(s.db, models.CallStatusHandoff, limit)
	if err != nil {
		logger.Error("Failed to list pending handoffs", zap.Error(err))
		return nil
	}
	return records
}

// MarkUpsell records the upsell outcome for a call.
func (s *CallStore) MarkUpsell(callID string, offered, accepted bool) {
	if s.db == nil {
		logger.Info("[MOCK] Upsell outcome",
			zap.String("call_id", callID),
			zap.Bool("offered", offered),
			zap.Bool("accepted", accepted))
		return
	}

	record, err := models.GetCallRecordByCallID(s.db, callID)
	if err != nil {
		logger.Error("Failed to find call record for upsell update",
			zap.String("call_id", callID),
			zap.Error(err))
		return
	}

	record.UpsellOffered = offered
	record.UpsellAccepted = accepted
	if err := models.UpdateCallRecord(s.db, record); err != nil {
		logger.Error("Failed to record upsell outcome",
			zap.String("call_id", callID),
			zap.Error(err))
	}
}
