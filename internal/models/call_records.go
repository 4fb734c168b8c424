package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/NovaByte/NovaVoice/pkg/constants"
	"gorm.io/gorm"
)

// CallStatus call lifecycle status
type CallStatus string

const (
	CallStatusInProgress    CallStatus = "in_progress"    // AI driving the call
	CallStatusHandoff       CallStatus = "handoff"        // handoff requested, human not yet joined
	CallStatusHumanHandling CallStatus = "human_handling" // human operator owns the audio
	CallStatusCompleted     CallStatus = "completed"      // room disconnected
)

// TranscriptEntry a single utterance in a call transcript
type TranscriptEntry struct {
	Speaker   string    `json:"speaker"` // "user" or "agent"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript append-only ordered sequence of utterances
type Transcript []TranscriptEntry

// Value implements the driver.Valuer interface
func (t Transcript) Value() (driver.Value, error) {
	if len(t) == 0 {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface
func (t *Transcript) Scan(value interface{}) error {
	if value == nil {
		*t = make(Transcript, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok || len(bytes) == 0 {
		*t = make(Transcript, 0)
		return nil
	}
	return json.Unmarshal(bytes, t)
}

// CallRecord persisted call lifecycle document
type CallRecord struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt *time.Time `json:"-" gorm:"index"`

	CallID       string     `json:"callId" gorm:"size:64;uniqueIndex;not null"` // opaque call identifier
	RoomName     string     `json:"roomName" gorm:"size:128;index"`
	Phone        string     `json:"phone" gorm:"size:20;index"`
	OrderID      string     `json:"orderId" gorm:"size:64"`
	CustomerName string     `json:"customerName" gorm:"size:128"`
	ProductName  string     `json:"productName" gorm:"size:256"`
	Status       CallStatus `json:"status" gorm:"size:20;default:'in_progress';index"`
	StartedAt    time.Time  `json:"startedAt"` // stored UTC

	Transcript Transcript `json:"transcript" gorm:"type:json"`

	UpsellOffered  bool `json:"upsellOffered" gorm:"default:false"`
	UpsellAccepted bool `json:"upsellAccepted" gorm:"default:false"`

	HandoffRequested   bool       `json:"handoffRequested" gorm:"default:false"`
	HandoffReason      string     `json:"handoffReason,omitempty" gorm:"size:500"`
	HandoffRequestedAt *time.Time `json:"handoffRequestedAt,omitempty"`
}

// TableName get tables
func (CallRecord) TableName() string {
	return constants.TABLE_CALL_RECORDS
}

// CreateCallRecord creates a call record
func CreateCallRecord(db *gorm.DB, record *CallRecord) error {
	return db.Create(record).Error
}

// GetCallRecordByCallID returns the call record for a call ID
func GetCallRecordByCallID(db *gorm.DB, callID string) (*CallRecord, error) {
	var record CallRecord
	err := db.Where("call_id = ?", callID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateCallRecord saves a call record
func UpdateCallRecord(db *gorm.DB, record *CallRecord) error {
	return db.Save(record).Error
}

// GetCallRecordsByStatus returns call records by status, newest first
func GetCallRecordsByStatus(db *gorm.DB, status CallStatus, limit int) ([]CallRecord, error) {
	var records []CallRecord
	query := db.Where("status = ?", status).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}
