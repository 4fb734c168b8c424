package store

import (
	"path/filepath"
	"testing"

	"github.com/NovaByte/NovaVoice/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.CallRecord{}))
	return db
}

func TestOrderProviderFallback(t *testing.T) {
	// nil db: every phone resolves to the fallback context
	p := NewOrderProvider(nil)

	octx := p.Resolve("+380501234567")
	assert.Equal(t, "mock-123", octx.OrderID)
	assert.Equal(t, "Valued Customer", octx.CustomerName)
	assert.Equal(t, "Samsung Galaxy S24", octx.ProductName)
	assert.Equal(t, 25999.0, octx.ProductPrice)
	assert.Equal(t, "Premium Protection Plan", octx.UpsellProduct)
	assert.Equal(t, 1499.0, octx.UpsellPrice)
	assert.Equal(t, "+380501234567", octx.Phone)
}

func TestOrderProviderResolve(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, models.CreateOrder(db, &models.Order{
		OrderID:      "ord-777",
		Phone:        "+380501112233",
		CustomerName: "Oksana",
		ProductName:  "iPhone 15",
		ProductPrice: 42999,
		UpsellName:   "AppleCare+",
		UpsellPrice:  3499,
	}))

	p := NewOrderProvider(db)

	octx := p.Resolve("+380501112233")
	assert.Equal(t, "ord-777", octx.OrderID)
	assert.Equal(t, "Oksana", octx.CustomerName)
	assert.Equal(t, "iPhone 15", octx.ProductName)
	assert.Equal(t, "AppleCare+", octx.UpsellProduct)

	// unknown phone falls back, never errors
	octx = p.Resolve("+380509999999")
	assert.Equal(t, "mock-123", octx.OrderID)
}

func TestOrderProviderCache(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, models.CreateOrder(db, &models.Order{
		OrderID: "ord-1",
		Phone:   "+380671111111",
	}))

	p := NewOrderProvider(db)
	first := p.Resolve("+380671111111")

	// mutate the row; cached context must not change within TTL
	require.NoError(t, db.Model(&models.Order{}).
		Where("order_id = ?", "ord-1").
		Update("customer_name", "Changed").Error)

	second := p.Resolve("+380671111111")
	assert.Equal(t, first, second)
}

func TestCallStoreMockMode(t *testing.T) {
	s := NewCallStore(nil)
	assert.True(t, s.MockMode())

	callID := s.Create("room-42", "+380501234567", FallbackOrderContext())
	assert.Equal(t, "mock-call-room-42", callID)

	// writes are logged, never fail
	s.UpdateStatus(callID, models.CallStatusHandoff)
	s.AppendTranscript(callID, "user", "hello")
	s.MarkHandoff(callID, "user requested human")
	s.MarkUpsell(callID, true, false)
}

func TestCallStoreLifecycle(t *testing.T) {
	db := openTestDB(t)
	s := NewCallStore(db)
	assert.False(t, s.MockMode())

	callID := s.Create("room-7", "+380501112233", OrderContext{
		OrderID:      "ord-777",
		CustomerName: "Oksana",
		ProductName:  "iPhone 15",
	})
	require.NotEmpty(t, callID)
	assert.NotContains(t, callID, "mock-call")

	record, err := models.GetCallRecordByCallID(db, callID)
	require.NoError(t, err)
	assert.Equal(t, "room-7", record.RoomName)
	assert.Equal(t, "ord-777", record.OrderID)
	assert.Equal(t, models.CallStatusInProgress, record.Status)
	assert.False(t, record.StartedAt.IsZero())

	s.AppendTranscript(callID, "agent", "Hello, this is your assistant")
	s.AppendTranscript(callID, "user", "I want a human")

	record, err = models.GetCallRecordByCallID(db, callID)
	require.NoError(t, err)
	require.Len(t, record.Transcript, 2)
	assert.Equal(t, "agent", record.Transcript[0].Speaker)
	assert.Equal(t, "I want a human", record.Transcript[1].Text)
	assert.False(t, record.Transcript[0].Timestamp.IsZero())

	s.MarkHandoff(callID, "complex warranty question")
	record, err = models.GetCallRecordByCallID(db, callID)
	require.NoError(t, err)
	assert.True(t, record.HandoffRequested)
	assert.Equal(t, models.CallStatusHandoff, record.Status)
	assert.Equal(t, "complex warranty question", record.HandoffReason)
	require.NotNil(t, record.HandoffRequestedAt)

	s.UpdateStatus(callID, models.CallStatusHumanHandling)
	s.UpdateStatus(callID, models.CallStatusCompleted)
	record, err = models.GetCallRecordByCallID(db, callID)
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusCompleted, record.Status)

	s.MarkUpsell(callID, true, true)
	record, err = models.GetCallRecordByCallID(db, callID)
	require.NoError(t, err)
	assert.True(t, record.UpsellOffered)
	assert.True(t, record.UpsellAccepted)
}

func TestCallStorePendingHandoffs(t *testing.T) {
	db := openTestDB(t)
	s := NewCallStore(db)

	first := s.Create("room-1", "+380501111111", FallbackOrderContext())
	second := s.Create("room-2", "+380502222222", FallbackOrderContext())
	completed := s.Create("room-3", "+380503333333", FallbackOrderContext())

	s.MarkHandoff(first, "needs a human")
	s.MarkHandoff(second, "billing dispute")
	s.UpdateStatus(completed, models.CallStatusCompleted)

	pending := s.PendingHandoffs(10)
	require.Len(t, pending, 2)
	for _, record := range pending {
		assert.Equal(t, models.CallStatusHandoff, record.Status)
	}

	// limit caps the result
	assert.Len(t, s.PendingHandoffs(1), 1)
}

func TestCallStorePendingHandoffsMockMode(t *testing.T) {
	s := NewCallStore(nil)
	assert.Nil(t, s.PendingHandoffs(10))
}

func TestCallStoreUnknownCallID(t *testing.T) {
	db := openTestDB(t)
	s := NewCallStore(db)

	// updates against an unknown ID are logged and swallowed
	s.UpdateStatus("no-such-call", models.CallStatusCompleted)
	s.AppendTranscript("no-such-call", "user", "anyone there?")
	s.MarkHandoff("no-such-call", "lost")
}
