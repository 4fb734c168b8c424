package webhook

import (
	"context"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/sirupsen/logrus"
)

// Messenger delivers a text message to a phone number on one platform.
type Messenger interface {
	// Send returns true on confirmed delivery. Implementations never
	// surface transport errors; they log and return false.
	Send(ctx context.Context, phone, message string) bool
	// Configured reports whether real delivery credentials are present.
	Configured() bool
}

// TelegramConfig credentials and bridge endpoint for Telegram delivery
type TelegramConfig struct {
	APIID         string
	APIHash       string
	SessionString string
	// BridgeURL points at the MTProto bridge service that performs the
	// actual protocol work.
	BridgeURL string
}

func (c TelegramConfig) complete() bool {
	return c.APIID != "" && c.APIHash != "" && c.SessionString != "" && c.BridgeURL != ""
}

// TelegramMessenger sends messages to phone numbers via the MTProto
// bridge, so customers receive links without having started a bot.
// Without credentials it degrades to mock mode and logs every send.
type TelegramMessenger struct {
	cfg    TelegramConfig
	logger *logrus.Logger
}

// NewTelegramMessenger creates the Telegram messenger.
func NewTelegramMessenger(cfg TelegramConfig, logger *logrus.Logger) *TelegramMessenger {
	if !cfg.complete() {
		logger.Warn("Telegram credentials not configured, running in mock mode. " +
			"Set TELEGRAM_API_ID, TELEGRAM_API_HASH, TELEGRAM_SESSION_STRING and TELEGRAM_BRIDGE_URL")
	}
	return &TelegramMessenger{cfg: cfg, logger: logger}
}

func (m *TelegramMessenger) Configured() bool {
	return m.cfg.complete()
}

type bridgeSendRequest struct {
	APIID         string `json:"api_id"`
	APIHash       string `json:"api_hash"`
	SessionString string `json:"session_string"`
	Phone         string `json:"phone"`
	Message       string `json:"message"`
}

func (m *TelegramMessenger) Send(ctx context.Context, phone, message string) bool {
	if !m.Configured() {
		m.logger.Infof("[MOCK TELEGRAM] To %s: %s", phone, message)
		return true
	}

	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := requests.URL(m.cfg.BridgeURL).
		BodyJSON(&bridgeSendRequest{
			APIID:         m.cfg.APIID,
			APIHash:       m.cfg.APIHash,
			SessionString: m.cfg.SessionString,
			Phone:         phone,
			Message:       message,
		}).
		Fetch(ctx)
	if err != nil {
		m.logger.WithError(err).Errorf("Failed to send Telegram message to %s", phone)
		return false
	}

	m.logger.Infof("[TELEGRAM] Message sent to %s", phone)
	return true
}

// ViberMessenger mock Viber delivery; logs instead of sending.
type ViberMessenger struct {
	logger *logrus.Logger
}

// NewViberMessenger creates the mock Viber messenger.
func NewViberMessenger(logger *logrus.Logger) *ViberMessenger {
	return &ViberMessenger{logger: logger}
}

func (m *ViberMessenger) Configured() bool { return false }

func (m *ViberMessenger) Send(ctx context.Context, phone, message string) bool {
	m.logger.Infof("[MOCK VIBER] To %s: %s", phone, message)
	return true
}
