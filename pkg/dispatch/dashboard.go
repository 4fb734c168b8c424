package dispatch

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/carlmjohnson/requests"
	"github.com/sirupsen/logrus"
)

// transcript entries longer than this many characters are truncated
// before registration
const maxTranscriptEntryLen = 500

// HandoffTranscriptEntry one utterance in a handoff registration
type HandoffTranscriptEntry struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// HandoffRegistration payload sent to the operator dashboard when a
// call requests human takeover
type HandoffRegistration struct {
	CallID       string                   `json:"call_id"`
	RoomName     string                   `json:"room_name"`
	PhoneNumber  string                   `json:"phone_number"`
	CustomerName string                   `json:"customer_name"`
	ProductName  string                   `json:"product_name"`
	Reason       string                   `json:"reason"`
	Transcript   []HandoffTranscriptEntry `json:"transcript"`
}

// DashboardRegistrar notifies the operator dashboard about pending
// handoffs. Registration is best-effort: a dashboard outage never
// blocks the handoff itself.
type DashboardRegistrar struct {
	registerURL string
	timeout     time.Duration
}

// NewDashboardRegistrar creates a registrar posting to registerURL.
func NewDashboardRegistrar(registerURL string, timeout time.Duration) *DashboardRegistrar {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DashboardRegistrar{registerURL: registerURL, timeout: timeout}
}

// Register posts the handoff to the dashboard. Transcript entries are
// truncated so oversized utterances cannot blow up the request body.
// Failures are logged and swallowed.
func (r *DashboardRegistrar) Register(ctx context.Context, reg HandoffRegistration) {
	for i := range reg.Transcript {
		reg.Transcript[i].Text = truncateRunes(reg.Transcript[i].Text, maxTranscriptEntryLen)
	}

	body, err := sonic.Marshal(reg)
	if err != nil {
		logrus.Errorf("Failed to encode handoff registration call_id=%s: %v", reg.CallID, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err = requests.URL(r.registerURL).
		ContentType("application/json").
		BodyBytes(body).
		Fetch(ctx)
	if err != nil {
		logrus.Errorf("Dashboard registration failed call_id=%s: %v", reg.CallID, err)
		return
	}

	logrus.Infof("Handoff registered on dashboard call_id=%s reason=%s", reg.CallID, reg.Reason)
}

// truncateRunes cuts s to at most limit characters. Transcript text is
// mostly Cyrillic, so cutting by bytes would split a rune in half.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
