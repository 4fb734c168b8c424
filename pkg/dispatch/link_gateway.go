package dispatch

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/carlmjohnson/requests"
	"github.com/sirupsen/logrus"
)

// LinkRequest payload for the link delivery webhook
type LinkRequest struct {
	Platform     string `json:"platform"` // "telegram" or "viber"
	Phone        string `json:"phone"`
	Link         string `json:"link"`
	CustomerName string `json:"customer_name"`
	ProductName  string `json:"product_name"`
}

// LinkGateway delivers payment links to customers through the
// messaging webhook. Delivery is synchronous from the caller's view
// but bounded by the configured timeout.
type LinkGateway struct {
	webhookURL string
	timeout    time.Duration
}

// NewLinkGateway creates a link gateway posting to webhookURL.
func NewLinkGateway(webhookURL string, timeout time.Duration) *LinkGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LinkGateway{webhookURL: webhookURL, timeout: timeout}
}

// Send delivers a payment link. Returns true on confirmed delivery,
// false on any failure. Failures are logged, never returned.
func (g *LinkGateway) Send(ctx context.Context, req LinkRequest) bool {
	body, err := sonic.Marshal(req)
	if err != nil {
		logrus.Errorf("Failed to encode link request: %v", err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err = requests.URL(g.webhookURL).
		ContentType("application/json").
		BodyBytes(body).
		Fetch(ctx)
	if err != nil {
		logrus.Errorf("Link delivery failed platform=%s phone=%s: %v", req.Platform, req.Phone, err)
		return false
	}

	logrus.Infof("Link delivered platform=%s phone=%s", req.Platform, req.Phone)
	return true
}
