package agent

import (
	"context"
	"fmt"

	"github.com/NovaByte/NovaVoice/pkg/dispatch"
	"github.com/NovaByte/NovaVoice/pkg/logger"
	"go.uber.org/zap"
)

// platforms the send_link tool accepts
var supportedPlatforms = map[string]bool{
	"telegram": true,
	"viber":    true,
}

// ToolSurface translates conversational-model tool calls into
// orchestrator commands. Tool responses are instructions back to the
// model, never technical errors.
type ToolSurface struct {
	orch  *Orchestrator
	links LinkDispatcher
}

// NewToolSurface creates the tool surface for one call.
func NewToolSurface(orch *Orchestrator, links LinkDispatcher) *ToolSurface {
	return &ToolSurface{orch: orch, links: links}
}

// SendLink sends a product link to the customer via a messaging
// platform. Delivery failure degrades to an offer to read the link
// aloud instead of erroring the conversation.
func (t *ToolSurface) SendLink(ctx context.Context, platform, link string) string {
	sess := t.orch.Session
	logger.Info("Sending link",
		zap.String("call_id", sess.CallID),
		zap.String("platform", platform),
		zap.String("link", link))

	if !supportedPlatforms[platform] {
		return fmt.Sprintf("Platform %q is not supported. Use telegram or viber, or offer to read the link aloud.", platform)
	}

	ok := t.links.Send(ctx, dispatch.LinkRequest{
		Platform:     platform,
		Phone:        sess.Phone,
		Link:         link,
		CustomerName: sess.OrderCtx.CustomerName,
		ProductName:  sess.OrderCtx.UpsellProduct,
	})
	if !ok {
		return fmt.Sprintf("Sorry, I couldn't send the link via %s right now. Please try again later or I can give you the link verbally.", platform)
	}
	return fmt.Sprintf("Link successfully sent via %s. Ask if they received it.", platform)
}

// RequestHandoff transfers the call to a human representative. The
// in-memory flag is set here, synchronously, before the side effects
// are dispatched, so an operator join racing this call still observes
// the requested handoff. The response text is fixed regardless of how
// the backend plumbing fares.
func (t *ToolSurface) RequestHandoff(reason string) string {
	first := t.orch.Session.RequestHandoff(reason)
	t.orch.enqueue(callEvent{kind: eventHandoffRequested, reason: reason, first: first})
	return "I'm connecting you with one of our team members now. Please hold for just a moment while I transfer you. They will have all the context from our conversation."
}
