package webhook

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/NovaByte/NovaVoice/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SendLinkRequest request body for sending a link
type SendLinkRequest struct {
	Platform     string `json:"platform" binding:"required"`
	Phone        string `json:"phone" binding:"required"`
	Link         string `json:"link" binding:"required"`
	CustomerName string `json:"customer_name"`
	ProductName  string `json:"product_name"`
}

// SendLinkResponse response for a send link request
type SendLinkResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Platform string `json:"platform"`
}

// HandoffLister lists calls waiting for a human operator.
type HandoffLister interface {
	PendingHandoffs(limit int) []models.CallRecord
}

// Server webhook service for delivering product links to customers
// over messaging platforms.
type Server struct {
	engine   *gin.Engine
	telegram Messenger
	viber    Messenger
	handoffs HandoffLister
	logger   *logrus.Logger
}

// NewServer creates the webhook server. mode follows gin's modes
// (debug/release/test).
func NewServer(telegram, viber Messenger, handoffs HandoffLister, mode string, logger *logrus.Logger) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}

	s := &Server{
		engine:   gin.New(),
		telegram: telegram,
		viber:    viber,
		handoffs: handoffs,
		logger:   logger,
	}
	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/send-link", s.handleSendLink)
	s.engine.GET("/handoffs/pending", s.handlePendingHandoffs)
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server on addr.
func (s *Server) Run(addr string) error {
	s.logger.WithField("addr", addr).Info("Webhook server starting")
	return s.engine.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"mtproto_configured": s.telegram.Configured(),
	})
}

func (s *Server) handlePendingHandoffs(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	records := []models.CallRecord{}
	if s.handoffs != nil {
		if found := s.handoffs.PendingHandoffs(limit); found != nil {
			records = found
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"handoffs": records,
		"count":    len(records),
	})
}

func (s *Server) handleSendLink(c *gin.Context) {
	var req SendLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.logger.WithFields(logrus.Fields{
		"platform": req.Platform,
		"phone":    req.Phone,
	}).Info("Received send_link request")

	message := buildMessage(req)

	var sent bool
	switch req.Platform {
	case "telegram":
		sent = s.telegram.Send(c.Request.Context(), req.Phone, message)
	case "viber":
		sent = s.viber.Send(c.Request.Context(), req.Phone, message)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": fmt.Sprintf("Unsupported platform: %s", req.Platform),
		})
		return
	}

	if !sent {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to send message"})
		return
	}

	c.JSON(http.StatusOK, SendLinkResponse{
		Success:  true,
		Message:  "Link sent successfully",
		Platform: req.Platform,
	})
}

func buildMessage(req SendLinkRequest) string {
	message := fmt.Sprintf("Hi %s!\n\n", req.CustomerName)
	if req.ProductName != "" {
		message += fmt.Sprintf("Here's the link to %s:\n", req.ProductName)
	}
	message += req.Link + "\n\n"
	message += "Thank you for shopping with Rozetka!"
	return message
}
