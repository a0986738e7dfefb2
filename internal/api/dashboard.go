package api

import (
	"errors"
	"net/http"
	"strconv"

	"socialflow/internal/messaging"
	"socialflow/internal/models"
	"socialflow/internal/store"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	messages     *store.MessageRepository
	integrations *store.IntegrationRepository
	gateway      messaging.Sender
}

func NewDashboardHandler(messages *store.MessageRepository, integrations *store.IntegrationRepository, gateway messaging.Sender) *DashboardHandler {
	return &DashboardHandler{messages: messages, integrations: integrations, gateway: gateway}
}

func (h *DashboardHandler) GetMessages(c *gin.Context) {
	f := store.MessageFilter{
		Platform:  models.Platform(c.Query("platform")),
		Direction: models.Direction(c.Query("direction")),
		Limit:     queryInt(c, "limit"),
	}
	if raw := c.Query("flow_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flow_id"})
			return
		}
		flowID := uint(id)
		f.FlowID = &flowID
	}

	messages, err := h.messages.List(c.Request.Context(), tenantID(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

type SendRequest struct {
	Platform models.Platform `json:"platform" validate:"required,oneof=instagram whatsapp"`
	To       string          `json:"to" validate:"required"`
	Content  string          `json:"content" validate:"required_without=ImageURL"`
	ImageURL string          `json:"image_url" validate:"omitempty,url"`
}

// SendMessage sends one message through the tenant's integration and logs it.
func (h *DashboardHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	integration, err := h.integrations.GetActive(ctx, tenantID(c), req.Platform)
	if err != nil {
		respondError(c, err)
		return
	}

	msg := &models.Message{
		TenantID:    tenantID(c),
		Platform:    req.Platform,
		Direction:   models.DirectionOutbound,
		RecipientID: req.To,
		Content:     req.Content,
		MediaURL:    req.ImageURL,
		Status:      models.MessageSent,
	}
	if req.ImageURL != "" && req.Content == "" {
		msg.MessageType = "image"
	}

	sendErr := h.gateway.Send(ctx, integration, req.To, messaging.Content{Text: req.Content, ImageURL: req.ImageURL})
	if sendErr != nil {
		msg.Status = models.MessageFailed
		msg.ErrorMessage = sendErr.Error()
	}
	if err := h.messages.Log(ctx, msg); err != nil {
		l := requestLog(c)
		l.Error().Err(err).Msg("failed to log outbound message")
	}

	if sendErr != nil {
		var gwErr *messaging.GatewayError
		if errors.As(sendErr, &gwErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send message: " + sendErr.Error()})
			return
		}
		respondError(c, sendErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Message sent", "message": msg})
}
