package api

import (
	"net/http"
	"time"

	"socialflow/internal/models"
	"socialflow/internal/store"

	"github.com/gin-gonic/gin"
)

type IntegrationHandler struct {
	integrations *store.IntegrationRepository
}

func NewIntegrationHandler(integrations *store.IntegrationRepository) *IntegrationHandler {
	return &IntegrationHandler{integrations: integrations}
}

type integrationRequest struct {
	Type              models.Platform `json:"type" validate:"required,oneof=instagram whatsapp"`
	AccessToken       string          `json:"access_token" validate:"required"`
	RefreshToken      string          `json:"refresh_token"`
	ExpiresAt         *time.Time      `json:"expires_at"`
	PlatformUserID    string          `json:"platform_user_id" validate:"required_if=Type instagram"`
	PlatformUsername  string          `json:"platform_username"`
	PhoneNumberID     string          `json:"phone_number_id" validate:"required_if=Type whatsapp"`
	BusinessAccountID string          `json:"business_account_id"`
}

// SaveIntegration connects a platform account, replacing the tenant's
// previous credentials for that platform.
func (h *IntegrationHandler) SaveIntegration(c *gin.Context) {
	var req integrationRequest
	if !bind(c, &req) {
		return
	}
	integration := &models.Integration{
		TenantID:          tenantID(c),
		Type:              req.Type,
		AccessToken:       req.AccessToken,
		RefreshToken:      req.RefreshToken,
		ExpiresAt:         req.ExpiresAt,
		PlatformUserID:    req.PlatformUserID,
		PlatformUsername:  req.PlatformUsername,
		PhoneNumberID:     req.PhoneNumberID,
		BusinessAccountID: req.BusinessAccountID,
	}
	if err := h.integrations.Save(c.Request.Context(), integration); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, integration)
}

func (h *IntegrationHandler) ListIntegrations(c *gin.Context) {
	integrations, err := h.integrations.List(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if integrations == nil {
		integrations = []models.Integration{}
	}
	c.JSON(http.StatusOK, integrations)
}

func (h *IntegrationHandler) DisconnectIntegration(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.integrations.Disconnect(c.Request.Context(), tenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Integration disconnected"})
}
