package api

import (
	"net/http"

	"socialflow/internal/models"
	"socialflow/internal/store"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type SequenceHandler struct {
	sequences *store.SequenceRepository
	contacts  *store.ContactRepository
}

func NewSequenceHandler(sequences *store.SequenceRepository, contacts *store.ContactRepository) *SequenceHandler {
	return &SequenceHandler{sequences: sequences, contacts: contacts}
}

func (h *SequenceHandler) ListSequences(c *gin.Context) {
	sequences, err := h.sequences.List(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if sequences == nil {
		sequences = []models.Sequence{}
	}
	c.JSON(http.StatusOK, sequences)
}

func (h *SequenceHandler) CreateSequence(c *gin.Context) {
	var req struct {
		Name        string                `json:"name" validate:"required,max=255"`
		Description string                `json:"description"`
		Steps       []models.SequenceStep `json:"steps" validate:"dive"`
	}
	if !bind(c, &req) {
		return
	}
	for i, step := range req.Steps {
		if step.Delay < 0 {
			respondError(c, invalidf("step %d: delay must not be negative", i))
			return
		}
	}
	steps := req.Steps
	if steps == nil {
		steps = []models.SequenceStep{}
	}

	seq := &models.Sequence{
		TenantID:    tenantID(c),
		Name:        req.Name,
		Description: req.Description,
		Steps:       datatypes.JSONSlice[models.SequenceStep](steps),
	}
	if err := h.sequences.Create(c.Request.Context(), seq); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, seq)
}

func (h *SequenceHandler) SetSequenceStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status models.FlowStatus `json:"status" validate:"required,oneof=draft active paused"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.sequences.SetStatus(c.Request.Context(), tenantID(c), id, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sequence status updated", "status": req.Status})
}

// Subscribe enrolls a contact; enrolling twice returns the existing
// subscription with 200 instead of 201.
func (h *SequenceHandler) Subscribe(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ContactID uint `json:"contact_id" validate:"required"`
	}
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.sequences.Get(ctx, tenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.contacts.Get(ctx, tenantID(c), req.ContactID); err != nil {
		respondError(c, err)
		return
	}

	sub, created, err := h.sequences.Subscribe(ctx, id, req.ContactID)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, sub)
}

func (h *SequenceHandler) ListSubscriptions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.sequences.Get(ctx, tenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	subs, err := h.sequences.Subscriptions(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if subs == nil {
		subs = []models.SequenceSubscription{}
	}
	c.JSON(http.StatusOK, subs)
}
