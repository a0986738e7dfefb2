package api

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"socialflow/internal/models"
	"socialflow/internal/store"

	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	contacts *store.ContactRepository
}

func NewContactHandler(contacts *store.ContactRepository) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

func contactFilter(c *gin.Context) store.ContactFilter {
	return store.ContactFilter{
		Platform: models.Platform(c.Query("platform")),
		Tag:      c.Query("tag"),
		Search:   c.Query("search"),
		Limit:    queryInt(c, "limit"),
		Offset:   queryInt(c, "offset"),
	}
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	contacts, err := h.contacts.List(c.Request.Context(), tenantID(c), contactFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}

	// Return empty array instead of null
	if contacts == nil {
		contacts = []models.Contact{}
	}

	c.JSON(http.StatusOK, contacts)
}

func (h *ContactHandler) GetContact(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	contact, err := h.contacts.Get(c.Request.Context(), tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

type tagRequest struct {
	Tag string `json:"tag" validate:"required,max=255"`
}

func (h *ContactHandler) AddTag(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req tagRequest
	if !bind(c, &req) {
		return
	}
	tag := strings.TrimSpace(req.Tag)
	if tag == "" {
		respondError(c, invalidf("tag must not be blank"))
		return
	}
	if err := h.contacts.TagContact(c.Request.Context(), tenantID(c), id, tag); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Tag added", "tag": tag})
}

func (h *ContactHandler) RemoveTag(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.contacts.RemoveTag(c.Request.Context(), tenantID(c), id, c.Param("tag")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Tag removed"})
}

// ExportContacts streams the filtered contact list as CSV.
func (h *ContactHandler) ExportContacts(c *gin.Context) {
	f := contactFilter(c)
	if f.Limit <= 0 {
		f.Limit = 10000
	}
	contacts, err := h.contacts.List(c.Request.Context(), tenantID(c), f)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=contacts.csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Platform", "Platform User ID", "Username", "Name", "Email", "Phone", "Tags", "Messages", "Last Interaction"})
	for _, contact := range contacts {
		last := ""
		if contact.LastInteractionAt != nil {
			last = contact.LastInteractionAt.UTC().Format(time.RFC3339)
		}
		_ = w.Write([]string{
			string(contact.Platform),
			contact.PlatformUserID,
			contact.Username,
			contact.Name,
			contact.Email,
			contact.Phone,
			strings.Join(contact.TagNames(), ";"),
			strconv.FormatInt(contact.TotalMessages, 10),
			last,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		l := requestLog(c)
		l.Warn().Err(err).Msg("contact export interrupted")
	}
}
