package webhook

import (
	"context"
	"net/http"

	"socialflow/internal/automation"
	"socialflow/internal/config"
	"socialflow/internal/logging"
	"socialflow/internal/models"
	"socialflow/internal/store"
	hooks "socialflow/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	objectInstagram = "instagram"
	objectWhatsApp  = "whatsapp_business_account"
)

type AccountResolver interface {
	FindByAccount(ctx context.Context, platform models.Platform, accountID string) (*models.Integration, error)
}

type ContactRecorder interface {
	Upsert(ctx context.Context, in store.ContactInput) (uint, error)
}

type MessageLogger interface {
	Log(ctx context.Context, msg *models.Message) error
}

type Dispatcher interface {
	Dispatch(tenantID string, ev automation.Event, triggerTypes ...models.TriggerType)
}

// Notifier is told about every logged inbound message.
type Notifier interface {
	MessageReceived(tenantID string, msg *models.Message)
}

type Handler struct {
	verifyToken string
	accounts    AccountResolver
	contacts    ContactRecorder
	messages    MessageLogger
	dispatcher  Dispatcher
	notifier    Notifier
	log         zerolog.Logger
}

// NewHandler builds the webhook handler. notifier may be nil.
func NewHandler(cfg *config.Config, accounts AccountResolver, contacts ContactRecorder, messages MessageLogger, dispatcher Dispatcher, notifier Notifier) *Handler {
	return &Handler{
		verifyToken: cfg.VerifyToken,
		accounts:    accounts,
		contacts:    contacts,
		messages:    messages,
		dispatcher:  dispatcher,
		notifier:    notifier,
		log:         logging.Component("webhook"),
	}
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && token == h.verifyToken {
			h.log.Info().Msg("webhook verified")
			c.String(http.StatusOK, challenge)
		} else {
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

// inbound is one normalized event ready to be recorded and dispatched.
type inbound struct {
	tenantID string
	trigger  models.TriggerType
	event    automation.Event
	contact  store.ContactInput
	message  models.Message
}

// HandleMessage acknowledges every well-formed payload with 200; events for
// unknown accounts are logged and dropped so Meta does not retry them.
func (h *Handler) HandleMessage(c *gin.Context) {
	var payload hooks.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn().Err(err).Msg("invalid webhook payload")
		c.Status(http.StatusBadRequest)
		return
	}

	ctx := c.Request.Context()
	var events []inbound
	switch payload.Object {
	case objectInstagram:
		for _, entry := range payload.Entry {
			events = append(events, h.instagramEvents(ctx, entry)...)
		}
	case objectWhatsApp:
		for _, entry := range payload.Entry {
			events = append(events, h.whatsappEvents(ctx, entry)...)
		}
	default:
		h.log.Debug().Str("object", payload.Object).Msg("ignoring webhook object")
	}

	for i := range events {
		h.process(ctx, &events[i])
	}
	c.Status(http.StatusOK)
}

func (h *Handler) process(ctx context.Context, in *inbound) {
	log := h.log.With().
		Str("tenant_id", in.tenantID).
		Str("trigger_type", string(in.trigger)).
		Str("sender", in.contact.PlatformUserID).
		Logger()

	if _, err := h.contacts.Upsert(ctx, in.contact); err != nil {
		log.Error().Err(err).Msg("failed to record contact")
	}
	if err := h.messages.Log(ctx, &in.message); err != nil {
		log.Error().Err(err).Msg("failed to log inbound message")
	} else if h.notifier != nil {
		h.notifier.MessageReceived(in.tenantID, &in.message)
	}

	triggers := []models.TriggerType{in.trigger}
	if in.trigger != models.TriggerKeyword && in.event.Text() != "" {
		triggers = append(triggers, models.TriggerKeyword)
	}
	h.dispatcher.Dispatch(in.tenantID, in.event, triggers...)
	log.Debug().Msg("inbound event dispatched")
}

func (h *Handler) resolve(ctx context.Context, platform models.Platform, accountID string) (string, bool) {
	if accountID == "" {
		return "", false
	}
	integration, err := h.accounts.FindByAccount(ctx, platform, accountID)
	if err != nil {
		if store.IsNotFound(err) {
			h.log.Warn().Str("platform", string(platform)).Str("account_id", accountID).Msg("no integration for account")
		} else {
			h.log.Error().Err(err).Str("account_id", accountID).Msg("failed to resolve integration")
		}
		return "", false
	}
	return integration.TenantID, true
}

func (h *Handler) instagramEvents(ctx context.Context, entry hooks.Entry) []inbound {
	tenantID, ok := h.resolve(ctx, models.PlatformInstagram, entry.ID)
	if !ok {
		return nil
	}

	var out []inbound
	for _, change := range entry.Changes {
		if change.Field != "comments" {
			continue
		}
		if in, ok := commentEvent(tenantID, entry.ID, change.Value); ok {
			out = append(out, in)
		}
	}
	for _, m := range entry.Messaging {
		if in, ok := messagingEvent(tenantID, m); ok {
			out = append(out, in)
		}
	}
	return out
}

func commentEvent(tenantID, accountID string, v hooks.ChangeValue) (inbound, bool) {
	// Our own replies come back as comment changes.
	if v.From == nil || v.From.ID == "" || v.From.ID == accountID {
		return inbound{}, false
	}
	postID := ""
	if v.Media != nil {
		postID = v.Media.ID
	}
	return inbound{
		tenantID: tenantID,
		trigger:  models.TriggerInstagramComment,
		event: automation.Event{
			"platform":  string(models.PlatformInstagram),
			"commentId": v.ID,
			"postId":    postID,
			"senderId":  v.From.ID,
			"username":  v.From.Username,
			"text":      v.Text,
		},
		contact: store.ContactInput{
			TenantID:       tenantID,
			Platform:       models.PlatformInstagram,
			PlatformUserID: v.From.ID,
			Username:       v.From.Username,
		},
		message: models.Message{
			TenantID:    tenantID,
			Platform:    models.PlatformInstagram,
			Direction:   models.DirectionInbound,
			RecipientID: v.From.ID,
			MessageType: "comment",
			Content:     v.Text,
			Status:      models.MessageDelivered,
			PostID:      postID,
			CommentID:   v.ID,
		},
	}, true
}

func messagingEvent(tenantID string, m hooks.Messaging) (inbound, bool) {
	if m.Message == nil || m.Message.IsEcho || m.Sender.ID == "" {
		return inbound{}, false
	}
	msg := m.Message

	trigger := models.TriggerInstagramDM
	messageType := "text"
	ev := automation.Event{
		"platform":    string(models.PlatformInstagram),
		"senderId":    m.Sender.ID,
		"recipientId": m.Recipient.ID,
		"messageId":   msg.MID,
		"text":        msg.Text,
	}
	var mediaURL string

	switch {
	case msg.ReplyTo != nil && msg.ReplyTo.Story != nil:
		trigger = models.TriggerInstagramStoryReply
		messageType = "story_reply"
		mediaURL = msg.ReplyTo.Story.URL
		ev["storyId"] = msg.ReplyTo.Story.ID
		ev["storyUrl"] = mediaURL
	case hasAttachment(msg, "story_mention"):
		trigger = models.TriggerInstagramStoryMention
		messageType = "story_mention"
		for _, a := range msg.Attachments {
			if a.Type == "story_mention" {
				mediaURL = a.Payload.URL
				break
			}
		}
		ev["storyUrl"] = mediaURL
	case msg.Text == "" && len(msg.Attachments) > 0:
		messageType = msg.Attachments[0].Type
		mediaURL = msg.Attachments[0].Payload.URL
	}

	return inbound{
		tenantID: tenantID,
		trigger:  trigger,
		event:    ev,
		contact: store.ContactInput{
			TenantID:       tenantID,
			Platform:       models.PlatformInstagram,
			PlatformUserID: m.Sender.ID,
		},
		message: models.Message{
			TenantID:    tenantID,
			Platform:    models.PlatformInstagram,
			Direction:   models.DirectionInbound,
			RecipientID: m.Sender.ID,
			MessageType: messageType,
			Content:     msg.Text,
			MediaURL:    mediaURL,
			Status:      models.MessageDelivered,
		},
	}, true
}

func hasAttachment(msg *hooks.IGMessage, kind string) bool {
	for _, a := range msg.Attachments {
		if a.Type == kind {
			return true
		}
	}
	return false
}

func (h *Handler) whatsappEvents(ctx context.Context, entry hooks.Entry) []inbound {
	var out []inbound
	for _, change := range entry.Changes {
		if change.Field != "messages" || len(change.Value.Messages) == 0 {
			continue
		}
		tenantID, ok := h.resolve(ctx, models.PlatformWhatsApp, change.Value.Metadata.PhoneNumberID)
		if !ok {
			continue
		}
		names := make(map[string]string, len(change.Value.Contacts))
		for _, c := range change.Value.Contacts {
			names[c.WaID] = c.Profile.Name
		}
		for _, m := range change.Value.Messages {
			if m.From == "" {
				continue
			}
			out = append(out, whatsappEvent(tenantID, m, names[m.From]))
		}
	}
	return out
}

func whatsappEvent(tenantID string, m hooks.WhatsAppMessage, name string) inbound {
	text := whatsappText(m)
	return inbound{
		tenantID: tenantID,
		trigger:  models.TriggerWhatsAppMessage,
		event: automation.Event{
			"platform":    string(models.PlatformWhatsApp),
			"from":        m.From,
			"senderId":    m.From,
			"messageId":   m.ID,
			"messageType": m.Type,
			"name":        name,
			"text":        text,
		},
		contact: store.ContactInput{
			TenantID:       tenantID,
			Platform:       models.PlatformWhatsApp,
			PlatformUserID: m.From,
			Name:           name,
			Phone:          m.From,
		},
		message: models.Message{
			TenantID:    tenantID,
			Platform:    models.PlatformWhatsApp,
			Direction:   models.DirectionInbound,
			RecipientID: m.From,
			MessageType: m.Type,
			Content:     whatsappContent(m, text),
			Status:      models.MessageDelivered,
		},
	}
}

// whatsappText is the text a flow matches against: the body, the chosen
// button or list title, or a media caption.
func whatsappText(m hooks.WhatsAppMessage) string {
	switch {
	case m.Text != nil:
		return m.Text.Body
	case m.Interactive != nil && m.Interactive.ButtonReply != nil:
		return m.Interactive.ButtonReply.Title
	case m.Interactive != nil && m.Interactive.ListReply != nil:
		return m.Interactive.ListReply.Title
	case m.Button != nil:
		return m.Button.Text
	case m.Image != nil:
		return m.Image.Caption
	case m.Video != nil:
		return m.Video.Caption
	}
	return ""
}

// whatsappContent renders the logged content, marking media with its id.
func whatsappContent(m hooks.WhatsAppMessage, text string) string {
	media := map[string]*hooks.MediaMessage{
		"image":    m.Image,
		"video":    m.Video,
		"audio":    m.Audio,
		"document": m.Document,
	}
	att, isMedia := media[m.Type]
	if !isMedia {
		if text == "" {
			return "[" + m.Type + "]"
		}
		return text
	}
	if att == nil {
		return "[" + m.Type + "]"
	}
	content := "[" + m.Type + "]:" + att.ID
	switch {
	case text != "":
		content += ":" + text
	case att.Filename != "":
		content += ":" + att.Filename
	}
	return content
}
