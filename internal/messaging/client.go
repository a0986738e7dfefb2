package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"socialflow/internal/config"
	"socialflow/internal/logging"
	"socialflow/internal/models"

	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v18.0"
)

// Content is one outbound message. When ImageURL is set the message is sent as
// an image where the platform supports it.
type Content struct {
	Text     string
	ImageURL string
}

// GatewayError is returned for a non-2xx response from a messaging platform.
type GatewayError struct {
	Platform   models.Platform
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Platform, e.StatusCode, e.Body)
}

// Sender is the gateway contract the automation engine depends on.
type Sender interface {
	Send(ctx context.Context, integration *models.Integration, recipient string, content Content) error
	ReplyToComment(ctx context.Context, integration *models.Integration, commentID, text string) error
}

// Client talks to the Instagram Graph and WhatsApp Cloud APIs. It never retries.
type Client struct {
	BaseURL    string
	APIVersion string
	HTTP       *http.Client

	log zerolog.Logger
}

func NewClient(cfg *config.Config) *Client {
	c := &Client{
		BaseURL:    cfg.GraphAPIBaseURL,
		APIVersion: cfg.GraphAPIVersion,
		HTTP:       &http.Client{Timeout: cfg.GatewayTimeout},
		log:        logging.Component("messaging"),
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 30 * time.Second
	}
	return c
}

// --- Request bodies ---

type instagramRecipient struct {
	ID string `json:"id"`
}

type instagramText struct {
	Text string `json:"text"`
}

type instagramMessage struct {
	Recipient   instagramRecipient `json:"recipient"`
	Message     instagramText      `json:"message"`
	AccessToken string             `json:"access_token"`
}

type instagramReply struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
}

type whatsappText struct {
	Body string `json:"body"`
}

type whatsappMedia struct {
	Link string `json:"link"`
}

type whatsappMessage struct {
	MessagingProduct string         `json:"messaging_product"`
	To               string         `json:"to"`
	Type             string         `json:"type"`
	Text             *whatsappText  `json:"text,omitempty"`
	Image            *whatsappMedia `json:"image,omitempty"`
}

// --- Messaging ---

func (c *Client) Send(ctx context.Context, integration *models.Integration, recipient string, content Content) error {
	switch integration.Type {
	case models.PlatformInstagram:
		text := content.Text
		if content.ImageURL != "" {
			text = content.ImageURL
		}
		body := instagramMessage{
			Recipient:   instagramRecipient{ID: recipient},
			Message:     instagramText{Text: text},
			AccessToken: integration.AccessToken,
		}
		return c.post(ctx, models.PlatformInstagram, c.url("me", "messages"), body, "")

	case models.PlatformWhatsApp:
		msg := whatsappMessage{MessagingProduct: "whatsapp", To: recipient, Type: "text"}
		if content.ImageURL != "" {
			msg.Type = "image"
			msg.Image = &whatsappMedia{Link: content.ImageURL}
		} else {
			msg.Text = &whatsappText{Body: content.Text}
		}
		return c.post(ctx, models.PlatformWhatsApp, c.url(integration.PhoneNumberID, "messages"), msg, integration.AccessToken)

	default:
		return fmt.Errorf("send: unsupported platform %q", integration.Type)
	}
}

// ReplyToComment posts a public reply under an Instagram comment.
func (c *Client) ReplyToComment(ctx context.Context, integration *models.Integration, commentID, text string) error {
	body := instagramReply{Message: text, AccessToken: integration.AccessToken}
	return c.post(ctx, models.PlatformInstagram, c.url(commentID, "replies"), body, "")
}

func (c *Client) url(parts ...string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + c.APIVersion + "/" + strings.Join(parts, "/")
}

// post sends a JSON body. A non-empty bearer is sent as the Authorization header.
func (c *Client) post(ctx context.Context, platform models.Platform, url string, body interface{}, bearer string) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", platform, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn().
			Str("platform", string(platform)).
			Int("status", resp.StatusCode).
			Msg("gateway rejected message")
		return &GatewayError{Platform: platform, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
