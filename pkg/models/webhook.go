package models

// WebhookPayload is the envelope Meta posts for both Instagram
// ("instagram") and WhatsApp ("whatsapp_business_account") subscriptions.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	// ID is the Instagram business account id, or the WhatsApp business
	// account id.
	ID        string      `json:"id"`
	Time      int64       `json:"time,omitempty"`
	Changes   []Change    `json:"changes,omitempty"`
	Messaging []Messaging `json:"messaging,omitempty"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue holds the fields of both an Instagram comment change and a
// WhatsApp messages change; only one set is populated per payload.
type ChangeValue struct {
	// Instagram comments
	ID    string  `json:"id,omitempty"`
	Text  string  `json:"text,omitempty"`
	From  *IGUser `json:"from,omitempty"`
	Media *IGRef  `json:"media,omitempty"`

	// WhatsApp messages
	MessagingProduct string            `json:"messaging_product,omitempty"`
	Metadata         WhatsAppMetadata  `json:"metadata"`
	Contacts         []WhatsAppContact `json:"contacts,omitempty"`
	Messages         []WhatsAppMessage `json:"messages,omitempty"`
	Statuses         []WhatsAppStatus  `json:"statuses,omitempty"`
}

type IGUser struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

type IGRef struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// Messaging is one Instagram messaging webhook event (DMs, story replies and
// story mentions).
type Messaging struct {
	Sender    IGUser     `json:"sender"`
	Recipient IGUser     `json:"recipient"`
	Timestamp int64      `json:"timestamp"`
	Message   *IGMessage `json:"message,omitempty"`
}

type IGMessage struct {
	MID         string         `json:"mid"`
	Text        string         `json:"text,omitempty"`
	IsEcho      bool           `json:"is_echo,omitempty"`
	ReplyTo     *IGReplyTo     `json:"reply_to,omitempty"`
	Attachments []IGAttachment `json:"attachments,omitempty"`
}

type IGReplyTo struct {
	MID   string `json:"mid,omitempty"`
	Story *IGRef `json:"story,omitempty"`
}

type IGAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

type WhatsAppMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WhatsAppContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type WhatsAppMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image       *MediaMessage       `json:"image,omitempty"`
	Video       *MediaMessage       `json:"video,omitempty"`
	Audio       *MediaMessage       `json:"audio,omitempty"`
	Document    *MediaMessage       `json:"document,omitempty"`
	Interactive *InteractiveMessage `json:"interactive,omitempty"`
	Button      *struct {
		Text    string `json:"text"`
		Payload string `json:"payload"`
	} `json:"button,omitempty"`
}

type WhatsAppStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// MediaMessage represents a media attachment in a WhatsApp message
type MediaMessage struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// InteractiveMessage represents an interactive reply (buttons, lists)
type InteractiveMessage struct {
	Type        string     `json:"type"`
	ButtonReply *ReplyItem `json:"button_reply,omitempty"`
	ListReply   *ReplyItem `json:"list_reply,omitempty"`
}

type ReplyItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}
