package models

import (
	"time"

	"gorm.io/datatypes"
)

type FlowStatus string

const (
	FlowStatusDraft  FlowStatus = "draft"
	FlowStatusActive FlowStatus = "active"
	FlowStatusPaused FlowStatus = "paused"
)

// Platform identifies a messaging platform an integration or contact belongs to.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformWhatsApp  Platform = "whatsapp"
)

func (p Platform) Valid() bool {
	return p == PlatformInstagram || p == PlatformWhatsApp
}

// Flow is a tenant-owned automation: one trigger plus an ordered action list.
type Flow struct {
	ID                   uint                            `gorm:"primaryKey" json:"id"`
	TenantID             string                          `gorm:"type:varchar(255);not null;index:idx_flows_tenant_status" json:"tenant_id"`
	Name                 string                          `gorm:"type:varchar(255);not null" json:"name"`
	Description          string                          `gorm:"type:text" json:"description"`
	Status               FlowStatus                      `gorm:"type:varchar(20);not null;default:'draft';index:idx_flows_tenant_status" json:"status"`
	TriggerType          TriggerType                     `gorm:"type:varchar(50);not null;index" json:"trigger_type"`
	Trigger              datatypes.JSONType[Trigger]     `json:"trigger"`
	Actions              datatypes.JSONSlice[ActionSpec] `json:"actions"`
	TotalExecutions      int64                           `gorm:"not null;default:0" json:"total_executions"`
	SuccessfulExecutions int64                           `gorm:"not null;default:0" json:"successful_executions"`
	FailedExecutions     int64                           `gorm:"not null;default:0" json:"failed_executions"`
	LastExecutedAt       *time.Time                      `json:"last_executed_at"`
	CreatedAt            time.Time                       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time                       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Flow) TableName() string {
	return "flows"
}

// Integration is a tenant's stored credential set for one platform.
type Integration struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	TenantID          string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_integrations_tenant_type" json:"tenant_id"`
	Type              Platform   `gorm:"type:varchar(20);not null;uniqueIndex:idx_integrations_tenant_type" json:"type"`
	AccessToken       string     `gorm:"type:text;not null" json:"-"`
	RefreshToken      string     `gorm:"type:text" json:"-"`
	ExpiresAt         *time.Time `json:"expires_at"`
	PlatformUserID    string     `gorm:"type:varchar(255);index" json:"platform_user_id"`
	PlatformUsername  string     `gorm:"type:varchar(255)" json:"platform_username"`
	PhoneNumberID     string     `gorm:"type:varchar(255);index" json:"phone_number_id"`
	BusinessAccountID string     `gorm:"type:varchar(255)" json:"business_account_id"`
	IsActive          bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Integration) TableName() string {
	return "integrations"
}

// Contact is one end-user on a messaging platform. PlatformUserID is unique
// across tenants.
type Contact struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	TenantID          string       `gorm:"type:varchar(255);not null;index" json:"tenant_id"`
	Platform          Platform     `gorm:"type:varchar(20);not null" json:"platform"`
	PlatformUserID    string       `gorm:"type:varchar(255);not null;uniqueIndex" json:"platform_user_id"`
	Username          string       `gorm:"type:varchar(255)" json:"username"`
	Name              string       `gorm:"type:varchar(255)" json:"name"`
	Email             string       `gorm:"type:varchar(255)" json:"email"`
	Phone             string       `gorm:"type:varchar(50)" json:"phone"`
	Tags              []ContactTag `gorm:"foreignKey:ContactID;constraint:OnDelete:CASCADE;" json:"tags"`
	LastInteractionAt *time.Time   `json:"last_interaction_at"`
	TotalMessages     int64        `gorm:"not null;default:0" json:"total_messages"`
	IsSubscribed      bool         `gorm:"not null;default:true" json:"is_subscribed"`
	CreatedAt         time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// TagNames returns the contact's tags as plain strings.
func (c Contact) TagNames() []string {
	names := make([]string, 0, len(c.Tags))
	for _, t := range c.Tags {
		names = append(names, t.Tag)
	}
	return names
}

type ContactTag struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	ContactID uint      `gorm:"not null;uniqueIndex:idx_contact_tags_contact_tag" json:"-"`
	Tag       string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_contact_tags_contact_tag" json:"tag"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ContactTag) TableName() string {
	return "contact_tags"
}

type SequenceButton struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

type SequenceStep struct {
	Delay    int64            `json:"delay"`
	Message  string           `json:"message"`
	MediaURL string           `json:"mediaUrl,omitempty"`
	Buttons  []SequenceButton `json:"buttons,omitempty"`
}

// Sequence is a drip campaign definition.
type Sequence struct {
	ID                   uint                              `gorm:"primaryKey" json:"id"`
	TenantID             string                            `gorm:"type:varchar(255);not null;index" json:"tenant_id"`
	Name                 string                            `gorm:"type:varchar(255);not null" json:"name"`
	Description          string                            `gorm:"type:text" json:"description"`
	Status               FlowStatus                        `gorm:"type:varchar(20);not null;default:'draft'" json:"status"`
	Steps                datatypes.JSONSlice[SequenceStep] `json:"steps"`
	TotalSubscribers     int64                             `gorm:"not null;default:0" json:"total_subscribers"`
	ActiveSubscribers    int64                             `gorm:"not null;default:0" json:"active_subscribers"`
	CompletedSubscribers int64                             `gorm:"not null;default:0" json:"completed_subscribers"`
	CreatedAt            time.Time                         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time                         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Sequence) TableName() string {
	return "sequences"
}

type SubscriptionStatus string

const (
	SubscriptionActive       SubscriptionStatus = "active"
	SubscriptionPaused       SubscriptionStatus = "paused"
	SubscriptionCompleted    SubscriptionStatus = "completed"
	SubscriptionUnsubscribed SubscriptionStatus = "unsubscribed"
)

// SequenceSubscription tracks one contact's progress through one sequence.
type SequenceSubscription struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	SequenceID  uint               `gorm:"not null;uniqueIndex:idx_subscriptions_sequence_contact" json:"sequence_id"`
	ContactID   uint               `gorm:"not null;uniqueIndex:idx_subscriptions_sequence_contact;index" json:"contact_id"`
	CurrentStep int                `gorm:"not null;default:0" json:"current_step"`
	Status      SubscriptionStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	NextStepAt  *time.Time         `gorm:"index" json:"next_step_at"`
	CreatedAt   time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SequenceSubscription) TableName() string {
	return "sequence_subscriptions"
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type MessageStatus string

const (
	MessageQueued    MessageStatus = "queued"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageFailed    MessageStatus = "failed"
	MessageRead      MessageStatus = "read"
)

// Message is an append-only log row for one inbound or outbound message.
type Message struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	TenantID     string        `gorm:"type:varchar(255);not null;index:idx_messages_tenant_flow" json:"tenant_id"`
	FlowID       *uint         `gorm:"index:idx_messages_tenant_flow" json:"flow_id,omitempty"`
	Platform     Platform      `gorm:"type:varchar(20);not null" json:"platform"`
	Direction    Direction     `gorm:"type:varchar(10);not null" json:"direction"`
	RecipientID  string        `gorm:"type:varchar(255);not null;index" json:"recipient_id"`
	MessageType  string        `gorm:"type:varchar(50)" json:"message_type"`
	Content      string        `gorm:"type:text" json:"content"`
	MediaURL     string        `gorm:"type:text" json:"media_url,omitempty"`
	Status       MessageStatus `gorm:"type:varchar(20)" json:"status"`
	ErrorMessage string        `gorm:"type:text" json:"error_message,omitempty"`
	PostID       string        `gorm:"type:varchar(255)" json:"post_id,omitempty"`
	CommentID    string        `gorm:"type:varchar(255)" json:"comment_id,omitempty"`
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Product is a catalog item used by send_product actions.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TenantID    string    `gorm:"type:varchar(255);not null;index" json:"tenant_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Price       *float64  `json:"price"`
	Currency    string    `gorm:"type:varchar(10)" json:"currency"`
	ImageURL    string    `gorm:"type:text" json:"image_url"`
	SKU         string    `gorm:"type:varchar(100)" json:"sku"`
	InStock     bool      `gorm:"not null;default:true" json:"in_stock"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// FlowRun records the outcome of a single flow execution.
type FlowRun struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	FlowID         uint        `gorm:"not null;index" json:"flow_id"`
	TenantID       string      `gorm:"type:varchar(255);not null" json:"tenant_id"`
	ExecutionID    string      `gorm:"type:varchar(64);not null" json:"execution_id"`
	TriggerType    TriggerType `gorm:"type:varchar(50)" json:"trigger_type"`
	Success        bool        `json:"success"`
	ActionsRun     int         `json:"actions_run"`
	ShortCircuited bool        `json:"short_circuited"`
	ErrorMessage   string      `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

func (FlowRun) TableName() string {
	return "flow_runs"
}
