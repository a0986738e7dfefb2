package models

import (
	"encoding/json"
	"strings"

	"gorm.io/gorm"
)

type TriggerType string

const (
	TriggerInstagramComment      TriggerType = "instagram_comment"
	TriggerInstagramDM           TriggerType = "instagram_dm"
	TriggerInstagramStoryMention TriggerType = "instagram_story_mention"
	TriggerInstagramStoryReply   TriggerType = "instagram_story_reply"
	TriggerWhatsAppMessage       TriggerType = "whatsapp_message"
	TriggerKeyword               TriggerType = "keyword"
	TriggerSchedule              TriggerType = "schedule"
)

var TriggerTypes = []TriggerType{
	TriggerInstagramComment,
	TriggerInstagramDM,
	TriggerInstagramStoryMention,
	TriggerInstagramStoryReply,
	TriggerWhatsAppMessage,
	TriggerKeyword,
	TriggerSchedule,
}

func (t TriggerType) Valid() bool {
	for _, known := range TriggerTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Platform returns the platform family implied by the trigger type, or ""
// for platform-neutral triggers (keyword, schedule).
func (t TriggerType) Platform() Platform {
	switch {
	case strings.HasPrefix(string(t), "instagram"):
		return PlatformInstagram
	case t == TriggerWhatsAppMessage:
		return PlatformWhatsApp
	default:
		return ""
	}
}

// Trigger decides whether a flow fires for an inbound event.
type Trigger struct {
	Type         TriggerType `json:"type"`
	Keywords     []string    `json:"keywords,omitempty"`
	PostID       string      `json:"postId,omitempty"`
	ScheduleTime string      `json:"scheduleTime,omitempty"` // cron expression for schedule triggers
	Conditions   *Predicate  `json:"conditions,omitempty"`
}

// PredicateVersion is the only predicate tree version the engine evaluates.
const PredicateVersion = 1

// Predicate is a boolean tree over event fields. A nil or empty predicate is
// always true. Exactly one of All, Any, Not or Field is expected per node.
type Predicate struct {
	Version  int         `json:"version,omitempty"`
	All      []Predicate `json:"all,omitempty"`
	Any      []Predicate `json:"any,omitempty"`
	Not      *Predicate  `json:"not,omitempty"`
	Field    string      `json:"field,omitempty"`
	Operator string      `json:"operator,omitempty"`
	Value    any         `json:"value,omitempty"`
}

func (p *Predicate) IsEmpty() bool {
	return p == nil || (len(p.All) == 0 && len(p.Any) == 0 && p.Not == nil && p.Field == "")
}

// ActionSpec is the stored form of one pipeline step.
type ActionSpec struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// BeforeSave keeps the indexed trigger_type column in step with the JSON trigger.
func (f *Flow) BeforeSave(tx *gorm.DB) error {
	f.TriggerType = f.Trigger.Data().Type
	return nil
}
