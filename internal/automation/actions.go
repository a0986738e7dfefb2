package automation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"socialflow/internal/models"

	"github.com/go-playground/validator/v10"
)

const (
	KindSendDM        = "send_dm"
	KindSendReply     = "send_reply"
	KindSendProduct   = "send_product"
	KindCollectEmail  = "collect_email"
	KindAddTag        = "add_tag"
	KindAddToSequence = "add_to_sequence"
	KindCondition     = "condition"
	KindDelay         = "delay"
	KindHTTPCall      = "http_call"
)

const (
	defaultDMText          = "Hello!"
	defaultReplyText       = "Thank you!"
	defaultDelay           = 1000 * time.Millisecond
	defaultProductTemplate = "{product_name} - {product_price}"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Action is one step of a flow pipeline. The set of implementations is closed:
// the executor switches over every variant below.
type Action interface {
	Kind() string
	action()
}

type SendDM struct {
	Message string `json:"message"`
}

type SendReply struct {
	Message string `json:"message"`
}

type SendProduct struct {
	ProductQuery    string `json:"productQuery"`
	Limit           int    `json:"limit" validate:"gte=0,lte=50"`
	MessageTemplate string `json:"messageTemplate"`
}

type CollectEmail struct {
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

type AddTag struct {
	Tag string `json:"tag" validate:"required"`
}

type AddToSequence struct {
	SequenceID uint `json:"sequenceId" validate:"required"`
}

// Condition stops the rest of the pipeline when its test is false.
type Condition struct {
	Field    string `json:"field" validate:"required"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

type Delay struct {
	Milliseconds int64 `json:"milliseconds" validate:"gte=0"`
}

func (d Delay) Duration() time.Duration {
	if d.Milliseconds <= 0 {
		return defaultDelay
	}
	return time.Duration(d.Milliseconds) * time.Millisecond
}

type HTTPCall struct {
	URL     string            `json:"url" validate:"required,url"`
	Method  string            `json:"method" validate:"oneof=GET POST PUT PATCH DELETE"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body"`
}

// UnknownAction is an action type this engine does not implement. It is
// skipped at run time.
type UnknownAction struct {
	Type string
}

func (SendDM) Kind() string        { return KindSendDM }
func (SendReply) Kind() string     { return KindSendReply }
func (SendProduct) Kind() string   { return KindSendProduct }
func (CollectEmail) Kind() string  { return KindCollectEmail }
func (AddTag) Kind() string        { return KindAddTag }
func (AddToSequence) Kind() string { return KindAddToSequence }
func (Condition) Kind() string     { return KindCondition }
func (Delay) Kind() string         { return KindDelay }
func (HTTPCall) Kind() string      { return KindHTTPCall }

func (u UnknownAction) Kind() string { return u.Type }

func (SendDM) action()        {}
func (SendReply) action()     {}
func (SendProduct) action()   {}
func (CollectEmail) action()  {}
func (AddTag) action()        {}
func (AddToSequence) action() {}
func (Condition) action()     {}
func (Delay) action()         {}
func (HTTPCall) action()      {}
func (UnknownAction) action() {}

// ParseAction decodes and validates a stored action. Unrecognised types
// decode to UnknownAction without error.
func ParseAction(spec models.ActionSpec) (Action, error) {
	var (
		a   Action
		err error
	)
	switch spec.Type {
	case KindSendDM:
		v := SendDM{}
		err = decode(spec.Config, &v)
		if v.Message == "" {
			v.Message = defaultDMText
		}
		a = v
	case KindSendReply:
		v := SendReply{}
		err = decode(spec.Config, &v)
		if v.Message == "" {
			v.Message = defaultReplyText
		}
		a = v
	case KindSendProduct:
		v := SendProduct{}
		err = decode(spec.Config, &v)
		if v.Limit == 0 {
			v.Limit = 1
		}
		if v.MessageTemplate == "" {
			v.MessageTemplate = defaultProductTemplate
		}
		a = v
	case KindCollectEmail:
		v := CollectEmail{}
		err = decode(spec.Config, &v)
		a = v
	case KindAddTag:
		v := AddTag{}
		err = decode(spec.Config, &v)
		v.Tag = strings.TrimSpace(v.Tag)
		a = v
	case KindAddToSequence:
		v := AddToSequence{}
		err = decode(spec.Config, &v)
		a = v
	case KindCondition:
		v := Condition{}
		err = decode(spec.Config, &v)
		a = v
	case KindDelay:
		v := Delay{}
		err = decode(spec.Config, &v)
		a = v
	case KindHTTPCall:
		v := HTTPCall{}
		err = decode(spec.Config, &v)
		v.Method = strings.ToUpper(v.Method)
		if v.Method == "" {
			v.Method = "POST"
		}
		a = v
	default:
		return UnknownAction{Type: spec.Type}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: decode config: %w", spec.Type, err)
	}
	if err := validate.Struct(a); err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Type, err)
	}
	return a, nil
}

// ParseActions parses a whole pipeline, failing on the first bad action.
func ParseActions(specs []models.ActionSpec) ([]Action, error) {
	out := make([]Action, 0, len(specs))
	for i, spec := range specs {
		a, err := ParseAction(spec)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func decode(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, v)
}
