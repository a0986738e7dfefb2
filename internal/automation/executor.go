package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"socialflow/internal/logging"
	"socialflow/internal/messaging"
	"socialflow/internal/models"
	"socialflow/internal/store"

	"github.com/rs/zerolog"
)

var (
	ErrIntegrationMissing = errors.New("integration missing")
	ErrNoRecipient        = errors.New("event has no sender to reply to")
)

type ContactStore interface {
	Upsert(ctx context.Context, in store.ContactInput) (uint, error)
	AddTag(ctx context.Context, in store.ContactInput, tag string) (uint, error)
	FindByPlatformUser(ctx context.Context, platformUserID string) (*models.Contact, error)
}

type SequenceStore interface {
	Subscribe(ctx context.Context, sequenceID, contactID uint) (*models.SequenceSubscription, bool, error)
}

type IntegrationStore interface {
	GetActive(ctx context.Context, tenantID string, platform models.Platform) (*models.Integration, error)
}

type ProductCatalog interface {
	Search(ctx context.Context, tenantID, query string, limit int) ([]models.Product, error)
}

type MessageLog interface {
	Log(ctx context.Context, msg *models.Message) error
}

// Stores groups the persistence collaborators of the executor.
type Stores struct {
	Contacts     ContactStore
	Sequences    SequenceStore
	Integrations IntegrationStore
	Products     ProductCatalog
	Messages     MessageLog
}

type State int

const (
	StatePending State = iota
	StateRunning
	StateSuspended
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the result of one flow execution. A short-circuited pipeline
// is still a success.
type Outcome struct {
	Success        bool
	Err            error
	ActionsRun     int
	ShortCircuited bool
}

// Execution is one run of a flow's pipeline for one event. Next is the index
// of the next action to run; ResumeAt is set while Suspended.
type Execution struct {
	ID       string
	Flow     models.Flow
	Event    Event
	State    State
	Next     int
	ResumeAt time.Time
	Outcome  Outcome

	integration *models.Integration
}

func NewExecution(id string, flow models.Flow, ev Event) *Execution {
	if ev == nil {
		ev = Event{}
	}
	return &Execution{ID: id, Flow: flow, Event: ev, State: StatePending}
}

// Done reports whether the execution reached a terminal state.
func (e *Execution) Done() bool {
	return e.State == StateCompleted || e.State == StateFailed
}

func (e *Execution) fail(err error) {
	e.State = StateFailed
	e.Outcome.Success = false
	e.Outcome.Err = err
}

func (e *Execution) complete(shortCircuited bool) {
	e.State = StateCompleted
	e.Outcome.Success = true
	e.Outcome.ShortCircuited = shortCircuited
}

func (e *Execution) triggerType() models.TriggerType {
	if e.Flow.TriggerType != "" {
		return e.Flow.TriggerType
	}
	return e.Flow.Trigger.Data().Type
}

// messagingPlatform picks the integration family for the flow.
func (e *Execution) messagingPlatform() models.Platform {
	if p := e.triggerType().Platform(); p != "" {
		return p
	}
	if p := e.Event.Platform(); p != "" {
		return p
	}
	return models.PlatformWhatsApp
}

// contactPlatform is the platform recorded on contacts touched by the flow.
func (e *Execution) contactPlatform() models.Platform {
	if p := e.Event.Platform(); p != "" {
		return p
	}
	if p := e.triggerType().Platform(); p != "" {
		return p
	}
	return models.PlatformInstagram
}

type control int

const (
	proceed control = iota
	halt
	suspend
)

// Executor runs flow pipelines one action at a time.
type Executor struct {
	stores  Stores
	gateway messaging.Sender
	client  *http.Client
	now     func() time.Time
	log     zerolog.Logger
}

func NewExecutor(stores Stores, gateway messaging.Sender, httpClient *http.Client) *Executor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Executor{
		stores:  stores,
		gateway: gateway,
		client:  httpClient,
		now:     time.Now,
		log:     logging.Component("executor"),
	}
}

// Advance runs actions from exec.Next until the pipeline completes, fails or
// reaches a delay. A delay leaves exec Suspended with ResumeAt set; calling
// Advance again continues with the following action.
func (x *Executor) Advance(ctx context.Context, exec *Execution) {
	if exec.Done() {
		return
	}
	exec.State = StateRunning
	log := x.log.With().
		Uint("flow_id", exec.Flow.ID).
		Str("tenant_id", exec.Flow.TenantID).
		Str("execution_id", exec.ID).
		Logger()

	actions := exec.Flow.Actions
	for exec.Next < len(actions) {
		index := exec.Next
		exec.Next++

		a, err := ParseAction(actions[index])
		if err != nil {
			log.Error().Err(err).Int("index", index).Msg("invalid action")
			exec.fail(err)
			return
		}

		alog := log.With().Str("action", a.Kind()).Int("index", index).Logger()
		ctl, err := x.run(ctx, exec, a, alog)
		if err != nil {
			alog.Error().Err(err).Msg("action failed")
			exec.fail(fmt.Errorf("action %d (%s): %w", index, a.Kind(), err))
			return
		}
		exec.Outcome.ActionsRun++

		switch ctl {
		case halt:
			alog.Info().Msg("condition not met, skipping remaining actions")
			exec.complete(true)
			return
		case suspend:
			exec.State = StateSuspended
			alog.Debug().Time("resume_at", exec.ResumeAt).Msg("pipeline suspended")
			return
		}
	}
	exec.complete(false)
}

func (x *Executor) run(ctx context.Context, exec *Execution, a Action, log zerolog.Logger) (control, error) {
	switch act := a.(type) {
	case SendDM:
		return proceed, x.deliver(ctx, exec, messaging.Content{Text: act.Message})

	case SendReply:
		return proceed, x.reply(ctx, exec, act.Message)

	case SendProduct:
		return proceed, x.sendProduct(ctx, exec, act, log)

	case CollectEmail:
		in, err := x.contactInput(exec)
		if err != nil {
			return proceed, err
		}
		in.Email, in.Phone, in.Name = act.Email, act.Phone, act.Name
		_, err = x.stores.Contacts.Upsert(ctx, in)
		return proceed, err

	case AddTag:
		in, err := x.contactInput(exec)
		if err != nil {
			return proceed, err
		}
		_, err = x.stores.Contacts.AddTag(ctx, in, act.Tag)
		return proceed, err

	case AddToSequence:
		return proceed, x.addToSequence(ctx, exec, act, log)

	case Condition:
		if !compare(exec.Event, act.Field, act.Operator, act.Value) {
			return halt, nil
		}
		return proceed, nil

	case Delay:
		exec.ResumeAt = x.now().Add(act.Duration())
		return suspend, nil

	case HTTPCall:
		x.httpCall(ctx, act, log)
		return proceed, nil

	case UnknownAction:
		log.Warn().Msg("unknown action type, skipping")
		return proceed, nil

	default:
		return proceed, fmt.Errorf("unhandled action %T", a)
	}
}

func (x *Executor) integration(ctx context.Context, exec *Execution) (*models.Integration, error) {
	if exec.integration != nil {
		return exec.integration, nil
	}
	platform := exec.messagingPlatform()
	in, err := x.stores.Integrations.GetActive(ctx, exec.Flow.TenantID, platform)
	if errors.Is(err, store.ErrIntegrationNotFound) {
		return nil, fmt.Errorf("%w: no active %s integration", ErrIntegrationMissing, platform)
	}
	if err != nil {
		return nil, err
	}
	exec.integration = in
	return in, nil
}

func (x *Executor) contactInput(exec *Execution) (store.ContactInput, error) {
	sender := exec.Event.Sender()
	if sender == "" {
		return store.ContactInput{}, ErrNoRecipient
	}
	return store.ContactInput{
		TenantID:       exec.Flow.TenantID,
		Platform:       exec.contactPlatform(),
		PlatformUserID: sender,
		Username:       exec.Event.Username(),
	}, nil
}

// deliver sends one message to the event's sender and logs it. A failed send
// is logged with status failed before its error is returned.
func (x *Executor) deliver(ctx context.Context, exec *Execution, content messaging.Content) error {
	in, err := x.integration(ctx, exec)
	if err != nil {
		return err
	}
	recipient := exec.Event.Sender()
	if recipient == "" {
		return ErrNoRecipient
	}

	sendErr := x.gateway.Send(ctx, in, recipient, content)

	msg := x.outbound(exec, in.Type, recipient)
	msg.Content = content.Text
	if content.ImageURL != "" {
		msg.MessageType = "image"
		msg.MediaURL = content.ImageURL
		msg.Content = content.ImageURL
	}
	return x.logOutbound(ctx, msg, sendErr)
}

func (x *Executor) reply(ctx context.Context, exec *Execution, text string) error {
	in, err := x.integration(ctx, exec)
	if err != nil {
		return err
	}
	commentID := exec.Event.CommentID()
	if in.Type != models.PlatformInstagram || commentID == "" {
		return x.deliver(ctx, exec, messaging.Content{Text: text})
	}

	sendErr := x.gateway.ReplyToComment(ctx, in, commentID, text)

	msg := x.outbound(exec, in.Type, exec.Event.Sender())
	msg.MessageType = "comment_reply"
	msg.Content = text
	msg.CommentID = commentID
	msg.PostID = exec.Event.PostID()
	return x.logOutbound(ctx, msg, sendErr)
}

func (x *Executor) sendProduct(ctx context.Context, exec *Execution, act SendProduct, log zerolog.Logger) error {
	products, err := x.stores.Products.Search(ctx, exec.Flow.TenantID, act.ProductQuery, act.Limit)
	if err != nil {
		return fmt.Errorf("search products: %w", err)
	}
	if len(products) == 0 {
		log.Info().Str("query", act.ProductQuery).Msg("no products found, nothing sent")
		return nil
	}

	product := products[0]
	if err := x.deliver(ctx, exec, messaging.Content{Text: RenderProduct(act.MessageTemplate, product)}); err != nil {
		return err
	}
	if product.ImageURL != "" {
		return x.deliver(ctx, exec, messaging.Content{ImageURL: product.ImageURL})
	}
	return nil
}

func (x *Executor) addToSequence(ctx context.Context, exec *Execution, act AddToSequence, log zerolog.Logger) error {
	sender := exec.Event.Sender()
	if sender == "" {
		return ErrNoRecipient
	}
	contact, err := x.stores.Contacts.FindByPlatformUser(ctx, sender)
	if err != nil {
		return err
	}
	sub, created, err := x.stores.Sequences.Subscribe(ctx, act.SequenceID, contact.ID)
	if err != nil {
		return err
	}
	if created {
		log.Info().Uint("sequence_id", act.SequenceID).Uint("subscription_id", sub.ID).Msg("contact enrolled")
	}
	return nil
}

// httpCall never fails the pipeline; problems are only logged.
func (x *Executor) httpCall(ctx context.Context, call HTTPCall, log zerolog.Logger) {
	log = log.With().Str("method", call.Method).Str("url", call.URL).Logger()

	var body io.Reader
	if call.Body != nil {
		raw, err := json.Marshal(call.Body)
		if err != nil {
			log.Warn().Err(err).Msg("http call body not encodable")
			return
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, body)
	if err != nil {
		log.Warn().Err(err).Msg("http call request invalid")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("http call failed")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Msg("http call returned non-success status")
	}
}

func (x *Executor) outbound(exec *Execution, platform models.Platform, recipient string) *models.Message {
	flowID := exec.Flow.ID
	return &models.Message{
		TenantID:    exec.Flow.TenantID,
		FlowID:      &flowID,
		Platform:    platform,
		Direction:   models.DirectionOutbound,
		RecipientID: recipient,
		MessageType: "text",
		Status:      models.MessageSent,
	}
}

func (x *Executor) logOutbound(ctx context.Context, msg *models.Message, sendErr error) error {
	if sendErr != nil {
		msg.Status = models.MessageFailed
		msg.ErrorMessage = sendErr.Error()
	}
	if err := x.stores.Messages.Log(ctx, msg); err != nil {
		if sendErr != nil {
			return sendErr
		}
		return fmt.Errorf("log outbound message: %w", err)
	}
	return sendErr
}
