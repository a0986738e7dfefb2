package automation

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"socialflow/internal/database"
	"socialflow/internal/messaging"
	"socialflow/internal/models"
	"socialflow/internal/store"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

const tenant = "tenant-1"

type sentMessage struct {
	Platform  models.Platform
	Recipient string
	CommentID string
	Content   messaging.Content
}

type fakeGateway struct {
	mu   sync.Mutex
	sent []sentMessage
	// fail rejects messages whose text equals this value.
	fail string
}

func (g *fakeGateway) Send(_ context.Context, in *models.Integration, recipient string, content messaging.Content) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != "" && content.Text == g.fail {
		return &messaging.GatewayError{Platform: in.Type, StatusCode: 400, Body: `{"error":"rejected"}`}
	}
	g.sent = append(g.sent, sentMessage{Platform: in.Type, Recipient: recipient, Content: content})
	return nil
}

func (g *fakeGateway) ReplyToComment(_ context.Context, in *models.Integration, commentID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{Platform: in.Type, CommentID: commentID, Content: messaging.Content{Text: text}})
	return nil
}

func (g *fakeGateway) messages() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMessage(nil), g.sent...)
}

type fakeWaiter struct {
	mu    sync.Mutex
	until []time.Time
	err   error
}

func (w *fakeWaiter) Wait(_ context.Context, until time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.until = append(w.until, until)
	return w.err
}

type recordingObserver struct {
	mu      sync.Mutex
	results []RunResult
}

func (o *recordingObserver) FlowExecuted(_ string, r RunResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, r)
}

type harness struct {
	flows        *store.FlowRepository
	contacts     *store.ContactRepository
	sequences    *store.SequenceRepository
	integrations *store.IntegrationRepository
	products     *store.ProductRepository
	messages     *store.MessageRepository
	gateway      *fakeGateway
	waiter       *fakeWaiter
	observer     *recordingObserver
	executor     *Executor
	engine       *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	h := &harness{
		flows:        store.NewFlowRepository(db),
		contacts:     store.NewContactRepository(db),
		sequences:    store.NewSequenceRepository(db),
		integrations: store.NewIntegrationRepository(db),
		products:     store.NewProductRepository(db),
		messages:     store.NewMessageRepository(db),
		gateway:      &fakeGateway{},
		waiter:       &fakeWaiter{},
		observer:     &recordingObserver{},
	}
	h.executor = NewExecutor(Stores{
		Contacts:     h.contacts,
		Sequences:    h.sequences,
		Integrations: h.integrations,
		Products:     h.products,
		Messages:     h.messages,
	}, h.gateway, nil)
	h.engine = NewEngine(context.Background(), h.flows, h.flows, h.executor,
		WithWaiter(h.waiter), WithObserver(h.observer))

	require.NoError(t, h.integrations.Save(context.Background(), &models.Integration{
		TenantID: tenant, Type: models.PlatformInstagram, AccessToken: "ig", PlatformUserID: "ig-account",
	}))
	require.NoError(t, h.integrations.Save(context.Background(), &models.Integration{
		TenantID: tenant, Type: models.PlatformWhatsApp, AccessToken: "wa", PhoneNumberID: "pn-1",
	}))
	return h
}

func action(t *testing.T, kind string, config map[string]any) models.ActionSpec {
	t.Helper()
	if config == nil {
		return models.ActionSpec{Type: kind}
	}
	raw, err := json.Marshal(config)
	require.NoError(t, err)
	return models.ActionSpec{Type: kind, Config: raw}
}

func (h *harness) createFlow(t *testing.T, trigger models.Trigger, actions ...models.ActionSpec) *models.Flow {
	t.Helper()
	flow := &models.Flow{
		TenantID: tenant,
		Name:     "flow",
		Status:   models.FlowStatusActive,
		Trigger:  datatypes.NewJSONType(trigger),
		Actions:  actions,
	}
	require.NoError(t, h.flows.Create(context.Background(), flow))
	return flow
}

func (h *harness) flow(t *testing.T, id uint) *models.Flow {
	t.Helper()
	f, err := h.flows.Get(context.Background(), tenant, id)
	require.NoError(t, err)
	return f
}

func (h *harness) outbound(t *testing.T) []models.Message {
	t.Helper()
	msgs, err := h.messages.List(context.Background(), tenant, store.MessageFilter{Direction: models.DirectionOutbound})
	require.NoError(t, err)
	return msgs
}
