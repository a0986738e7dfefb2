package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"socialflow/internal/automation"
	"socialflow/internal/config"
	"socialflow/internal/database"
	"socialflow/internal/models"
	"socialflow/internal/store"
	hooks "socialflow/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatched struct {
	TenantID string
	Trigger  models.TriggerType
	Event    automation.Event
}

// fakeDispatcher flattens every job into one call per trigger type.
type fakeDispatcher struct {
	mu    sync.Mutex
	jobs  int
	calls []dispatched
}

func (d *fakeDispatcher) Dispatch(tenantID string, ev automation.Event, triggerTypes ...models.TriggerType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs++
	for _, tt := range triggerTypes {
		d.calls = append(d.calls, dispatched{tenantID, tt, ev})
	}
}

type fakeNotifier struct {
	messages []*models.Message
}

func (n *fakeNotifier) MessageReceived(_ string, msg *models.Message) {
	n.messages = append(n.messages, msg)
}

type fixture struct {
	router     *gin.Engine
	dispatcher *fakeDispatcher
	notifier   *fakeNotifier
	contacts   *store.ContactRepository
	messages   *store.MessageRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	integrations := store.NewIntegrationRepository(db)
	ctx := context.Background()
	require.NoError(t, integrations.Save(ctx, &models.Integration{
		TenantID: "t1", Type: models.PlatformInstagram, AccessToken: "ig", PlatformUserID: "ig-acct",
	}))
	require.NoError(t, integrations.Save(ctx, &models.Integration{
		TenantID: "t2", Type: models.PlatformWhatsApp, AccessToken: "wa", PhoneNumberID: "phone-1",
	}))

	f := &fixture{
		dispatcher: &fakeDispatcher{},
		notifier:   &fakeNotifier{},
		contacts:   store.NewContactRepository(db),
		messages:   store.NewMessageRepository(db),
	}
	h := NewHandler(&config.Config{VerifyToken: "secret"}, integrations, f.contacts, f.messages, f.dispatcher, f.notifier)

	f.router = gin.New()
	f.router.GET("/webhook", h.VerifyWebhook)
	f.router.POST("/webhook", h.HandleMessage)
	return f
}

func (f *fixture) post(t *testing.T, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec.Code
}

func TestVerifyWebhook(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		query string
		code  int
		body  string
	}{
		{"valid", "?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=42", http.StatusOK, "42"},
		{"wrong token", "?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", http.StatusForbidden, ""},
		{"missing params", "", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook"+tt.query, nil))
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestHandleMessageRejectsMalformedJSON(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.post(t, `{"object":`))
	assert.Empty(t, f.dispatcher.calls)
}

func TestInstagramComment(t *testing.T) {
	f := newFixture(t)
	code := f.post(t, `{"object":"instagram","entry":[{"id":"ig-acct","changes":[
		{"field":"comments","value":{"id":"c1","text":"price?","from":{"id":"u1","username":"alice"},"media":{"id":"p1"}}},
		{"field":"comments","value":{"id":"c2","text":"thanks!","from":{"id":"ig-acct"},"media":{"id":"p1"}}}
	]}]}`)
	require.Equal(t, http.StatusOK, code)

	require.Len(t, f.dispatcher.calls, 2)
	assert.Equal(t, 1, f.dispatcher.jobs)
	assert.Equal(t, models.TriggerInstagramComment, f.dispatcher.calls[0].Trigger)
	assert.Equal(t, models.TriggerKeyword, f.dispatcher.calls[1].Trigger)
	ev := f.dispatcher.calls[0].Event
	assert.Equal(t, "t1", f.dispatcher.calls[0].TenantID)
	assert.Equal(t, "c1", ev.CommentID())
	assert.Equal(t, "p1", ev.PostID())
	assert.Equal(t, "u1", ev.Sender())
	assert.Equal(t, "price?", ev.Text())

	contact, err := f.contacts.FindByPlatformUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", contact.Username)
	assert.Equal(t, "t1", contact.TenantID)

	logged, err := f.messages.List(context.Background(), "t1", store.MessageFilter{Direction: models.DirectionInbound})
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, "c1", logged[0].CommentID)
	assert.Len(t, f.notifier.messages, 1)
}

func TestInstagramMessaging(t *testing.T) {
	f := newFixture(t)
	code := f.post(t, `{"object":"instagram","entry":[{"id":"ig-acct","messaging":[
		{"sender":{"id":"u1"},"recipient":{"id":"ig-acct"},"message":{"mid":"m1","text":"hello"}},
		{"sender":{"id":"u2"},"recipient":{"id":"ig-acct"},"message":{"mid":"m2","text":"love it","reply_to":{"story":{"id":"s1","url":"https://cdn/s1"}}}},
		{"sender":{"id":"u3"},"recipient":{"id":"ig-acct"},"message":{"mid":"m3","attachments":[{"type":"story_mention","payload":{"url":"https://cdn/s2"}}]}},
		{"sender":{"id":"ig-acct"},"recipient":{"id":"u1"},"message":{"mid":"m4","text":"auto reply","is_echo":true}}
	]}]}`)
	require.Equal(t, http.StatusOK, code)

	var triggers []models.TriggerType
	for _, c := range f.dispatcher.calls {
		triggers = append(triggers, c.Trigger)
	}
	assert.Equal(t, []models.TriggerType{
		models.TriggerInstagramDM, models.TriggerKeyword,
		models.TriggerInstagramStoryReply, models.TriggerKeyword,
		models.TriggerInstagramStoryMention,
	}, triggers)
	assert.Equal(t, 3, f.dispatcher.jobs)
	assert.Equal(t, "s1", f.dispatcher.calls[2].Event["storyId"])
	assert.Equal(t, "https://cdn/s2", f.dispatcher.calls[4].Event["storyUrl"])
}

func TestWhatsAppMessages(t *testing.T) {
	f := newFixture(t)
	code := f.post(t, `{"object":"whatsapp_business_account","entry":[{"id":"waba","changes":[{"field":"messages","value":{
		"messaging_product":"whatsapp",
		"metadata":{"display_phone_number":"15550000","phone_number_id":"phone-1"},
		"contacts":[{"wa_id":"1555123","profile":{"name":"Bob"}}],
		"messages":[
			{"from":"1555123","id":"w1","type":"text","text":{"body":"menu"}},
			{"from":"1555123","id":"w2","type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":"b1","title":"Yes"}}},
			{"from":"1555123","id":"w3","type":"audio","audio":{"id":"a1","mime_type":"audio/ogg"}}
		]}}]}]}`)
	require.Equal(t, http.StatusOK, code)

	require.Len(t, f.dispatcher.calls, 5)
	first := f.dispatcher.calls[0]
	assert.Equal(t, "t2", first.TenantID)
	assert.Equal(t, models.TriggerWhatsAppMessage, first.Trigger)
	assert.Equal(t, "1555123", first.Event.Sender())
	assert.Equal(t, models.PlatformWhatsApp, first.Event.Platform())
	assert.Equal(t, "Yes", f.dispatcher.calls[2].Event.Text())
	assert.Equal(t, models.TriggerWhatsAppMessage, f.dispatcher.calls[4].Trigger)

	contact, err := f.contacts.FindByPlatformUser(context.Background(), "1555123")
	require.NoError(t, err)
	assert.Equal(t, "Bob", contact.Name)
	assert.EqualValues(t, 3, contact.TotalMessages)

	logged, err := f.messages.List(context.Background(), "t2", store.MessageFilter{})
	require.NoError(t, err)
	require.Len(t, logged, 3)
	assert.Equal(t, "[audio]:a1", logged[0].Content)
}

func TestUnknownAccountIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	code := f.post(t, `{"object":"whatsapp_business_account","entry":[{"id":"waba","changes":[{"field":"messages","value":{
		"metadata":{"phone_number_id":"other"},
		"messages":[{"from":"1","id":"w1","type":"text","text":{"body":"hi"}}]}}]}]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, f.dispatcher.calls)
}

func TestWhatsAppContent(t *testing.T) {
	assert.Equal(t, "[sticker]", whatsappContent(hooks.WhatsAppMessage{Type: "sticker"}, ""))
	assert.Equal(t, "hi", whatsappContent(hooks.WhatsAppMessage{Type: "text"}, "hi"))
}
