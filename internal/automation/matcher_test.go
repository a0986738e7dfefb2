package automation

import (
	"testing"

	"socialflow/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestMatchesWithoutKeywords(t *testing.T) {
	trigger := models.Trigger{Type: models.TriggerInstagramDM}
	for _, text := range []string{"", "anything", "PRICE?"} {
		assert.True(t, Matches(trigger, Event{"text": text}), text)
	}
	assert.True(t, Matches(trigger, nil))
}

func TestMatchesKeywordsCaseInsensitive(t *testing.T) {
	trigger := models.Trigger{Type: models.TriggerKeyword, Keywords: []string{"Price", "cost"}}

	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{"substring", Event{"text": "what's the price?"}, true},
		{"second keyword", Event{"text": "How much does it COST"}, true},
		{"nested message text", Event{"message": map[string]any{"text": "price please"}}, true},
		{"no keyword", Event{"text": "hello"}, false},
		{"no text", Event{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(trigger, tt.ev))
		})
	}
}

func TestMatchesPostID(t *testing.T) {
	trigger := models.Trigger{Type: models.TriggerInstagramComment, PostID: "p1"}
	assert.True(t, Matches(trigger, Event{"postId": "p1"}))
	assert.True(t, Matches(trigger, Event{"mediaId": "p1"}))
	assert.False(t, Matches(trigger, Event{"postId": "p2"}))
	assert.False(t, Matches(trigger, Event{}))
}

func TestEvaluatePredicate(t *testing.T) {
	ev := Event{"text": "Need a refund", "followers": 1200.0, "platform": "instagram", "profile": map[string]any{"verified": true}}

	tests := []struct {
		name string
		p    *models.Predicate
		want bool
	}{
		{"nil", nil, true},
		{"empty", &models.Predicate{Version: 1}, true},
		{"leaf", &models.Predicate{Version: 1, Field: "text", Operator: OpContains, Value: "REFUND"}, true},
		{"all", &models.Predicate{Version: 1, All: []models.Predicate{
			{Field: "platform", Operator: OpEquals, Value: "instagram"},
			{Field: "followers", Operator: OpGreaterThan, Value: 1000},
		}}, true},
		{"any", &models.Predicate{Version: 1, Any: []models.Predicate{
			{Field: "followers", Operator: OpLessThan, Value: "10"},
			{Field: "profile.verified", Operator: OpEquals, Value: true},
		}}, true},
		{"not", &models.Predicate{Version: 1, Not: &models.Predicate{Field: "text", Operator: OpContains, Value: "refund"}}, false},
		{"wrong version", &models.Predicate{Version: 2, Field: "text", Operator: OpContains, Value: "refund"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.p, ev))
		})
	}
}

func TestCompareOperators(t *testing.T) {
	ev := Event{"count": "5", "name": "Bob", "n": 3.0}

	assert.True(t, compare(ev, "count", OpEquals, 5.0))
	assert.True(t, compare(ev, "n", OpEquals, "3"))
	assert.False(t, compare(ev, "missing", OpEquals, "x"))
	assert.True(t, compare(ev, "name", OpContains, "ob"))
	assert.True(t, compare(ev, "count", OpGreaterThan, 4))
	assert.False(t, compare(ev, "count", OpLessThan, "abc"))
	assert.False(t, compare(ev, "name", OpGreaterThan, 1))
	assert.True(t, compare(ev, "name", "regex", "whatever"))
}

func TestValidatePredicate(t *testing.T) {
	assert.NoError(t, ValidatePredicate(nil))
	assert.NoError(t, ValidatePredicate(&models.Predicate{Version: 1, All: []models.Predicate{
		{Field: "text", Operator: OpContains, Value: "x"},
	}}))
	assert.Error(t, ValidatePredicate(&models.Predicate{Field: "text", Operator: OpContains}))
	assert.Error(t, ValidatePredicate(&models.Predicate{Version: 1, Field: "text", Operator: "matches"}))
	assert.Error(t, ValidatePredicate(&models.Predicate{Version: 1, Field: "text", Operator: OpEquals, Not: &models.Predicate{Field: "a"}}))
}

func TestEventAccessors(t *testing.T) {
	ev := Event{"from": "1555", "message": map[string]any{"text": "hi"}, "mediaId": "m1", "platform": "WhatsApp"}
	assert.Equal(t, "1555", ev.Sender())
	assert.Equal(t, "hi", ev.Text())
	assert.Equal(t, "m1", ev.PostID())
	assert.Equal(t, models.PlatformWhatsApp, ev.Platform())
	assert.Equal(t, models.Platform(""), Event{"platform": "sms"}.Platform())
}

func TestEventNumericIDsKeepAllDigits(t *testing.T) {
	ev := Event{"senderId": float64(1234567890123), "postId": float64(178414058)}
	assert.Equal(t, "1234567890123", ev.Sender())
	assert.Equal(t, "178414058", ev.PostID())
}
