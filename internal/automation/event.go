package automation

import (
	"strings"

	"socialflow/internal/models"
)

// Event is the free-form context of one inbound event, as decoded from JSON.
type Event map[string]any

// Lookup resolves a dotted path such as "message.text".
func (e Event) Lookup(path string) (any, bool) {
	var cur any = map[string]any(e)
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (e Event) str(path string) string {
	v, ok := e.Lookup(path)
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

func (e Event) firstOf(paths ...string) string {
	for _, p := range paths {
		if s := e.str(p); s != "" {
			return s
		}
	}
	return ""
}

// Sender is the platform user id the event came from.
func (e Event) Sender() string { return e.firstOf("senderId", "from") }

func (e Event) Text() string { return e.firstOf("text", "message.text") }

func (e Event) CommentID() string { return e.str("commentId") }

func (e Event) PostID() string { return e.firstOf("postId", "mediaId") }

func (e Event) Username() string { return e.str("username") }

// Platform returns the event's platform when it names a known one.
func (e Event) Platform() models.Platform {
	p := models.Platform(strings.ToLower(e.str("platform")))
	if p.Valid() {
		return p
	}
	return ""
}
