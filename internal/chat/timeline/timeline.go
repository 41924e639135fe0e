// Package timeline keeps the append-only ordered message store and the
// per-message display state for moderated and translated content.
package timeline

import (
	"log"
	"strings"
	"sync"

	"github.com/louisbranch/polyglot.chat/internal/chat/domain"
	"github.com/louisbranch/polyglot.chat/internal/platform/i18n"
)

type record struct {
	msg             domain.Message
	showTranslation bool
	toxicRevealed   bool
}

// View is the display projection of one message. Text access goes through
// DisplayText so an unrevealed toxic message never leaks its content into the
// concrete display path.
type View struct {
	Message         domain.Message
	ShowTranslation bool
	ToxicRevealed   bool
}

// Hidden reports whether the message text is currently withheld.
func (v View) Hidden() bool {
	return v.Message.IsToxic && !v.ToxicRevealed
}

// DisplayText returns the text to render for the viewer, or the empty string
// while a toxic message remains unrevealed.
func (v View) DisplayText(viewerLanguage string) string {
	if v.Hidden() {
		return ""
	}
	if v.ShowTranslation && Translatable(v.Message, viewerLanguage) {
		return v.Message.TranslatedText
	}
	return v.Message.Text
}

// Translatable reports whether a message carries a translation the viewer
// would benefit from: a translated text exists and the original language
// differs from the viewer's preferred one.
func Translatable(msg domain.Message, viewerLanguage string) bool {
	if strings.TrimSpace(msg.TranslatedText) == "" {
		return false
	}
	return !i18n.SameLanguage(msg.OriginalLanguage, viewerLanguage)
}

// Timeline is the ordered message store for the current room. Messages keep
// arrival order; the timeline never re-sorts.
type Timeline struct {
	mu    sync.Mutex
	order []string
	byID  map[string]*record

	// revealed survives Clear so a toxic reveal holds for the whole session,
	// even when the same message comes back through a history reload.
	revealed map[string]struct{}
}

// New builds an empty timeline.
func New() *Timeline {
	return &Timeline{
		byID:     make(map[string]*record),
		revealed: make(map[string]struct{}),
	}
}

// Append inserts a message at the end. Duplicate ids are rejected as a no-op.
func (t *Timeline) Append(msg domain.Message) bool {
	id := strings.TrimSpace(msg.ID)
	if id == "" {
		log.Printf("timeline: dropping message without id from %q", msg.Username)
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; ok {
		log.Printf("timeline: duplicate message id %q ignored", id)
		return false
	}

	rec := &record{msg: msg}
	if _, ok := t.revealed[id]; ok {
		rec.toxicRevealed = true
	}
	t.byID[id] = rec
	t.order = append(t.order, id)
	return true
}

// Clear empties the visible timeline, keeping session-scoped reveal state.
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = nil
	t.byID = make(map[string]*record)
}

// Len returns the number of visible messages.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// Contains reports whether a message id is already in the timeline.
func (t *Timeline) Contains(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byID[id]
	return ok
}

// SetShowTranslation toggles the translated rendering of a message. It only
// has effect when the message is translatable for the viewer.
func (t *Timeline) SetShowTranslation(id string, show bool, viewerLanguage string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.byID[id]
	if !ok {
		return false
	}
	if !Translatable(rec.msg, viewerLanguage) {
		return false
	}
	rec.showTranslation = show
	return true
}

// RevealToxic marks a flagged message as revealed. The transition is
// monotonic: once revealed, the message is never re-hidden this session.
func (t *Timeline) RevealToxic(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.byID[id]
	if !ok {
		return false
	}
	rec.toxicRevealed = true
	t.revealed[id] = struct{}{}
	return true
}

// Views returns the display projections in arrival order.
func (t *Timeline) Views() []View {
	t.mu.Lock()
	defer t.mu.Unlock()
	views := make([]View, 0, len(t.order))
	for _, id := range t.order {
		rec := t.byID[id]
		views = append(views, View{
			Message:         rec.msg,
			ShowTranslation: rec.showTranslation,
			ToxicRevealed:   rec.toxicRevealed,
		})
	}
	return views
}
