package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageRunes caps outgoing message length. Longer drafts are rejected
// locally before any network attempt.
const MaxMessageRunes = 1000

var (
	// ErrMessageEmpty indicates an outgoing message is blank after trimming.
	ErrMessageEmpty = errors.New("message text is empty")
	// ErrMessageTooLong indicates an outgoing message exceeds MaxMessageRunes.
	ErrMessageTooLong = errors.New("message text exceeds length cap")
	// ErrUnknownRoom indicates a room id outside the static catalog.
	ErrUnknownRoom = errors.New("unknown room")
	// ErrLanguageUnsupported indicates a language code outside the catalog.
	ErrLanguageUnsupported = errors.New("unsupported language")
)

// Message is one chat message as tagged by the backend. Records are immutable
// once received; reveal and translation toggles live in the timeline, not here.
type Message struct {
	ID               string    `json:"id"`
	Text             string    `json:"text"`
	TranslatedText   string    `json:"translatedText,omitempty"`
	OriginalLanguage string    `json:"originalLanguage"`
	IsToxic          bool      `json:"isToxic"`
	UserID           string    `json:"userId"`
	Username         string    `json:"username"`
	Timestamp        time.Time `json:"timestamp"`
}

// ValidateOutgoing trims a draft and applies the local send guards.
// Rejections are silent by contract: no notice, no network call.
func ValidateOutgoing(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrMessageEmpty
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageRunes {
		return "", ErrMessageTooLong
	}
	return trimmed, nil
}
