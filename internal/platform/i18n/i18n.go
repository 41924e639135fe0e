// Package i18n defines the chat language catalog and tag matching rules.
//
// The catalog is intentionally static: the moderation/translation backend
// advertises the same set, and the client only needs to validate preferences
// and decide whether a message was written in the viewer's language.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Language describes one selectable chat language.
type Language struct {
	Code string
	Name string
}

var languages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "ja", Name: "Japanese"},
	{Code: "zh", Name: "Chinese"},
	{Code: "hi", Name: "Hindi"},
	{Code: "ar", Name: "Arabic"},
}

var matcher = language.NewMatcher(SupportedTags())

// Supported returns the selectable language catalog in display order.
func Supported() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// SupportedTags returns the catalog as language tags, default first.
func SupportedTags() []language.Tag {
	tags := make([]language.Tag, 0, len(languages))
	for _, lang := range languages {
		tags = append(tags, language.Make(lang.Code))
	}
	return tags
}

// DefaultTag returns the fallback language tag.
func DefaultTag() language.Tag {
	return language.English
}

// ParseTag parses a language code into a supported tag.
// The bool reports whether the code belongs to the catalog.
func ParseTag(code string) (language.Tag, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return DefaultTag(), false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return DefaultTag(), false
	}
	matched, _, confidence := matcher.Match(tag)
	if confidence < language.High {
		return DefaultTag(), false
	}
	return matched, true
}

// IsSupported reports whether the code resolves to a catalog language.
func IsSupported(code string) bool {
	_, ok := ParseTag(code)
	return ok
}

// DisplayName returns the catalog name for a code, or the code itself when
// the language is unknown.
func DisplayName(code string) string {
	tag, ok := ParseTag(code)
	if !ok {
		return strings.TrimSpace(code)
	}
	base, _ := tag.Base()
	for _, lang := range languages {
		if lang.Code == base.String() {
			return lang.Name
		}
	}
	return strings.TrimSpace(code)
}

// SameLanguage reports whether two codes share a base language.
// Unparseable codes only match themselves verbatim.
func SameLanguage(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == b {
		return true
	}
	tagA, errA := language.Parse(a)
	tagB, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	baseA, confA := tagA.Base()
	baseB, confB := tagB.Base()
	if confA == language.No || confB == language.No {
		return false
	}
	return baseA == baseB
}
