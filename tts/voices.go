package tts

import (
	"strings"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var languageNamer = display.Tags(language.English)

// LanguageName returns the English name of a locale such as "zh-CN". Tags
// that do not parse are returned unchanged.
func LanguageName(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return locale
	}
	if name := languageNamer.Name(tag); name != "" {
		return name
	}
	return locale
}

type voiceSource []Voice

func (v voiceSource) String(i int) string {
	return strings.Join([]string{v[i].DisplayName, v[i].ID, v[i].Locale, LanguageName(v[i].Locale)}, " ")
}

func (v voiceSource) Len() int { return len(v) }

// FilterVoices returns the voices matching query, best match first. An
// empty query returns voices as they are.
func FilterVoices(voices []Voice, query string) []Voice {
	if strings.TrimSpace(query) == "" {
		return voices
	}
	matches := fuzzy.FindFrom(query, voiceSource(voices))
	out := make([]Voice, 0, len(matches))
	for _, m := range matches {
		out = append(out, voices[m.Index])
	}
	return out
}

// FindVoice returns the voice whose id matches, ignoring case.
func FindVoice(voices []Voice, id string) (Voice, bool) {
	for _, v := range voices {
		if strings.EqualFold(v.ID, id) {
			return v, true
		}
	}
	return Voice{}, false
}
