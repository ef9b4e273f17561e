package azure

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/readaloud/tts"
)

var (
	escaper     = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "'", "&apos;")
)

// Escape makes text safe to embed as SSML character data.
func Escape(text string) string {
	return escaper.Replace(text)
}

// escapeAttr makes s safe inside a single-quoted attribute.
func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

// BuildSSML wraps text in the speak document the synthesis endpoint expects.
func BuildSSML(text, voice string) string {
	lang := escapeAttr(tts.Settings{CloudVoice: voice}.Locale())
	return fmt.Sprintf(
		"<speak version='1.0' xml:lang='%s'><voice xml:lang='%s' name='%s'>%s</voice></speak>",
		lang, lang, escapeAttr(voice), Escape(text),
	)
}
