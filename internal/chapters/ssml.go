package chapters

import (
	"strings"
)

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Markup wraps a chapter as an SSML document with a strong pause between
// the spoken title and the body.
func Markup(title, body string) string {
	var b strings.Builder
	b.Grow(len(title) + len(body) + 48)
	b.WriteString("<speak>")
	b.WriteString(ssmlEscaper.Replace(title))
	b.WriteString(`<break strength="strong"/>`)
	b.WriteString(ssmlEscaper.Replace(body))
	b.WriteString("</speak>")
	return b.String()
}
