package render

import (
	"html"
	"strings"

	"github.com/ignite/kitsync/internal/domain"
)

// ComposeSpans renders rich text spans to inline HTML. Style markers nest in a
// fixed order (bold innermost, then italic, strikethrough, underline and code)
// and a link wraps the styled text last. Text and hrefs are escaped.
func ComposeSpans(spans []domain.TextSpan) string {
	if len(spans) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(composeSpan(s))
	}
	return b.String()
}

func composeSpan(s domain.TextSpan) string {
	out := html.EscapeString(s.Text)
	if s.Bold {
		out = "<strong>" + out + "</strong>"
	}
	if s.Italic {
		out = "<em>" + out + "</em>"
	}
	if s.Strikethrough {
		out = "<s>" + out + "</s>"
	}
	if s.Underline {
		out = "<u>" + out + "</u>"
	}
	if s.Code {
		out = "<code>" + out + "</code>"
	}
	if s.Link != "" {
		out = `<a href="` + html.EscapeString(s.Link) + `">` + out + "</a>"
	}
	return out
}
