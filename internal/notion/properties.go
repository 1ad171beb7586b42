package notion

import (
	"strings"
	"time"

	"github.com/ignite/kitsync/internal/domain"
)

// Properties is a page's property bag, keyed by property name. Accessors are
// type directed: a missing property or one of a different type yields the
// zero value.
type Properties map[string]Property

// Text returns the plain text of a title or rich text property. All spans are
// concatenated and surrounding whitespace trimmed.
func (p Properties) Text(name string) string {
	prop, ok := p[name]
	if !ok {
		return ""
	}
	switch prop.Type {
	case "title":
		return strings.TrimSpace(plainText(prop.Title))
	case "rich_text":
		return strings.TrimSpace(plainText(prop.RichText))
	}
	return ""
}

// Select returns the option name of a select or status property.
func (p Properties) Select(name string) string {
	prop, ok := p[name]
	if !ok {
		return ""
	}
	switch prop.Type {
	case "select":
		if prop.Select != nil {
			return prop.Select.Name
		}
	case "status":
		if prop.Status != nil {
			return prop.Status.Name
		}
	}
	return ""
}

// MultiSelect returns the option names of a multi-select property.
func (p Properties) MultiSelect(name string) []string {
	prop, ok := p[name]
	if !ok || prop.Type != "multi_select" {
		return nil
	}
	names := make([]string, 0, len(prop.MultiSelect))
	for _, o := range prop.MultiSelect {
		names = append(names, o.Name)
	}
	return names
}

// Date returns the start of a date property. When Notion reports the value as
// a wall-clock time plus a time zone name, the zone offset is applied so the
// result is an absolute timestamp.
func (p Properties) Date(name string) string {
	prop, ok := p[name]
	if !ok || prop.Type != "date" || prop.Date == nil {
		return ""
	}
	return prop.Date.Normalized()
}

// Number returns a number property and whether it was set.
func (p Properties) Number(name string) (float64, bool) {
	prop, ok := p[name]
	if !ok || prop.Type != "number" || prop.Number == nil {
		return 0, false
	}
	return *prop.Number, true
}

// Normalized returns Start with the time zone applied. Date-only values and
// values that already carry an offset are returned unchanged.
func (d DateRange) Normalized() string {
	start := strings.TrimSpace(d.Start)
	if d.TimeZone == nil || *d.TimeZone == "" || !strings.Contains(start, "T") || hasOffset(start) {
		return start
	}
	loc, err := time.LoadLocation(*d.TimeZone)
	if err != nil {
		return start
	}
	for _, layout := range []string{"2006-01-02T15:04:05.000", "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, start, loc); err == nil {
			return t.Format(time.RFC3339)
		}
	}
	return start
}

func hasOffset(s string) bool {
	if strings.HasSuffix(s, "Z") {
		return true
	}
	i := strings.IndexByte(s, 'T')
	return strings.ContainsAny(s[i:], "+-")
}

func plainText(spans []RichText) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.PlainText)
	}
	return b.String()
}

// Spans converts Notion rich text to domain spans.
func Spans(rich []RichText) []domain.TextSpan {
	if len(rich) == 0 {
		return nil
	}
	spans := make([]domain.TextSpan, 0, len(rich))
	for _, r := range rich {
		text := r.PlainText
		if text == "" && r.Text != nil {
			text = r.Text.Content
		}
		var link string
		switch {
		case r.Href != nil:
			link = *r.Href
		case r.Text != nil && r.Text.Link != nil:
			link = r.Text.Link.URL
		}
		spans = append(spans, domain.TextSpan{
			Text:          text,
			Bold:          r.Annotations.Bold,
			Italic:        r.Annotations.Italic,
			Strikethrough: r.Annotations.Strikethrough,
			Underline:     r.Annotations.Underline,
			Code:          r.Annotations.Code,
			Link:          link,
		})
	}
	return spans
}

// PropertyPatch is the body of a page property update, keyed by property name.
type PropertyPatch map[string]interface{}

// SelectValue sets a select property.
func SelectValue(name string) interface{} {
	return map[string]interface{}{"select": map[string]string{"name": name}}
}

// RichTextValue sets a rich text property to a single plain span.
func RichTextValue(text string) interface{} {
	return map[string]interface{}{
		"rich_text": []map[string]interface{}{
			{"type": "text", "text": map[string]string{"content": text}},
		},
	}
}

// DateValue sets a date property to t in RFC 3339.
func DateValue(t time.Time) interface{} {
	return map[string]interface{}{"date": map[string]string{"start": t.Format(time.RFC3339)}}
}

// NumberValue sets a number property.
func NumberValue(v float64) interface{} {
	return map[string]interface{}{"number": v}
}

// IntValue sets a number property from an integer count.
func IntValue(v int) interface{} {
	return NumberValue(float64(v))
}

// Summary is a short description of a page for logs.
func (p Page) Summary(titleProperty string) string {
	if title := p.Properties.Text(titleProperty); title != "" {
		return title
	}
	return "page " + p.ID
}
