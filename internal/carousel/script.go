// Package carousel turns sent emails into social carousel scripts that are
// posted back to the Notion page as a comment.
package carousel

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ignite/kitsync/internal/domain"
	"github.com/osteele/liquid"
)

// CommentHeader prefixes every carousel comment.
const CommentHeader = "📊 CAROUSEL SCRIPT\n\n"

// DefaultTemplate is the Liquid source of the stock carousel script.
// Bindings: title, content.
const DefaultTemplate = `# CAROUSEL SCRIPT: {{ title }}

## SLIDE 1: HOOK
[Create an attention-grabbing opening based on email subject line]
Title: {{ title }}

## SLIDES 2-8: MAIN CONTENT
[Transform key points from email into visual slides]

Email content to transform:
---
{{ content | excerpt: 1000 }}
---

## SLIDE 9: CALL TO ACTION
Title: "Want More Insights Like This?"
Content:
• Join 800+ subscribers
• Get weekly emails with actionable strategies
• Unsubscribe anytime

Button: "Subscribe to Newsletter"
Link: [YOUR NEWSLETTER LINK]

## SLIDE 10: CLOSING
"Follow for more content like this"
[YOUR HANDLE/BRANDING]

---
NOTES FOR GAMMA TEMPLATE:
1. Use 4x5 ratio for Instagram/LinkedIn
2. Keep text concise (max 50 words per slide)
3. Add your brand colors
4. Include visuals for each key point
5. End with clear newsletter CTA
`

// Generator renders carousel scripts from a compiled Liquid template.
type Generator struct {
	tpl *liquid.Template
}

// NewGenerator compiles src. An empty src uses DefaultTemplate.
func NewGenerator(src string) (*Generator, error) {
	if src == "" {
		src = DefaultTemplate
	}
	engine := liquid.NewEngine()

	// excerpt keeps the first n runes and always marks the cut: {{ content | excerpt: 1000 }}
	engine.RegisterFilter("excerpt", func(s string, n int) string {
		return truncateRunes(s, n) + "..."
	})

	tpl, err := engine.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("parsing carousel template: %w", err)
	}
	return &Generator{tpl: tpl}, nil
}

// LoadGenerator compiles the template at path, or the default when path is empty.
func LoadGenerator(path string) (*Generator, error) {
	if path == "" {
		return NewGenerator("")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading carousel template: %w", err)
	}
	return NewGenerator(string(data))
}

// Script renders the carousel script for one email.
func (g *Generator) Script(title, content string) (string, error) {
	out, err := g.tpl.RenderString(map[string]interface{}{
		"title":   title,
		"content": content,
	})
	if err != nil {
		return "", fmt.Errorf("rendering carousel script: %w", err)
	}
	return out, nil
}

// ExtractContent flattens an email body to the plain-text outline the script
// works from. Headings become "## text", bulleted items "• text", numbered
// items "- text"; other block kinds are dropped.
func ExtractContent(blocks []domain.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		text := b.PlainText()
		if text == "" {
			continue
		}
		switch b.Kind {
		case domain.BlockParagraph:
			parts = append(parts, text)
		case domain.BlockHeading1, domain.BlockHeading2, domain.BlockHeading3:
			parts = append(parts, "## "+text)
		case domain.BlockBulletedItem:
			parts = append(parts, "• "+text)
		case domain.BlockNumberedItem:
			parts = append(parts, "- "+text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// CommentText builds the comment body, keeping at most limit runes of script.
func CommentText(script string, limit int) string {
	return CommentHeader + truncateRunes(script, limit)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
