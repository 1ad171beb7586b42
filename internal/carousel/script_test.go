package carousel

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ignite/kitsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(kind domain.BlockKind, text string) domain.ContentBlock {
	b := domain.ContentBlock{Kind: kind}
	if text != "" {
		b.Spans = []domain.TextSpan{{Text: text}}
	}
	return b
}

func TestExtractContent(t *testing.T) {
	blocks := []domain.ContentBlock{
		block(domain.BlockHeading1, "Big news"),
		block(domain.BlockParagraph, "Intro paragraph."),
		block(domain.BlockParagraph, ""),
		block(domain.BlockBulletedItem, "first"),
		block(domain.BlockNumberedItem, "step"),
		block(domain.BlockQuote, "quoted"),
		{Kind: domain.BlockDivider},
		{Kind: domain.BlockImage, Image: &domain.ImageRef{SourceURL: "https://x"}},
	}

	got := ExtractContent(blocks)
	assert.Equal(t, "## Big news\n\nIntro paragraph.\n\n• first\n\n- step", got)
}

func TestDefaultScript(t *testing.T) {
	g, err := NewGenerator("")
	require.NoError(t, err)

	script, err := g.Script("Weekly Notes", "Short body")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "# CAROUSEL SCRIPT: Weekly Notes\n"))
	assert.Contains(t, script, "Title: Weekly Notes")
	assert.Contains(t, script, "---\nShort body...\n---")
	assert.Contains(t, script, "## SLIDE 10: CLOSING")
	assert.Contains(t, script, "5. End with clear newsletter CTA")
}

func TestScriptTruncatesContent(t *testing.T) {
	g, err := NewGenerator("")
	require.NoError(t, err)

	long := strings.Repeat("é", 1500)
	script, err := g.Script("T", long)
	require.NoError(t, err)
	assert.Contains(t, script, strings.Repeat("é", 1000)+"...")
	assert.NotContains(t, script, strings.Repeat("é", 1001))
}

func TestCustomTemplate(t *testing.T) {
	g, err := NewGenerator("{{ title }}|{{ content | excerpt: 3 }}")
	require.NoError(t, err)

	out, err := g.Script("A", "abcdef")
	require.NoError(t, err)
	assert.Equal(t, "A|abc...", out)
}

func TestInvalidTemplate(t *testing.T) {
	_, err := NewGenerator("{% if %}")
	assert.Error(t, err)
}

func TestCommentText(t *testing.T) {
	script := strings.Repeat("ü", 2500)
	c := CommentText(script, 1900)

	assert.True(t, strings.HasPrefix(c, CommentHeader))
	assert.Equal(t, 1900, utf8.RuneCountInString(strings.TrimPrefix(c, CommentHeader)))
	assert.True(t, utf8.ValidString(c))

	assert.Equal(t, CommentHeader+"short", CommentText("short", 1900))
}
