package render

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/kitsync/internal/domain"
)

func TestRenderDocumentParagraphListParagraph(t *testing.T) {
	r := NewRenderer(&fakeRelay{})
	blocks := []domain.ContentBlock{
		textBlock(domain.BlockParagraph, "Hello"),
		textBlock(domain.BlockBulletedItem, "A"),
		textBlock(domain.BlockBulletedItem, "B"),
		textBlock(domain.BlockParagraph, "End"),
	}

	got := r.RenderDocument(context.Background(), "doc", blocks)
	want := strings.Join([]string{
		"<p>Hello</p>",
		"<ul>",
		"<li>A</li>",
		"<li>B</li>",
		"</ul>",
		"<p>End</p>",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestRenderDocumentTerminalFlush(t *testing.T) {
	r := NewRenderer(&fakeRelay{})
	blocks := []domain.ContentBlock{
		textBlock(domain.BlockNumberedItem, "one"),
		textBlock(domain.BlockNumberedItem, "two"),
	}

	got := r.RenderDocument(context.Background(), "doc", blocks)
	assert.Equal(t, "<ol>\n<li>one</li>\n<li>two</li>\n</ol>", got)
}

func TestRenderDocumentSwitchesListType(t *testing.T) {
	r := NewRenderer(&fakeRelay{})
	blocks := []domain.ContentBlock{
		textBlock(domain.BlockBulletedItem, "a"),
		textBlock(domain.BlockNumberedItem, "1"),
	}

	got := r.RenderDocument(context.Background(), "doc", blocks)
	assert.Equal(t, "<ul>\n<li>a</li>\n</ul>\n<ol>\n<li>1</li>\n</ol>", got)
}

func TestRenderDocumentImagesNumberPerDocument(t *testing.T) {
	relay := &fakeRelay{}
	r := NewRenderer(relay)
	blocks := []domain.ContentBlock{imageBlock("https://a"), {Kind: domain.BlockDivider}, imageBlock("https://b")}

	r.RenderDocument(context.Background(), "one", blocks)
	r.RenderDocument(context.Background(), "two", blocks[:1])

	keys := make([]string, 0, len(relay.calls))
	for _, c := range relay.calls {
		keys = append(keys, c.key)
	}
	assert.Equal(t, []string{"email_one_1", "email_one_2", "email_two_1"}, keys)
}

func TestRenderDocumentEmpty(t *testing.T) {
	r := NewRenderer(&fakeRelay{})
	assert.Equal(t, "", r.RenderDocument(context.Background(), "doc", nil))
	assert.Equal(t, "", r.RenderDocument(context.Background(), "doc", []domain.ContentBlock{{Kind: domain.BlockUnsupported}}))
}

func TestPreviewText(t *testing.T) {
	blocks := []domain.ContentBlock{
		textBlock(domain.BlockHeading1, "Title"),
		{Kind: domain.BlockParagraph},
		{Kind: domain.BlockParagraph, Spans: []domain.TextSpan{{Text: "First "}, {Text: "para", Bold: true}}},
		textBlock(domain.BlockParagraph, "Second"),
	}
	assert.Equal(t, "First para", PreviewText(blocks, 150))
	assert.Equal(t, "First", PreviewText(blocks, 6))
	assert.Equal(t, "", PreviewText(blocks[:1], 150))

	long := strings.Repeat("é", 200)
	got := PreviewText([]domain.ContentBlock{textBlock(domain.BlockParagraph, long)}, 150)
	assert.Equal(t, strings.Repeat("é", 150), got)
}

func TestPlainText(t *testing.T) {
	blocks := []domain.ContentBlock{
		textBlock(domain.BlockHeading2, "Intro"),
		imageBlock("https://a"),
		textBlock(domain.BlockBulletedItem, "point"),
		{Kind: domain.BlockDivider},
	}
	assert.Equal(t, "Intro\npoint", PlainText(blocks))
}

func TestRenderDocumentEmptyListItemOpensNoList(t *testing.T) {
	r := NewRenderer(&fakeRelay{})
	blocks := []domain.ContentBlock{
		textBlock(domain.BlockParagraph, "Hi"),
		{Kind: domain.BlockBulletedItem},
		textBlock(domain.BlockParagraph, "End"),
	}

	got := r.RenderDocument(context.Background(), "doc", blocks)
	assert.Equal(t, "<p>Hi</p>\n<p>End</p>", got)
}

func TestRenderDocumentEmptyItemInsideList(t *testing.T) {
	r := NewRenderer(&fakeRelay{})
	blocks := []domain.ContentBlock{
		textBlock(domain.BlockNumberedItem, "one"),
		{Kind: domain.BlockNumberedItem},
		textBlock(domain.BlockNumberedItem, "two"),
	}

	got := r.RenderDocument(context.Background(), "doc", blocks)
	assert.Equal(t, "<ol>\n<li>one</li>\n<li>two</li>\n</ol>", got)
}
