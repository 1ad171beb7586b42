package render

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/ignite/kitsync/internal/domain"
)

// RenderDocument renders a full block sequence with a fresh RenderState and
// joins the fragments with newlines. List containers are always closed.
func (r *Renderer) RenderDocument(ctx context.Context, documentID string, blocks []domain.ContentBlock) string {
	state := domain.NewRenderState(documentID)
	lists := NewListTracker(state)

	fragments := make([]string, 0, len(blocks)+2)
	for _, block := range blocks {
		frag := r.RenderBlock(ctx, block, state)
		// An empty list item must not open a container of its own.
		if frag == "" && block.Kind.IsListItem() {
			continue
		}
		fragments = append(fragments, lists.Enter(block.Kind)...)
		if frag != "" {
			fragments = append(fragments, frag)
		}
	}
	fragments = append(fragments, lists.Flush()...)

	return strings.Join(fragments, "\n")
}

// PreviewText returns the plain text of the first paragraph that has any
// text, cut to at most limit runes. Zero or negative limit means no limit.
func PreviewText(blocks []domain.ContentBlock, limit int) string {
	for _, b := range blocks {
		if b.Kind != domain.BlockParagraph {
			continue
		}
		text := strings.TrimSpace(b.PlainText())
		if text == "" {
			continue
		}
		return truncateRunes(text, limit)
	}
	return ""
}

// PlainText flattens the text-bearing blocks to newline separated text.
func PlainText(blocks []domain.ContentBlock) string {
	var lines []string
	for _, b := range blocks {
		if !b.Kind.IsTextBearing() {
			continue
		}
		if text := strings.TrimSpace(b.PlainText()); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}
