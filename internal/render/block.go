package render

import (
	"context"
	"fmt"
	"html"

	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/pkg/logger"
)

const (
	dividerHTML     = "<hr>"
	defaultImageAlt = "Email image"
	imageStyle      = "max-width: 100%; height: auto;"
)

// Relay uploads an image to durable hosting and returns its public URL.
type Relay interface {
	Relay(ctx context.Context, sourceURL, key string) (string, error)
}

// Renderer renders content blocks. It is safe to reuse across documents; all
// per-document state lives in the caller's RenderState.
type Renderer struct {
	relay Relay
}

// NewRenderer creates a renderer that relays images through r.
func NewRenderer(r Relay) *Renderer {
	return &Renderer{relay: r}
}

var containers = map[domain.BlockKind]string{
	domain.BlockParagraph:    "p",
	domain.BlockHeading1:     "h1",
	domain.BlockHeading2:     "h2",
	domain.BlockHeading3:     "h3",
	domain.BlockQuote:        "blockquote",
	domain.BlockBulletedItem: "li",
	domain.BlockNumberedItem: "li",
}

// RenderBlock renders one block. An empty string means the block contributes
// nothing to the document. Image relay failures are logged and swallowed so a
// single broken image never aborts the document.
func (r *Renderer) RenderBlock(ctx context.Context, block domain.ContentBlock, state *domain.RenderState) string {
	switch block.Kind {
	case domain.BlockParagraph, domain.BlockHeading1, domain.BlockHeading2, domain.BlockHeading3,
		domain.BlockQuote, domain.BlockBulletedItem, domain.BlockNumberedItem:
		text := ComposeSpans(block.Spans)
		if text == "" {
			return ""
		}
		tag := containers[block.Kind]
		return "<" + tag + ">" + text + "</" + tag + ">"
	case domain.BlockDivider:
		return dividerHTML
	case domain.BlockImage:
		return r.renderImage(ctx, block, state)
	default:
		return ""
	}
}

func (r *Renderer) renderImage(ctx context.Context, block domain.ContentBlock, state *domain.RenderState) string {
	if block.Image == nil || block.Image.SourceURL == "" {
		return ""
	}

	state.ImageSeq++
	key := ImageKey(state.DocumentID, state.ImageSeq)

	if r.relay == nil {
		logger.Warn("no image relay configured, dropping image", "document_id", state.DocumentID, "key", key)
		return ""
	}

	url, err := r.relay.Relay(ctx, block.Image.SourceURL, key)
	if err != nil {
		logger.Warn("image relay failed, dropping image",
			"document_id", state.DocumentID,
			"key", key,
			"error", err,
		)
		return ""
	}

	alt := domain.SpansPlainText(block.Image.Caption)
	if alt == "" {
		alt = defaultImageAlt
	}
	return fmt.Sprintf(`<p><img src="%s" alt="%s" style="%s"></p>`,
		html.EscapeString(url), html.EscapeString(alt), imageStyle)
}

// ImageKey is the stable relay naming key for the n-th image of a document.
func ImageKey(documentID string, n int) string {
	return fmt.Sprintf("email_%s_%d", documentID, n)
}
