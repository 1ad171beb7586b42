package domain

// BlockKind enumerates the content block types the renderer understands.
// Anything the store sends that is not listed here maps to BlockUnsupported.
type BlockKind string

const (
	BlockParagraph    BlockKind = "paragraph"
	BlockHeading1     BlockKind = "heading_1"
	BlockHeading2     BlockKind = "heading_2"
	BlockHeading3     BlockKind = "heading_3"
	BlockBulletedItem BlockKind = "bulleted_list_item"
	BlockNumberedItem BlockKind = "numbered_list_item"
	BlockImage        BlockKind = "image"
	BlockDivider      BlockKind = "divider"
	BlockQuote        BlockKind = "quote"
	BlockUnsupported  BlockKind = "unsupported"
)

// ParseBlockKind maps a store type string onto the closed BlockKind set.
func ParseBlockKind(s string) BlockKind {
	switch k := BlockKind(s); k {
	case BlockParagraph, BlockHeading1, BlockHeading2, BlockHeading3,
		BlockBulletedItem, BlockNumberedItem, BlockImage, BlockDivider, BlockQuote:
		return k
	default:
		return BlockUnsupported
	}
}

// IsTextBearing reports whether blocks of this kind carry rich text spans.
func (k BlockKind) IsTextBearing() bool {
	switch k {
	case BlockParagraph, BlockHeading1, BlockHeading2, BlockHeading3,
		BlockBulletedItem, BlockNumberedItem, BlockQuote:
		return true
	}
	return false
}

// IsListItem reports whether blocks of this kind render inside a list.
func (k BlockKind) IsListItem() bool {
	return k == BlockBulletedItem || k == BlockNumberedItem
}

// ContentBlock is one structural unit of a document. Order within a document
// defines render order.
type ContentBlock struct {
	ID    string     `json:"id,omitempty"`
	Kind  BlockKind  `json:"kind"`
	Spans []TextSpan `json:"spans,omitempty"`
	Image *ImageRef  `json:"image,omitempty"`
}

// PlainText concatenates the unstyled text of all spans.
func (b ContentBlock) PlainText() string {
	return SpansPlainText(b.Spans)
}

// TextSpan is a run of text with independent style flags and an optional link.
type TextSpan struct {
	Text          string `json:"text"`
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Underline     bool   `json:"underline,omitempty"`
	Code          bool   `json:"code,omitempty"`
	Link          string `json:"link,omitempty"`
}

// SpansPlainText concatenates the text of spans without any markup.
func SpansPlainText(spans []TextSpan) string {
	switch len(spans) {
	case 0:
		return ""
	case 1:
		return spans[0].Text
	}
	n := 0
	for _, s := range spans {
		n += len(s.Text)
	}
	buf := make([]byte, 0, n)
	for _, s := range spans {
		buf = append(buf, s.Text...)
	}
	return string(buf)
}

// ImageRef points at an image whose source URL is not durable and must be
// relayed before it can be embedded in an email.
type ImageRef struct {
	SourceURL string     `json:"source_url"`
	Caption   []TextSpan `json:"caption,omitempty"`
}

// ListKind is the list container currently open during a render pass.
type ListKind int

const (
	ListNone ListKind = iota
	ListBulleted
	ListNumbered
)

// RenderState is the transient, per-document state of one render pass. It is
// created by the caller for each document and discarded afterwards.
type RenderState struct {
	DocumentID string
	OpenList   ListKind
	ImageSeq   int
}

// NewRenderState returns a fresh state for rendering the given document.
func NewRenderState(documentID string) *RenderState {
	return &RenderState{DocumentID: documentID}
}
