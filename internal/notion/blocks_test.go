package notion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/kitsync/internal/domain"
)

func TestDecodeBlock(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.ContentBlock
	}{
		{
			"heading",
			`{"id":"h","type":"heading_2","heading_2":{"rich_text":[{"plain_text":"Title"}]}}`,
			domain.ContentBlock{ID: "h", Kind: domain.BlockHeading2, Spans: []domain.TextSpan{{Text: "Title"}}},
		},
		{
			"numbered item",
			`{"id":"n","type":"numbered_list_item","numbered_list_item":{"rich_text":[{"plain_text":"1st","annotations":{"code":true}}]}}`,
			domain.ContentBlock{ID: "n", Kind: domain.BlockNumberedItem, Spans: []domain.TextSpan{{Text: "1st", Code: true}}},
		},
		{
			"empty paragraph",
			`{"id":"p","type":"paragraph","paragraph":{"rich_text":[]}}`,
			domain.ContentBlock{ID: "p", Kind: domain.BlockParagraph},
		},
		{
			"notion hosted image",
			`{"id":"i","type":"image","image":{"type":"file","file":{"url":"https://s3.test/x.png","expiry_time":"2025-01-01T00:00:00Z"},"caption":[{"plain_text":"Cap"}]}}`,
			domain.ContentBlock{ID: "i", Kind: domain.BlockImage, Image: &domain.ImageRef{SourceURL: "https://s3.test/x.png", Caption: []domain.TextSpan{{Text: "Cap"}}}},
		},
		{
			"unknown type",
			`{"id":"u","type":"callout","callout":{"rich_text":[{"plain_text":"hi"}]}}`,
			domain.ContentBlock{ID: "u", Kind: domain.BlockUnsupported},
		},
		{
			"quote",
			`{"id":"q","type":"quote","quote":{"rich_text":[{"plain_text":"wise"}]}}`,
			domain.ContentBlock{ID: "q", Kind: domain.BlockQuote, Spans: []domain.TextSpan{{Text: "wise"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBlock(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeBlockMalformed(t *testing.T) {
	_, err := DecodeBlock(json.RawMessage(`{"id":`))
	assert.Error(t, err)
}
