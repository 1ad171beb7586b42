package notion

import (
	"encoding/json"
	"fmt"

	"github.com/ignite/kitsync/internal/domain"
)

type blockHeader struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children"`
}

type textBody struct {
	RichText []RichText `json:"rich_text"`
}

type fileBody struct {
	URL string `json:"url"`
}

type imageBody struct {
	Type     string     `json:"type"`
	File     *fileBody  `json:"file,omitempty"`
	External *fileBody  `json:"external,omitempty"`
	Caption  []RichText `json:"caption"`
}

// DecodeBlock converts one raw block object into a domain block. Unknown
// block types decode to domain.BlockUnsupported without error.
func DecodeBlock(raw json.RawMessage) (domain.ContentBlock, error) {
	var head blockHeader
	if err := json.Unmarshal(raw, &head); err != nil {
		return domain.ContentBlock{}, fmt.Errorf("decoding block: %w", err)
	}

	kind := domain.ParseBlockKind(head.Type)
	block := domain.ContentBlock{ID: head.ID, Kind: kind}
	if kind == domain.BlockUnsupported || kind == domain.BlockDivider {
		return block, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.ContentBlock{}, fmt.Errorf("decoding block %s: %w", head.ID, err)
	}
	body, ok := fields[head.Type]
	if !ok || string(body) == "null" {
		return block, nil
	}

	switch {
	case kind.IsTextBearing():
		var tb textBody
		if err := json.Unmarshal(body, &tb); err != nil {
			return domain.ContentBlock{}, fmt.Errorf("decoding %s block %s: %w", head.Type, head.ID, err)
		}
		block.Spans = Spans(tb.RichText)
	case kind == domain.BlockImage:
		var ib imageBody
		if err := json.Unmarshal(body, &ib); err != nil {
			return domain.ContentBlock{}, fmt.Errorf("decoding image block %s: %w", head.ID, err)
		}
		block.Image = &domain.ImageRef{SourceURL: ib.sourceURL(), Caption: Spans(ib.Caption)}
	}
	return block, nil
}

func (ib imageBody) sourceURL() string {
	switch ib.Type {
	case "file":
		if ib.File != nil {
			return ib.File.URL
		}
	case "external":
		if ib.External != nil {
			return ib.External.URL
		}
	}
	return ""
}
