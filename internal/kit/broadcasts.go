package kit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/kitsync/internal/domain"
)

// sendAtLayout is the UTC timestamp format Kit accepts for send_at. Fractional
// seconds are dropped.
const sendAtLayout = "2006-01-02T15:04:05Z"

// BroadcastRequest describes a broadcast to create.
type BroadcastRequest struct {
	Subject     string
	PreviewText string
	Content     string
	Description string
	SendAt      time.Time
	Public      bool
	Filter      domain.RecipientFilter
}

type filterCondition struct {
	Type  string  `json:"type"`
	IDs   []int64 `json:"ids,omitempty"`
	Email string  `json:"email,omitempty"`
}

type filterGroup struct {
	All  []filterCondition `json:"all"`
	Any  []filterCondition `json:"any"`
	None []filterCondition `json:"none"`
}

type createBroadcastRequest struct {
	Subject          string        `json:"subject"`
	PreviewText      string        `json:"preview_text"`
	Content          string        `json:"content"`
	Description      string        `json:"description,omitempty"`
	Public           bool          `json:"public"`
	SendAt           *string       `json:"send_at"`
	SubscriberFilter []filterGroup `json:"subscriber_filter,omitempty"`
}

type broadcastResponse struct {
	Broadcast struct {
		ID json.Number `json:"id"`
	} `json:"broadcast"`
}

// subscriberFilter converts a resolved recipient filter to Kit's shape. An
// everyone filter yields nil so the field is omitted.
func subscriberFilter(f domain.RecipientFilter) []filterGroup {
	switch f.Kind {
	case domain.FilterTestEmail:
		return []filterGroup{{All: []filterCondition{{Type: "email", Email: f.Email}}}}
	case domain.FilterConjunction:
		var conds []filterCondition
		if len(f.SegmentIDs) > 0 {
			conds = append(conds, filterCondition{Type: "segment", IDs: f.SegmentIDs})
		}
		if len(f.TagIDs) > 0 {
			conds = append(conds, filterCondition{Type: "tag", IDs: f.TagIDs})
		}
		if len(conds) == 0 {
			return nil
		}
		return []filterGroup{{All: conds}}
	}
	return nil
}

// CreateBroadcast creates a scheduled broadcast and returns its id. The call
// is never retried: a timeout may still have created the broadcast.
func (c *Client) CreateBroadcast(ctx context.Context, br BroadcastRequest) (string, error) {
	switch br.Filter.Kind {
	case domain.FilterEveryone:
	case domain.FilterTestEmail:
		if br.Filter.Email == "" {
			return "", fmt.Errorf("creating broadcast: test filter without email")
		}
	case domain.FilterConjunction:
		if len(br.Filter.TagIDs) == 0 && len(br.Filter.SegmentIDs) == 0 {
			return "", fmt.Errorf("creating broadcast: conjunction filter without ids")
		}
	default:
		// An unset filter must never widen to every subscriber.
		return "", fmt.Errorf("creating broadcast: unresolved recipient filter %q", br.Filter.Kind)
	}

	req := createBroadcastRequest{
		Subject:          br.Subject,
		PreviewText:      br.PreviewText,
		Content:          br.Content,
		Description:      br.Description,
		Public:           br.Public,
		SubscriberFilter: subscriberFilter(br.Filter),
	}
	if !br.SendAt.IsZero() {
		s := br.SendAt.UTC().Format(sendAtLayout)
		req.SendAt = &s
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/broadcasts", nil, req)
	if err != nil {
		return "", fmt.Errorf("creating broadcast: %w", err)
	}

	var resp broadcastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing broadcast response: %w", err)
	}
	id := resp.Broadcast.ID.String()
	if id == "" || id == "0" {
		return "", ErrNoBroadcastID
	}
	return id, nil
}
