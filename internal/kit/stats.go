package kit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/stats"
)

type broadcastStats struct {
	Recipients   *int    `json:"recipients"`
	EmailsOpened int     `json:"emails_opened"`
	TotalClicks  int     `json:"total_clicks"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
}

type statsResponse struct {
	Broadcast struct {
		ID    json.Number     `json:"id"`
		Stats *broadcastStats `json:"stats"`
	} `json:"broadcast"`
}

type linkClick struct {
	URL          string `json:"url"`
	UniqueClicks int    `json:"unique_clicks"`
}

type clicksResponse struct {
	Broadcast struct {
		ID     json.Number `json:"id"`
		Clicks []linkClick `json:"clicks"`
	} `json:"broadcast"`
}

// GetBroadcastStats fetches aggregate statistics for a broadcast. A response
// without a stats object (or without a recipient count) is ErrEmptyStats.
func (c *Client) GetBroadcastStats(ctx context.Context, broadcastID string) (domain.StatsSnapshot, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/broadcasts/"+url.PathEscape(broadcastID)+"/stats", nil, nil)
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("fetching stats for broadcast %s: %w", broadcastID, err)
	}

	var resp statsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("parsing stats for broadcast %s: %w", broadcastID, err)
	}

	s := resp.Broadcast.Stats
	if s == nil || s.Recipients == nil {
		return domain.StatsSnapshot{}, fmt.Errorf("broadcast %s: %w", broadcastID, ErrEmptyStats)
	}

	return domain.StatsSnapshot{
		Recipients:   *s.Recipients,
		Opens:        s.EmailsOpened,
		TotalClicks:  s.TotalClicks,
		OpenRatePct:  s.OpenRate,
		ClickRatePct: s.ClickRate,
	}, nil
}

// GetBroadcastClicks fetches the per-link click breakdown for a broadcast.
func (c *Client) GetBroadcastClicks(ctx context.Context, broadcastID string) ([]stats.LinkClicks, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/broadcasts/"+url.PathEscape(broadcastID)+"/clicks", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching clicks for broadcast %s: %w", broadcastID, err)
	}

	var resp clicksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing clicks for broadcast %s: %w", broadcastID, err)
	}

	links := make([]stats.LinkClicks, 0, len(resp.Broadcast.Clicks))
	for _, l := range resp.Broadcast.Clicks {
		links = append(links, stats.LinkClicks{URL: l.URL, UniqueClicks: l.UniqueClicks})
	}
	return links, nil
}
