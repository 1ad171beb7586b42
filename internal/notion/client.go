// Package notion is a small client for the Notion REST API covering database
// queries, block listing, page property updates and comments.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/pkg/httpretry"
	"github.com/ignite/kitsync/internal/pkg/logger"
)

const maxPageSize = 100

// Client is a Notion API client
type Client struct {
	baseURL    string
	token      string
	version    string
	databaseID string
	httpClient httpretry.HTTPDoer
	limiter    *rate.Limiter
}

// NewClient creates a new Notion API client. Requests are rate limited to
// cfg.RequestsPerSecond; idempotent reads are retried up to maxRetries times.
func NewClient(cfg config.NotionConfig, maxRetries int) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		version:    cfg.Version,
		databaseID: cfg.DatabaseID,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, maxRetries),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// doRequest makes an HTTP request to the Notion API. body, when non-nil, is
// sent as JSON.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// QueryDatabase returns the pages matching q, following cursors until the
// result set is exhausted or q.Limit pages have been collected.
func (c *Client) QueryDatabase(ctx context.Context, q Query) ([]Page, error) {
	dbID := q.DatabaseID
	if dbID == "" {
		dbID = c.databaseID
	}
	if dbID == "" {
		return nil, fmt.Errorf("query database: no database id")
	}

	// Queries are reads even though they are POSTs.
	ctx = httpretry.MarkIdempotent(ctx)

	req := queryRequest{Filter: q.Filter, Sorts: q.Sorts, PageSize: maxPageSize}
	if q.Limit > 0 && q.Limit < maxPageSize {
		req.PageSize = q.Limit
	}

	var pages []Page
	for {
		body, err := c.doRequest(ctx, http.MethodPost, "/databases/"+url.PathEscape(dbID)+"/query", nil, req)
		if err != nil {
			return nil, fmt.Errorf("querying database %s: %w", dbID, err)
		}

		var list listResponse
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("parsing query response: %w", err)
		}
		for _, raw := range list.Results {
			var p Page
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("parsing page: %w", err)
			}
			pages = append(pages, p)
			if q.Limit > 0 && len(pages) >= q.Limit {
				return pages, nil
			}
		}

		if !list.HasMore || list.NextCursor == nil || *list.NextCursor == "" {
			break
		}
		req.StartCursor = *list.NextCursor
	}

	logger.Debug("notion query complete", "database_id", dbID, "pages", len(pages))
	return pages, nil
}

// GetPage fetches a single page with its properties.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/pages/"+url.PathEscape(pageID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching page %s: %w", pageID, err)
	}
	var p Page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parsing page %s: %w", pageID, err)
	}
	return &p, nil
}

// ListBlocks returns all top-level child blocks of a page in document order.
// The listing is fully drained before returning.
func (c *Client) ListBlocks(ctx context.Context, pageID string) ([]domain.ContentBlock, error) {
	var blocks []domain.ContentBlock
	cursor := ""
	for {
		params := url.Values{}
		params.Set("page_size", fmt.Sprintf("%d", maxPageSize))
		if cursor != "" {
			params.Set("start_cursor", cursor)
		}

		body, err := c.doRequest(ctx, http.MethodGet, "/blocks/"+url.PathEscape(pageID)+"/children", params, nil)
		if err != nil {
			return nil, fmt.Errorf("listing blocks of %s: %w", pageID, err)
		}

		var list listResponse
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("parsing block list: %w", err)
		}
		for _, raw := range list.Results {
			b, err := DecodeBlock(raw)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, b)
		}

		if !list.HasMore || list.NextCursor == nil || *list.NextCursor == "" {
			break
		}
		cursor = *list.NextCursor
	}

	logger.Debug("notion blocks listed", "page_id", pageID, "blocks", len(blocks))
	return blocks, nil
}

// UpdateProperties patches the named properties of a page. Setting the same
// values twice is harmless.
func (c *Client) UpdateProperties(ctx context.Context, pageID string, patch PropertyPatch) error {
	if len(patch) == 0 {
		return nil
	}
	if _, err := c.doRequest(ctx, http.MethodPatch, "/pages/"+url.PathEscape(pageID), nil, patchRequest{Properties: patch}); err != nil {
		return fmt.Errorf("updating page %s: %w", pageID, err)
	}
	return nil
}

// CreateComment adds a plain text comment to a page.
func (c *Client) CreateComment(ctx context.Context, pageID, text string) error {
	req := commentRequest{
		Parent:   commentParent{PageID: pageID},
		RichText: []commentText{{Type: "text", Text: TextObject{Content: text}}},
	}
	if _, err := c.doRequest(ctx, http.MethodPost, "/comments", nil, req); err != nil {
		return fmt.Errorf("commenting on page %s: %w", pageID, err)
	}
	return nil
}
