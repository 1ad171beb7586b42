package kit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Tag is a Kit subscriber tag.
type Tag struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Segment is a Kit subscriber segment.
type Segment struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

type pagination struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

const perPage = "1000"

// ListTags returns every tag on the account.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	var all []Tag
	err := c.paginate(ctx, "/tags", func(body []byte) (pagination, error) {
		var page struct {
			Tags       []Tag      `json:"tags"`
			Pagination pagination `json:"pagination"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return pagination{}, fmt.Errorf("parsing tags: %w", err)
		}
		all = append(all, page.Tags...)
		return page.Pagination, nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return all, nil
}

// ListSegments returns every segment on the account.
func (c *Client) ListSegments(ctx context.Context) ([]Segment, error) {
	var all []Segment
	err := c.paginate(ctx, "/segments", func(body []byte) (pagination, error) {
		var page struct {
			Segments   []Segment  `json:"segments"`
			Pagination pagination `json:"pagination"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return pagination{}, fmt.Errorf("parsing segments: %w", err)
		}
		all = append(all, page.Segments...)
		return page.Pagination, nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	return all, nil
}

func (c *Client) paginate(ctx context.Context, path string, handle func([]byte) (pagination, error)) error {
	after := ""
	for {
		params := url.Values{}
		params.Set("per_page", perPage)
		if after != "" {
			params.Set("after", after)
		}
		body, err := c.doRequest(ctx, http.MethodGet, path, params, nil)
		if err != nil {
			return err
		}
		p, err := handle(body)
		if err != nil {
			return err
		}
		if !p.HasNextPage || p.EndCursor == "" || p.EndCursor == after {
			return nil
		}
		after = p.EndCursor
	}
}

// Directory resolves tag and segment names to ids. Each listing is fetched
// at most once between calls to Reset.
type Directory struct {
	client *Client

	mu       sync.Mutex
	tags     map[string]int64
	segments map[string]int64
}

// NewDirectory creates an empty, lazily loaded directory.
func NewDirectory(c *Client) *Directory {
	return &Directory{client: c}
}

// TagID looks up a tag by name, ignoring case.
func (d *Directory) TagID(ctx context.Context, name string) (int64, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tags == nil {
		tags, err := d.client.ListTags(ctx)
		if err != nil {
			return 0, false, err
		}
		d.tags = make(map[string]int64, len(tags))
		for _, t := range tags {
			d.tags[normalizeName(t.Name)] = t.ID
		}
	}
	id, ok := d.tags[normalizeName(name)]
	return id, ok, nil
}

// SegmentID looks up a segment by name, ignoring case.
func (d *Directory) SegmentID(ctx context.Context, name string) (int64, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.segments == nil {
		segments, err := d.client.ListSegments(ctx)
		if err != nil {
			return 0, false, err
		}
		d.segments = make(map[string]int64, len(segments))
		for _, s := range segments {
			d.segments[normalizeName(s.Name)] = s.ID
		}
	}
	id, ok := d.segments[normalizeName(name)]
	return id, ok, nil
}

// Reset drops the cached listings so the next lookup fetches them again.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.tags, d.segments = nil, nil
	d.mu.Unlock()
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
