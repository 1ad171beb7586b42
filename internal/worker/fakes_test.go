package worker

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ignite/kitsync/internal/alert"
	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/kit"
	"github.com/ignite/kitsync/internal/ledger"
	"github.com/ignite/kitsync/internal/notion"
	"github.com/ignite/kitsync/internal/stats"
)

var errBoom = errors.New("connection reset by peer")

type fakeStore struct {
	pages      []notion.Page
	blocks     map[string][]domain.ContentBlock
	blocksErr  map[string]error
	updateErr  map[string]error
	commentErr error

	queries  []notion.Query
	patches  map[string]notion.PropertyPatch
	comments map[string]string
}

func newFakeStore(pages ...notion.Page) *fakeStore {
	return &fakeStore{
		pages:     pages,
		blocks:    make(map[string][]domain.ContentBlock),
		blocksErr: make(map[string]error),
		updateErr: make(map[string]error),
		patches:   make(map[string]notion.PropertyPatch),
		comments:  make(map[string]string),
	}
}

func (f *fakeStore) QueryDatabase(_ context.Context, q notion.Query) ([]notion.Page, error) {
	f.queries = append(f.queries, q)
	pages := f.pages
	if q.Limit > 0 && len(pages) > q.Limit {
		pages = pages[:q.Limit]
	}
	return pages, nil
}

func (f *fakeStore) GetPage(_ context.Context, pageID string) (*notion.Page, error) {
	for _, p := range f.pages {
		if p.ID == pageID {
			p := p
			return &p, nil
		}
	}
	return nil, notion.ErrNotFound
}

func (f *fakeStore) ListBlocks(_ context.Context, pageID string) ([]domain.ContentBlock, error) {
	if err := f.blocksErr[pageID]; err != nil {
		return nil, err
	}
	return f.blocks[pageID], nil
}

func (f *fakeStore) UpdateProperties(_ context.Context, pageID string, patch notion.PropertyPatch) error {
	if err := f.updateErr[pageID]; err != nil {
		return err
	}
	f.patches[pageID] = patch
	return nil
}

func (f *fakeStore) CreateComment(_ context.Context, pageID, text string) error {
	if f.commentErr != nil {
		return f.commentErr
	}
	f.comments[pageID] = text
	return nil
}

type fakeKit struct {
	requests []kit.BroadcastRequest
	err      error
	nextID   int

	stats     map[string]domain.StatsSnapshot
	statsErr  error
	clicks    map[string][]stats.LinkClicks
	clicksErr error
}

func (f *fakeKit) CreateBroadcast(_ context.Context, br kit.BroadcastRequest) (string, error) {
	f.requests = append(f.requests, br)
	if f.err != nil {
		return "", f.err
	}
	f.nextID++
	return "b" + string(rune('0'+f.nextID)), nil
}

func (f *fakeKit) GetBroadcastStats(_ context.Context, id string) (domain.StatsSnapshot, error) {
	if f.statsErr != nil {
		return domain.StatsSnapshot{}, f.statsErr
	}
	s, ok := f.stats[id]
	if !ok {
		return domain.StatsSnapshot{}, kit.ErrEmptyStats
	}
	return s, nil
}

func (f *fakeKit) GetBroadcastClicks(_ context.Context, id string) ([]stats.LinkClicks, error) {
	if f.clicksErr != nil {
		return nil, f.clicksErr
	}
	return f.clicks[id], nil
}

type fakeDirectory struct {
	tags     map[string]int64
	segments map[string]int64
}

func (f *fakeDirectory) TagID(_ context.Context, name string) (int64, bool, error) {
	id, ok := f.tags[strings.ToLower(name)]
	return id, ok, nil
}

func (f *fakeDirectory) SegmentID(_ context.Context, name string) (int64, bool, error) {
	id, ok := f.segments[strings.ToLower(name)]
	return id, ok, nil
}

// cachingDirectory snapshots tags on first use, like kit.Directory.
type cachingDirectory struct {
	listing map[string]int64
	cache   map[string]int64
}

func (c *cachingDirectory) TagID(_ context.Context, name string) (int64, bool, error) {
	if c.cache == nil {
		c.cache = make(map[string]int64, len(c.listing))
		for k, v := range c.listing {
			c.cache[k] = v
		}
	}
	id, ok := c.cache[strings.ToLower(name)]
	return id, ok, nil
}

func (c *cachingDirectory) SegmentID(context.Context, string) (int64, bool, error) {
	return 0, false, nil
}

func (c *cachingDirectory) Reset() { c.cache = nil }

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (f *fakeNotifier) Notify(_ context.Context, a alert.Alert) error {
	f.mu.Lock()
	f.alerts = append(f.alerts, a)
	f.mu.Unlock()
	return nil
}

// brokenLedger fails every RecordSend.
type brokenLedger struct {
	*ledger.Memory
}

func (b brokenLedger) RecordSend(context.Context, ledger.SendRecord) error {
	return errBoom
}

// Page builders.

func titleProp(s string) notion.Property {
	return notion.Property{Type: "title", Title: []notion.RichText{{PlainText: s}}}
}

func textProp(s string) notion.Property {
	return notion.Property{Type: "rich_text", RichText: []notion.RichText{{PlainText: s}}}
}

func dateProp(s string) notion.Property {
	return notion.Property{Type: "date", Date: &notion.DateRange{Start: s}}
}

func multiProp(names ...string) notion.Property {
	opts := make([]notion.SelectOption, 0, len(names))
	for _, n := range names {
		opts = append(opts, notion.SelectOption{Name: n})
	}
	return notion.Property{Type: "multi_select", MultiSelect: opts}
}

func page(id string, props notion.Properties) notion.Page {
	return notion.Page{ID: id, Properties: props}
}

func textBlock(kind domain.BlockKind, text string) domain.ContentBlock {
	return domain.ContentBlock{Kind: kind, Spans: []domain.TextSpan{{Text: text}}}
}

func sampleBlocks() []domain.ContentBlock {
	return []domain.ContentBlock{
		textBlock(domain.BlockParagraph, "Hello"),
		textBlock(domain.BlockBulletedItem, "A"),
		textBlock(domain.BlockBulletedItem, "B"),
		textBlock(domain.BlockParagraph, "End"),
	}
}
