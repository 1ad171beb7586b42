package render

import "github.com/ignite/kitsync/internal/domain"

const (
	openBulleted  = "<ul>"
	closeBulleted = "</ul>"
	openNumbered  = "<ol>"
	closeNumbered = "</ol>"
)

// ListTracker inserts list container markers as the block stream moves
// between bulleted items, numbered items and everything else. It mutates the
// OpenList field of the RenderState it was created with.
type ListTracker struct {
	state *domain.RenderState
}

// NewListTracker binds a tracker to the render state of one pass.
func NewListTracker(state *domain.RenderState) *ListTracker {
	return &ListTracker{state: state}
}

// Enter returns the markers to emit before a block of the given kind. When
// switching list types the close marker always precedes the open marker.
func (t *ListTracker) Enter(kind domain.BlockKind) []string {
	var want domain.ListKind
	switch kind {
	case domain.BlockBulletedItem:
		want = domain.ListBulleted
	case domain.BlockNumberedItem:
		want = domain.ListNumbered
	default:
		want = domain.ListNone
	}

	if t.state.OpenList == want {
		return nil
	}

	var markers []string
	if c := closeMarker(t.state.OpenList); c != "" {
		markers = append(markers, c)
	}
	if o := openMarker(want); o != "" {
		markers = append(markers, o)
	}
	t.state.OpenList = want
	return markers
}

// Flush closes any list still open at the end of the stream.
func (t *ListTracker) Flush() []string {
	c := closeMarker(t.state.OpenList)
	t.state.OpenList = domain.ListNone
	if c == "" {
		return nil
	}
	return []string{c}
}

func openMarker(k domain.ListKind) string {
	switch k {
	case domain.ListBulleted:
		return openBulleted
	case domain.ListNumbered:
		return openNumbered
	}
	return ""
}

func closeMarker(k domain.ListKind) string {
	switch k {
	case domain.ListBulleted:
		return closeBulleted
	case domain.ListNumbered:
		return closeNumbered
	}
	return ""
}
