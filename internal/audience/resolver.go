// Package audience resolves a document's symbolic audience into a provider
// recipient filter.
package audience

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/pkg/logger"
)

// EveryoneLabel is the segment label meaning "all subscribers".
const EveryoneLabel = "Everyone"

// Directory looks up provider tag and segment ids by name. Matching is
// case-insensitive and exact. found is false when no entry matches.
type Directory interface {
	TagID(ctx context.Context, name string) (id int64, found bool, err error)
	SegmentID(ctx context.Context, name string) (id int64, found bool, err error)
}

// Resolver turns an AudienceSpec into a RecipientFilter.
type Resolver struct {
	Directory Directory
	TestMode  bool
	TestEmail string
}

// Refresh drops anything the Directory has cached, if it caches. Call it at
// the start of each run so long-lived processes see renamed tags.
func (r *Resolver) Refresh() {
	if d, ok := r.Directory.(interface{ Reset() }); ok {
		d.Reset()
	}
}

// Resolve applies, in order: test mode, everyone, named segments. Each name is
// tried as a tag first and then as a segment. Unmatched names are logged and
// dropped; if nothing matches the result is ErrNoMatchingAudience. Directory
// errors are returned as-is wrapped with the failing name.
func (r *Resolver) Resolve(ctx context.Context, spec domain.AudienceSpec) (domain.RecipientFilter, error) {
	if r.TestMode || spec.Mode == domain.AudienceTestOverride {
		email := strings.TrimSpace(r.TestEmail)
		if email == "" {
			return domain.RecipientFilter{}, ErrNoTestEmail
		}
		return domain.RecipientFilter{Kind: domain.FilterTestEmail, Email: email}, nil
	}

	names := cleanNames(spec.Names)
	if spec.Mode == domain.AudienceEveryone || len(names) == 0 {
		return domain.RecipientFilter{Kind: domain.FilterEveryone}, nil
	}

	var tagIDs, segmentIDs []int64
	for _, name := range names {
		id, ok, err := r.Directory.TagID(ctx, name)
		if err != nil {
			return domain.RecipientFilter{}, fmt.Errorf("looking up tag %q: %w", name, err)
		}
		if ok {
			tagIDs = appendUnique(tagIDs, id)
			continue
		}

		id, ok, err = r.Directory.SegmentID(ctx, name)
		if err != nil {
			return domain.RecipientFilter{}, fmt.Errorf("looking up segment %q: %w", name, err)
		}
		if ok {
			segmentIDs = appendUnique(segmentIDs, id)
			continue
		}

		logger.Warn("audience name matched no tag or segment, skipping", "name", name)
	}

	if len(tagIDs) == 0 && len(segmentIDs) == 0 {
		return domain.RecipientFilter{}, fmt.Errorf("%w: %s", ErrNoMatchingAudience, strings.Join(names, ", "))
	}

	return domain.RecipientFilter{
		Kind:       domain.FilterConjunction,
		TagIDs:     tagIDs,
		SegmentIDs: segmentIDs,
	}, nil
}

// SpecFromSegments derives the audience from a document's segment labels.
// No labels, or any label equal to "Everyone" ignoring case, selects everyone.
func SpecFromSegments(names []string, testMode bool) domain.AudienceSpec {
	if testMode {
		return domain.AudienceSpec{Mode: domain.AudienceTestOverride}
	}
	cleaned := cleanNames(names)
	if len(cleaned) == 0 {
		return domain.AudienceSpec{Mode: domain.AudienceEveryone}
	}
	for _, n := range cleaned {
		if strings.EqualFold(n, EveryoneLabel) {
			return domain.AudienceSpec{Mode: domain.AudienceEveryone}
		}
	}
	return domain.AudienceSpec{Mode: domain.AudienceNamedSegments, Names: cleaned}
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
