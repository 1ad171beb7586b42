package domain

// AudienceMode selects how recipients are chosen for a broadcast.
type AudienceMode string

const (
	AudienceTestOverride  AudienceMode = "test_override"
	AudienceEveryone      AudienceMode = "everyone"
	AudienceNamedSegments AudienceMode = "named_segments"
)

// AudienceSpec is the symbolic audience read from a document.
type AudienceSpec struct {
	Mode  AudienceMode `json:"mode"`
	Names []string     `json:"names,omitempty"`
}

// FilterKind is the shape of a resolved recipient filter.
type FilterKind string

const (
	FilterEveryone    FilterKind = "everyone"
	FilterTestEmail   FilterKind = "test_email"
	FilterConjunction FilterKind = "conjunction"
)

// RecipientFilter is the provider-facing resolved audience. A conjunction
// filter always carries at least one tag or segment id.
type RecipientFilter struct {
	Kind       FilterKind `json:"kind"`
	Email      string     `json:"email,omitempty"`
	TagIDs     []int64    `json:"tag_ids,omitempty"`
	SegmentIDs []int64    `json:"segment_ids,omitempty"`
}

// IsEveryone reports whether the filter targets all subscribers.
func (f RecipientFilter) IsEveryone() bool {
	return f.Kind == FilterEveryone
}
