package stats

import "strings"

// LinkClicks is the click count for one link in a broadcast.
type LinkClicks struct {
	URL          string
	UniqueClicks int
}

// DefaultExcludedPatterns identify links that are not part of the email's
// content: list management, provider-hosted pages and affiliate
// placeholders the provider failed to render.
var DefaultExcludedPatterns = []string{
	"unsubscribe",
	"/preferences",
	"manage-subscription",
	"kit.com/",
	"convertkit.com/",
	"ck.page/",
	"{{",
	"%7B%7B",
}

// IsContentLink reports whether url matches none of the excluded patterns.
// Matching is case-insensitive substring matching.
func IsContentLink(url string, excluded []string) bool {
	u := strings.ToLower(url)
	for _, p := range excluded {
		if p == "" {
			continue
		}
		if strings.Contains(u, strings.ToLower(p)) {
			return false
		}
	}
	return true
}

// ContentClicks sums unique clicks over content links. Unique is the only
// per-link count Kit reports, so this is a count of distinct clickers per
// link, not of every click. A nil or empty pattern list uses
// DefaultExcludedPatterns.
func ContentClicks(links []LinkClicks, excluded []string) int {
	if len(excluded) == 0 {
		excluded = DefaultExcludedPatterns
	}
	total := 0
	for _, l := range links {
		if IsContentLink(l.URL, excluded) {
			total += l.UniqueClicks
		}
	}
	return total
}
