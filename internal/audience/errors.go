package audience

import "errors"

var (
	// ErrNoTestEmail is returned when test mode is on but no test address is set.
	ErrNoTestEmail = errors.New("test mode is enabled but no test email is configured")

	// ErrNoMatchingAudience is returned when none of the named segments match
	// a tag or segment. The send must be refused rather than widened.
	ErrNoMatchingAudience = errors.New("no named segment matched a tag or segment")
)
