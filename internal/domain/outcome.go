package domain

// Outcome is the per-document result of one job run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	// OutcomePartial means an irreversible side effect happened (the broadcast
	// was created) but the store write-back did not.
	OutcomePartial Outcome = "partial"
)

// JobName identifies a batch job.
type JobName string

const (
	JobSend     JobName = "send"
	JobStats    JobName = "stats"
	JobCarousel JobName = "carousel"
)

// Valid reports whether j names a known job.
func (j JobName) Valid() bool {
	switch j {
	case JobSend, JobStats, JobCarousel:
		return true
	}
	return false
}
