package constants

// JobStatus is the canonical lifecycle state for a receipt job.
type JobStatus string

// Stable values (store these exact strings in the database).
const (
	JobStatusPending    JobStatus = "PENDING"    // waiting for a worker
	JobStatusProcessing JobStatus = "PROCESSING" // held by a worker
	JobStatusCompleted  JobStatus = "COMPLETED"  // terminal success
	JobStatusFailed     JobStatus = "FAILED"     // terminal failure
)

// Terminal reports whether s is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
