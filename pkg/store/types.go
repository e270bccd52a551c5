// Package store implements the Fingerprint/Product Store component (C2): a
// durable mapping from (source, platform, job key) to (fingerprint, product
// list), a reverse product→source index, and an append-only job history with
// a "latest" flag per (source, platform, builder, job key) tuple.
package store

// SourceKey identifies a build unit. Comparison is case-insensitive (the
// store's schema declares source_path/platform/job_key COLLATE NOCASE), but
// the stored casing of SourcePath is always preserved exactly since some
// downstream consumers are case-sensitive.
type SourceKey struct {
	SourcePath string
	Platform   string
	JobKey     string
}

// Fingerprint is a 32-bit value summarizing a build unit's inputs.
type Fingerprint uint32

const (
	// FingerprintAbsent is the sentinel meaning "no record" — never a real
	// fingerprint.
	FingerprintAbsent Fingerprint = 0
	// FingerprintFailed is the sentinel meaning "failed build, retry next
	// time". It collides with any real fingerprint that happens to compute
	// to 1; this is preserved from the source system rather than guessed
	// around (see DESIGN.md).
	FingerprintFailed Fingerprint = 1
)

// Absent reports whether the fingerprint means "no record".
func (f Fingerprint) Absent() bool { return f == FingerprintAbsent }

// Failed reports whether the fingerprint is the failed-build sentinel.
func (f Fingerprint) Failed() bool { return f == FingerprintFailed }

// ProductEntry is a single product file belonging to a SourceKey, given as a
// path relative to the platform cache root.
type ProductEntry struct {
	RelPath string
}

// JobStatus enumerates the lifecycle states of a JobRecord.
type JobStatus string

const (
	JobQueued            JobStatus = "queued"
	JobInProgress        JobStatus = "in-progress"
	JobCompleted         JobStatus = "completed"
	JobFailed            JobStatus = "failed"
	JobFailedPathTooLong JobStatus = "failed-path-too-long"
	JobCancelled         JobStatus = "cancelled"
)

// JobRecord is a historical entry for one build attempt.
type JobRecord struct {
	JobID     int64
	Source    SourceKey
	BuilderID string
	Status    JobStatus
	Latest    bool
}
