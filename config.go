package arena

import "time"

// Config holds service-level configuration shared by the engine, the
// document library, and the janitor.
type Config struct {
	// JobsDir is where the file-backed job store keeps its records.
	JobsDir string

	// DocumentsDir is where uploaded documents are stored.
	DocumentsDir string

	// MaxDocumentSize caps a single document upload, in bytes.
	MaxDocumentSize int64

	// Retention is how long terminal job records are kept before the
	// janitor removes them.
	Retention time.Duration

	// SweepSchedule is the cron expression for the janitor's sweep.
	SweepSchedule string

	// Listen is the HTTP listen address for the API server.
	Listen string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		JobsDir:         "./data/jobs",
		DocumentsDir:    "./data/documents",
		MaxDocumentSize: 10 << 20, // 10 MiB
		Retention:       7 * 24 * time.Hour,
		SweepSchedule:   "@hourly",
		Listen:          ":8080",
	}
}
