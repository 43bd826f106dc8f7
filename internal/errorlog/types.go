package errorlog

import (
	"time"
)

// AnalysisError represents a failure that occurred while processing one
// attachment or resolving one email during an analysis job.
type AnalysisError struct {
	ID        string    `json:"id"`
	ConfigID  string    `json:"config_id"`
	JobID     string    `json:"job_id"`
	SessionID string    `json:"session_id"`
	EmailID   string    `json:"email_id"`
	Filename  string    `json:"filename,omitempty"`
	Reason    string    `json:"reason"`
	ErrorMsg  string    `json:"error_message"`
	ErrorTime time.Time `json:"error_time"`
}

// Logger defines the interface for analysis failure logging
type Logger interface {
	// LogError records an analysis failure
	LogError(err AnalysisError) error

	// GetErrors retrieves failures based on filters
	GetErrors(filters map[string]string) ([]AnalysisError, error)

	// CleanupOldErrors removes failures older than the retention period
	CleanupOldErrors() error

	// Close releases any resources used by the logger
	Close() error
}
