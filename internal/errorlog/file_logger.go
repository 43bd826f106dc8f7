package errorlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/altafino/invoice-analyzer/internal/types"
	"github.com/google/uuid"
)

// FileLogger implements the Logger interface using the filesystem
type FileLogger struct {
	cfg         *types.Config
	logger      *slog.Logger
	storagePath string
	mu          sync.Mutex
}

// NewFileLogger creates a new file-based failure logger
func NewFileLogger(cfg *types.Config, logger *slog.Logger) (*FileLogger, error) {
	storagePath := cfg.Analysis.FailureLog.StoragePath

	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create failure log directory: %w", err)
	}

	return &FileLogger{
		cfg:         cfg,
		logger:      logger,
		storagePath: storagePath,
	}, nil
}

// LogError records an analysis failure to a JSON file
func (f *FileLogger) LogError(err AnalysisError) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err.ID == "" {
		err.ID = uuid.New().String()
	}
	if err.ErrorTime.IsZero() {
		err.ErrorTime = time.Now().UTC()
	}

	// One file per config and day (failures_configid_YYYY-MM-DD.json)
	dateStr := time.Now().UTC().Format("2006-01-02")
	filename := fmt.Sprintf("failures_%s_%s.json", err.ConfigID, dateStr)
	filePath := filepath.Join(f.storagePath, filename)

	var entries []AnalysisError
	if _, fileErr := os.Stat(filePath); fileErr == nil {
		data, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return fmt.Errorf("failed to read failure log file: %w", readErr)
		}
		if unmarshalErr := json.Unmarshal(data, &entries); unmarshalErr != nil {
			f.logger.Warn("failure log file exists but couldn't be parsed, creating new file",
				"file", filePath,
				"error", unmarshalErr)
			entries = []AnalysisError{}
		}
	}

	entries = append(entries, err)

	data, jsonErr := json.MarshalIndent(entries, "", "  ")
	if jsonErr != nil {
		return fmt.Errorf("failed to marshal failure log: %w", jsonErr)
	}

	if writeErr := os.WriteFile(filePath, data, 0644); writeErr != nil {
		return fmt.Errorf("failed to write failure log file: %w", writeErr)
	}

	f.logger.Debug("logged analysis failure",
		"failure_id", err.ID,
		"job_id", err.JobID,
		"reason", err.Reason,
		"file", filePath)

	return nil
}

// GetErrors retrieves failures based on filters
func (f *FileLogger) GetErrors(filters map[string]string) ([]AnalysisError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var allEntries []AnalysisError

	files, err := os.ReadDir(f.storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read failure log directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		filePath := filepath.Join(f.storagePath, file.Name())
		data, err := os.ReadFile(filePath)
		if err != nil {
			f.logger.Warn("failed to read failure log file",
				"file", filePath,
				"error", err)
			continue
		}

		var fileEntries []AnalysisError
		if err := json.Unmarshal(data, &fileEntries); err != nil {
			f.logger.Warn("failed to parse failure log file",
				"file", filePath,
				"error", err)
			continue
		}

		allEntries = append(allEntries, fileEntries...)
	}

	if len(filters) == 0 {
		return allEntries, nil
	}

	var filtered []AnalysisError
	for _, entry := range allEntries {
		match := true

		for key, value := range filters {
			switch key {
			case "config_id":
				if entry.ConfigID != value {
					match = false
				}
			case "job_id":
				if entry.JobID != value {
					match = false
				}
			case "session_id":
				if entry.SessionID != value {
					match = false
				}
			case "email_id":
				if entry.EmailID != value {
					match = false
				}
			case "reason":
				if entry.Reason != value {
					match = false
				}
			}

			if !match {
				break
			}
		}

		if match {
			filtered = append(filtered, entry)
		}
	}

	return filtered, nil
}

// CleanupOldErrors removes failures older than the retention period
func (f *FileLogger) CleanupOldErrors() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	retentionDays := f.cfg.Analysis.FailureLog.RetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}

	cutoffTime := time.Now().UTC().AddDate(0, 0, -retentionDays)
	f.logger.Debug("cleaning up old failure logs",
		"retention_days", retentionDays,
		"cutoff_date", cutoffTime.Format("2006-01-02"))

	files, err := os.ReadDir(f.storagePath)
	if err != nil {
		return fmt.Errorf("failed to read failure log directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		// Extract the date part from failures_configid_YYYY-MM-DD.json
		name := file.Name()
		var fileDate time.Time
		if len(name) > 10 {
			for i := 0; i <= len(name)-10; i++ {
				if parsed, parseErr := time.Parse("2006-01-02", name[i:i+10]); parseErr == nil {
					fileDate = parsed
					break
				}
			}
		}

		// Fall back to the file modification time
		if fileDate.IsZero() {
			fileInfo, statErr := file.Info()
			if statErr != nil {
				f.logger.Warn("failed to get file info",
					"file", name,
					"error", statErr)
				continue
			}
			fileDate = fileInfo.ModTime()
		}

		if fileDate.Before(cutoffTime) {
			filePath := filepath.Join(f.storagePath, name)
			if err := os.Remove(filePath); err != nil {
				f.logger.Warn("failed to delete old failure log file",
					"file", filePath,
					"error", err)
				continue
			}
			f.logger.Debug("deleted old failure log file",
				"file", filePath,
				"date", fileDate.Format("2006-01-02"))
		}
	}

	return nil
}

// Close implements the Logger interface
func (f *FileLogger) Close() error {
	return nil
}
