package errorlog

import (
	"fmt"
	"log/slog"

	"github.com/altafino/invoice-analyzer/internal/types"
)

// Manager handles analysis failure logging operations
type Manager struct {
	cfg    *types.Config
	logger *slog.Logger
	impl   Logger
}

// NewManager creates a new failure logging manager
func NewManager(cfg *types.Config, logger *slog.Logger) (*Manager, error) {
	if !cfg.Analysis.FailureLog.Enabled {
		logger.Debug("analysis failure logging is disabled")
		return &Manager{
			cfg:    cfg,
			logger: logger,
			impl:   &noopLogger{},
		}, nil
	}

	impl, err := NewFileLogger(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize failure logger: %w", err)
	}

	return &Manager{
		cfg:    cfg,
		logger: logger,
		impl:   impl,
	}, nil
}

// LogError records an analysis failure
func (m *Manager) LogError(err AnalysisError) error {
	if err.ConfigID == "" {
		err.ConfigID = m.cfg.Meta.ID
	}

	m.logger.Debug("logging analysis failure",
		"reason", err.Reason,
		"job_id", err.JobID,
		"filename", err.Filename,
		"config_id", err.ConfigID)

	return m.impl.LogError(err)
}

// GetErrors retrieves failures based on filters
func (m *Manager) GetErrors(filters map[string]string) ([]AnalysisError, error) {
	return m.impl.GetErrors(filters)
}

// CleanupOldErrors removes failures older than the retention period
func (m *Manager) CleanupOldErrors() error {
	return m.impl.CleanupOldErrors()
}

// Close releases any resources used by the logger
func (m *Manager) Close() error {
	return m.impl.Close()
}

// noopLogger is a no-operation implementation of Logger for when logging is disabled
type noopLogger struct{}

func (n *noopLogger) LogError(err AnalysisError) error                             { return nil }
func (n *noopLogger) GetErrors(filters map[string]string) ([]AnalysisError, error) { return nil, nil }
func (n *noopLogger) CleanupOldErrors() error                                      { return nil }
func (n *noopLogger) Close() error                                                 { return nil }
