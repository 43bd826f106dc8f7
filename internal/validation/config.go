package validation

import (
	"fmt"
	"path/filepath"

	"github.com/altafino/invoice-analyzer/internal/types"
)

// ValidateConfig performs validation on a single configuration
func ValidateConfig(cfg *types.Config) error {
	if err := validateMeta(cfg); err != nil {
		return fmt.Errorf("meta validation failed: %w", err)
	}

	if err := validateServer(cfg); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}

	if err := validateProviders(cfg); err != nil {
		return fmt.Errorf("providers validation failed: %w", err)
	}

	if err := validateAnalysis(cfg); err != nil {
		return fmt.Errorf("analysis validation failed: %w", err)
	}

	if err := validateArtifacts(cfg); err != nil {
		return fmt.Errorf("artifacts validation failed: %w", err)
	}

	if err := validateSecurity(cfg); err != nil {
		return fmt.Errorf("security validation failed: %w", err)
	}

	if err := validateLogging(cfg); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	return nil
}

func validateMeta(cfg *types.Config) error {
	if cfg.Meta.ID == "" {
		return fmt.Errorf("meta.id is required")
	}

	if !isValidID(cfg.Meta.ID) {
		return fmt.Errorf("meta.id contains invalid characters (use only alphanumeric, dash, underscore)")
	}

	if cfg.Meta.Name == "" {
		return fmt.Errorf("meta.name is required")
	}

	return nil
}

func validateServer(cfg *types.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if cfg.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if cfg.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func validateProviders(cfg *types.Config) error {
	if cfg.Providers.Timeout <= 0 {
		return fmt.Errorf("providers.timeout must be positive")
	}

	if cfg.Providers.MaxResults <= 0 {
		return fmt.Errorf("providers.max_results must be positive")
	}

	// IMAP settings are optional; when a server is given the rest must be
	// coherent.
	if cfg.Providers.IMAP.Server != "" {
		if cfg.Providers.IMAP.DefaultPort <= 0 || cfg.Providers.IMAP.DefaultPort > 65535 {
			return fmt.Errorf("providers.imap.default_port must be between 1 and 65535")
		}
		if cfg.Providers.IMAP.Username == "" {
			return fmt.Errorf("providers.imap.username is required when an IMAP server is configured")
		}
	}

	return nil
}

func validateAnalysis(cfg *types.Config) error {
	if cfg.Analysis.MaxConcurrent <= 0 {
		return fmt.Errorf("analysis.max_concurrent must be positive")
	}

	if cfg.Analysis.UnitTimeout <= 0 {
		return fmt.Errorf("analysis.unit_timeout must be positive")
	}

	if cfg.Analysis.MaxSize <= 0 {
		return fmt.Errorf("analysis.max_size must be positive")
	}

	if cfg.Analysis.JobRetention <= 0 {
		return fmt.Errorf("analysis.job_retention must be positive")
	}

	if cfg.Analysis.FailureLog.Enabled {
		if cfg.Analysis.FailureLog.StoragePath == "" {
			return fmt.Errorf("analysis.failure_log.storage_path is required when the failure log is enabled")
		}
		if cfg.Analysis.FailureLog.RetentionDays < 0 {
			return fmt.Errorf("analysis.failure_log.retention_days must not be negative")
		}
	}

	return nil
}

func validateArtifacts(cfg *types.Config) error {
	switch cfg.Artifacts.StorageType {
	case "", "file":
		if cfg.Artifacts.StoragePath != "" && !filepath.IsAbs(cfg.Artifacts.StoragePath) {
			return fmt.Errorf("artifacts.storage_path must be absolute")
		}
	case "gdrive":
		if cfg.Artifacts.CredentialsFile == "" {
			return fmt.Errorf("artifacts.credentials_file is required when storage_type is 'gdrive'")
		}
		if cfg.Artifacts.ParentFolderID == "" {
			return fmt.Errorf("artifacts.parent_folder_id is required when storage_type is 'gdrive'")
		}
	default:
		return fmt.Errorf("artifacts.storage_type must be 'file' or 'gdrive'")
	}

	if cfg.Artifacts.Retention <= 0 {
		return fmt.Errorf("artifacts.retention must be positive")
	}

	if cfg.Artifacts.CleanupInterval <= 0 {
		return fmt.Errorf("artifacts.cleanup_interval must be positive")
	}

	return nil
}

func validateSecurity(cfg *types.Config) error {
	if cfg.Security.CORS.Enabled {
		if len(cfg.Security.CORS.AllowedOrigins) == 0 {
			return fmt.Errorf("security.cors.allowed_origins must not be empty when CORS is enabled")
		}
		if len(cfg.Security.CORS.AllowedMethods) == 0 {
			return fmt.Errorf("security.cors.allowed_methods must not be empty when CORS is enabled")
		}
	}

	return nil
}

func validateLogging(cfg *types.Config) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
		"dev":  true,
	}

	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: text, json, dev")
	}

	return nil
}

func isValidID(id string) bool {
	for _, r := range id {
		if !isValidIDChar(r) {
			return false
		}
	}
	return true
}

func isValidIDChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '-' ||
		r == '_'
}
