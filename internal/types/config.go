package types

// Config represents the application configuration
type Config struct {
	// Meta information for the configuration
	Meta struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description,omitempty"`
		Enabled     bool   `yaml:"enabled"`
		Template    string `yaml:"template,omitempty"` // Name of the template to use
	} `yaml:"meta"`

	Server struct {
		Port         int    `yaml:"port"`
		Host         string `yaml:"host"`
		ReadTimeout  int    `yaml:"read_timeout"`
		WriteTimeout int    `yaml:"write_timeout"`
		IdleTimeout  int    `yaml:"idle_timeout"`
		BodyLimit    string `yaml:"body_limit"`
	} `yaml:"server"`

	Providers struct {
		// IMAP settings apply only to the "imap" provider tag; the REST
		// providers need nothing beyond the per-request credential.
		IMAP struct {
			Server      string `yaml:"server"`
			DefaultPort int    `yaml:"default_port"`
			Username    string `yaml:"username"`
			BatchSize   int    `yaml:"batch_size"`
			TLS         struct {
				Enabled    bool `yaml:"enabled"`
				VerifyCert bool `yaml:"verify_cert"`
			} `yaml:"tls"`
		} `yaml:"imap"`
		Graph struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"graph"`
		// OAuth client settings are only needed for RefreshCredential;
		// search and fetch work with the bearer token alone.
		OAuth struct {
			Google struct {
				ClientID     string `yaml:"client_id"`
				ClientSecret string `yaml:"client_secret"`
			} `yaml:"google"`
			Microsoft struct {
				ClientID     string `yaml:"client_id"`
				ClientSecret string `yaml:"client_secret"`
			} `yaml:"microsoft"`
		} `yaml:"oauth"`
		Timeout    int `yaml:"timeout"`     // seconds, per provider call
		MaxResults int `yaml:"max_results"` // search page size
	} `yaml:"providers"`

	Analysis struct {
		MaxConcurrent int   `yaml:"max_concurrent"` // worker pool size
		UnitTimeout   int   `yaml:"unit_timeout"`   // seconds per attachment unit
		MaxSize       int64 `yaml:"max_size"`       // attachment byte ceiling
		JobRetention  int   `yaml:"job_retention"`  // minutes before finished jobs expire
		FailureLog    struct {
			Enabled       bool   `yaml:"enabled"`
			StoragePath   string `yaml:"storage_path"`
			RetentionDays int    `yaml:"retention_days"`
		} `yaml:"failure_log"`
	} `yaml:"analysis"`

	Artifacts struct {
		StorageType     string `yaml:"storage_type"` // file or gdrive
		StoragePath     string `yaml:"storage_path"`
		CredentialsFile string `yaml:"credentials_file,omitempty"`
		ParentFolderID  string `yaml:"parent_folder_id,omitempty"`
		Retention       int    `yaml:"retention"`        // minutes before session artifacts are purged
		CleanupInterval int    `yaml:"cleanup_interval"` // minutes between purge runs
	} `yaml:"artifacts"`

	Security struct {
		CORS struct {
			Enabled        bool     `yaml:"enabled"`
			AllowedOrigins []string `yaml:"allowed_origins"`
			AllowedMethods []string `yaml:"allowed_methods"`
		} `yaml:"cors"`
	} `yaml:"security"`

	Logging struct {
		Level           string `yaml:"level"`
		Format          string `yaml:"format"` // json, text or dev
		IncludeCaller   bool   `yaml:"include_caller"`
		RedactSensitive bool   `yaml:"redact_sensitive"`
	} `yaml:"logging"`
}
