// Package artifact stores the decoded PDFs of a session for later bulk
// download and cleans them up when the session expires.
package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/altafino/invoice-analyzer/internal/types"
)

// Store keeps session-scoped artifacts.
type Store interface {
	// Save stores one artifact under the session.
	Save(sessionID, filename string, content []byte) error

	// Archive returns the session's artifacts bundled as a ZIP.
	Archive(sessionID string) ([]byte, error)

	// PurgeExpired removes sessions untouched for longer than retention and
	// returns how many were removed.
	PurgeExpired(retention time.Duration) (int, error)
}

// StorageType selects the storage backend.
type StorageType string

const (
	StorageTypeFile   StorageType = "file"
	StorageTypeGDrive StorageType = "gdrive"
)

// NewStore creates the storage backend selected by the configuration.
func NewStore(ctx context.Context, cfg *types.Config, logger *slog.Logger) (Store, error) {
	switch StorageType(cfg.Artifacts.StorageType) {
	case StorageTypeFile, "":
		return NewFileStore(cfg.Artifacts.StoragePath, logger), nil
	case StorageTypeGDrive:
		return NewGDriveStore(ctx, logger, cfg.Artifacts.CredentialsFile, cfg.Artifacts.ParentFolderID)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Artifacts.StorageType)
	}
}
