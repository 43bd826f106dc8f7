package artifact

import (
	"archive/zip"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/altafino/invoice-analyzer/internal/utility/u_io"
)

// FileStore keeps artifacts on the local filesystem, one directory per
// session.
type FileStore struct {
	basePath string
	logger   *slog.Logger
}

func NewFileStore(basePath string, logger *slog.Logger) *FileStore {
	if basePath == "" {
		basePath = filepath.Join(os.TempDir(), "invoice-artifacts")
	}
	return &FileStore{basePath: basePath, logger: logger}
}

func (fs *FileStore) sessionDir(sessionID string) string {
	return filepath.Join(fs.basePath, sanitizeName(sessionID))
}

func (fs *FileStore) Save(sessionID, filename string, content []byte) error {
	dir := fs.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	name := u_io.CleanFilename(filename)
	if name == "" {
		name = "unnamed"
	}
	// Duplicate attachment names within a session get a numeric suffix
	// instead of overwriting each other.
	path := u_io.EnsureUniqueFilename(filepath.Join(dir, name))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	// Keep the directory mtime fresh so retention counts from last use.
	now := time.Now()
	if err := os.Chtimes(dir, now, now); err != nil {
		fs.logger.Debug("failed to touch session directory", "error", err)
	}

	fs.logger.Debug("stored artifact", "session_id", sessionID, "filename", filename, "bytes", len(content))
	return nil
}

func (fs *FileStore) Archive(sessionID string) ([]byte, error) {
	dir := fs.sessionDir(sessionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("session %s has no artifacts: %w", sessionID, err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read artifact %s: %w", entry.Name(), err)
		}
		w, err := zw.Create(entry.Name())
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(content); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (fs *FileStore) PurgeExpired(retention time.Duration) (int, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	cutoff := time.Now().Add(-retention)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(fs.basePath, entry.Name())); err != nil {
				fs.logger.Warn("failed to purge session", "session", entry.Name(), "error", err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		fs.logger.Info("purged expired artifact sessions", "count", removed)
	}
	return removed, nil
}

// sanitizeName strips path separators and traversal sequences so session
// ids and filenames from the wire cannot escape the storage root.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "unnamed"
	}
	return name
}
