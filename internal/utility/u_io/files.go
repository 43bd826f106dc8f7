// Package u_io holds filename hygiene helpers for artifacts written to disk.
package u_io

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanFilename reduces an attachment filename from the wire to a safe
// character set. Path separators and anything outside the allowed set
// become underscores, so the result can never leave its directory.
func CleanFilename(filename string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_' || r == ' ':
			return r
		default:
			return '_'
		}
	}, filename)

	return strings.TrimSpace(cleaned)
}

// EnsureUniqueFilename returns path, or a numbered variant of it when a file
// already exists there. Sessions that store several attachments with the
// same name keep all of them.
func EnsureUniqueFilename(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	for i := 1; i < 1000; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}

	// A thousand collisions on one name; fall back to a timestamp.
	return fmt.Sprintf("%s_%d%s", base, time.Now().UnixNano(), ext)
}
