package artifact

import (
	"archive/zip"
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreSaveAndArchive(t *testing.T) {
	fs := NewFileStore(t.TempDir(), slog.Default())

	if err := fs.Save("session-1", "invoice-a.pdf", []byte("%PDF-1.4 a")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := fs.Save("session-1", "invoice-b.pdf", []byte("%PDF-1.4 b")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := fs.Save("session-2", "other.pdf", []byte("%PDF-1.4 c")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := fs.Archive("session-1")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("zip holds %d files, want 2", len(zr.File))
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["invoice-a.pdf"] || !names["invoice-b.pdf"] {
		t.Errorf("zip entries = %v", names)
	}
}

func TestFileStoreArchiveUnknownSession(t *testing.T) {
	fs := NewFileStore(t.TempDir(), slog.Default())
	if _, err := fs.Archive("nope"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestFileStoreSanitizesNames(t *testing.T) {
	base := t.TempDir()
	fs := NewFileStore(base, slog.Default())

	if err := fs.Save("../../etc", "../passwd.pdf", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Nothing may land outside the storage root.
	if _, err := os.Stat(filepath.Join(base, "..", "..", "etc")); err == nil {
		t.Fatal("artifact escaped the storage root")
	}
	entries, err := os.ReadDir(base)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %v, err = %v", entries, err)
	}
}

func TestFileStoreKeepsDuplicateFilenames(t *testing.T) {
	base := t.TempDir()
	fs := NewFileStore(base, slog.Default())

	if err := fs.Save("session-1", "invoice.pdf", []byte("first")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := fs.Save("session-1", "invoice.pdf", []byte("second")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(base, "session-1"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 distinct artifacts", len(entries))
	}
}

func TestFileStorePurgeExpired(t *testing.T) {
	base := t.TempDir()
	fs := NewFileStore(base, slog.Default())

	if err := fs.Save("old-session", "a.pdf", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	stale := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(base, "old-session"), stale, stale); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	if err := fs.Save("fresh-session", "b.pdf", []byte("y")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	removed, err := fs.PurgeExpired(time.Hour)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(filepath.Join(base, "fresh-session")); err != nil {
		t.Errorf("fresh session was purged: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "old-session")); !os.IsNotExist(err) {
		t.Errorf("old session survived: %v", err)
	}
}
