package u_io

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCleanFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"invoice.pdf", "invoice.pdf"},
		{"../escape.pdf", ".._escape.pdf"},
		{"dir/sub\\file.pdf", "dir_sub_file.pdf"},
		{" padded.pdf ", "padded.pdf"},
		{"a b-c_d.pdf", "a b-c_d.pdf"},
	}
	for _, tt := range tests {
		if got := CleanFilename(tt.in); got != tt.want {
			t.Errorf("CleanFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanFilenameNeverContainsSeparators(t *testing.T) {
	for _, in := range []string{"/etc/passwd", "..\\..\\x.pdf", "a/b/c"} {
		got := CleanFilename(in)
		if strings.ContainsAny(got, `/\`) {
			t.Errorf("CleanFilename(%q) = %q still holds a separator", in, got)
		}
	}
}

func TestEnsureUniqueFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invoice.pdf")

	if got := EnsureUniqueFilename(path); got != path {
		t.Fatalf("fresh path renamed to %q", got)
	}

	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got := EnsureUniqueFilename(path)
	if got != filepath.Join(dir, "invoice_1.pdf") {
		t.Errorf("second path = %q, want invoice_1.pdf", got)
	}
}
