package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	fs := NewFileSession(path)

	if id, err := fs.Load(); err != nil || id != "" {
		t.Fatalf("fresh load: id=%q err=%v", id, err)
	}

	if err := fs.Save("u-1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if id, err := fs.Load(); err != nil || id != "u-1" {
		t.Fatalf("load: id=%q err=%v", id, err)
	}

	if err := fs.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if id, err := fs.Load(); err != nil || id != "" {
		t.Fatalf("cleared load: id=%q err=%v", id, err)
	}
	// Clearing an already absent session is not an error.
	if err := fs.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestFileSessionHoldsOnlyTheUserID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	fs := NewFileSession(path)
	if err := fs.Save("u-42"); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != `{"userId":"u-42"}` {
		t.Fatalf("unexpected session payload: %s", got)
	}
}

func TestFileSessionCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "session.json")
	fs := NewFileSession(path)
	if err := fs.Save("u-1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if id, err := fs.Load(); err != nil || id != "u-1" {
		t.Fatalf("load: id=%q err=%v", id, err)
	}
}
