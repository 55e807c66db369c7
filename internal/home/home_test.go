package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-quill")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-quill" {
			t.Errorf("expected path /tmp/test-quill, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-quill")

	tests := map[string]struct {
		got  string
		want string
	}{
		"ConfigPath":       {dir.ConfigPath(), "/tmp/test-quill/config.yaml"},
		"JournalPath":      {dir.JournalPath(), "/tmp/test-quill/journal.db"},
		"CreditsTokenPath": {dir.CreditsTokenPath(), "/tmp/test-quill/credits_token"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}

func TestDir_EnsureExists(t *testing.T) {
	dir, _ := New(filepath.Join(t.TempDir(), "nested", ".quill"))

	if dir.Exists() {
		t.Fatal("directory should not exist yet")
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists()")
	}
	if dir.ConfigExists() {
		t.Error("ConfigExists() = true without a config file")
	}
}

func TestDir_CreditsToken(t *testing.T) {
	dir, _ := New(filepath.Join(t.TempDir(), ".quill"))

	token, err := dir.ReadCreditsToken()
	if err != nil {
		t.Fatalf("ReadCreditsToken() error = %v", err)
	}
	if token != "" {
		t.Errorf("ReadCreditsToken() = %q, want empty", token)
	}

	if err := dir.WriteCreditsToken("abc.def"); err != nil {
		t.Fatalf("WriteCreditsToken() error = %v", err)
	}
	token, err = dir.ReadCreditsToken()
	if err != nil {
		t.Fatalf("ReadCreditsToken() error = %v", err)
	}
	if token != "abc.def" {
		t.Errorf("ReadCreditsToken() = %q, want abc.def", token)
	}

	info, err := os.Stat(dir.CreditsTokenPath())
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %v, want 0600", perm)
	}
}
