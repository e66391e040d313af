package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreatePersistsIdentity(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "identity_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "client_id.txt")

	first, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	var zero [16]byte
	if first == zero {
		t.Fatalf("generated id should not be all zeroes")
	}

	second, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if first != second {
		t.Errorf("identity did not survive a reload: %v vs %v", first, second)
	}
}

func TestLoadOrCreateReplacesGarbage(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "identity_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "client_id.txt")
	if err := os.WriteFile(path, []byte("not-a-uuid"), 0644); err != nil {
		t.Fatalf("failed to seed garbage file: %v", err)
	}

	id, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	var zero [16]byte
	if id == zero {
		t.Errorf("garbage file should be replaced by a fresh id")
	}
}
