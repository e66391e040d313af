// Package identity manages a client's stable 16-byte node id, persisted to
// a file so the identity survives restarts.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"NetTopoScope/internal/model"
)

// LoadOrCreate reads a node id from the given path, generating and
// persisting a fresh UUID if the file is absent or unparseable.
func LoadOrCreate(path string) (model.NodeID, error) {
	var id model.NodeID

	if raw, err := os.ReadFile(path); err == nil {
		if parsed, err := uuid.Parse(strings.TrimSpace(string(raw))); err == nil {
			copy(id[:], parsed[:])
			return id, nil
		}
	}

	fresh := uuid.New()
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return id, fmt.Errorf("failed to create identity directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(fresh.String()+"\n"), 0644); err != nil {
		return id, fmt.Errorf("failed to persist node id: %w", err)
	}
	copy(id[:], fresh[:])
	return id, nil
}
