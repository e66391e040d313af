// Package snapshot provides the export sinks for topology snapshots.
package snapshot

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"NetTopoScope/internal/model"
)

// SummaryData holds the metadata written next to a snapshot file.
type SummaryData struct {
	Seq        uint64 `json:"seq"`
	TotalNodes int    `json:"total_nodes"`
	TotalEdges int    `json:"total_edges"`
	Timestamp  string `json:"timestamp"`
}

// TextWriter persists each snapshot as a JSON file in a timestamped
// directory under the configured root.
type TextWriter struct {
	rootPath string
}

// NewTextWriter creates a new text writer.
func NewTextWriter(rootPath string) model.Writer {
	return &TextWriter{rootPath: rootPath}
}

func (w *TextWriter) Name() string { return "text" }

// Write serializes the snapshot and its summary to disk.
func (w *TextWriter) Write(snap *model.TopologySnapshot) error {
	dir := filepath.Join(w.rootPath, time.Now().Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	snapPath := filepath.Join(dir, fmt.Sprintf("topology_%d.json", snap.Seq))
	file, err := os.Create(snapPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", snapPath, err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot to json: %w", err)
	}

	summary := SummaryData{
		Seq:        snap.Seq,
		TotalNodes: len(snap.Nodes),
		TotalEdges: len(snap.Edges),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	summaryPath := filepath.Join(dir, "summary.json")
	summaryFile, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	senc := json.NewEncoder(summaryFile)
	senc.SetIndent("", "  ")
	if err := senc.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	return nil
}

func (w *TextWriter) Close() error {
	log.Printf("Text writer closed, snapshots under %s", w.rootPath)
	return nil
}
