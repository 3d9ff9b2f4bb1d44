// Package file provides a file-based manifest sink.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stagerun/stagerun/pkg/manifest"
	"github.com/stagerun/stagerun/pkg/models"
)

// Sink writes one JSON document per run under <root>/manifests.
type Sink struct {
	root string
}

// NewSink creates a file sink rooted at the given directory.
func NewSink(root string) manifest.Sink {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Sink{root: cleanRoot}
}

func (s *Sink) Save(_ context.Context, m *models.RunManifest) error {
	dir := filepath.Join(s.root, "manifests")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory %s: %w", dir, err)
	}

	payload, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest for run %s: %w", m.RunID, err)
	}

	path := filepath.Join(dir, m.RunID+".json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}

	return nil
}
