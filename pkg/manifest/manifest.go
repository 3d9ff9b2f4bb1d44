// Package manifest reports and optionally persists the run manifest.
package manifest

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/stagerun/stagerun/pkg/models"
)

// Sink persists a run manifest. Persistence is an optional collaborator:
// the orchestrator only logs the manifest when no sink is wired.
type Sink interface {
	Save(ctx context.Context, m *models.RunManifest) error
}

// Report logs the manifest before execution starts. Purely descriptive, no
// control-flow effect.
func Report(logger *slog.Logger, m *models.RunManifest) {
	payload, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		logger.Warn("Failed to render run manifest", "error", err)

		return
	}

	logger.Info("Run manifest", "manifest", string(payload))
}
