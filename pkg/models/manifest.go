package models

import "time"

// RunManifest describes one run for observability: what was asked for and
// which stages were selected. Constructed once, logged before execution,
// optionally handed to a manifest sink. It carries no control-flow weight.
type RunManifest struct {
	RunID        string    `json:"run_id"`
	Branch       string    `json:"branch,omitempty"`
	Commit       string    `json:"commit,omitempty"`
	Inventory    string    `json:"inventory"`
	EnvType      string    `json:"env_type"`
	Workflow     string    `json:"workflow"`
	MainTag      string    `json:"main_tag,omitempty"`
	ActiveStages []string  `json:"active_stages"`
	OriginCfg    string    `json:"origin_cfg"`
	CreatedAt    time.Time `json:"created_at"`
}
