package models

// StageSpec is the per-stage metadata document (stage.yaml): the
// configuration keys the stage is allowed to read and its stage-level
// environment variable defaults.
type StageSpec struct {
	CfgKeys []string          `json:"cfg_keys,omitempty" yaml:"cfg_keys"`
	EnvVars map[string]string `json:"env_vars,omitempty" yaml:"env_vars"`
}

// StageDescriptor is the resolved composite of one active stage: its id,
// metadata, entry point, and the environment defaults it inherits. The
// inventory-level and stage-level defaults are deliberately kept as
// separate namespaces; they are never collapsed into one map.
type StageDescriptor struct {
	ID           string            `json:"id"`
	CfgKeys      []string          `json:"cfg_keys"`
	EntryPoint   string            `json:"entry_point"`
	InventoryEnv map[string]string `json:"inventory_env,omitempty"`
	StageEnv     map[string]string `json:"stage_env,omitempty"`
}
