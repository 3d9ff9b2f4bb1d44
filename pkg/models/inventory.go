// Package models defines the core domain models for the run orchestrator.
package models

// Inventory declares a named target environment: the set of stage ids
// eligible to run against it plus environment-wide variable defaults.
// Loaded once per run and never mutated afterward.
type Inventory struct {
	Stages  []string          `json:"stages"             yaml:"stages"   validate:"dive,required"`
	EnvVars map[string]string `json:"env_vars,omitempty" yaml:"env_vars"`
}

// HasStage reports whether the inventory declares the given stage id.
// Membership only; the inventory imposes no ordering.
func (i *Inventory) HasStage(id string) bool {
	for _, s := range i.Stages {
		if s == id {
			return true
		}
	}

	return false
}
