package models

// Workflow is the ordered sequence of stage ids selected for one run.
// Every id must be a member of the inventory's stage set; the workflow
// alone determines execution order.
type Workflow struct {
	Stages []string `json:"stages" yaml:"stages" validate:"dive,required"`
}
