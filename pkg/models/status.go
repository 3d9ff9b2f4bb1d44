package models

// RunStatus represents the lifecycle state of one orchestrator run.
type RunStatus string

const (
	RunStatusPreparing RunStatus = "preparing" // Resolving documents and configuration
	RunStatusExecuting RunStatus = "executing" // Stages running in workflow order
	RunStatusSucceeded RunStatus = "succeeded" // Every active stage completed
	RunStatusAborted   RunStatus = "aborted"   // Fail-fast abort on first stage failure
)

// StageStatus represents the lifecycle state of one stage within a run.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)
