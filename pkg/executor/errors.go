package executor

import "fmt"

// StageError reports which stage aborted the run and why. The run is
// fail-fast: no stage after the failing one is started.
type StageError struct {
	StageID string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.StageID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
