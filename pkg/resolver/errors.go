package resolver

import (
	"errors"
	"fmt"
)

// Static error variables for linter compliance.
var (
	// ErrInventoryNotFound indicates the inventory document does not exist.
	ErrInventoryNotFound = errors.New("inventory file not found")

	// ErrWorkflowNotFound indicates neither the environment-specific nor the
	// base workflow document exists.
	ErrWorkflowNotFound = errors.New("workflow file not found")

	// ErrInvalidInventory indicates the inventory document is malformed, in
	// particular a missing or non-sequence 'stages' field.
	ErrInvalidInventory = errors.New("invalid inventory")

	// ErrInvalidWorkflow indicates the workflow document is missing the
	// required 'stages' field or is otherwise malformed.
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrUnknownStage indicates a workflow stage id that the inventory does
	// not declare.
	ErrUnknownStage = errors.New("stage not listed in inventory")

	// ErrMissingStageMetadata indicates an active stage without a stage.yaml.
	ErrMissingStageMetadata = errors.New("stage metadata not found")
)

// DocumentError wraps a resolution error with the offending document path.
type DocumentError struct {
	Path string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Path)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

func (e *DocumentError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
