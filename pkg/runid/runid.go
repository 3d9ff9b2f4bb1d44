// Package runid validates externally supplied run identifiers.
//
// A run identifier is a UUID handed in by the caller and threaded unchanged
// through the manifest, stage environment injection, and logging. Validation
// happens before any filesystem or process side effect; uniqueness across
// concurrent runs remains the caller's responsibility.
package runid

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Static error variables for linter compliance.
var (
	ErrMalformed    = errors.New("malformed run identifier")
	ErrWrongVersion = errors.New("run identifier has wrong version")
)

// TimeOrderedVersion is the UUID generation callers normally supply:
// version 7 identifiers sort by creation time.
const TimeOrderedVersion = 7

// Validate parses token as a structurally valid UUID.
func Validate(token string) (uuid.UUID, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrMalformed, token)
	}

	return id, nil
}

// ValidateVersion parses token and additionally requires the given UUID
// version discriminator. The error names both the required and the actual
// version.
func ValidateVersion(token string, want uuid.Version) (uuid.UUID, error) {
	id, err := Validate(token)
	if err != nil {
		return uuid.Nil, err
	}

	if id.Version() != want {
		return uuid.Nil, fmt.Errorf("%w: required version %d, got version %d",
			ErrWrongVersion, want, id.Version())
	}

	return id, nil
}
