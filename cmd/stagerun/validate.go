package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stagerun/stagerun/pkg/runid"
)

// Static error variables for linter compliance.
var (
	ErrInvalidBoolean = errors.New("only 'true' or 'false' allowed")
	ErrProdEphemeral  = errors.New("for env-type 'prod', only --ephemeral=false is allowed")
)

// parseBool accepts exactly "true" or "false". Anything looser (1, t, TRUE)
// is rejected so a typo cannot silently flip an ephemeral run.
func parseBool(value string) (bool, error) {
	switch value {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w, got: %q", ErrInvalidBoolean, value)
	}
}

// validateEnvType rejects the one forbidden flag combination before any
// other work happens.
func validateEnvType(envType string, ephemeral bool) error {
	if envType == "prod" && ephemeral {
		return ErrProdEphemeral
	}

	return nil
}

// validateRunID validates the caller-supplied run identifier; a non-zero
// requiredVersion additionally pins the UUID generation.
func validateRunID(token string, requiredVersion int) error {
	if requiredVersion > 0 {
		_, err := runid.ValidateVersion(token, uuid.Version(requiredVersion))

		return err
	}

	_, err := runid.Validate(token)

	return err
}
