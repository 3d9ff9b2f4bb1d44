package runid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsWellFormedUUID(t *testing.T) {
	id, err := Validate("a2f5f647-13e1-4b3c-8a6b-7cb44b7e2f11")

	require.NoError(t, err)
	assert.Equal(t, "a2f5f647-13e1-4b3c-8a6b-7cb44b7e2f11", id.String())
}

func TestValidate_RejectsMalformedToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not a uuid", "run-12345"},
		{"truncated", "a2f5f647-13e1-4b3c-8a6b"},
		{"garbage suffix", "a2f5f647-13e1-4b3c-8a6b-7cb44b7e2f11x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.token)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestValidateVersion_AcceptsMatchingGeneration(t *testing.T) {
	v7, err := uuid.NewV7()
	require.NoError(t, err)

	id, err := ValidateVersion(v7.String(), TimeOrderedVersion)

	require.NoError(t, err)
	assert.Equal(t, v7, id)
}

func TestValidateVersion_NamesRequiredAndActualVersion(t *testing.T) {
	// A version 4 identifier offered where version 7 is required.
	v4 := uuid.New()

	_, err := ValidateVersion(v4.String(), TimeOrderedVersion)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongVersion)
	assert.Contains(t, err.Error(), "required version 7")
	assert.Contains(t, err.Error(), "got version 4")
}

func TestValidateVersion_StillRejectsMalformedToken(t *testing.T) {
	_, err := ValidateVersion("not-a-uuid", TimeOrderedVersion)

	assert.ErrorIs(t, err, ErrMalformed)
}
