package mcp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	amerrors "github.com/okets/folder-mcp/internal/errors"
)

func TestStatusToken_MapsKnownKindToItsToken(t *testing.T) {
	err := amerrors.NotFound("no such document")
	assert.Equal(t, "NOT_FOUND", statusToken(err))
}

func TestStatusToken_UnrecognizedErrorMapsToInternal(t *testing.T) {
	assert.Equal(t, "INTERNAL", statusToken(errors.New("boom")))
}

func TestToEnvelope_CarriesMessageAndToken(t *testing.T) {
	err := amerrors.InvalidInput("max_tokens must be positive")
	env := toEnvelope(err)

	assert.Equal(t, "error", env.Status.Code)
	assert.Equal(t, "INVALID_ARGUMENT", env.Status.Message)
}
