package mcp

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeToken_RoundTrips(t *testing.T) {
	tok := pageToken{Endpoint: "search", DocumentID: "doc-1", Cursor: "42"}
	encoded := encodeToken(tok)

	decoded, ok := decodeToken("search", encoded)
	require.True(t, ok)
	assert.Equal(t, "doc-1", decoded.DocumentID)
	assert.Equal(t, "42", decoded.Cursor)
}

func TestDecodeToken_RejectsEndpointMismatch(t *testing.T) {
	encoded := encodeToken(pageToken{Endpoint: "search", Cursor: "1"})
	_, ok := decodeToken("list_documents", encoded)
	assert.False(t, ok)
}

func TestDecodeToken_RejectsGarbage(t *testing.T) {
	_, ok := decodeToken("search", "not-base64url-json!!")
	assert.False(t, ok)
}

func TestDecodeToken_RejectsVersionMismatch(t *testing.T) {
	b, err := json.Marshal(pageToken{Endpoint: "search", Cursor: "1", Version: continuationTokenVersion + 1})
	require.NoError(t, err)
	stale := base64.URLEncoding.EncodeToString(b)

	_, ok := decodeToken("search", stale)
	assert.False(t, ok)
}

func TestEstimateTokens_EmptyStringIsZero(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
}

func TestEstimateTokens_ShortNonEmptyStringIsAtLeastOne(t *testing.T) {
	assert.Equal(t, 1, estimateTokens("hi"))
}

func TestEstimateTokens_ScalesWithLength(t *testing.T) {
	short := estimateTokens("one two three four")
	long := estimateTokens("one two three four one two three four one two three four")
	assert.Greater(t, long, short)
}

func TestSuccessEnvelope_DefaultsToSuccessStatus(t *testing.T) {
	env := success(map[string]any{"x": 1})
	assert.Equal(t, "success", env.Status.Code)
	assert.False(t, env.Continuation.HasMore)
}

func TestErrorEnvelope_CarriesTokenAsStatusMessage(t *testing.T) {
	env := errorEnvelope("NOT_FOUND", "document missing")
	assert.Equal(t, "error", env.Status.Code)
	assert.Equal(t, "NOT_FOUND", env.Status.Message)
	require.Len(t, env.Actions, 1)
	assert.Equal(t, "document missing", env.Actions[0].Description)
}
