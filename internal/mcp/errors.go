// Package mcp implements the MCP Endpoint Layer: ten JSON-RPC tools exposing
// the indexed folder corpus to LLM agents, each returning a uniform envelope
// (see envelope.go).
package mcp

import (
	amerrors "github.com/okets/folder-mcp/internal/errors"
)

// statusToken maps an error to the short machine-readable token the
// envelope's status.message carries. Unrecognized errors map to INTERNAL.
func statusToken(err error) string {
	return string(amerrors.TokenOf(err))
}

// toEnvelope converts a handler error into an error envelope, tagging the
// token the error taxonomy assigned it.
func toEnvelope(err error) *Envelope {
	return errorEnvelope(statusToken(err), err.Error())
}
