package errors

import (
	"encoding/json"
	"fmt"
)

// jsonError is the wire representation used for structured logging and the
// `amanmcp`-style CLI's non-interactive error output.
type jsonError struct {
	Kind      string            `json:"kind"`
	Token     string            `json:"token"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Cause     string            `json:"cause,omitempty"`
	Retryable bool              `json:"retryable"`
}

// FormatJSON renders err as the structured JSON shape used in log records.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	e, ok := As(err)
	if !ok {
		e = Internal(err.Error(), err)
	}
	je := jsonError{
		Kind:      string(e.Kind),
		Token:     string(e.Token),
		Message:   e.Message,
		Details:   e.Details,
		Retryable: e.Retryable,
	}
	if e.Cause != nil {
		je.Cause = e.Cause.Error()
	}
	return json.Marshal(je)
}

// FormatForLog returns slog-friendly key/value attributes for err. Internal
// errors always carry full context per §7's propagation policy.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}
	e, ok := As(err)
	if !ok {
		return map[string]any{"error": err.Error()}
	}
	out := map[string]any{
		"error_kind":  string(e.Kind),
		"error_token": string(e.Token),
		"message":     e.Message,
		"retryable":   e.Retryable,
	}
	if e.Cause != nil {
		out["cause"] = e.Cause.Error()
	}
	for k, v := range e.Details {
		out["detail_"+k] = v
	}
	return out
}

// FormatForCLI renders a short human string for the CLI's contract-only
// error surface (exit code 1/2/3 paths in §6).
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	e, ok := As(err)
	if !ok {
		return fmt.Sprintf("error: %s", err.Error())
	}
	return fmt.Sprintf("error: %s (%s)", e.Message, e.Token)
}
