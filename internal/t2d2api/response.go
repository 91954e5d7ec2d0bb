package t2d2api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotJSON is returned when a success response does not carry a JSON document.
var ErrNotJSON = errors.New("t2d2api: response body is not JSON")

// Envelope is the wrapper the T2D2 API places around most payloads:
// {"success": true, "message": "...", "data": {...}}.
type Envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Failed reports whether the server explicitly flagged the call as unsuccessful.
func (e *Envelope) Failed() bool {
	return e != nil && e.Success != nil && !*e.Success
}

// FailureError carries the message of an envelope with "success": false.
type FailureError struct {
	Message string
}

func (e *FailureError) Error() string {
	if e.Message == "" {
		return "t2d2api: request reported success=false"
	}
	return fmt.Sprintf("t2d2api: %s", e.Message)
}

// Parse decodes the envelope of body. Bodies that are JSON but not objects
// yield an empty envelope; non-JSON bodies yield ErrNotJSON.
func Parse(body []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &Envelope{}, nil
	}
	if !json.Valid(trimmed) {
		return nil, ErrNotJSON
	}
	if trimmed[0] != '{' {
		return &Envelope{}, nil
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("t2d2api: decode envelope: %w", err)
	}
	return &env, nil
}

// Decode decodes the full body into out after checking the envelope for an
// explicit failure.
func Decode(body []byte, out any) error {
	env, err := Parse(body)
	if err != nil {
		return err
	}
	if env.Failed() {
		return &FailureError{Message: env.Message}
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		trimmed = []byte("null")
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("t2d2api: decode body: %w", err)
	}
	return nil
}
