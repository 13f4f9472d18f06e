// Package api defines the JSON envelope every platform endpoint speaks:
// { "data": ..., "message": "...", "errors": {...} }. The gateway decodes
// it and the mock server encodes it, so the two can never drift apart.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Envelope is the decode-side response wrapper. Data is kept raw so callers
// can unmarshal it into the concrete payload type.
type Envelope struct {
	Data    json.RawMessage     `json:"data"`
	Message string              `json:"message,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// DecodeData unmarshals the envelope payload into dst. A null or absent
// data field leaves dst untouched.
func (e *Envelope) DecodeData(dst any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, dst)
}

// Error is a non-2xx platform response surfaced as a Go error.
type Error struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("api: %s (status %d)", http.StatusText(e.Status), e.Status)
}

// Retryable reports whether the failure is worth retrying from the client's
// point of view. Client errors other than timeouts and rate limits are not.
func (e *Error) Retryable() bool {
	switch {
	case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	default:
		return false
	}
}
