package kit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyStats is returned when the provider answers without statistics.
	ErrEmptyStats = errors.New("kit: broadcast has no stats yet")

	// ErrNoBroadcastID is returned when a create call succeeds without an id.
	ErrNoBroadcastID = errors.New("kit: broadcast created without an id")
)

// APIError is a non-2xx response from the Kit API.
type APIError struct {
	Status int
	Errors []string
	Body   string
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("kit API error (status %d): %s", e.Status, strings.Join(e.Errors, "; "))
	}
	return fmt.Sprintf("kit API error (status %d): %s", e.Status, e.Body)
}

func parseAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status, Body: string(body)}
	var parsed struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Errors = parsed.Errors
	}
	return apiErr
}
