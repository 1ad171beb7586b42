package notion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is matched by APIError values with a 404 status.
var ErrNotFound = errors.New("notion: object not found")

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion API error (status %d, %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("notion API error (status %d): %s", e.Status, e.Message)
}

// Is reports 404s as ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

func parseAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(body)
	}
	apiErr.Status = status
	return apiErr
}
