package intura

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey   = errors.New("intura api key not found")
	ErrInvalidAPIKey   = errors.New("invalid intura api key")
	ErrRequest         = errors.New("intura api request failed")
	ErrUnknownEndpoint = errors.New("unknown intura endpoint")
)

// APIError is returned when the dashboard answers with any status but 200.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("intura api %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
