package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx answer from the queue server.
type HTTPError struct {
	Method     string
	Path       string
	Message    string
	StatusCode int
}

func NewHTTPError(method, path string, statusCode int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &HTTPError{
		Method:     method,
		Path:       path,
		Message:    message,
		StatusCode: statusCode,
	}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Temporary reports whether retrying on the next poll could succeed.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// IsStatus reports whether err wraps an HTTPError with the given status.
func IsStatus(err error, statusCode int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == statusCode
}
