package errors

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrStorageUnavailable = errors.New("session storage unavailable")
)
