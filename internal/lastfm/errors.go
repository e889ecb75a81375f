package lastfm

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when an operation requires a session
	// that is missing or was rejected by Last.fm.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrUnavailable is returned while the circuit breaker keeps calls from
	// reaching Last.fm.
	ErrUnavailable = errors.New("last.fm unavailable")
)

// Last.fm error codes, see https://www.last.fm/api/errorcodes.
const (
	codeAuthFailed        = 4
	codeInvalidSession    = 9
	codeServiceOffline    = 11
	codeUnauthorizedToken = 14
	codeTokenExpired      = 15
	codeTemporaryError    = 16
	codeLoginRequired     = 17
	codeRateLimited       = 29
)

// APIError is an error response returned by the Last.fm API.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("last.fm error %d: %s", e.Code, e.Message)
}

// Is makes session and token rejections match ErrNotAuthenticated.
func (e *APIError) Is(target error) bool {
	return target == ErrNotAuthenticated && e.authFailure()
}

func (e *APIError) authFailure() bool {
	switch e.Code {
	case codeAuthFailed, codeInvalidSession, codeUnauthorizedToken, codeTokenExpired, codeLoginRequired:
		return true
	}
	return false
}

// serverSide reports errors that say nothing about the request itself.
func (e *APIError) serverSide() bool {
	switch e.Code {
	case codeServiceOffline, codeTemporaryError, codeRateLimited:
		return true
	}
	return false
}
