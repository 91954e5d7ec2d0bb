package t2d2

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidCredentials indicates the credentials do not match exactly one supported shape.
	ErrInvalidCredentials = errors.New("t2d2: invalid credentials")
	// ErrAuthentication indicates the server rejected the credentials.
	ErrAuthentication = errors.New("t2d2: authentication failed")
	// ErrProjectNotSet is returned by project-scoped calls made before SetProject.
	ErrProjectNotSet = errors.New("t2d2: project not set")
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("t2d2: not found")
	// ErrRequest indicates a transport failure (network, timeout, cancellation).
	ErrRequest = errors.New("t2d2: request failed")
	// ErrInvalidArgument indicates a local input error detected before any request.
	ErrInvalidArgument = errors.New("t2d2: invalid argument")
	// ErrMalformedResponse indicates a success status whose JSON body could not be decoded.
	ErrMalformedResponse = errors.New("t2d2: malformed response")
)

// APIError is a non-success reply from the T2D2 API: either a non-2xx status
// or a 2xx envelope carrying "success": false.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("t2d2: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is lets callers match APIError against ErrAuthentication and ErrNotFound.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// RequestError wraps a transport failure.
type RequestError struct {
	Method string
	Path   string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("t2d2: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is matches ErrRequest.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequest
}
