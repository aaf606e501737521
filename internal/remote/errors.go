package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailure means the API key could not be exchanged for a token.
	ErrAuthFailure = errors.New("remote: authorization failed")
	// ErrExhaustedRetries means a request kept failing authorization after
	// the configured number of token renewals.
	ErrExhaustedRetries = errors.New("remote: authorization retries exhausted")
	// ErrMalformedResponse means a 200 response lacked required fields or
	// could not be decoded.
	ErrMalformedResponse = errors.New("remote: malformed response")
)

// ServiceError is a transient failure: a transport error, or a status
// other than 200 and 403. It is never retried by the client.
//
//	var svcErr *ServiceError
//	if errors.As(err, &svcErr) && svcErr.StatusCode >= 500 { ... }
type ServiceError struct {
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote: %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("remote: %s returned status %d", e.Path, e.StatusCode)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a *ServiceError.
func IsTransient(err error) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr)
}
