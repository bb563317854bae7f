package kelio

import (
	"errors"
	"fmt"
)

var (
	// ErrCSRFTokenNotFound means the login page carried no _csrf_bodet field.
	ErrCSRFTokenNotFound = errors.New("kelio: csrf token not found on login page")

	// ErrLoginFailed means the portal rejected the credentials.
	ErrLoginFailed = errors.New("kelio: login failed")

	// ErrUpstream covers transport failures and unexpected statuses.
	ErrUpstream = errors.New("kelio: upstream unavailable")
)

// StatusError reports an unexpected HTTP status from the portal.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("kelio: %s: unexpected status %d", e.Op, e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstream
}
