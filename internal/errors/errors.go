package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth gateway
var (
	// Startup errors - the process must not start when any of these occur
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrDiscovery     = errors.New("provider discovery failed")
	ErrInvalidKey    = errors.New("invalid cookie key")

	// Callback errors - client-caused, the login attempt restarts from scratch
	ErrMissingParameter = errors.New("missing required parameter")
	ErrStateMismatch    = errors.New("state does not match stored csrf token")

	// Upstream errors - provider-side failures during the back-channel calls
	ErrUpstream       = errors.New("upstream provider error")
	ErrNoIDToken      = errors.New("no id_token in token response")
	ErrNonceMismatch  = errors.New("id_token nonce mismatch")
	ErrMissingSubject = errors.New("userinfo response missing subject")

	// Session errors
	ErrUnauthorized = errors.New("no valid session")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
