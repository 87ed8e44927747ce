// Package reliability classifies transport failures so callers can tell a
// timed-out backend apart from an unreachable one.
package reliability

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// IsSuccessHTTPStatus reports whether an HTTP status counts as success.
func IsSuccessHTTPStatus(code int) bool {
	return code >= 200 && code < 300
}

// IsTimeout reports whether err represents an elapsed deadline on a network
// operation, as opposed to any other transport failure.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsUnreachable reports whether err is a network-level failure that is not a
// timeout: connection refused, DNS failure, reset, and the like.
func IsUnreachable(err error) bool {
	return err != nil && !IsTimeout(err)
}
