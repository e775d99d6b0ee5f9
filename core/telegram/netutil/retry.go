// Package netutil classifies transport errors for retry decisions.
package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// Retryable is implemented by errors that know whether repeating the call can help.
type Retryable interface {
	Retryable() bool
}

// ShouldRetry reports whether err is a transient failure: a timeout, a failed dial,
// or an error that declares itself retryable. Cancellation is never retried.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && (opErr.Timeout() || opErr.Op == "dial") {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
