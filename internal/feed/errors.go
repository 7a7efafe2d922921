package feed

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed API call so callers can distinguish
// "network is fine, payload is bad" from transport trouble.
type ErrorKind int

const (
	// KindTransport covers connection-level failures (DNS, refused, reset).
	KindTransport ErrorKind = iota
	// KindTimeout is a request that ran out its per-call deadline on the
	// final attempt.
	KindTimeout
	// KindRateLimited is an HTTP 429.
	KindRateLimited
	// KindServer is a non-2xx status that survived (or skipped) the retry
	// loop.
	KindServer
	// KindMalformed is a 2xx response whose body failed to decode.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every Client method.
type Error struct {
	Kind   ErrorKind
	Status int // HTTP status when one was received, else 0
	Op     string
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func kindOf(err error) (ErrorKind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

func IsTimeout(err error) bool     { k, ok := kindOf(err); return ok && k == KindTimeout }
func IsTransport(err error) bool   { k, ok := kindOf(err); return ok && k == KindTransport }
func IsRateLimited(err error) bool { k, ok := kindOf(err); return ok && k == KindRateLimited }
func IsServer(err error) bool      { k, ok := kindOf(err); return ok && k == KindServer }
func IsMalformed(err error) bool   { k, ok := kindOf(err); return ok && k == KindMalformed }

// IsNetworkOrigin reports whether err came out of the API client at all.
// The sync engine treats every such kind uniformly: the load failed, the
// current list stays as it was.
func IsNetworkOrigin(err error) bool {
	_, ok := kindOf(err)
	return ok
}
