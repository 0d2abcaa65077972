// internal/upstream/result.go
package upstream

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed upstream call. Exactly three kinds exist:
// the server answered with a 4xx, the server answered with a 5xx, or no
// answer arrived at all (timeout, DNS failure, connection reset).
type ErrorKind int

const (
	KindClient ErrorKind = iota
	KindServer
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// CallError is the tagged outcome of a failed upstream call. Status is zero
// for network failures.
type CallError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *CallError) Error() string {
	if e.Kind == KindNetwork {
		return fmt.Sprintf("upstream network error: %s", e.Message)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s", e.Kind, e.Status, e.Message)
}

func (e *CallError) IsClient() bool  { return e.Kind == KindClient }
func (e *CallError) IsServer() bool  { return e.Kind == KindServer }
func (e *CallError) IsNetwork() bool { return e.Kind == KindNetwork }

// IsForbidden surfaces 403 distinctly from other client errors so callers
// can show "not authorized" instead of a generic failure.
func (e *CallError) IsForbidden() bool {
	return e.Kind == KindClient && e.Status == http.StatusForbidden
}

// RetryAdvised is the retry policy as a pure function over the tag: server
// errors, rate limiting (429) and network failures are transient; every
// other client error means the request itself must be fixed.
func (e *CallError) RetryAdvised() bool {
	switch e.Kind {
	case KindServer, KindNetwork:
		return true
	case KindClient:
		return e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// classify builds the CallError for an HTTP status >= 400.
func classify(status int, message string) *CallError {
	kind := KindClient
	if status >= 500 {
		kind = KindServer
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &CallError{Kind: kind, Status: status, Message: message}
}
