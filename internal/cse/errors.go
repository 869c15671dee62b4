package cse

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindRateLimit
	KindServer
	KindNetwork
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRateLimit:
		return "rate_limit"
	case KindServer:
		return "server_error"
	case KindNetwork:
		return "network_error"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// APIError carries the classified failure of one backend call.
type APIError struct {
	Kind     ErrorKind
	Status   int
	Endpoint string
	Err      error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("cse %s: %s (status=%d)", e.Endpoint, e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("cse %s: %s: %v", e.Endpoint, e.Kind, e.Err)
	}
	return fmt.Sprintf("cse %s: %s", e.Endpoint, e.Kind)
}

func (e *APIError) Unwrap() error { return e.Err }

// ClassifyStatus maps an HTTP status code to an error kind.
func ClassifyStatus(status int) ErrorKind {
	switch status {
	case 404:
		return KindNotFound
	case 429:
		return KindRateLimit
	case 500, 502, 503, 504:
		return KindServer
	default:
		return KindUnknown
	}
}

// ClassifyErr maps a transport-level failure to an error kind.
func ClassifyErr(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindNetwork
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return KindTimeout
	}
	return KindUnknown
}

// Recoverable reports whether a manual retry is worth offering for the kind.
// Nothing retries automatically; this only informs the caller's affordance.
func Recoverable(kind ErrorKind) bool {
	switch kind {
	case KindRateLimit, KindNetwork, KindTimeout, KindServer:
		return true
	default:
		return false
	}
}

// UserMessage returns the user-facing text for a failure of the given kind.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case KindNotFound:
		return "I couldn't find that stock symbol. Please check the symbol and try again."
	case KindRateLimit:
		return "We're receiving too many requests right now. Please wait a moment and try again."
	case KindServer:
		return "The CSE API is currently unavailable. Please try again later."
	case KindNetwork:
		return "Unable to connect to the stock market data service. Please check your internet connection."
	case KindTimeout:
		return "The request took too long to complete. Please try again."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
