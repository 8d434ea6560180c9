package domain

import (
	"errors"
	"fmt"
)

// ConfigError is a startup configuration problem. It is fatal before serving.
type ConfigError struct {
	Field string
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Cause)
	}
	return fmt.Sprintf("config %s: %v", e.Field, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// FetchError is returned when a snippet cannot be downloaded or decoded.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Cause      error
}

func (e *FetchError) Error() string {
	msg := "fetch " + e.URL
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Cause }

// LookupTransportError is a users.info call that failed below the API
// level (network, decoding). A not-ok answer is not a LookupTransportError.
type LookupTransportError struct {
	UserID string
	Cause  error
}

func (e *LookupTransportError) Error() string {
	return fmt.Sprintf("lookup user %s: %v", e.UserID, e.Cause)
}

func (e *LookupTransportError) Unwrap() error { return e.Cause }

// RelaySubmissionError is a failed submission to the threat-intel relay.
type RelaySubmissionError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *RelaySubmissionError) Error() string {
	msg := "relay submission failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RelaySubmissionError) Unwrap() error { return e.Cause }

// PlatformAPIError is a failed Slack Web API call.
type PlatformAPIError struct {
	Method string // e.g. chat.postMessage
	Cause  error
}

func (e *PlatformAPIError) Error() string {
	return fmt.Sprintf("slack %s: %v", e.Method, e.Cause)
}

func (e *PlatformAPIError) Unwrap() error { return e.Cause }

// ErrorKind names the taxonomy entry of err for logging, or "" if err is
// not one of the relay's error types.
func ErrorKind(err error) string {
	var (
		cfgErr    *ConfigError
		fetchErr  *FetchError
		lookupErr *LookupTransportError
		relayErr  *RelaySubmissionError
		apiErr    *PlatformAPIError
	)
	switch {
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &lookupErr):
		return "lookup_transport"
	case errors.As(err, &relayErr):
		return "relay_submission"
	case errors.As(err, &apiErr):
		return "platform_api"
	case errors.As(err, &cfgErr):
		return "config"
	default:
		return ""
	}
}
