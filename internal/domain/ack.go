package domain

import "net/http"

// AckDecision is the HTTP answer returned to Slack for one delivery.
type AckDecision int

const (
	// AckSuppressed answers 200 and asks Slack not to redeliver.
	AckSuppressed AckDecision = iota
	// AckNormal answers 200 with an empty body.
	AckNormal
	// AckUnhandled answers 403 "Unhandled message type".
	AckUnhandled
)

const (
	// NoRetryHeader tells the Slack Events API not to retry the delivery.
	NoRetryHeader = "X-Slack-No-Retry"
	// UnhandledBody is the response body for AckUnhandled.
	UnhandledBody = "Unhandled message type"
)

// StatusCode returns the HTTP status for the decision.
func (d AckDecision) StatusCode() int {
	if d == AckUnhandled {
		return http.StatusForbidden
	}
	return http.StatusOK
}

// SuppressRetry reports whether the no-retry header must be set.
func (d AckDecision) SuppressRetry() bool { return d == AckSuppressed }

// Body returns the response body for the decision.
func (d AckDecision) Body() string {
	if d == AckUnhandled {
		return UnhandledBody
	}
	return ""
}

func (d AckDecision) String() string {
	switch d {
	case AckSuppressed:
		return "suppressed_ok"
	case AckNormal:
		return "normal_ok"
	case AckUnhandled:
		return "unhandled_forbidden"
	default:
		return "unknown"
	}
}
