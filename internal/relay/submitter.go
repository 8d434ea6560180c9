// Package relay forwards snippet content to the threat-intelligence
// repository (MISP) and builds the event titles.
package relay

import (
	"context"
	"log/slog"
	"time"

	"sambot/internal/domain"
	"sambot/internal/metrics"
)

// Submitter passes submissions through to the relay collaborator. Errors
// are returned to the caller unchanged.
type Submitter struct {
	relay  domain.Relay
	logger *slog.Logger
}

// NewSubmitter wraps relay with logging and metrics.
func NewSubmitter(relay domain.Relay, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{relay: relay, logger: logger}
}

// Submit sends one snippet and returns the relay's receipt.
func (s *Submitter) Submit(ctx context.Context, priority int, content, title string, user domain.ResolvedUser) (domain.Receipt, error) {
	s.logger.Info("submitting snippet", "title", title, "user", user.String(), "priority", priority, "content_len", len(content))
	s.logger.Debug("snippet content", "content", content)

	start := time.Now()
	receipt, err := s.relay.Submit(ctx, priority, content, title, user)
	metrics.RelayLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RelayFailures.Inc()
		return "", err
	}
	metrics.RelaySubmissions.Inc()
	return receipt, nil
}
