// Package dispatch classifies inbound message events and runs the snippet
// relay in the background.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sambot/internal/domain"
	"sambot/internal/metrics"
)

// greetingTrigger matches anywhere in the text, case-sensitively.
const greetingTrigger = "hi"

// Classify assigns an event to the first matching category.
func Classify(ev domain.Event) domain.Category {
	switch {
	case len(ev.Files) > 0:
		return domain.CategoryFileAttachment
	case ev.Subtype == "" && ev.HasText() && strings.Contains(ev.TextValue(), greetingTrigger):
		return domain.CategoryGreeting
	default:
		return domain.CategoryUnhandled
	}
}

// Greeting is the reply posted for a greeting event.
func Greeting(userID string) string {
	return fmt.Sprintf("Hello <@%s>! :tada:", userID)
}

// Submitter schedules background work. *Executor implements it.
type Submitter interface {
	Submit(name string, fn TaskFunc) string
}

// Config wires a Dispatcher to its collaborators.
type Config struct {
	Chat     domain.ChatClient
	Fetcher  domain.ContentFetcher
	Resolver domain.IdentityResolver
	Relay    domain.Relay
	Tasks    Submitter

	// BotToken authorizes snippet downloads.
	BotToken string
	// Priority is passed to the relay with every submission.
	Priority int
	// Location renders event timestamps. nil means local time.
	Location *time.Location
	Logger   *slog.Logger
}

// Dispatcher routes classified events to their handling path.
type Dispatcher struct {
	chat     domain.ChatClient
	fetcher  domain.ContentFetcher
	resolver domain.IdentityResolver
	relay    domain.Relay
	tasks    Submitter
	botToken string
	priority int
	location *time.Location
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Tasks == nil {
		cfg.Tasks = NewExecutor(ExecutorConfig{Logger: cfg.Logger})
	}
	return &Dispatcher{
		chat:     cfg.Chat,
		fetcher:  cfg.Fetcher,
		resolver: cfg.Resolver,
		relay:    cfg.Relay,
		tasks:    cfg.Tasks,
		botToken: cfg.BotToken,
		priority: cfg.Priority,
		location: cfg.Location,
		logger:   cfg.Logger,
	}
}

// Dispatch handles one event and returns the acknowledgment to send.
// File-bearing events are handed to a single background task; the caller
// never waits for it.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event) domain.AckDecision {
	category := Classify(ev)
	metrics.EventsTotal(string(category)).Inc()

	switch category {
	case domain.CategoryFileAttachment:
		task := newSnippetTask(ev, d)
		id := d.tasks.Submit("snippet "+ev.Channel+" "+ev.EventTS, task.Run)
		d.logger.Info("file event dispatched", "task_id", id, "channel", ev.Channel,
			"user", ev.User, "files", len(ev.Files))
		return domain.AckSuppressed

	case domain.CategoryGreeting:
		if err := d.chat.PostMessage(ctx, ev.Channel, Greeting(ev.User)); err != nil {
			d.logger.Error("greeting post failed", "channel", ev.Channel, "user", ev.User,
				"kind", domain.ErrorKind(err), "err", err)
		}
		return domain.AckNormal

	default:
		d.logger.Debug("unhandled message event", "channel", ev.Channel, "subtype", ev.Subtype)
		return domain.AckUnhandled
	}
}
