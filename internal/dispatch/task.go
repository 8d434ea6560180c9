package dispatch

import (
	"context"

	"sambot/internal/domain"
	"sambot/internal/relay"
)

// TaskState is a step of the snippet relay state machine.
type TaskState string

const (
	StateStarted       TaskState = "started"
	StateFetching      TaskState = "fetching"
	StateResolving     TaskState = "resolving"
	StateSubmitting    TaskState = "submitting"
	StateAcknowledging TaskState = "acknowledging"
	StateDone          TaskState = "done"
	StateFailed        TaskState = "failed"
)

// SnippetTask relays every snippet attachment of one event. It owns a
// private copy of the event and stops at the first failing step.
type SnippetTask struct {
	event domain.Event
	deps  *Dispatcher
	state TaskState
}

func newSnippetTask(ev domain.Event, d *Dispatcher) *SnippetTask {
	return &SnippetTask{event: ev.Clone(), deps: d, state: StateStarted}
}

// State returns the state the task last entered.
func (t *SnippetTask) State() TaskState { return t.state }

// Run walks the attachments in order. Non-snippet attachments are skipped.
func (t *SnippetTask) Run(ctx context.Context, report func(stage string)) error {
	logger := t.deps.logger.With(
		"task_id", TaskID(ctx),
		"channel", t.event.Channel,
		"user", t.event.User,
		"event_ts", t.event.EventTS,
	)
	t.enter(StateStarted, report)

	for i, att := range t.event.Files {
		if !att.IsSnippet() {
			logger.Debug("skipping non-snippet attachment", "file_id", att.ID, "mode", att.Mode)
			continue
		}
		if err := t.relayAttachment(ctx, att, report); err != nil {
			failedIn := t.state
			t.enter(StateFailed, report)
			logger.Error("snippet relay failed",
				"state", failedIn,
				"attachment", i,
				"file_id", att.ID,
				"title", att.Title,
				"kind", domain.ErrorKind(err),
				"err", err,
			)
			return err
		}
	}

	t.enter(StateDone, report)
	return nil
}

func (t *SnippetTask) relayAttachment(ctx context.Context, att domain.Attachment, report func(string)) error {
	d := t.deps

	t.enter(StateFetching, report)
	content, err := d.fetcher.FetchText(ctx, att.URL, d.botToken)
	if err != nil {
		return err
	}
	title, err := relay.BuildTitle(t.event.EventTS, att.Title, d.location)
	if err != nil {
		return err
	}

	t.enter(StateResolving, report)
	user, err := d.resolver.Resolve(ctx, t.event.User)
	if err != nil {
		return err
	}

	t.enter(StateSubmitting, report)
	receipt, err := d.relay.Submit(ctx, d.priority, content, title, user)
	if err != nil {
		return err
	}

	t.enter(StateAcknowledging, report)
	if err := d.chat.PostEphemeral(ctx, t.event.Channel, t.event.User, string(receipt)); err != nil {
		return err
	}
	d.logger.Info("snippet relayed", "task_id", TaskID(ctx), "channel", t.event.Channel, "title", title)
	return nil
}

func (t *SnippetTask) enter(s TaskState, report func(string)) {
	t.state = s
	if report != nil {
		report(string(s))
	}
}
