package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sambot/internal/config"
	"sambot/internal/dispatch"
	"sambot/internal/domain"
	"sambot/internal/fetch"
	"sambot/internal/identity"
	"sambot/internal/logging"
	"sambot/internal/metrics"
	"sambot/internal/relay"
	"sambot/internal/server"
	"sambot/internal/slackapi"

	"github.com/spf13/cobra"
)

const (
	startupTimeout = 30 * time.Second
	taskRetention  = time.Hour
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the Slack events endpoint",
		Long:  "Checks MISP, optionally joins the test channel, then serves Slack callbacks until SIGINT or SIGTERM.",
		RunE:  runServe,
	}
}

// deps is everything serve and the diagnostic commands build from config.
type deps struct {
	cfg    *config.Config
	logger *slog.Logger
	slack  *slackapi.Client
	misp   *relay.MISPClient
}

func buildDeps(cfg *config.Config, log *slog.Logger) *deps {
	mispHTTP := fetch.NewHTTPClient(time.Duration(cfg.MISP.TimeoutSeconds)*time.Second, !cfg.MISP.SSL)
	return &deps{
		cfg:    cfg,
		logger: log,
		slack: slackapi.New(slackapi.Config{
			BotToken:   cfg.Slack.BotToken,
			HTTPClient: fetch.NewHTTPClient(startupTimeout, false),
			Logger:     log.With("component", "slack"),
		}),
		misp: relay.NewMISPClient(relay.MISPConfig{
			URL:    cfg.MISP.URL,
			Key:    cfg.MISP.Key,
			Client: mispHTTP,
			Logger: log.With("component", "misp"),
		}),
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logs, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer logs.Close()
	log := logs.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := buildDeps(cfg, log)
	if err := d.startup(ctx); err != nil {
		log.Error("startup failed", "err", err)
		return err
	}

	executor := dispatch.NewExecutor(dispatch.ExecutorConfig{
		MaxConcurrent: cfg.Workers.MaxConcurrent,
		Logger:        log.With("component", "tasks"),
	})
	go cleanTasks(ctx, executor)

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		Chat: d.slack,
		Fetcher: fetch.New(fetch.Config{
			Client:   fetch.NewHTTPClient(time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second, false),
			MaxBytes: cfg.Fetch.MaxBytes,
			Logger:   log.With("component", "fetch"),
		}),
		Resolver: identity.New(d.slack, log.With("component", "identity")),
		Relay:    relay.NewSubmitter(d.misp, log.With("component", "relay")),
		Tasks:    executor,
		BotToken: cfg.Slack.BotToken,
		Priority: cfg.MISP.Priority,
		Location: time.Local,
		Logger:   log.With("component", "dispatch"),
	})

	srvCfg := server.Config{
		Addr:          cfg.Addr(),
		Path:          cfg.Server.Path,
		SigningSecret: cfg.Slack.SigningSecret,
		Dispatcher:    dispatcher,
		Tasks:         executor,
		Logger:        log.With("component", "server"),
	}
	if cfg.Metrics.Enabled {
		srvCfg.Metrics = metrics.Default.Handler()
		srvCfg.MetricsPath = cfg.Metrics.Endpoint
	}

	return server.New(srvCfg).Run(ctx)
}

// startup checks the MISP connection, joins the test channel in test mode
// and logs the channels the bot can see.
func (d *deps) startup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	mispVersion, err := d.misp.Ping(ctx)
	if err != nil {
		return &domain.ConfigError{Field: "misp", Cause: err}
	}
	d.logger.Info("connected to misp", "url", d.cfg.MISP.URL, "version", mispVersion)

	if id, err := d.slack.AuthTest(ctx); err != nil {
		d.logger.Warn("slack auth.test failed", "err", err)
	} else {
		d.logger.Info("slack bot identity", "team", id.Team, "user", id.User, "user_id", id.UserID)
	}

	if d.cfg.TestMode() {
		channelID, err := d.slack.FindChannelID(ctx, d.cfg.Slack.TestChannel)
		if err != nil {
			return fmt.Errorf("test mode: %w", err)
		}
		if err := d.slack.JoinChannel(ctx, channelID); err != nil {
			return fmt.Errorf("test mode: join %s: %w", d.cfg.Slack.TestChannel, err)
		}
		d.logger.Info("test mode: joined channel", "channel", d.cfg.Slack.TestChannel, "id", channelID)
	}

	channels, err := d.slack.ListChannels(ctx)
	if err != nil {
		d.logger.Warn("could not list channels", "err", err)
		return nil
	}
	for _, ch := range channels {
		d.logger.Debug("visible channel", "id", ch.ID, "name", ch.Name, "member", ch.IsMember)
	}
	return nil
}

func cleanTasks(ctx context.Context, e *dispatch.Executor) {
	ticker := time.NewTicker(taskRetention / 6)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Clean(taskRetention)
		}
	}
}
