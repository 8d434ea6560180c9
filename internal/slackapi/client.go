// Package slackapi adapts the slack-go Web API client to the chat
// operations sambot needs.
package slackapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"sambot/internal/domain"
)

const defaultAPIURL = "https://slack.com/api/"

// Client implements domain.ChatClient over the Slack Web API.
type Client struct {
	api    *slack.Client
	logger *slog.Logger
}

// Config configures a Client.
type Config struct {
	BotToken string
	// APIURL overrides the Web API base, mostly for tests.
	APIURL     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New creates a Slack Web API client authenticated with the bot token.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	base := strings.TrimSpace(cfg.APIURL)
	if base == "" {
		base = defaultAPIURL
	}
	opts := []slack.Option{slack.OptionAPIURL(strings.TrimRight(base, "/") + "/")}
	if cfg.HTTPClient != nil {
		opts = append(opts, slack.OptionHTTPClient(cfg.HTTPClient))
	}
	return &Client{api: slack.New(cfg.BotToken, opts...), logger: cfg.Logger}
}

func platformErr(method string, err error) error {
	return &domain.PlatformAPIError{Method: method, Cause: err}
}

// UserInfo calls users.info. A Slack-level error (ok=false) is reported as
// a lookup with OK unset rather than an error; only transport failures
// are returned.
func (c *Client) UserInfo(ctx context.Context, userID string) (*domain.UserLookup, error) {
	u, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		var slackErr slack.SlackErrorResponse
		if errors.As(err, &slackErr) {
			c.logger.Debug("users.info not ok", "user", userID, "error", slackErr.Err)
			return &domain.UserLookup{OK: false}, nil
		}
		return nil, platformErr("users.info", err)
	}
	if u == nil {
		return &domain.UserLookup{OK: true}, nil
	}

	profile := &domain.UserProfile{RealName: u.Profile.RealName}
	if u.Profile.DisplayName != "" {
		name := u.Profile.DisplayName
		profile.DisplayName = &name
	}
	return &domain.UserLookup{
		OK: true,
		User: &domain.UserRecord{
			ID:      u.ID,
			Name:    u.Name,
			Profile: profile,
		},
	}, nil
}

// PostMessage posts text to channelID.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return platformErr("chat.postMessage", err)
	}
	return nil
}

// PostEphemeral posts text visible only to userID in channelID.
func (c *Client) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	_, err := c.api.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		return platformErr("chat.postEphemeral", err)
	}
	return nil
}

// ListChannels pages through conversations.list and returns every
// non-archived public and private channel visible to the bot.
func (c *Client) ListChannels(ctx context.Context) ([]domain.ChannelInfo, error) {
	var all []domain.ChannelInfo
	cursor := ""
	for {
		chs, next, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Cursor:          cursor,
			Limit:           200,
			ExcludeArchived: true,
			Types:           []string{"public_channel", "private_channel"},
		})
		if err != nil {
			return nil, platformErr("conversations.list", err)
		}
		for _, ch := range chs {
			all = append(all, domain.ChannelInfo{ID: ch.ID, Name: ch.Name, IsMember: ch.IsMember})
		}
		cursor = strings.TrimSpace(next)
		if cursor == "" {
			return all, nil
		}
	}
}

// JoinChannel adds the bot to channelID.
func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	_, warning, warnings, err := c.api.JoinConversationContext(ctx, channelID)
	if err != nil {
		return platformErr("conversations.join", err)
	}
	if warning != "" || len(warnings) > 0 {
		c.logger.Warn("conversations.join warning", "channel", channelID, "warning", warning, "warnings", warnings)
	}
	return nil
}

// FindChannelID returns the id of the channel called name. A leading '#'
// is ignored.
func (c *Client) FindChannelID(ctx context.Context, name string) (string, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "#")
	chs, err := c.ListChannels(ctx)
	if err != nil {
		return "", err
	}
	for _, ch := range chs {
		if ch.Name == name {
			return ch.ID, nil
		}
	}
	return "", fmt.Errorf("channel %q not found", name)
}

// Identity is the result of auth.test.
type Identity struct {
	Team   string
	User   string
	UserID string
	BotID  string
}

// AuthTest calls auth.test to report who the token belongs to.
func (c *Client) AuthTest(ctx context.Context) (*Identity, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return nil, platformErr("auth.test", err)
	}
	return &Identity{Team: resp.Team, User: resp.User, UserID: resp.UserID, BotID: resp.BotID}, nil
}
