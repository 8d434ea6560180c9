package domain

import "context"

// ChatClient is the subset of the Slack Web API the relay uses.
type ChatClient interface {
	UserInfo(ctx context.Context, userID string) (*UserLookup, error)
	PostMessage(ctx context.Context, channelID, text string) error
	PostEphemeral(ctx context.Context, channelID, userID, text string) error
	ListChannels(ctx context.Context) ([]ChannelInfo, error)
	JoinChannel(ctx context.Context, channelID string) error
}

// UserLookup mirrors the nested users.info response. Any level may be
// missing.
type UserLookup struct {
	OK   bool
	User *UserRecord
}

type UserRecord struct {
	ID      string
	Name    string
	Profile *UserProfile
}

type UserProfile struct {
	DisplayName *string
	RealName    string
}

// ChannelInfo is a conversation visible to the bot.
type ChannelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsMember bool   `json:"is_member"`
}

// ContentFetcher downloads a private file and decodes it as text.
type ContentFetcher interface {
	FetchText(ctx context.Context, url, bearerToken string) (string, error)
}

// IdentityResolver turns a user id into a display name.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) (ResolvedUser, error)
}

// Relay forwards content to the threat-intelligence repository.
type Relay interface {
	Submit(ctx context.Context, priority int, content, title string, user ResolvedUser) (Receipt, error)
}
