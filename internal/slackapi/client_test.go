package slackapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"sambot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSlack struct {
	mu    sync.Mutex
	calls map[string][]map[string]string
}

func (f *fakeSlack) record(method string, r *http.Request, keys ...string) {
	r.ParseForm()
	vals := map[string]string{}
	for _, k := range keys {
		vals[k] = r.FormValue(k)
	}
	f.mu.Lock()
	f.calls[method] = append(f.calls[method], vals)
	f.mu.Unlock()
}

func newTestClient(t *testing.T) (*Client, *fakeSlack) {
	t.Helper()
	fs := &fakeSlack{calls: map[string][]map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/users.info", func(w http.ResponseWriter, r *http.Request) {
		fs.record("users.info", r, "user")
		switch r.FormValue("user") {
		case "U1":
			io.WriteString(w, `{"ok":true,"user":{"id":"U1","name":"alice","profile":{"display_name":"Alice","real_name":"Alice A"}}}`)
		case "U2":
			io.WriteString(w, `{"ok":true,"user":{"id":"U2","name":"bob","profile":{"real_name":"Bob"}}}`)
		case "UBOOM":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			io.WriteString(w, `{"ok":false,"error":"user_not_found"}`)
		}
	})
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		fs.record("chat.postMessage", r, "channel", "text")
		io.WriteString(w, `{"ok":true,"channel":"C1","ts":"1700000000.000100"}`)
	})
	mux.HandleFunc("/chat.postEphemeral", func(w http.ResponseWriter, r *http.Request) {
		fs.record("chat.postEphemeral", r, "channel", "user", "text")
		if r.FormValue("channel") == "CGONE" {
			io.WriteString(w, `{"ok":false,"error":"channel_not_found"}`)
			return
		}
		io.WriteString(w, `{"ok":true,"message_ts":"1700000000.000200"}`)
	})
	mux.HandleFunc("/conversations.list", func(w http.ResponseWriter, r *http.Request) {
		fs.record("conversations.list", r, "cursor")
		if r.FormValue("cursor") == "" {
			io.WriteString(w, `{"ok":true,"channels":[{"id":"C1","name":"general","is_member":true}],"response_metadata":{"next_cursor":"page2"}}`)
			return
		}
		io.WriteString(w, `{"ok":true,"channels":[{"id":"C2","name":"_autobot","is_member":false}],"response_metadata":{"next_cursor":""}}`)
	})
	mux.HandleFunc("/conversations.join", func(w http.ResponseWriter, r *http.Request) {
		fs.record("conversations.join", r, "channel")
		io.WriteString(w, `{"ok":true,"channel":{"id":"C2","name":"_autobot"}}`)
	})
	mux.HandleFunc("/auth.test", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true,"team":"Acme","user":"sambot","user_id":"UBOT","bot_id":"B1"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(Config{
		BotToken:   "xoxb-test",
		APIURL:     srv.URL,
		HTTPClient: srv.Client(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return c, fs
}

func TestUserInfo(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	got, err := c.UserInfo(ctx, "U1")
	require.NoError(t, err)
	require.True(t, got.OK)
	require.NotNil(t, got.User.Profile.DisplayName)
	assert.Equal(t, "Alice", *got.User.Profile.DisplayName)
	assert.Equal(t, "alice", got.User.Name)

	got, err = c.UserInfo(ctx, "U2")
	require.NoError(t, err)
	assert.True(t, got.OK)
	assert.Nil(t, got.User.Profile.DisplayName)

	got, err = c.UserInfo(ctx, "UMISSING")
	require.NoError(t, err, "ok=false is not a transport error")
	assert.False(t, got.OK)
}

func TestUserInfo_TransportFailure(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.UserInfo(context.Background(), "UBOOM")

	var apiErr *domain.PlatformAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "users.info", apiErr.Method)
}

func TestPostMessageAndEphemeral(t *testing.T) {
	c, fs := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.PostMessage(ctx, "C1", "Hello <@U1>! :tada:"))
	require.NoError(t, c.PostEphemeral(ctx, "C1", "U1", "MISP event 1 created"))

	assert.Equal(t, []map[string]string{{"channel": "C1", "text": "Hello <@U1>! :tada:"}}, fs.calls["chat.postMessage"])
	assert.Equal(t, []map[string]string{{"channel": "C1", "user": "U1", "text": "MISP event 1 created"}}, fs.calls["chat.postEphemeral"])

	err := c.PostEphemeral(ctx, "CGONE", "U1", "x")
	var apiErr *domain.PlatformAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "chat.postEphemeral", apiErr.Method)
	assert.Equal(t, "platform_api", domain.ErrorKind(err))
}

func TestListChannelsPaginates(t *testing.T) {
	c, fs := newTestClient(t)
	chs, err := c.ListChannels(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.ChannelInfo{
		{ID: "C1", Name: "general", IsMember: true},
		{ID: "C2", Name: "_autobot"},
	}, chs)
	assert.Len(t, fs.calls["conversations.list"], 2)
}

func TestFindChannelIDAndJoin(t *testing.T) {
	c, fs := newTestClient(t)
	ctx := context.Background()

	id, err := c.FindChannelID(ctx, "#_autobot")
	require.NoError(t, err)
	assert.Equal(t, "C2", id)

	_, err = c.FindChannelID(ctx, "nope")
	assert.ErrorContains(t, err, "not found")

	require.NoError(t, c.JoinChannel(ctx, id))
	assert.Equal(t, []map[string]string{{"channel": "C2"}}, fs.calls["conversations.join"])
}

func TestAuthTest(t *testing.T) {
	c, _ := newTestClient(t)
	id, err := c.AuthTest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Identity{Team: "Acme", User: "sambot", UserID: "UBOT", BotID: "B1"}, id)
}
