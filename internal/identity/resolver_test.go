package identity

import (
	"context"
	"errors"
	"testing"

	"sambot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChat struct {
	domain.ChatClient
	lookup *domain.UserLookup
	err    error
	calls  int
}

func (s *stubChat) UserInfo(ctx context.Context, userID string) (*domain.UserLookup, error) {
	s.calls++
	return s.lookup, s.err
}

func strPtr(s string) *string { return &s }

func TestResolve_DisplayName(t *testing.T) {
	chat := &stubChat{lookup: &domain.UserLookup{
		OK: true,
		User: &domain.UserRecord{
			ID:      "U1",
			Profile: &domain.UserProfile{DisplayName: strPtr("alice")},
		},
	}}

	got, err := New(chat, nil).Resolve(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, domain.Resolve("alice"), got)
}

func TestResolve_EmptyDisplayNameIsResolved(t *testing.T) {
	chat := &stubChat{lookup: &domain.UserLookup{
		OK:   true,
		User: &domain.UserRecord{Profile: &domain.UserProfile{DisplayName: strPtr("")}},
	}}

	got, err := New(chat, nil).Resolve(context.Background(), "U1")
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	assert.Equal(t, "", got.DisplayName)
}

func TestResolve_UnresolvedCases(t *testing.T) {
	tests := []struct {
		name   string
		lookup *domain.UserLookup
	}{
		{"not ok", &domain.UserLookup{OK: false, User: &domain.UserRecord{Profile: &domain.UserProfile{DisplayName: strPtr("x")}}}},
		{"no user", &domain.UserLookup{OK: true}},
		{"no profile", &domain.UserLookup{OK: true, User: &domain.UserRecord{ID: "U1"}}},
		{"no display name", &domain.UserLookup{OK: true, User: &domain.UserRecord{Profile: &domain.UserProfile{RealName: "Alice"}}}},
		{"nil lookup", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(&stubChat{lookup: tt.lookup}, nil).Resolve(context.Background(), "U1")
			require.NoError(t, err)
			assert.Equal(t, domain.Unresolved, got)
		})
	}
}

func TestResolve_TransportError(t *testing.T) {
	cause := errors.New("connection reset")
	_, err := New(&stubChat{err: cause}, nil).Resolve(context.Background(), "U1")

	var lookupErr *domain.LookupTransportError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "U1", lookupErr.UserID)
	assert.ErrorIs(t, err, cause)
}

func TestResolve_EmptyUserID(t *testing.T) {
	chat := &stubChat{}
	got, err := New(chat, nil).Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.Unresolved, got)
	assert.Zero(t, chat.calls)
}
