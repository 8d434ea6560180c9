package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"sambot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMISPClient_Submit(t *testing.T) {
	var got mispEventRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/events/add", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"Event":{"id":"42","info":"x"}}`))
	}))
	defer srv.Close()

	m := NewMISPClient(MISPConfig{URL: srv.URL + "/", Key: "secret-key", Client: srv.Client()})
	receipt, err := m.Submit(context.Background(), 0, "callback to 10.0.0.1", "2023-11-14 22:13:20 - #Warroom", domain.Resolve("alice"))
	require.NoError(t, err)

	assert.Equal(t, domain.Receipt("MISP event 42 created with 2 attributes: "+srv.URL+"/events/view/42"), receipt)
	assert.Equal(t, "2023-11-14 22:13:20 - #Warroom", got.Event.Info)
	assert.Equal(t, "0", got.Event.Distribution)
	require.Len(t, got.Event.Attribute, 2)
	assert.Equal(t, "text", got.Event.Attribute[0].Type)
	assert.Equal(t, "callback to 10.0.0.1", got.Event.Attribute[0].Value)
	assert.Equal(t, "Submitted by alice", got.Event.Attribute[0].Comment)
	assert.Equal(t, "ip-dst", got.Event.Attribute[1].Type)
	assert.True(t, got.Event.Attribute[1].ToIDS)
}

func TestMISPClient_SubmitUnresolvedUser(t *testing.T) {
	var got mispEventRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"Event":{"id":"7"}}`))
	}))
	defer srv.Close()

	m := NewMISPClient(MISPConfig{URL: srv.URL, Key: "k", Client: srv.Client()})
	_, err := m.Submit(context.Background(), 1, "plain notes", "t", domain.Unresolved)
	require.NoError(t, err)
	assert.Equal(t, "Submitted by unresolved", got.Event.Attribute[0].Comment)
	assert.Equal(t, "1", got.Event.Distribution)
}

func TestMISPClient_SubmitHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"name":"Authentication failed.","message":"Authentication failed. Please make sure you pass the API key"}`))
	}))
	defer srv.Close()

	m := NewMISPClient(MISPConfig{URL: srv.URL, Key: "bad", Client: srv.Client()})
	_, err := m.Submit(context.Background(), 0, "c", "t", domain.Unresolved)

	var relayErr *domain.RelaySubmissionError
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, http.StatusForbidden, relayErr.StatusCode)
	assert.Contains(t, relayErr.Message, "Authentication failed")
}

func TestMISPClient_SubmitMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Event":{}}`))
	}))
	defer srv.Close()

	m := NewMISPClient(MISPConfig{URL: srv.URL, Key: "k", Client: srv.Client()})
	_, err := m.Submit(context.Background(), 0, "c", "t", domain.Unresolved)
	var relayErr *domain.RelaySubmissionError
	require.True(t, errors.As(err, &relayErr))
	assert.Contains(t, relayErr.Message, "no event id")
}

func TestMISPClient_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/servers/getVersion", r.URL.Path)
		if r.Header.Get("Authorization") != "good" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"version":"2.4.180"}`))
	}))
	defer srv.Close()

	version, err := NewMISPClient(MISPConfig{URL: srv.URL, Key: "good", Client: srv.Client()}).Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.4.180", version)

	_, err = NewMISPClient(MISPConfig{URL: srv.URL, Key: "bad", Client: srv.Client()}).Ping(context.Background())
	assert.ErrorContains(t, err, "invalid API key")
}
