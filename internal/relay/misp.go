package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"sambot/internal/domain"
)

// MISPClient submits snippets as MISP events.
type MISPClient struct {
	baseURL string
	key     string
	client  *http.Client
	logger  *slog.Logger
}

// MISPConfig configures a MISPClient.
type MISPConfig struct {
	URL    string
	Key    string
	Client *http.Client
	Logger *slog.Logger
}

// NewMISPClient creates a client for the MISP REST API at cfg.URL.
func NewMISPClient(cfg MISPConfig) *MISPClient {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &MISPClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		key:     cfg.Key,
		client:  cfg.Client,
		logger:  cfg.Logger,
	}
}

type mispEventRequest struct {
	Event mispEvent `json:"Event"`
}

type mispEvent struct {
	ID            string          `json:"id,omitempty"`
	Info          string          `json:"info"`
	Distribution  string          `json:"distribution"`
	ThreatLevelID string          `json:"threat_level_id"`
	Analysis      string          `json:"analysis"`
	Attribute     []mispAttribute `json:"Attribute,omitempty"`
}

type mispAttribute struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Value    string `json:"value"`
	Comment  string `json:"comment,omitempty"`
	ToIDS    bool   `json:"to_ids"`
}

type mispEventResponse struct {
	Event struct {
		ID        string          `json:"id"`
		Attribute []mispAttribute `json:"Attribute"`
	} `json:"Event"`
}

type mispErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Errors  any    `json:"errors"`
}

// Submit creates one event holding the snippet text and every indicator
// extracted from it. priority is the MISP distribution level.
func (m *MISPClient) Submit(ctx context.Context, priority int, content, title string, user domain.ResolvedUser) (domain.Receipt, error) {
	attrs := []mispAttribute{{
		Type:     "text",
		Category: "Other",
		Value:    content,
		Comment:  "Submitted by " + user.String(),
	}}
	for _, ind := range ExtractIndicators(content) {
		attrs = append(attrs, mispAttribute{
			Type:     ind.Type,
			Category: ind.Category,
			Value:    ind.Value,
			ToIDS:    ind.ToIDS,
		})
	}

	payload := mispEventRequest{Event: mispEvent{
		Info:          title,
		Distribution:  strconv.Itoa(priority),
		ThreatLevelID: "4", // undefined
		Analysis:      "0", // initial
		Attribute:     attrs,
	}}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &domain.RelaySubmissionError{Message: "encode event", Cause: err}
	}

	resp, err := m.do(ctx, http.MethodPost, "/events/add", body)
	if err != nil {
		return "", &domain.RelaySubmissionError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &domain.RelaySubmissionError{StatusCode: resp.StatusCode, Message: "read response", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.RelaySubmissionError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	var created mispEventResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", &domain.RelaySubmissionError{StatusCode: resp.StatusCode, Message: "decode response", Cause: err}
	}
	if created.Event.ID == "" {
		return "", &domain.RelaySubmissionError{StatusCode: resp.StatusCode, Message: "response has no event id"}
	}

	m.logger.Info("misp event created", "event_id", created.Event.ID, "attributes", len(attrs), "title", title)

	return domain.Receipt(fmt.Sprintf("MISP event %s created with %d attributes: %s/events/view/%s",
		created.Event.ID, len(attrs), m.baseURL, created.Event.ID)), nil
}

// Ping checks that the instance is reachable and the key is accepted.
func (m *MISPClient) Ping(ctx context.Context) (string, error) {
	resp, err := m.do(ctx, http.MethodGet, "/servers/getVersion", nil)
	if err != nil {
		return "", fmt.Errorf("misp not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("misp: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("misp returned %d", resp.StatusCode)
	}
	var v struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("decode misp version: %w", err)
	}
	return v.Version, nil
}

func (m *MISPClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", m.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return m.client.Do(req)
}

func errorMessage(body []byte) string {
	var e mispErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && (e.Message != "" || e.Name != "") {
		if e.Message != "" {
			return e.Message
		}
		return e.Name
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
