package pathsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrRemoteNotFound is returned by RemoteClient.Fetch when the server has no
// progress for the requested (student, plan, day).
var ErrRemoteNotFound = errors.New("pathsync: no remote progress")

// HTTPDoer is an interface for making HTTP requests.
// It is implemented by *http.Client and can be mocked in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PersistRequest carries one progress snapshot to the remote store. The
// server upserts by the (plan, day, kind) key, so callers never decide
// between create and update. Timestamps are included so the server can keep
// the client's last-writer-wins ordering intact.
type PersistRequest struct {
	StudentID   string             `json:"student_id"`
	PlanID      string             `json:"plan_id"`
	DayIndex    int                `json:"day_index"`
	Kind        ActivityKind       `json:"activity_type"`
	Status      ActivityStatus     `json:"status"`
	TimeSpent   int                `json:"time_spent"`
	Attempts    int                `json:"attempts"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Responses   []ActivityResponse `json:"responses"`
}

// RemoteClient abstracts network calls against the authoritative server.
// Implementations make a single attempt per call and report success or
// failure only; retrying is the outbox's job, never the client's.
type RemoteClient interface {
	// Fetch returns the server's progress map keyed by activity kind, or
	// ErrRemoteNotFound if the server has nothing for the tuple yet.
	Fetch(ctx context.Context, studentID, planID string, dayIndex int) (map[ActivityKind]*ActivityProgress, error)

	// Persist upserts one progress snapshot.
	Persist(ctx context.Context, req PersistRequest) error

	// Probe is a minimal reachability check with no meaningful payload.
	Probe(ctx context.Context) error
}

// HTTPRemoteClientConfig configures the HTTP remote client.
type HTTPRemoteClientConfig struct {
	// BaseURL of the progress API, e.g. "https://api.example.com".
	BaseURL string

	// AuthToken is sent as a bearer token when non-empty.
	AuthToken string

	// RequestTimeout bounds each call when the caller's context has no
	// earlier deadline. Default: 15s.
	RequestTimeout time.Duration

	// HTTPClient overrides the underlying client; useful in tests.
	HTTPClient HTTPDoer
}

// HTTPRemoteClient implements RemoteClient over a JSON HTTP API.
type HTTPRemoteClient struct {
	config HTTPRemoteClientConfig
	client HTTPDoer
}

// NewHTTPRemoteClient creates a remote client for the given API base URL.
func NewHTTPRemoteClient(config HTTPRemoteClientConfig) (*HTTPRemoteClient, error) {
	if config.BaseURL == "" {
		return nil, errors.New("remote client: base URL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("remote client: invalid base URL: %w", err)
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 15 * time.Second
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.RequestTimeout}
	}

	return &HTTPRemoteClient{config: config, client: client}, nil
}

func (h *HTTPRemoteClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("remote client: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.config.AuthToken)
	}
	return req, nil
}

func (h *HTTPRemoteClient) Fetch(ctx context.Context, studentID, planID string, dayIndex int) (map[ActivityKind]*ActivityProgress, error) {
	path := "/api/v1/progress/" + url.PathEscape(studentID) + "/" + url.PathEscape(planID) + "/" + strconv.Itoa(dayIndex)
	req, err := h.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote client: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrRemoteNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("remote client: fetch status %d: %s", resp.StatusCode, string(body))
	}

	var result map[ActivityKind]*ActivityProgress
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("remote client: decode fetch response: %w", err)
	}
	return result, nil
}

func (h *HTTPRemoteClient) Persist(ctx context.Context, persist PersistRequest) error {
	payload, err := json.Marshal(persist)
	if err != nil {
		return fmt.Errorf("remote client: marshal persist request: %w", err)
	}

	req, err := h.newRequest(ctx, http.MethodPost, "/api/v1/progress", bytes.NewReader(payload))
	if err != nil {
		return err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote client: persist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote client: persist status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (h *HTTPRemoteClient) Probe(ctx context.Context) error {
	req, err := h.newRequest(ctx, http.MethodGet, "/api/v1/ping", nil)
	if err != nil {
		return err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote client: probe: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64))

	if resp.StatusCode >= 500 {
		return fmt.Errorf("remote client: probe status %d", resp.StatusCode)
	}
	return nil
}
