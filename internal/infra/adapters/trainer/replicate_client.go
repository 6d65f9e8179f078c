// Package trainer talks to the remote fine-tuning provider's REST API.
package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"portrait-ai/internal/domain/ports/adapter"
)

var _ adapter.TrainerClient = (*ReplicateClient)(nil)

const defaultBaseURL = "https://api.replicate.com/v1"

// ReplicateClient implements adapter.TrainerClient against the Replicate API.
// The webhook signing secret is fetched lazily and cached for the process
// lifetime; the provider does not publish an expiry for it.
type ReplicateClient struct {
	token   string
	baseURL string
	client  *http.Client

	mu     sync.Mutex
	secret string
}

func NewReplicateClient(token, baseURL string) (*ReplicateClient, error) {
	if token == "" {
		return nil, errors.New("trainer api token empty")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &ReplicateClient{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *ReplicateClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &adapter.APIError{StatusCode: resp.StatusCode, Message: string(msg)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// CreateModel reserves the destination model slot for a fine-tune.
func (c *ReplicateClient) CreateModel(ctx context.Context, owner, name string, visibility adapter.ModelVisibility, hardware string) error {
	payload := map[string]any{
		"owner":      owner,
		"name":       name,
		"visibility": string(visibility),
		"hardware":   hardware,
	}
	return c.do(ctx, http.MethodPost, "/models", payload, nil)
}

// StartTraining launches a run of the trainer version into destination.
func (c *ReplicateClient) StartTraining(ctx context.Context, trainerVersion, destination string, input adapter.TrainingInput, webhookURL string, events []string) (*adapter.Training, error) {
	payload := map[string]any{
		"destination":           destination,
		"input":                 input,
		"webhook":               webhookURL,
		"webhook_events_filter": events,
	}
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/trainings/"+trainerVersion, payload, &out); err != nil {
		return nil, err
	}
	return &adapter.Training{ID: out.ID, Status: out.Status}, nil
}

func (c *ReplicateClient) DeleteModelVersion(ctx context.Context, owner, name, versionID string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/models/%s/%s/versions/%s", owner, name, versionID), nil, nil)
}

func (c *ReplicateClient) DeleteModel(ctx context.Context, owner, name string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/models/%s/%s", owner, name), nil, nil)
}

// WebhookSigningSecret returns the cached signing secret, fetching it once.
// On verification failures after a provider-side rotation, callers may force
// a refresh by constructing a fresh client.
func (c *ReplicateClient) WebhookSigningSecret(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.secret != "" {
		return c.secret, nil
	}
	var out struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodGet, "/webhooks/default/secret", nil, &out); err != nil {
		return "", err
	}
	if out.Key == "" {
		return "", errors.New("provider returned empty webhook secret")
	}
	c.secret = out.Key
	return c.secret, nil
}
