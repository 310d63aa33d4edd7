package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// RESTClient reads entity states from the Home Assistant REST API
type RESTClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewRESTClient creates a client for the instance at baseURL using a long-lived access token
func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// State fetches one entity. A nil state without error means the entity does not exist.
func (c *RESTClient) State(ctx context.Context, entityID string) (*EntityState, error) {
	endpoint := fmt.Sprintf("%s/api/states/%s", c.baseURL, url.PathEscape(entityID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching state of %s", entityID)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.Errorf("API returned status %d for %s: %s", resp.StatusCode, entityID, string(body))
	}

	var state EntityState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, errors.Wrapf(err, "decoding state of %s", entityID)
	}

	return &state, nil
}

// Snapshot fetches each entity in turn. Entities fetched before a failure are
// returned alongside the error.
func (c *RESTClient) Snapshot(ctx context.Context, entityIDs ...string) (Snapshot, error) {
	snap := make(Snapshot, len(entityIDs))
	for _, id := range entityIDs {
		if id == "" {
			continue
		}
		state, err := c.State(ctx, id)
		if err != nil {
			return snap, err
		}
		if state != nil {
			snap[id] = state
		}
	}
	return snap, nil
}
