package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Persistence and realtime fan-out (shopping list, likes, wall refresh
// pushes) live in Supabase; this client only covers the wall_state row the
// backend touches: a version counter the kiosks watch to know when to
// reload. Everything else talks to Supabase directly from the devices.

// WallState is the single wall_state row (id = 1).
type WallState struct {
	Version   *int64     `json:"version"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Client is a thin Supabase REST (PostgREST) client using the service-role
// key.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
}

func New(baseURL, serviceKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		serviceKey: serviceKey,
	}
}

// Enabled reports whether the collaborator is configured at all; the wall
// works without it, minus live refresh.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != "" && c.serviceKey != ""
}

// BumpWallState calls the bump_wall_state RPC, incrementing the version the
// kiosks subscribe to. Callers treat errors as log-and-continue.
func (c *Client) BumpWallState(ctx context.Context, note string) error {
	body := map[string]any{"_note": nil}
	if note != "" {
		body["_note"] = note
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/rpc/bump_wall_state", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("supabase: bump_wall_state: %s: %s", resp.Status, msg)
	}
	return nil
}

// GetWallState reads the wall_state row.
func (c *Client) GetWallState(ctx context.Context) (WallState, error) {
	req, err := c.newRequest(ctx, http.MethodGet,
		"/rest/v1/wall_state?id=eq.1&select=version,updated_at", nil)
	if err != nil {
		return WallState{}, err
	}
	// Ask PostgREST for a single object instead of a one-element array.
	req.Header.Set("Accept", "application/vnd.pgrst.object+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return WallState{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WallState{}, fmt.Errorf("supabase: wall_state: %s", resp.Status)
	}

	var state WallState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return WallState{}, fmt.Errorf("supabase: wall_state decode: %w", err)
	}
	return state, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	return req, nil
}
