// Package remote talks to the optional cloud mirror. It exists purely as
// disaster recovery: every failure here is non-fatal and local progress is
// never blocked on it.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chronochess/progress/config"
	"github.com/chronochess/progress/internal/models"
)

// Save is the cloud record for one (user, slot). The achievements array is
// the only part the reconciler requires; the rest is carried opaquely.
type Save struct {
	Achievements []models.Achievement     `json:"achievements"`
	Statistics   *models.PlayerStatistics `json:"statistics,omitempty"`
	UpdatedAt    int64                    `json:"updatedAt"`
}

// DefaultSlot is used until the client exposes multiple save slots.
const DefaultSlot = "primary"

type Client struct {
	baseURL string
	apiKey  string
	enabled bool
	http    *http.Client
}

func NewClient(cfg config.RemoteConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		enabled: cfg.Enabled && cfg.BaseURL != "",
		http:    &http.Client{Timeout: timeout},
	}
}

// EnsureUser resolves the authenticated user id. Guest sessions (mirror
// disabled, no key, or the key rejected) come back as an empty id with no
// error, and every remote operation is skipped for them.
func (c *Client) EnsureUser(ctx context.Context) (string, error) {
	if !c.enabled || c.apiKey == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/user", nil)
	if err != nil {
		return "", err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth check returned %d", resp.StatusCode)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	return user.ID, nil
}

// Fetch loads the save for (userID, slot). A missing record is nil, nil.
func (c *Client) Fetch(ctx context.Context, userID, slot string) (*Save, error) {
	if !c.enabled {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.saveURL(userID, slot), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cloud save: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cloud save fetch returned %d", resp.StatusCode)
	}

	var save Save
	if err := json.NewDecoder(resp.Body).Decode(&save); err != nil {
		return nil, fmt.Errorf("failed to decode cloud save: %w", err)
	}
	return &save, nil
}

// Upsert writes the full save for (userID, slot).
func (c *Client) Upsert(ctx context.Context, userID, slot string, save Save) error {
	if !c.enabled {
		return nil
	}

	body, err := json.Marshal(save)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.saveURL(userID, slot), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upsert cloud save: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("cloud save upsert returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) saveURL(userID, slot string) string {
	return fmt.Sprintf("%s/saves/%s/%s", c.baseURL, userID, slot)
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
