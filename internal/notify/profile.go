package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/goph-accounts/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ProfileClient calls the profile service over HTTP.
type ProfileClient struct {
	base string
	hc   *http.Client
}

// NewProfileClient returns a client for the service rooted at baseURL.
// A nil hc selects a client with a 10s timeout.
func NewProfileClient(baseURL string, hc *http.Client) *ProfileClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &ProfileClient{base: strings.TrimRight(baseURL, "/"), hc: hc}
}

type createProfileBody struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type updateUsernameBody struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// CreateProfile posts the new account's public fields; email is not shared.
func (c *ProfileClient) CreateProfile(ctx context.Context, a model.AccountSummary) error {
	return c.post(ctx, "/api/create/profile", createProfileBody{
		UserID:   a.ID.String(),
		Username: a.Username,
		Name:     a.Name,
	})
}

// UpdateUsername posts a username change.
func (c *ProfileClient) UpdateUsername(ctx context.Context, accountID uuid.UUID, username string) error {
	return c.post(ctx, "/api/update/username", updateUsernameBody{
		UserID:   accountID.String(),
		Username: username,
	})
}

func (c *ProfileClient) post(ctx context.Context, path string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("profile service %s: status %d", path, resp.StatusCode)
	}
	return nil
}
