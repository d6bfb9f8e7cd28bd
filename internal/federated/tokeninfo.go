package federated

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// TokenInfoClient verifies identity tokens against a token-info endpoint
// (Google-style "tokeninfo" lookup). The HTTP client is built exactly once;
// a missing endpoint URL fails construction, not individual requests.
type TokenInfoClient struct {
	endpoint string
	timeout  time.Duration

	once   sync.Once
	client *http.Client
}

// NewTokenInfoClient constructs a TokenInfoClient.
func NewTokenInfoClient(endpoint string, timeout time.Duration) (*TokenInfoClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("federated token-info endpoint is required")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("parse token-info endpoint: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TokenInfoClient{endpoint: endpoint, timeout: timeout}, nil
}

type tokenInfoResponse struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Error   string `json:"error_description"`
}

// Verify implements Verifier.
func (c *TokenInfoClient) Verify(ctx context.Context, idToken string) (*Identity, error) {
	c.once.Do(func() {
		c.client = &http.Client{Timeout: c.timeout}
	})

	form := url.Values{"id_token": {idToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token-info request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token-info request: %w", err)
	}
	defer res.Body.Close()

	var payload tokenInfoResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode token-info response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		if payload.Error != "" {
			return nil, fmt.Errorf("token rejected: %s", payload.Error)
		}
		return nil, fmt.Errorf("token rejected: status %d", res.StatusCode)
	}

	if payload.Subject == "" || payload.Email == "" {
		return nil, fmt.Errorf("token-info response missing subject or email")
	}

	return &Identity{
		SubjectID:   payload.Subject,
		Email:       payload.Email,
		DisplayName: payload.Name,
	}, nil
}
