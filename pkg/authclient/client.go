// Package authclient calls the external auth service. This backend only
// needs it to rotate an expired access token.
package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Skotchmaster/ebee_shop/pkg/cookies"
	"github.com/Skotchmaster/ebee_shop/pkg/logging"
)

// ErrRejected means the auth service refused the refresh token. Any other
// error means the service could not be asked.
var ErrRejected = errors.New("refresh rejected")

const refreshPath = "/auth/refresh"

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(authServiceURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(authServiceURL, "/"),
		http: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TokenPair is the rotated pair with unix expiry times.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	AccessExp    int64  `json:"access_exp"`
	RefreshExp   int64  `json:"refresh_exp"`
}

func (c *Client) RefreshTokens(ctx context.Context, refreshToken, accessToken string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("client", "auth", "op", "refresh")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, nil)
	if err != nil {
		return nil, fmt.Errorf("auth refresh: build request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: cookies.RefreshToken, Value: refreshToken})
	req.AddCookie(&http.Cookie{Name: cookies.AccessToken, Value: accessToken})

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		l.Warn("auth_refresh_unavailable", "error", err)
		return nil, fmt.Errorf("auth refresh: %w", err)
	}
	defer resp.Body.Close()
	l = l.With("status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		l.Info("auth_refresh_rejected")
		return nil, fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	case resp.StatusCode != http.StatusOK:
		l.Warn("auth_refresh_error")
		return nil, fmt.Errorf("auth refresh: unexpected status %d", resp.StatusCode)
	}

	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, fmt.Errorf("auth refresh: decode: %w", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, fmt.Errorf("auth refresh: incomplete token pair")
	}
	l.Debug("auth_refresh_ok")
	return &pair, nil
}
