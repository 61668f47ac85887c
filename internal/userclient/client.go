package userclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnreachable marks a connectivity failure: the user service did not
// answer at all, as opposed to answering with an error body.
type ErrUnreachable struct {
	cause error
}

func (e *ErrUnreachable) Error() string {
	return fmt.Sprintf("user service unreachable: %v", e.cause)
}

func (e *ErrUnreachable) Unwrap() error { return e.cause }

// Client talks to the remote user service. Every call forwards the
// caller's own bearer token, so the user service applies its own
// authorization on top of ours. Response bodies are passed through
// verbatim; the caller inspects them for the error-string contract.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a Client with a bounded request timeout.
func New(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "userclient").Logger(),
	}
}

func (c *Client) do(ctx context.Context, method, path, bearerToken string, params url.Values) (string, error) {
	endpoint := c.baseURL + path

	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("user service call failed")
		return "", &ErrUnreachable{cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ErrUnreachable{cause: err}
	}
	return string(raw), nil
}

// GetName fetches the display name of a user.
func (c *Client) GetName(ctx context.Context, bearerToken, userID string) (string, error) {
	return c.do(ctx, http.MethodGet, "/api/user/name", bearerToken, url.Values{"user_id": {userID}})
}

// UpdateName changes the caller's own display name.
func (c *Client) UpdateName(ctx context.Context, bearerToken, firstName, lastName string) (string, error) {
	return c.do(ctx, http.MethodPost, "/api/user/update", bearerToken, url.Values{
		"first_name": {firstName},
		"last_name":  {lastName},
	})
}

// UpdateNameOther changes another user's display name.
func (c *Client) UpdateNameOther(ctx context.Context, bearerToken, userID, firstName, lastName string) (string, error) {
	return c.do(ctx, http.MethodPost, "/api/user/update/other", bearerToken, url.Values{
		"user_id":    {userID},
		"first_name": {firstName},
		"last_name":  {lastName},
	})
}

// ListUsers fetches the full user roster.
func (c *Client) ListUsers(ctx context.Context, bearerToken string) (string, error) {
	return c.do(ctx, http.MethodGet, "/api/user/viewallusers", bearerToken, nil)
}

// GetRole fetches a user's role.
func (c *Client) GetRole(ctx context.Context, bearerToken, userID string) (string, error) {
	return c.do(ctx, http.MethodGet, "/api/user/role", bearerToken, url.Values{"user_id": {userID}})
}

// SetRole changes a user's role.
func (c *Client) SetRole(ctx context.Context, bearerToken, userID, role string) (string, error) {
	return c.do(ctx, http.MethodPost, "/api/user/roleedit", bearerToken, url.Values{
		"user_id": {userID},
		"role":    {role},
	})
}
