// Package evallog ships log entries to the remote evaluation log service.
//
// The service accepts {stack, level, package, message} entries authorised by
// a bearer token that is obtained from a separate auth endpoint. Client talks
// to both endpoints; Handler adapts Client to log/slog so that shipping logs
// never blocks the code that produced them.
package evallog

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

	"github.com/golang-jwt/jwt/v4"
)

const (
	StackBackend  = "backend"
	StackFrontend = "frontend"

	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

// tokenExpirySkew renews tokens slightly before they actually expire.
const tokenExpirySkew = 30 * time.Second

var (
	ErrInvalidEntry = errors.New("invalid log entry")
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	validStacks = map[string]struct{}{StackBackend: {}, StackFrontend: {}}
	validLevels = map[string]struct{}{LevelInfo: {}, LevelWarn: {}, LevelError: {}, LevelFatal: {}}

	validPackages = map[string]struct{}{
		// frontend
		"component": {}, "hook": {}, "page": {}, "state": {}, "style": {},
		// backend
		"cache": {}, "controller": {}, "cron job": {}, "db": {}, "domain": {},
		"handler": {}, "repository": {}, "route": {}, "service": {},
		// shared
		"auth": {}, "config": {}, "middleware": {}, "utils": {},
	}
)

// IsValidPackage reports whether name belongs to the package vocabulary accepted by the service.
func IsValidPackage(name string) bool {
	_, ok := validPackages[name]
	return ok
}

// Entry is a single log line as accepted by the log service.
type Entry struct {
	Stack   string `json:"stack"`
	Level   string `json:"level"`
	Package string `json:"package"`
	Message string `json:"message"`
}

// Validate checks the entry against the values the service accepts.
func (e Entry) Validate() error {
	if _, ok := validStacks[e.Stack]; !ok {
		return fmt.Errorf("%w: stack %q", ErrInvalidEntry, e.Stack)
	}
	if _, ok := validLevels[e.Level]; !ok {
		return fmt.Errorf("%w: level %q", ErrInvalidEntry, e.Level)
	}
	if !IsValidPackage(e.Package) {
		return fmt.Errorf("%w: package %q", ErrInvalidEntry, e.Package)
	}
	return nil
}

// Credentials identify the client against the auth endpoint.
type Credentials struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	RollNo       string `json:"rollNo"`
	AccessCode   string `json:"accessCode"`
	ClientID     string `json:"clientID"`
	ClientSecret string `json:"clientSecret"`
}

type authResponse struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type logResponse struct {
	LogID   string `json:"logID"`
	Message string `json:"message"`
}

// Client sends entries to the log service. The bearer token is fetched on
// first use and renewed when it expires or is rejected.
type Client struct {
	httpClient *http.Client
	logsURL    string
	authURL    string
	creds      Credentials
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(logsURL, authURL string, creds Credentials, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logsURL:    logsURL,
		authURL:    authURL,
		creds:      creds,
		now:        time.Now,
	}
}

// Authenticate exchanges the credentials for a bearer token and caches it.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	const op = "evallog.Client.Authenticate"

	body, err := json.Marshal(c.creds)
	if err != nil {
		return "", fmt.Errorf("%s: failed to encode credentials: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: failed to send request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%s: %w: status %d", op, ErrUnauthorized, resp.StatusCode)
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	if auth.AccessToken == "" {
		return "", fmt.Errorf("%s: %w: empty access token", op, ErrUnauthorized)
	}

	c.mu.Lock()
	c.token = auth.AccessToken
	c.tokenExpiry = c.expiryOf(auth)
	c.mu.Unlock()

	return auth.AccessToken, nil
}

// expiryOf prefers the exp claim of the token and falls back to expires_in
// seconds. A zero time means the token is used until the service rejects it.
func (c *Client) expiryOf(auth authResponse) time.Time {
	var claims jwt.RegisteredClaims

	if _, _, err := jwt.NewParser().ParseUnverified(auth.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}

	if auth.ExpiresIn > 0 {
		return c.now().Add(time.Duration(auth.ExpiresIn) * time.Second)
	}

	return time.Time{}
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, expiry := c.token, c.tokenExpiry
	c.mu.Unlock()

	if token != "" && (expiry.IsZero() || c.now().Add(tokenExpirySkew).Before(expiry)) {
		return token, nil
	}

	return c.Authenticate(ctx)
}

func (c *Client) invalidateToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == token {
		c.token = ""
		c.tokenExpiry = time.Time{}
	}
}

// Send validates and posts a single entry, returning the id assigned by the service.
func (c *Client) Send(ctx context.Context, e Entry) (string, error) {
	const op = "evallog.Client.Send"

	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("%s: failed to encode entry: %w", op, err)
	}

	for attempt := 0; ; attempt++ {
		token, err := c.currentToken(ctx)
		if err != nil {
			return "", fmt.Errorf("%s: failed to get token: %w", op, err)
		}

		logID, err := c.post(ctx, token, body)
		if errors.Is(err, ErrUnauthorized) && attempt == 0 {
			c.invalidateToken(token)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		return logID, nil
	}
}

func (c *Client) post(ctx context.Context, token string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.logsURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var lr logResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return lr.LogID, nil
}
