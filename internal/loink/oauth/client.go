package oauth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loapp/lofeed/internal/config"
)

type Service interface {
	ClientID() string
	RedirectURI() string
	AuthorizeURL(f *FlowData) string
	StartAuthorization() (string, error)
	HandleCallback(ctx context.Context, rawURL string) (*TokenRecord, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*TokenRecord, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenRecord, error)
	AcquireDirect(ctx context.Context) (*TokenRecord, error)
	Healthcheck(ctx context.Context) bool
	Diagnose(ctx context.Context) Diagnostics
}

type Client struct {
	cfg     config.Config
	http    *http.Client
	storage Storage
}

type Option func(c *Client)

func WithStorage(storage Storage) Option {
	return func(c *Client) {
		c.storage = storage
	}
}

func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func NewClient(cfg config.Config, opts ...Option) Service {
	c := &Client{
		cfg:     cfg,
		storage: defaultStorage(),
		http:    &http.Client{Timeout: time.Second * 60},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) ClientID() string {
	return c.cfg.ClientID
}

func (c *Client) RedirectURI() string {
	return c.cfg.RedirectURI
}

func (c *Client) tokenEndpoint() string {
	return c.cfg.AuthURL + "/identity/token"
}

// AuthorizeURL builds the provider's authorization endpoint URL for a flow.
// Validation of the redirect URI is the caller's concern; an empty one passes
// through unchanged.
func (c *Client) AuthorizeURL(f *FlowData) string {
	v := url.Values{}
	v.Set("response_type", "code")
	v.Set("client_id", c.cfg.ClientID)
	v.Set("redirect_uri", c.cfg.RedirectURI)
	v.Set("code_challenge", f.PKCE.Challenge)
	v.Set("code_challenge_method", f.PKCE.Method)
	v.Set("state", f.State)
	if c.cfg.Scope != "" {
		v.Set("scope", c.cfg.Scope)
	}

	return fmt.Sprintf("%s/auth?%s", c.cfg.AuthURL, v.Encode())
}

// StartAuthorization creates a fresh PKCE flow, persists it as the single
// outstanding flow, and returns the URL to open in the user's browser.
func (c *Client) StartAuthorization() (string, error) {
	flow, err := newFlowData()
	if err != nil {
		return "", err
	}

	if err := c.storage.Set(flow); err != nil {
		return "", fmt.Errorf("%s: %w", MsgFailedStorage, err)
	}

	return c.AuthorizeURL(flow), nil
}

// HandleCallback consumes the outstanding flow, validates the callback URL
// against it and exchanges the authorization code for tokens. The flow is
// gone after this call whatever the outcome.
func (c *Client) HandleCallback(ctx context.Context, rawURL string) (*TokenRecord, error) {
	flow, err := c.storage.Consume()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MsgFailedStorage, err)
	}
	if flow == nil {
		return nil, ErrNoFlow
	}

	code, err := ExtractCode(rawURL, c.cfg.RedirectURI, flow.State)
	if err != nil {
		return nil, err
	}

	return c.ExchangeCode(ctx, code, flow.PKCE.Verifier)
}

// ExchangeCode posts the authorization code and PKCE verifier to the token
// endpoint.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*TokenRecord, error) {
	// https://datatracker.ietf.org/doc/html/rfc6749#section-4.1.3
	v := url.Values{}
	v.Set("grant_type", "authorization_code")
	v.Set("client_id", c.cfg.ClientID)
	v.Set("code", code)
	v.Set("code_verifier", verifier)
	v.Set("redirect_uri", c.cfg.RedirectURI)

	return c.requestToken(ctx, "application/x-www-form-urlencoded", strings.NewReader(v.Encode()))
}

// Refresh trades a refresh token for a new token record. The record's refresh
// token may come back empty when the provider does not rotate it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenRecord, error) {
	v := url.Values{}
	v.Set("grant_type", "refresh_token")
	v.Set("client_id", c.cfg.ClientID)
	v.Set("refresh_token", refreshToken)

	rec, err := c.requestToken(ctx, "application/x-www-form-urlencoded", strings.NewReader(v.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MsgFailedRefresh, err)
	}
	return rec, nil
}

// Healthcheck gates the direct grants; the fixed timeout keeps an unreachable
// deployment from stalling the login screen.
func (c *Client) Healthcheck(ctx context.Context) bool {
	client := http.Client{
		Timeout: time.Second * 5,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"/healthcheck", nil)
	if err != nil {
		return false
	}

	res, err := client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK
}

func (c *Client) requestToken(ctx context.Context, contentType string, body io.Reader) (*TokenRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	r, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer r.Body.Close()

	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if r.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: r.StatusCode, Body: string(b)}
	}

	res, err := parseTokenResponse(b)
	if err != nil {
		return nil, err
	}

	slog.Info("token response received", "token", res)

	return newTokenRecord(res), nil
}
