package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
)

// grantStrategy is one entry of the ordered credential-acquisition chain the
// direct login walks until a grant succeeds.
type grantStrategy struct {
	name    string
	attempt func(ctx context.Context) (*TokenRecord, error)
}

func (c *Client) strategies() []grantStrategy {
	return []grantStrategy{
		{name: "json password grant", attempt: c.jsonPasswordGrant},
		{name: "form password grant", attempt: c.formPasswordGrant},
		{name: "client credentials grant", attempt: c.clientCredentialsGrant},
	}
}

// AcquireDirect attempts the non-interactive grants in order, stopping at the
// first success. It exists as an operational fallback for contexts where the
// browser flow cannot run; the embedded credentials make it a demo path, not a
// login method. A nil record with a nil error means the API was unreachable.
func (c *Client) AcquireDirect(ctx context.Context) (*TokenRecord, error) {
	if !c.Healthcheck(ctx) {
		slog.Warn("api unreachable, skipping direct grants")
		return nil, nil
	}

	var errs []error
	for _, s := range c.strategies() {
		rec, err := s.attempt(ctx)
		if err != nil {
			slog.Warn("direct grant failed", "strategy", s.name, "error", err)
			errs = append(errs, err)
			continue
		}

		slog.Info("direct grant succeeded", "strategy", s.name)
		return rec, nil
	}

	return nil, errors.Join(errs...)
}

func (c *Client) jsonPasswordGrant(ctx context.Context) (*TokenRecord, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type": "password",
		"client_id":  c.cfg.ClientID,
		"username":   c.cfg.Username,
		"password":   c.cfg.Password,
	})
	if err != nil {
		return nil, err
	}

	return c.requestToken(ctx, "application/json", bytes.NewReader(body))
}

func (c *Client) formPasswordGrant(ctx context.Context) (*TokenRecord, error) {
	v := url.Values{}
	v.Set("grant_type", "password")
	v.Set("client_id", c.cfg.ClientID)
	v.Set("username", c.cfg.Username)
	v.Set("password", c.cfg.Password)
	v.Set("pushToken", c.cfg.PushToken)

	return c.requestToken(ctx, "application/x-www-form-urlencoded", strings.NewReader(v.Encode()))
}

func (c *Client) clientCredentialsGrant(ctx context.Context) (*TokenRecord, error) {
	v := url.Values{}
	v.Set("grant_type", "client_credentials")
	v.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecret != "" {
		v.Set("client_secret", c.cfg.ClientSecret)
	}

	return c.requestToken(ctx, "application/x-www-form-urlencoded", strings.NewReader(v.Encode()))
}
