package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrNetwork marks failures where no response reached the client.
	ErrNetwork = errors.New("network error")
	// ErrUnauthorized maps an HTTP 401; the caller must force re-authentication.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedResponse marks a 2xx response missing required fields.
	ErrMalformedResponse = errors.New("malformed token response")
	// ErrCSRFMismatch marks a callback whose state does not match the one we
	// stored before redirecting; possibly a cross-site request forgery.
	ErrCSRFMismatch = errors.New("state mismatch, possible CSRF")
	// ErrNoCode marks a callback carrying no authorization code.
	ErrNoCode = errors.New("no authorization code in callback")
	// ErrNoFlow marks a callback with no outstanding authorization flow.
	ErrNoFlow = errors.New("no outstanding authorization flow")
)

const (
	MsgFailedParsing      = "failed to parse response"
	MsgFailedTokenRequest = "token request failed"
	MsgFailedRefresh      = "token refresh failed"
	MsgFailedStorage      = "storage operation failed"
)

// HTTPError is a non-2xx response from the provider.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

func (e *HTTPError) Unwrap() error {
	if e.Status == 401 {
		return ErrUnauthorized
	}
	return nil
}

// https://datatracker.ietf.org/doc/html/rfc6749#section-5.1
type tokenResponse struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

func (n tokenResponse) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("access_token", strings.Repeat("x", len(n.AccessToken))),
		slog.String("refresh_token", strings.Repeat("x", len(n.RefreshToken))),
		slog.String("token_type", n.TokenType),
		slog.String("scope", n.Scope),
		slog.Int("expires_in", n.ExpiresIn))
}

// parseTokenResponse normalizes the provider's two response shapes: fields
// nested under a "data" envelope, or flat at the top level. Nested wins.
func parseTokenResponse(b []byte) (tokenResponse, error) {
	var env struct {
		tokenResponse
		Data *tokenResponse `json:"data"`
	}

	if err := json.Unmarshal(b, &env); err != nil {
		return tokenResponse{}, fmt.Errorf("%s: %w", MsgFailedParsing, ErrMalformedResponse)
	}

	if env.Data != nil && env.Data.AccessToken != "" {
		return *env.Data, nil
	}

	if env.AccessToken != "" {
		return env.tokenResponse, nil
	}

	return tokenResponse{}, fmt.Errorf("missing access_token: %w", ErrMalformedResponse)
}
