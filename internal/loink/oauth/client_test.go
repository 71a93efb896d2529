package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/loapp/lofeed/internal/config"
)

func testConfig(base string) config.Config {
	return config.Config{
		APIURL:      base,
		AuthURL:     base,
		ClientID:    "1",
		RedirectURI: "app://callback",
		Username:    "demo@example.com",
		Password:    "secret",
		PushToken:   "push-token",
	}
}

// tokenServer records token endpoint requests and plays back canned responses,
// one per request, repeating the last one.
type tokenServer struct {
	*httptest.Server
	requests  []capturedRequest
	responses []response
	healthy   bool
}

type capturedRequest struct {
	contentType string
	body        string
}

type response struct {
	status int
	body   string
}

func newTokenServer(t *testing.T, healthy bool, responses ...response) *tokenServer {
	t.Helper()

	s := &tokenServer{responses: responses, healthy: healthy}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthcheck":
			if !s.healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		case "/identity/token":
			b, _ := io.ReadAll(r.Body)
			s.requests = append(s.requests, capturedRequest{
				contentType: r.Header.Get("Content-Type"),
				body:        string(b),
			})

			i := len(s.requests) - 1
			if i >= len(s.responses) {
				i = len(s.responses) - 1
			}
			res := s.responses[i]
			w.WriteHeader(res.status)
			fmt.Fprint(w, res.body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)

	return s
}

func assertRecord(t *testing.T, rec *TokenRecord, access, refresh string, expiresIn time.Duration) {
	t.Helper()

	if rec.AccessToken != access {
		t.Errorf("access token: expected %q, got %q", access, rec.AccessToken)
	}
	if rec.RefreshToken != refresh {
		t.Errorf("refresh token: expected %q, got %q", refresh, rec.RefreshToken)
	}

	want := time.Now().Add(expiresIn)
	if d := rec.ExpiresAt.Sub(want); d < -10*time.Second || d > 10*time.Second {
		t.Errorf("expiry: expected around %v, got %v", want, rec.ExpiresAt)
	}
}

func TestAuthorizeURL(t *testing.T) {
	c := NewClient(testConfig("https://api.example.com/v1"))

	flow := &FlowData{
		State: "abc123",
		PKCE:  PKCE{Verifier: "v", Challenge: "challenge", Method: "S256"},
	}

	u := c.AuthorizeURL(flow)

	if !strings.HasPrefix(u, "https://api.example.com/v1/auth?") {
		t.Fatalf("unexpected endpoint: %s", u)
	}

	for _, want := range []string{"state=abc123", "response_type=code", "code_challenge=challenge", "code_challenge_method=S256", "client_id=1"} {
		if strings.Count(u, want) != 1 {
			t.Errorf("expected exactly one occurrence of %q in %s", want, u)
		}
	}

	if !strings.Contains(u, "redirect_uri="+url.QueryEscape("app://callback")) {
		t.Errorf("missing escaped redirect_uri in %s", u)
	}

	if strings.Contains(u, "scope=") {
		t.Errorf("scope must be omitted when not configured: %s", u)
	}
}

func TestExchangeCode(t *testing.T) {
	ctx := context.Background()

	t.Run("nested data envelope", func(t *testing.T) {
		s := newTokenServer(t, true, response{200, `{"data":{"access_token":"tok1","expires_in":3600}}`})
		c := NewClient(testConfig(s.URL))

		rec, err := c.ExchangeCode(ctx, "XYZ", "verifier")
		if err != nil {
			t.Fatalf("ExchangeCode returned error: %v", err)
		}

		assertRecord(t, rec, "tok1", "", time.Hour)

		v, err := url.ParseQuery(s.requests[0].body)
		if err != nil {
			t.Fatalf("parse request body: %v", err)
		}
		if v.Get("grant_type") != "authorization_code" {
			t.Errorf("grant_type: got %q", v.Get("grant_type"))
		}
		if v.Get("code") != "XYZ" || v.Get("code_verifier") != "verifier" {
			t.Errorf("code/verifier not forwarded: %v", v)
		}
		if v.Get("redirect_uri") != "app://callback" {
			t.Errorf("redirect_uri: got %q", v.Get("redirect_uri"))
		}
	})

	t.Run("flat shape", func(t *testing.T) {
		s := newTokenServer(t, true, response{200, `{"access_token":"tok2","refresh_token":"r2","expires_in":60}`})
		c := NewClient(testConfig(s.URL))

		rec, err := c.ExchangeCode(ctx, "XYZ", "verifier")
		if err != nil {
			t.Fatalf("ExchangeCode returned error: %v", err)
		}

		assertRecord(t, rec, "tok2", "r2", time.Minute)
	})

	t.Run("missing expires_in defaults to an hour", func(t *testing.T) {
		s := newTokenServer(t, true, response{200, `{"access_token":"tok3"}`})
		c := NewClient(testConfig(s.URL))

		rec, err := c.ExchangeCode(ctx, "XYZ", "verifier")
		if err != nil {
			t.Fatalf("ExchangeCode returned error: %v", err)
		}

		assertRecord(t, rec, "tok3", "", time.Hour)
	})

	t.Run("missing access_token is malformed", func(t *testing.T) {
		s := newTokenServer(t, true, response{200, `{"data":{"token_type":"Bearer"}}`})
		c := NewClient(testConfig(s.URL))

		_, err := c.ExchangeCode(ctx, "XYZ", "verifier")
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("non-200 surfaces status and body", func(t *testing.T) {
		s := newTokenServer(t, true, response{400, `{"error":"invalid_grant"}`})
		c := NewClient(testConfig(s.URL))

		_, err := c.ExchangeCode(ctx, "XYZ", "verifier")

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("expected HTTPError, got %v", err)
		}
		if httpErr.Status != 400 {
			t.Errorf("status: expected 400, got %d", httpErr.Status)
		}
		if !strings.Contains(httpErr.Body, "invalid_grant") {
			t.Errorf("body not captured: %q", httpErr.Body)
		}
	})

	t.Run("unreachable endpoint is a network error", func(t *testing.T) {
		s := newTokenServer(t, true, response{200, `{}`})
		cfg := testConfig(s.URL)
		s.Close()

		c := NewClient(cfg)

		_, err := c.ExchangeCode(ctx, "XYZ", "verifier")
		if !errors.Is(err, ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
	})
}

func TestRefresh(t *testing.T) {
	s := newTokenServer(t, true, response{200, `{"data":{"access_token":"fresh","refresh_token":"next","expires_in":1800}}`})
	c := NewClient(testConfig(s.URL))

	rec, err := c.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}

	assertRecord(t, rec, "fresh", "next", 30*time.Minute)

	v, err := url.ParseQuery(s.requests[0].body)
	if err != nil {
		t.Fatalf("parse request body: %v", err)
	}
	if v.Get("grant_type") != "refresh_token" {
		t.Errorf("grant_type: got %q", v.Get("grant_type"))
	}
	if v.Get("refresh_token") != "old-refresh" {
		t.Errorf("refresh_token: got %q", v.Get("refresh_token"))
	}
}

func TestStartAuthorizationAndCallback(t *testing.T) {
	ctx := context.Background()

	stateFrom := func(t *testing.T, authURL string) string {
		t.Helper()
		u, err := url.Parse(authURL)
		if err != nil {
			t.Fatalf("parse authorization URL: %v", err)
		}
		return u.Query().Get("state")
	}

	t.Run("full round trip", func(t *testing.T) {
		s := newTokenServer(t, true, response{200, `{"data":{"access_token":"tok1","expires_in":3600}}`})
		c := NewClient(testConfig(s.URL))

		authURL, err := c.StartAuthorization()
		if err != nil {
			t.Fatalf("StartAuthorization returned error: %v", err)
		}

		state := stateFrom(t, authURL)
		if state == "" {
			t.Fatal("authorization URL carries no state")
		}

		rec, err := c.HandleCallback(ctx, "app://callback?code=XYZ&state="+state)
		if err != nil {
			t.Fatalf("HandleCallback returned error: %v", err)
		}
		if rec.AccessToken != "tok1" {
			t.Errorf("access token: got %q", rec.AccessToken)
		}

		// The flow is single use; replaying the same callback must fail.
		if _, err := c.HandleCallback(ctx, "app://callback?code=XYZ&state="+state); !errors.Is(err, ErrNoFlow) {
			t.Errorf("expected ErrNoFlow on replay, got %v", err)
		}
	})

	t.Run("state mismatch consumes the flow", func(t *testing.T) {
		s := newTokenServer(t, true, response{200, `{"access_token":"tok"}`})
		c := NewClient(testConfig(s.URL))

		if _, err := c.StartAuthorization(); err != nil {
			t.Fatalf("StartAuthorization returned error: %v", err)
		}

		_, err := c.HandleCallback(ctx, "app://callback?code=XYZ&state=def456")
		if !errors.Is(err, ErrCSRFMismatch) {
			t.Fatalf("expected ErrCSRFMismatch, got %v", err)
		}

		if _, err := c.HandleCallback(ctx, "app://callback?code=XYZ&state=def456"); !errors.Is(err, ErrNoFlow) {
			t.Errorf("expected ErrNoFlow after the flow was consumed, got %v", err)
		}

		if len(s.requests) != 0 {
			t.Errorf("no token request should be made on mismatch, got %d", len(s.requests))
		}
	})

	t.Run("no outstanding flow", func(t *testing.T) {
		s := newTokenServer(t, true, response{200, `{"access_token":"tok"}`})
		c := NewClient(testConfig(s.URL))

		if _, err := c.HandleCallback(ctx, "app://callback?code=XYZ&state=abc"); !errors.Is(err, ErrNoFlow) {
			t.Errorf("expected ErrNoFlow, got %v", err)
		}
	})
}

func TestHealthcheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTokenServer(t, true)
		c := NewClient(testConfig(s.URL))
		if !c.Healthcheck(context.Background()) {
			t.Error("expected the healthcheck to pass")
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		s := newTokenServer(t, false)
		c := NewClient(testConfig(s.URL))
		if c.Healthcheck(context.Background()) {
			t.Error("expected the healthcheck to fail")
		}
	})
}
