package oauth

import (
	"context"
	"net/url"
	"strings"
	"testing"
)

func TestAcquireDirect(t *testing.T) {
	ctx := context.Background()

	t.Run("skips every grant when the api is unreachable", func(t *testing.T) {
		s := newTokenServer(t, false, response{200, `{"access_token":"tok"}`})
		c := NewClient(testConfig(s.URL))

		rec, err := c.AcquireDirect(ctx)
		if err != nil {
			t.Fatalf("expected a quiet skip, got error: %v", err)
		}
		if rec != nil {
			t.Errorf("expected no record, got %v", rec)
		}
		if len(s.requests) != 0 {
			t.Errorf("no grant should be attempted, got %d requests", len(s.requests))
		}
	})

	t.Run("first strategy wins", func(t *testing.T) {
		s := newTokenServer(t, true, response{200, `{"access_token":"tok","expires_in":3600}`})
		c := NewClient(testConfig(s.URL))

		rec, err := c.AcquireDirect(ctx)
		if err != nil {
			t.Fatalf("AcquireDirect returned error: %v", err)
		}
		if rec == nil || rec.AccessToken != "tok" {
			t.Fatalf("unexpected record: %v", rec)
		}

		if len(s.requests) != 1 {
			t.Fatalf("expected a single grant attempt, got %d", len(s.requests))
		}
		if ct := s.requests[0].contentType; ct != "application/json" {
			t.Errorf("first attempt should be the json password grant, got content type %q", ct)
		}
		if !strings.Contains(s.requests[0].body, `"grant_type":"password"`) {
			t.Errorf("json body missing password grant: %s", s.requests[0].body)
		}
	})

	t.Run("falls through to the form password grant", func(t *testing.T) {
		s := newTokenServer(t, true,
			response{400, `{"error":"unsupported"}`},
			response{200, `{"access_token":"tok2","expires_in":3600}`},
		)
		c := NewClient(testConfig(s.URL))

		rec, err := c.AcquireDirect(ctx)
		if err != nil {
			t.Fatalf("AcquireDirect returned error: %v", err)
		}
		if rec.AccessToken != "tok2" {
			t.Errorf("access token: got %q", rec.AccessToken)
		}

		if len(s.requests) != 2 {
			t.Fatalf("expected two grant attempts, got %d", len(s.requests))
		}

		v, err := url.ParseQuery(s.requests[1].body)
		if err != nil {
			t.Fatalf("parse form body: %v", err)
		}
		if v.Get("grant_type") != "password" {
			t.Errorf("grant_type: got %q", v.Get("grant_type"))
		}
		if v.Get("pushToken") != "push-token" {
			t.Errorf("the form variant must carry the push token, got %q", v.Get("pushToken"))
		}
	})

	t.Run("ends with client credentials", func(t *testing.T) {
		s := newTokenServer(t, true,
			response{400, `{}`},
			response{400, `{}`},
			response{200, `{"access_token":"tok3","expires_in":3600}`},
		)
		c := NewClient(testConfig(s.URL))

		rec, err := c.AcquireDirect(ctx)
		if err != nil {
			t.Fatalf("AcquireDirect returned error: %v", err)
		}
		if rec.AccessToken != "tok3" {
			t.Errorf("access token: got %q", rec.AccessToken)
		}

		v, err := url.ParseQuery(s.requests[2].body)
		if err != nil {
			t.Fatalf("parse form body: %v", err)
		}
		if v.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type: got %q", v.Get("grant_type"))
		}
		if _, ok := v["client_secret"]; ok {
			t.Error("client_secret must be omitted when not configured")
		}
	})

	t.Run("aggregates every failure", func(t *testing.T) {
		s := newTokenServer(t, true, response{400, `{"error":"denied"}`})
		c := NewClient(testConfig(s.URL))

		rec, err := c.AcquireDirect(ctx)
		if rec != nil {
			t.Errorf("expected no record, got %v", rec)
		}
		if err == nil {
			t.Fatal("expected an aggregated error")
		}
		if len(s.requests) != 3 {
			t.Errorf("every strategy should be attempted, got %d requests", len(s.requests))
		}
	})
}
