package token

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
)

func TestGenRandomString(t *testing.T) {
	t.Run("length and charset", func(t *testing.T) {
		const charset = "abc123"

		s, err := GenRandomString(64, charset)
		if err != nil {
			t.Fatalf("GenRandomString returned error: %v", err)
		}
		if len(s) != 64 {
			t.Errorf("length: expected 64, got %d", len(s))
		}
		for _, c := range s {
			if !strings.ContainsRune(charset, c) {
				t.Errorf("character %q not in charset", c)
			}
		}
	})

	t.Run("unique per call", func(t *testing.T) {
		s1, err := GenRandomString(32, AlphaNumCharset)
		if err != nil {
			t.Fatalf("first call: %v", err)
		}
		s2, err := GenRandomString(32, AlphaNumCharset)
		if err != nil {
			t.Fatalf("second call: %v", err)
		}
		if s1 == s2 {
			t.Error("two generated strings should not collide")
		}
	})
}

func TestCodeChallenge(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	got := CodeChallenge(verifier)

	h := sha256.Sum256([]byte(verifier))
	want := base64.RawURLEncoding.EncodeToString(h[:])

	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	if strings.ContainsAny(got, "+/=") {
		t.Errorf("challenge %q must not contain +, / or =", got)
	}
}

// buildJWT assembles an unsigned-but-well-formed RS256 JWT for claim tests.
func buildJWT(t *testing.T, claims map[string]string) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))

	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}

	sig := base64.RawURLEncoding.EncodeToString([]byte("not-a-real-signature"))

	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "." + sig
}

func TestIsDemoToken(t *testing.T) {
	t.Run("detects the mock user token", func(t *testing.T) {
		tok := buildJWT(t, map[string]string{"name": "Mock User"})
		if !IsDemoToken(tok) {
			t.Error("expected the mock token to be detected")
		}
	})

	t.Run("rejects other RS256 tokens", func(t *testing.T) {
		tok := buildJWT(t, map[string]string{"name": "Real User"})
		if IsDemoToken(tok) {
			t.Error("a regular token must not be treated as demo")
		}
	})

	t.Run("rejects opaque tokens", func(t *testing.T) {
		if IsDemoToken("some-opaque-access-token") {
			t.Error("an opaque token must not be treated as demo")
		}
	})

	t.Run("rejects malformed tokens with the mock prefix", func(t *testing.T) {
		if IsDemoToken("eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9.broken") {
			t.Error("a malformed token must not be treated as demo")
		}
	})
}
