package token

import (
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// mockHeader is the base64 header of the RS256 JWT the demo screen hands out.
const mockHeader = "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9"

const mockUserName = "Mock User"

// IsDemoToken reports whether the access token is the built-in demo token
// rather than a credential issued by the provider. The claims are read without
// signature verification; the result only switches the feed to canned data and
// grants nothing.
func IsDemoToken(raw string) bool {
	if !strings.HasPrefix(raw, mockHeader) {
		return false
	}

	parsed, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return false
	}

	var claims struct {
		Name string `json:"name"`
	}
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return false
	}

	return claims.Name == mockUserName
}
