package oauth

import (
	"net/url"
	"regexp"
	"strings"
)

var codeRegexp = regexp.MustCompile(`code=([^&]+)`)

// parseCallback pulls the code and state parameters out of a redirect URL.
// The provider delivers them in one of three encodings, tried in order:
// a query string after the redirect URI marker, a standard query string,
// or the URL fragment. A bare "code=" match is the last resort.
func parseCallback(rawURL, marker string) (code, state string) {
	var params url.Values

	switch {
	case marker != "" && strings.Contains(rawURL, marker+"?"):
		_, after, _ := strings.Cut(rawURL, marker+"?")
		params, _ = url.ParseQuery(after)
	case strings.Contains(rawURL, "?"):
		if u, err := url.Parse(rawURL); err == nil {
			params = u.Query()
		}
	case strings.Contains(rawURL, "#"):
		_, after, _ := strings.Cut(rawURL, "#")
		params, _ = url.ParseQuery(after)
	}

	code = params.Get("code")
	state = params.Get("state")

	if code == "" {
		if m := codeRegexp.FindStringSubmatch(rawURL); m != nil {
			code = m[1]
		}
	}

	return code, state
}

// ExtractCode validates the callback against the expected anti-CSRF state and
// returns the authorization code. A state mismatch wins over a present code.
func ExtractCode(rawURL, marker, expectedState string) (string, error) {
	code, state := parseCallback(rawURL, marker)

	if state == "" || state != expectedState {
		return "", ErrCSRFMismatch
	}

	if code == "" {
		return "", ErrNoCode
	}

	return code, nil
}
