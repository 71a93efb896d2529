package oauth

import "github.com/loapp/lofeed/internal/loink/token"

const (
	// https://datatracker.ietf.org/doc/html/rfc7636#section-4.1
	PKCELen     = 64
	PKCECharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
)

type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

func newPKCE() (PKCE, error) {
	v, err := token.GenRandomString(PKCELen, PKCECharset)
	if err != nil {
		return PKCE{}, err
	}

	return PKCE{
		Verifier:  v,
		Challenge: token.CodeChallenge(v),
		Method:    "S256",
	}, nil
}
