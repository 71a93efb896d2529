package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

const (
	AlphaNumCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenRandomString draws l characters uniformly from charset using the
// system's secure randomness source.
func GenRandomString(l int, charset string) (string, error) {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, l)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("secure randomness unavailable: %w", err)
		}
		b[i] = charset[n.Int64()]
	}
	return string(b), nil
}

// CodeChallenge derives the S256 code challenge for a PKCE verifier.
func CodeChallenge(verifier string) string {
	h := sha256.New()
	h.Write([]byte(verifier))
	hash := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(hash)
}
