package session

import (
	"github.com/gorilla/sessions"
)

const (
	CookieName = "lofeed-session"

	// AuthenticatedKey flags a browser session that completed a login.
	AuthenticatedKey = "authenticated"
)

func Init(secret string) *sessions.CookieStore {
	return sessions.NewCookieStore([]byte(secret))
}
