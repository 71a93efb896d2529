package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/loapp/lofeed/internal/loink/feed"
	"github.com/loapp/lofeed/internal/loink/oauth"
	"github.com/loapp/lofeed/internal/session"
)

const pageSize = 10

func New(s *sessions.CookieStore, store *oauth.Store, svc oauth.Service, posts *feed.Client) *Handlers {
	return &Handlers{
		Session: s,
		Store:   store,
		OAuth:   svc,
		Feed:    posts,
	}
}

type Handlers struct {
	Session *sessions.CookieStore
	Store   *oauth.Store
	OAuth   oauth.Service
	Feed    *feed.Client
}

func (h *Handlers) addFlash(w http.ResponseWriter, r *http.Request, m string) {
	sess, err := h.Session.Get(r, session.CookieName)
	if err != nil {
		slog.Error(err.Error())
		return
	}

	sess.AddFlash(m)

	if err := sess.Save(r, w); err != nil {
		slog.Error(err.Error())
		return
	}
}

func (h *Handlers) getFlash(w http.ResponseWriter, r *http.Request) string {
	sess, err := h.Session.Get(r, session.CookieName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return ""
	}

	var msg string
	if m := sess.Flashes(); len(m) > 0 {
		msg = fmt.Sprintf(`<article>%s</article>`, m[0])
	}

	if err := sess.Save(r, w); err != nil {
		slog.Error(err.Error())
	}

	return msg
}

func (h *Handlers) markAuthenticated(w http.ResponseWriter, r *http.Request) error {
	sess, err := h.Session.Get(r, session.CookieName)
	if err != nil {
		return err
	}

	sess.Values[session.AuthenticatedKey] = true
	return sess.Save(r, w)
}

// Home renders one page of the feed. Expired tokens are refreshed or
// re-acquired transparently; a rejected token forces a logout.
func (h *Handlers) Home() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}

		tok, err := h.Store.GetValidToken(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if tok == "" {
			h.addFlash(w, r, "Your session expired, please log in again")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		p, err := h.Feed.Fetch(ctx, tok, page, pageSize)
		if err != nil {
			if errors.Is(err, oauth.ErrUnauthorized) {
				if err := h.Store.Logout(); err != nil {
					slog.Error("failed to clear auth data", "error", err)
				}
				h.addFlash(w, r, "Your token was rejected, please log in again")
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		var posts strings.Builder
		for _, post := range p.Items {
			fmt.Fprintf(&posts, `<article>
	<header><strong>%s</strong> <small>%s</small></header>
	<p>%s</p>
`, post.Author.Name, post.CreatedAt, post.Text)
			for _, photo := range post.Photos {
				fmt.Fprintf(&posts, "\t<img src=%q width=\"%d\" height=\"%d\" />\n", photo.URL, photo.Width, photo.Height)
			}
			posts.WriteString("</article>\n")
		}

		var nav strings.Builder
		if page > 1 {
			fmt.Fprintf(&nav, `<a href="/?page=%d">Previous</a> `, page-1)
		}
		if p.HasMore {
			fmt.Fprintf(&nav, `<a href="/?page=%d">Next</a>`, page+1)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		w.Write(fmt.Appendf(nil, `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.classless.purple.min.css">
  <title>LO Feed</title>
</head>
<body>
<header>
	<hgroup>
		<h1>LO Feed</h1>
		<p>Page %d, %d posts total</p>
	</hgroup>
	<nav>
	  <ul>
	    <li><a href="/oauth/refresh">Refresh Token</a></li>
	    <li><a href="/diagnostics">Diagnostics</a></li>
	    <li><a href="/oauth/logout">Logout</a></li>
	  </ul>
	</nav>
</header>
<main>
%s
<p>%s</p>
</main>
</body>
</html>
`, p.Page, p.Total, posts.String(), nav.String()))
	}
}

// Login renders the login page. A still-valid stored token skips it entirely.
func (h *Handlers) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := h.Store.GetValidToken(r.Context())
		if err == nil && tok != "" {
			if err := h.markAuthenticated(w, r); err != nil {
				slog.Error("failed to save session", "error", err)
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		msg := h.getFlash(w, r)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		w.Write(fmt.Appendf(nil, `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.classless.purple.min.css">
  <title>LO Feed</title>
</head>
<body>
<header>
	<hgroup>
		<h1>LO Feed</h1>
	</hgroup>
</header>
<main>
	%s
	<article>
		<h3>Login with LO</h3>
		<form action="/oauth/login" method="post">
			<p>Authorize through your browser.</p>
			<input type="submit" value="Login" />
		</form>
	</article>
	<article>
		<h3>Demo login</h3>
		<form action="/oauth/direct" method="post">
			<p>Use the built-in demo account, no browser round-trip.</p>
			<input type="submit" value="Demo login" />
		</form>
	</article>
	<article>
		<h3>Paste a token</h3>
		<form action="/token" method="post">
			<fieldset role="group">
		    <input name="token" placeholder="access token" required />
			  <input type="submit" value="Use token" />
		  </fieldset>
		</form>
	</article>
</main>
</body>
</html>
`, msg))
	}
}

// StartOAuth creates the PKCE flow and sends the browser to the provider.
func (h *Handlers) StartOAuth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authURL, err := h.OAuth.StartAuthorization()
		if err != nil {
			h.addFlash(w, r, err.Error())
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		http.Redirect(w, r, authURL, http.StatusSeeOther)
	}
}

// OAuthCallback completes the flow: the outstanding PKCE session is consumed,
// the callback validated and the code exchanged for tokens.
func (h *Handlers) OAuthCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.OAuth.HandleCallback(r.Context(), r.URL.String())
		if err != nil {
			slog.Error("authorization callback failed", "error", err)
			h.addFlash(w, r, "Could not complete authentication, please try again")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		if err := h.Store.Save(rec); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if err := h.markAuthenticated(w, r); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// DirectLogin runs the non-interactive grant chain.
func (h *Handlers) DirectLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.OAuth.AcquireDirect(r.Context())
		if err != nil || rec == nil {
			h.addFlash(w, r, "Could not obtain a token, the API may be unreachable")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		if err := h.Store.Save(rec); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if err := h.markAuthenticated(w, r); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// ManualToken stores a pasted access token. The provider tells us nothing
// about its expiry, so the record gets a one hour window.
func (h *Handlers) ManualToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimSpace(r.FormValue("token"))
		if tok == "" {
			h.addFlash(w, r, "Please provide a token")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		rec := &oauth.TokenRecord{
			AccessToken: tok,
			ExpiresAt:   time.Now().Add(time.Hour),
		}

		if err := h.Store.Save(rec); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if err := h.markAuthenticated(w, r); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// RefreshToken forces a pass through the token store's validity check.
func (h *Handlers) RefreshToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := h.Store.GetValidToken(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if tok == "" {
			h.addFlash(w, r, "Your session expired, please log in again")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// Logout clears the persisted auth state. Clearing is best effort: the user
// ends up logged out even when a delete fails underneath.
func (h *Handlers) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.Store.Logout(); err != nil {
			slog.Error("failed to clear auth data", "error", err)
		}

		sess, err := h.Session.Get(r, session.CookieName)
		if err == nil {
			delete(sess.Values, session.AuthenticatedKey)
			if err := sess.Save(r, w); err != nil {
				slog.Error("failed to save session", "error", err)
			}
		}

		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// Diagnostics walks the connectivity checks and renders the report.
func (h *Handlers) Diagnostics() http.HandlerFunc {
	check := func(ok bool) string {
		if ok {
			return "ok"
		}
		return "failed"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		d := h.OAuth.Diagnose(r.Context())

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		w.Write(fmt.Appendf(nil, `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.classless.purple.min.css">
  <title>LO Feed Diagnostics</title>
</head>
<body>
<header>
	<hgroup>
		<h1>Diagnostics</h1>
	</hgroup>
</header>
<main>
	<article>
		<ul>
			<li>API healthcheck: %s</li>
			<li>Auth endpoint: %s</li>
			<li>Token acquisition: %s</li>
			<li>Feed access: %s</li>
		</ul>
		<p>%s</p>
		<a href="/">Back to the feed</a>
	</article>
</main>
</body>
</html>
`, check(d.APIAvailable), check(d.AuthAvailable), check(d.TokenObtained), check(d.FeedAvailable), d.Message))
	}
}
