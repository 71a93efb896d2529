package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/loapp/lofeed/internal/config"
	"github.com/loapp/lofeed/internal/database"
	"github.com/loapp/lofeed/internal/handlers"
	"github.com/loapp/lofeed/internal/loink/feed"
	"github.com/loapp/lofeed/internal/loink/oauth"
	"github.com/loapp/lofeed/internal/session"
)

func main() {
	port := flag.String("port", "9000", "The port the web server should listen on")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	d := database.Init(cfg.DatabasePath)
	st := database.New(d)

	s := session.Init(cfg.SessionSecret)
	o := oauth.NewClient(cfg, oauth.WithStorage(
		oauth.NewKVFlowStorage(st.KV),
	))
	tokens := oauth.NewStore(st.KV, o)
	posts := feed.NewClient(cfg.APIURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	h := handlers.New(s, tokens, o, posts)

	router := mux.NewRouter()
	router.HandleFunc("/", h.Home()).Methods("GET")
	router.HandleFunc("/login", h.Login()).Methods("GET")
	router.HandleFunc("/token", h.ManualToken()).Methods("POST")
	router.HandleFunc("/diagnostics", h.Diagnostics()).Methods("GET")
	router.HandleFunc("/oauth/login", h.StartOAuth()).Methods("POST")
	router.HandleFunc("/oauth/direct", h.DirectLogin()).Methods("POST")
	router.HandleFunc("/oauth/logout", h.Logout()).Methods("GET", "POST")
	router.HandleFunc("/oauth/callback", h.OAuthCallback()).Methods("GET")
	router.HandleFunc("/oauth/refresh", h.RefreshToken()).Methods("GET")

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			if r.RequestURI != "/login" && !strings.HasPrefix(r.RequestURI, "/oauth") && r.RequestURI != "/token" {
				sess, err := s.Get(r, session.CookieName)
				if err != nil {
					http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
					return
				}

				authed, ok := sess.Values[session.AuthenticatedKey].(bool)
				if !ok || !authed {
					http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	})

	ctx, cancel := context.WithCancel(context.Background())

	server := &http.Server{
		Handler:      router,
		Addr:         fmt.Sprintf(":%s", *port),
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info(fmt.Sprintf("Server listening on port %s", *port))
		if err := server.ListenAndServe(); err != nil {
			if err != http.ErrServerClosed {
				os.Exit(1)
			}
		}
	}()

	<-stop

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("an error occurred while shutting down the server", "error", err)
	}

	cancel()

	slog.Info("server was successfully shutdown")
}
