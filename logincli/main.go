// logincli performs the interactive authorization flow from a terminal. It
// prints the authorization URL, captures the provider's redirect on a loopback
// listener, exchanges the code and persists the tokens, then prints the first
// pages of the feed. A callback URL received out of band (the cold-start case)
// can be passed with -callback instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/loapp/lofeed/internal/config"
	"github.com/loapp/lofeed/internal/database"
	"github.com/loapp/lofeed/internal/loink/feed"
	"github.com/loapp/lofeed/internal/loink/oauth"
)

func main() {
	addr := flag.String("listen", "127.0.0.1:9001", "The address the redirect listener binds to")
	callback := flag.String("callback", "", "An already-received callback URL to process instead of waiting")
	diagnose := flag.Bool("diagnose", false, "Run connectivity diagnostics and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	d := database.Init(cfg.DatabasePath)
	st := database.New(d)

	o := oauth.NewClient(cfg, oauth.WithStorage(
		oauth.NewKVFlowStorage(st.KV),
	))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *diagnose {
		report := o.Diagnose(ctx)
		fmt.Printf("API healthcheck:    %v\n", report.APIAvailable)
		fmt.Printf("Auth endpoint:      %v\n", report.AuthAvailable)
		fmt.Printf("Token acquisition:  %v\n", report.TokenObtained)
		fmt.Printf("Feed access:        %v\n", report.FeedAvailable)
		fmt.Println(report.Message)
		return
	}

	tokens := oauth.NewStore(st.KV, o)

	authURL, err := o.StartAuthorization()
	if err != nil {
		slog.Error("failed to start the authorization flow", "error", err)
		os.Exit(1)
	}

	fmt.Println("Open the following URL in your browser to authorize:")
	fmt.Println()
	fmt.Println("  " + authURL)
	fmt.Println()

	listener := oauth.NewListener(*callback)

	done := make(chan *oauth.TokenRecord, 1)
	unsubscribe := listener.Listen(func(url string) {
		rec, err := o.HandleCallback(ctx, url)
		if err != nil {
			slog.Error("authorization callback failed", "error", err)
			return
		}
		done <- rec
	})
	defer unsubscribe()

	server := &http.Server{
		Addr: *addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !listener.Dispatch(r.URL.String()) {
				http.Error(w, http.StatusText(http.StatusGone), http.StatusGone)
				return
			}
			fmt.Fprintln(w, "You can close this tab and return to the terminal.")
		}),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("redirect listener failed", "error", err)
			os.Exit(1)
		}
	}()
	defer server.Shutdown(context.Background())

	var rec *oauth.TokenRecord
	select {
	case rec = <-done:
	case <-ctx.Done():
		slog.Error("timed out waiting for the authorization callback")
		os.Exit(1)
	}

	if err := tokens.Save(rec); err != nil {
		slog.Error("failed to persist tokens", "error", err)
		os.Exit(1)
	}

	slog.Info("authenticated", "token", rec)

	posts := feed.NewClient(cfg.APIURL)
	list := feed.NewList()

	for page := 1; page <= 2; page++ {
		p, err := posts.Fetch(ctx, rec.AccessToken, page, 10)
		if err != nil {
			slog.Error("failed to fetch the feed", "error", err)
			os.Exit(1)
		}
		list.Append(p.Items)
		if !p.HasMore {
			break
		}
	}

	for _, p := range list.Posts {
		fmt.Printf("%s  %s\n    %s\n", p.CreatedAt, p.Author.Name, p.Text)
	}
}
