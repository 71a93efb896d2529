// Package feed retrieves the paginated post feed. It deliberately degrades to
// a canned dataset on anything but an authorization failure so the feed stays
// populated in demo and offline conditions.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loapp/lofeed/internal/loink/oauth"
	"github.com/loapp/lofeed/internal/loink/token"
)

type Author struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type Photo struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Post struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Author    Author  `json:"author"`
	Photos    []Photo `json:"photos,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// Page is one slice of the feed. Pages are 1-indexed.
type Page struct {
	Items   []Post `json:"items"`
	HasMore bool   `json:"hasMore"`
	Total   int    `json:"total"`
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(c *Client)

func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: time.Second * 120},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch retrieves one feed page with the bearer token. A 401 surfaces as
// oauth.ErrUnauthorized and must force re-authentication; every other failure
// falls back to the mock dataset.
func (c *Client) Fetch(ctx context.Context, accessToken string, page, limit int) (*Page, error) {
	if token.IsDemoToken(accessToken) {
		return mockPage(page, limit), nil
	}

	uri := fmt.Sprintf("%s/posts/feed?page=%d&limit=%d", c.baseURL, page, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		slog.Warn("feed request failed, serving mock data", "error", err)
		return mockPage(page, limit), nil
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("token rejected: %w", oauth.ErrUnauthorized)
	}

	b, err := io.ReadAll(res.Body)
	if err != nil {
		slog.Warn("feed response unreadable, serving mock data", "error", err)
		return mockPage(page, limit), nil
	}

	if res.StatusCode != http.StatusOK {
		slog.Warn("feed request rejected, serving mock data", "status", res.StatusCode)
		return mockPage(page, limit), nil
	}

	p, err := parsePage(b, page, limit)
	if err != nil {
		slog.Warn("feed response malformed, serving mock data", "error", err)
		return mockPage(page, limit), nil
	}

	return p, nil
}

// Raw item and envelope shapes tolerated from the provider. Some deployments
// nest the payload under "data" and report the total as "count".
type feedItem struct {
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	Message   string      `json:"message"`
	Author    *feedAuthor `json:"author"`
	Photos    []feedPhoto `json:"photos"`
	Images    []feedPhoto `json:"images"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
}

type feedAuthor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type feedPhoto struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type feedPayload struct {
	Items []feedItem `json:"items"`
	Total int        `json:"total"`
	Count int        `json:"count"`
}

func parsePage(b []byte, page, limit int) (*Page, error) {
	var env struct {
		feedPayload
		Data *feedPayload `json:"data"`
	}

	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%s: %v", oauth.MsgFailedParsing, err)
	}

	payload := env.feedPayload
	if env.Data != nil && env.Data.Items != nil {
		payload = *env.Data
	}

	if payload.Items == nil {
		return nil, fmt.Errorf("%s: missing items", oauth.MsgFailedParsing)
	}

	total := payload.Total
	if payload.Count > 0 {
		total = payload.Count
	}

	items := make([]Post, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, normalizePost(item))
	}

	return &Page{
		Items:   items,
		HasMore: total > page*limit,
		Total:   total,
		Page:    page,
		Limit:   limit,
	}, nil
}

func normalizePost(item feedItem) Post {
	p := Post{
		ID:        item.ID,
		Text:      item.Text,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}

	if p.ID == "" {
		p.ID = "temp-" + uuid.NewString()
	}
	if p.Text == "" {
		p.Text = item.Message
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if p.CreatedAt == "" {
		p.CreatedAt = now
	}
	if p.UpdatedAt == "" {
		p.UpdatedAt = now
	}

	p.Author = Author{ID: "unknown", Name: "Unknown author"}
	if item.Author != nil {
		if item.Author.ID != "" {
			p.Author.ID = item.Author.ID
		}
		if item.Author.Name != "" {
			p.Author.Name = item.Author.Name
		}
		p.Author.Avatar = item.Author.Avatar
	}

	photos := item.Photos
	if photos == nil {
		photos = item.Images
	}

	for _, photo := range photos {
		if strings.TrimSpace(photo.URL) == "" {
			continue
		}
		if photo.ID == "" {
			photo.ID = "photo-" + uuid.NewString()
		}
		if photo.Width == 0 {
			photo.Width = 300
		}
		if photo.Height == 0 {
			photo.Height = 300
		}
		p.Photos = append(p.Photos, Photo(photo))
	}

	return p
}
