package oauth

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Diagnostics is the report of a connectivity walk through the deployment:
// healthcheck, auth endpoint, token acquisition, feed access.
type Diagnostics struct {
	APIAvailable  bool
	AuthAvailable bool
	TokenObtained bool
	FeedAvailable bool
	Message       string
}

// Diagnose probes each layer in order and stops at the first failure.
func (c *Client) Diagnose(ctx context.Context) Diagnostics {
	var d Diagnostics

	d.APIAvailable = c.Healthcheck(ctx)
	if !d.APIAvailable {
		d.Message = "API server unreachable, check the network connection"
		return d
	}

	d.AuthAvailable = c.authEndpointAvailable(ctx)
	if !d.AuthAvailable {
		d.Message = "authorization server unavailable"
		return d
	}

	rec, err := c.AcquireDirect(ctx)
	d.TokenObtained = err == nil && rec != nil
	if !d.TokenObtained {
		d.Message = "could not obtain a token, check the credentials and request parameters"
		return d
	}

	status := c.probeFeed(ctx, rec.AccessToken)
	d.FeedAvailable = status == http.StatusOK

	switch {
	case d.FeedAvailable:
		d.Message = "all systems operational: API reachable and authorization works"
	case status == http.StatusUnauthorized:
		d.Message = "token obtained but rejected by the API"
	default:
		d.Message = fmt.Sprintf("feed access failed with status %d", status)
	}

	return d
}

// authEndpointAvailable treats any non-5xx answer as the endpoint being up;
// it may well reject an unauthenticated GET.
func (c *Client) authEndpointAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.AuthURL+"/identity", nil)
	if err != nil {
		return false
	}

	res, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()

	return res.StatusCode < http.StatusInternalServerError
}

func (c *Client) probeFeed(ctx context.Context, accessToken string) int {
	client := http.Client{
		Timeout: time.Second * 10,
	}

	uri := fmt.Sprintf("%s/posts/feed?page=1&limit=1", c.cfg.APIURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return 0
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))
	req.Header.Set("Accept", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return 0
	}
	defer res.Body.Close()

	return res.StatusCode
}
