// Package cdn signals downstream caches to drop URLs whose content has
// changed. Only the mutable "latest" URL ever needs purging; versioned
// URLs are permanent.
package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Purger asks edge caches to drop the given URLs.
type Purger interface {
	Purge(ctx context.Context, urls []string) error
}

// maxURLsPerRequest matches the batch limit of common purge APIs.
const maxURLsPerRequest = 30

// HTTPPurger posts purge requests to a Cloudflare-compatible endpoint.
type HTTPPurger struct {
	// Endpoint is the full URL of the purge endpoint.
	Endpoint string
	// APIToken is sent as a bearer token when set.
	APIToken string
	// Client defaults to http.DefaultClient.
	Client *http.Client
	Log    zerolog.Logger
}

type purgeRequest struct {
	Files []string `json:"files"`
}

// Purge splits urls into endpoint-sized batches and posts them
// concurrently.
func (p *HTTPPurger) Purge(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(urls); start += maxURLsPerRequest {
		batch := urls[start:min(start+maxURLsPerRequest, len(urls))]
		g.Go(func() error {
			return p.post(ctx, client, batch)
		})
	}
	return g.Wait()
}

func (p *HTTPPurger) post(ctx context.Context, client *http.Client, urls []string) error {
	body, err := json.Marshal(purgeRequest{Files: urls})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIToken)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("purge endpoint returned %s", res.Status)
	}
	p.Log.Trace().Int("urls", len(urls)).Msg("Purged URLs from CDN")
	return nil
}

// NopPurger ignores purge requests. Used when no CDN is configured.
type NopPurger struct{}

func (NopPurger) Purge(context.Context, []string) error { return nil }
