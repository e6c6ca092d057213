// Package feed fetches the active police calls published by Dallas Open Data.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/UnknownOlympus/patrol/internal/models"
)

// DefaultURL is the Socrata endpoint of the Dallas Police active calls dataset.
const DefaultURL = "https://www.dallasopendata.com/resource/9fxf-t2tr.json?$limit=800&$order=time%20DESC"

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client polls the raw active calls feed.
type Client struct {
	client    HTTPClient
	url       string
	userAgent string
	log       *slog.Logger
}

// NewClient creates a feed client with a 25 second request timeout.
func NewClient(url, userAgent string, log *slog.Logger) *Client {
	const timeout = 25
	return NewClientWithHTTP(&http.Client{Timeout: timeout * time.Second}, url, userAgent, log)
}

// NewClientWithHTTP creates a feed client over a custom HTTP client.
func NewClientWithHTTP(client HTTPClient, url, userAgent string, log *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}

	return &Client{client: client, url: url, userAgent: userAgent, log: log}
}

// Fetch downloads the current list of raw records. The body must be a JSON array.
func (c *Client) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active calls: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("active calls feed returned status %d: %s", resp.StatusCode, string(body))
	}

	var records []models.RawRecord
	if err = json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode active calls: %w", err)
	}

	c.log.DebugContext(ctx, "Fetched active calls", "count", len(records))

	return records, nil
}
