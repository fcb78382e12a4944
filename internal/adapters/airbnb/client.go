// Package airbnb adapts the Airbnb web API to the rental search and listing
// detail ports.
package airbnb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/samirrijal/rentalscope/internal/adapters/fetch"
	"github.com/samirrijal/rentalscope/internal/core/domain"
)

const apiKeyHeader = "x-airbnb-api-key"

// Config holds Airbnb endpoint settings.
type Config struct {
	SearchURL      string
	DetailURL      string
	APIKey         string
	SearchBody     []byte
	DefaultTimeout time.Duration
}

// LoadSearchBody reads the search request template from path.
func LoadSearchBody(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read search body template: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("search body template %s is not valid JSON", path)
	}
	return data, nil
}

// Client implements ports.RentalSearch and ports.DetailFetcher.
type Client struct {
	http *fetch.Client
	cfg  Config
}

// NewClient creates a new Client.
func NewClient(httpClient *fetch.Client, cfg Config) *Client {
	return &Client{http: httpClient, cfg: cfg}
}

func (c *Client) timeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return c.cfg.DefaultTimeout
}

// FindListingIDs posts the patched search body and returns the listing ids
// in the viewport. An empty result is not an error.
func (c *Client) FindListingIDs(ctx context.Context, flags domain.ResolvedSearchFlags, timeout time.Duration) ([]string, error) {
	body, err := PatchSearchBody(c.cfg.SearchBody, flags)
	if err != nil {
		return nil, domain.NewInvalidInputError(err.Error())
	}

	resp, err := c.http.Do(ctx, fetch.Request{
		Method: http.MethodPost,
		URL:    c.cfg.SearchURL,
		Headers: map[string]string{
			apiKeyHeader:   c.cfg.APIKey,
			"content-type": "application/json",
		},
		Body:    json.RawMessage(body),
		Timeout: c.timeout(timeout),
	})
	if err != nil {
		return nil, err
	}

	root, err := parse(resp.Body)
	if err != nil {
		return nil, err
	}
	return ExtractListingIDs(root), nil
}

// Fetch retrieves one listing's detail payload and derives its record.
func (c *Client) Fetch(ctx context.Context, listingID string, timeout time.Duration) (*domain.DerivedRecord, error) {
	id := strings.TrimSpace(listingID)
	if id == "" {
		return nil, domain.NewInvalidInputError("listingId cannot be empty")
	}

	detailURL, err := PatchDetailURL(c.cfg.DetailURL, id)
	if err != nil {
		return nil, domain.NewInvalidInputError(err.Error())
	}

	resp, err := c.http.Do(ctx, fetch.Request{
		Method:  http.MethodGet,
		URL:     detailURL,
		Headers: map[string]string{apiKeyHeader: c.cfg.APIKey},
		Timeout: c.timeout(timeout),
	})
	if err != nil {
		return nil, err
	}

	root, err := parse(resp.Body)
	if err != nil {
		return nil, err
	}
	rec := ExtractDerived(root, id)
	return &rec, nil
}

func parse(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, domain.NewInvalidResponseError("Invalid JSON response", 0)
	}
	return gjson.ParseBytes(body), nil
}
