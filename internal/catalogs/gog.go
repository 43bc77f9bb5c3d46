package catalogs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ludex/internal/library"
	"ludex/internal/metadata"
	"ludex/internal/services"
)

type gogProduct struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	ReleaseDate string `json:"release_date"`
	Links       struct {
		ProductCard string `json:"product_card"`
	} `json:"links"`
	Images struct {
		Logo string `json:"logo"`
	} `json:"images"`
}

// GOG fetches product records from the GOG products API. The endpoint needs
// no API key.
type GOG struct {
	baseURL    string
	httpClient *http.Client
}

var _ Fetcher = (*GOG)(nil)

// GOGOption configures a GOG fetcher.
type GOGOption func(*GOG)

// WithGOGHTTPClient overrides the default HTTP client.
func WithGOGHTTPClient(client *http.Client) GOGOption {
	return func(f *GOG) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// NewGOG creates a GOG fetcher.
func NewGOG(baseURL string, opts ...GOGOption) (*GOG, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("gog base url required")
	}
	fetcher := &GOG{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(fetcher)
	}
	return fetcher, nil
}

// Source identifies the catalog this fetcher serves.
func (f *GOG) Source() library.SourceType {
	return library.SourceGOG
}

// Fetch retrieves a single product by its numeric GOG id.
func (f *GOG) Fetch(ctx context.Context, externalID string) (*Normalized, error) {
	externalID = strings.TrimSpace(externalID)
	productID, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil || productID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "gog", "fetch", fmt.Sprintf("external id %q is not a positive integer", externalID), nil)
	}
	endpoint, err := url.Parse(fmt.Sprintf("%s/products/%d", f.baseURL, productID))
	if err != nil {
		return nil, fmt.Errorf("parse gog url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := f.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "gog", "fetch", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, services.Wrap(services.ErrNotFound, "gog", "fetch", fmt.Sprintf("product %d not found (latency=%v)", productID, latency), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "gog", "fetch", fmt.Sprintf("gog returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var payload gogProduct
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode gog response: %w", err)
	}

	normalized := &Normalized{
		Title:       payload.Title,
		ReleaseDate: gogDate(payload.ReleaseDate),
		CoverURL:    gogImage(payload.Images.Logo),
		ExternalURL: payload.Links.ProductCard,
		Metadata:    metadata.Bag{},
	}
	if payload.Slug != "" {
		normalized.Metadata["slug"] = payload.Slug
	}
	return normalized, nil
}

// gogDate trims the timestamp GOG attaches to release dates, passing
// unparseable values through untouched.
func gogDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if parsed, err := time.Parse("2006-01-02T15:04:05-0700", raw); err == nil {
		return parsed.Format("2006-01-02")
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.Format("2006-01-02")
	}
	return raw
}

// gogImage completes GOG's protocol-relative image URLs.
func gogImage(imageURL string) string {
	if strings.HasPrefix(imageURL, "//") {
		return "https:" + imageURL
	}
	return imageURL
}
