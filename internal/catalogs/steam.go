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

type steamEnvelope struct {
	Success bool      `json:"success"`
	Data    steamGame `json:"data"`
}

type steamGenre struct {
	Description string `json:"description"`
}

type steamGame struct {
	Name             string   `json:"name"`
	SteamAppID       int64    `json:"steam_appid"`
	HeaderImage      string   `json:"header_image"`
	Developers       []string `json:"developers"`
	ShortDescription string   `json:"short_description"`
	ReleaseDate      struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
	Genres []steamGenre `json:"genres"`
}

// Steam fetches app records from the Steam storefront API. The appdetails
// endpoint needs no API key.
type Steam struct {
	baseURL    string
	httpClient *http.Client
}

var _ Fetcher = (*Steam)(nil)

// SteamOption configures a Steam fetcher.
type SteamOption func(*Steam)

// WithSteamHTTPClient overrides the default HTTP client.
func WithSteamHTTPClient(client *http.Client) SteamOption {
	return func(f *Steam) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// NewSteam creates a Steam fetcher.
func NewSteam(baseURL string, opts ...SteamOption) (*Steam, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("steam base url required")
	}
	fetcher := &Steam{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(fetcher)
	}
	return fetcher, nil
}

// Source identifies the catalog this fetcher serves.
func (f *Steam) Source() library.SourceType {
	return library.SourceSteam
}

// Fetch retrieves a single app by its numeric Steam app id.
func (f *Steam) Fetch(ctx context.Context, externalID string) (*Normalized, error) {
	externalID = strings.TrimSpace(externalID)
	appID, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil || appID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "steam", "fetch", fmt.Sprintf("external id %q is not a positive integer", externalID), nil)
	}
	endpoint, err := url.Parse(f.baseURL + "/appdetails")
	if err != nil {
		return nil, fmt.Errorf("parse steam url: %w", err)
	}
	params := url.Values{}
	params.Set("appids", externalID)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := f.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "steam", "fetch", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "steam", "fetch", fmt.Sprintf("steam returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	// The payload is keyed by the requested app id.
	var payload map[string]steamEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode steam response: %w", err)
	}
	envelope, ok := payload[externalID]
	if !ok || !envelope.Success {
		return nil, services.Wrap(services.ErrNotFound, "steam", "fetch", fmt.Sprintf("app %d not found", appID), nil)
	}

	game := envelope.Data
	normalized := &Normalized{
		Title:       game.Name,
		ReleaseDate: steamDate(game.ReleaseDate.Date),
		Developer:   strings.Join(game.Developers, ", "),
		CoverURL:    game.HeaderImage,
		ExternalURL: fmt.Sprintf("https://store.steampowered.com/app/%d", appID),
		Metadata:    metadata.Bag{},
	}
	if game.ShortDescription != "" {
		normalized.Metadata["summary"] = game.ShortDescription
	}
	if genres := steamGenres(game.Genres); genres != "" {
		normalized.Metadata["genres"] = genres
	}
	return normalized, nil
}

var steamDateLayouts = []string{"2 Jan, 2006", "Jan 2, 2006"}

// steamDate normalizes the storefront's locale date ("25 Jan, 2018") to a
// calendar date, passing unparseable values through untouched.
func steamDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range steamDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.Format("2006-01-02")
		}
	}
	return raw
}

func steamGenres(genres []steamGenre) string {
	names := make([]string, 0, len(genres))
	for _, genre := range genres {
		if genre.Description != "" {
			names = append(names, genre.Description)
		}
	}
	return strings.Join(names, ", ")
}
