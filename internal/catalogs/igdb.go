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

const igdbFields = "name,first_release_date,summary,url,involved_companies.company.name,involved_companies.developer,cover.url,genres.name"

type igdbCompany struct {
	Developer bool `json:"developer"`
	Company   struct {
		Name string `json:"name"`
	} `json:"company"`
}

type igdbGenre struct {
	Name string `json:"name"`
}

type igdbGame struct {
	ID                int64         `json:"id"`
	Name              string        `json:"name"`
	Summary           string        `json:"summary"`
	URL               string        `json:"url"`
	FirstReleaseDate  int64         `json:"first_release_date"`
	InvolvedCompanies []igdbCompany `json:"involved_companies"`
	Cover             struct {
		URL string `json:"url"`
	} `json:"cover"`
	Genres []igdbGenre `json:"genres"`
}

// IGDB fetches game records from the IGDB API.
type IGDB struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Fetcher = (*IGDB)(nil)

// IGDBOption configures an IGDB fetcher.
type IGDBOption func(*IGDB)

// WithIGDBHTTPClient overrides the default HTTP client.
func WithIGDBHTTPClient(client *http.Client) IGDBOption {
	return func(f *IGDB) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// NewIGDB creates an IGDB fetcher.
func NewIGDB(apiKey, baseURL string, opts ...IGDBOption) (*IGDB, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("igdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("igdb base url required")
	}
	fetcher := &IGDB{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(fetcher)
	}
	return fetcher, nil
}

// Source identifies the catalog this fetcher serves.
func (f *IGDB) Source() library.SourceType {
	return library.SourceIGDB
}

// Fetch retrieves a single game by its numeric IGDB id.
func (f *IGDB) Fetch(ctx context.Context, externalID string) (*Normalized, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(externalID), 10, 64)
	if err != nil || id <= 0 {
		return nil, services.Wrap(services.ErrValidation, "igdb", "fetch", fmt.Sprintf("external id %q is not a positive integer", externalID), nil)
	}
	endpoint, err := url.Parse(f.baseURL + "/games")
	if err != nil {
		return nil, fmt.Errorf("parse igdb url: %w", err)
	}

	// IGDB uses a query body instead of URL parameters.
	body := fmt.Sprintf("fields %s; where id = %d;", igdbFields, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := f.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "igdb", "fetch", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, services.Wrap(services.ErrNotFound, "igdb", "fetch", fmt.Sprintf("game %d not found (latency=%v)", id, latency), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "igdb", "fetch", fmt.Sprintf("igdb returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var payload []igdbGame
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode igdb response: %w", err)
	}
	if len(payload) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "igdb", "fetch", fmt.Sprintf("game %d not found", id), nil)
	}

	game := payload[0]
	normalized := &Normalized{
		Title:       game.Name,
		ReleaseDate: unixDate(game.FirstReleaseDate),
		Developer:   igdbDeveloper(game.InvolvedCompanies),
		CoverURL:    igdbCover(game.Cover.URL),
		ExternalURL: game.URL,
		Metadata:    metadata.Bag{},
	}
	if game.Summary != "" {
		normalized.Metadata["summary"] = game.Summary
	}
	if genres := igdbGenres(game.Genres); genres != "" {
		normalized.Metadata["genres"] = genres
	}
	return normalized, nil
}

// igdbDeveloper picks the company flagged as developer, falling back to the
// first listed company.
func igdbDeveloper(companies []igdbCompany) string {
	for _, entry := range companies {
		if entry.Developer && entry.Company.Name != "" {
			return entry.Company.Name
		}
	}
	for _, entry := range companies {
		if entry.Company.Name != "" {
			return entry.Company.Name
		}
	}
	return ""
}

// igdbCover upgrades IGDB's protocol-relative thumbnail URL to a full https
// cover image URL.
func igdbCover(coverURL string) string {
	if coverURL == "" {
		return ""
	}
	if strings.HasPrefix(coverURL, "//") {
		coverURL = "https:" + coverURL
	}
	return strings.Replace(coverURL, "t_thumb", "t_cover_big", 1)
}

func igdbGenres(genres []igdbGenre) string {
	names := make([]string, 0, len(genres))
	for _, genre := range genres {
		if genre.Name != "" {
			names = append(names, genre.Name)
		}
	}
	return strings.Join(names, ", ")
}

// unixDate renders a unix timestamp as a calendar date. Zero means unknown.
func unixDate(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
