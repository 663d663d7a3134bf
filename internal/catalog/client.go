package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL        = "https://api.rawg.io/api"
	defaultHTTPTimeout    = 15 * time.Second
	defaultSearchPageSize = 5
	defaultBurst          = 5
	breakerName           = "catalog-api"
	maxErrorBodyBytes     = 4096
)

var (
	// ErrNotFound indicates the catalog has no record for the requested identifier.
	ErrNotFound = errors.New("catalog: not found")
	// ErrUnavailable indicates the catalog could not be reached or answered with a server fault.
	ErrUnavailable = errors.New("catalog: unavailable")
	// ErrInvalidResponse indicates the catalog answered with a payload that could not be decoded.
	ErrInvalidResponse = errors.New("catalog: invalid response")
	// ErrInvalidQuery indicates the caller supplied an empty name or non-positive identifier.
	ErrInvalidQuery = errors.New("catalog: invalid query")
	noOpLogger         = zap.NewNop()
)

// Hit is a single catalog record as returned by search or detail lookups.
type Hit struct {
	ExternalID  int64    `json:"id"`
	Name        string   `json:"name"`
	ImageURL    *string  `json:"background_image"`
	Rating      *float64 `json:"rating"`
	ReleaseDate *string  `json:"released"`
}

type searchResponse struct {
	Count   int   `json:"count"`
	Results []Hit `json:"results"`
}

// ClientConfig configures the catalog HTTP client.
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Burst             int
	SearchPageSize    int
	Logger            *zap.Logger
}

// Client talks to a RAWG-compatible game catalog.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *zap.Logger
}

// NewClient constructs a catalog client guarded by a rate limiter and a circuit breaker.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("catalog: parse base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	pageSize := cfg.SearchPageSize
	if pageSize <= 0 {
		pageSize = defaultSearchPageSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	client := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		pageSize:   pageSize,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
	client.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("catalog circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	if client.apiKey == "" {
		logger.Warn("catalog api key not configured; requests may be rejected upstream")
	}

	return client, nil
}

// SearchByName returns catalog hits for a free-text query, best match first.
func (c *Client) SearchByName(ctx context.Context, name string) ([]Hit, error) {
	query := strings.TrimSpace(name)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search name", ErrInvalidQuery)
	}

	values := url.Values{}
	values.Set("search", query)
	values.Set("page_size", strconv.Itoa(c.pageSize))

	body, err := c.get(ctx, "/games", values)
	if err != nil {
		return nil, err
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: decode search: %v", ErrInvalidResponse, err)
	}

	hits := make([]Hit, 0, len(response.Results))
	for _, hit := range response.Results {
		if hit.ExternalID <= 0 || strings.TrimSpace(hit.Name) == "" {
			continue
		}
		hits = append(hits, hit.normalized())
	}
	return hits, nil
}

// GetByID fetches a single catalog record by its external identifier.
func (c *Client) GetByID(ctx context.Context, externalID int64) (Hit, error) {
	if externalID <= 0 {
		return Hit{}, fmt.Errorf("%w: external id %d", ErrInvalidQuery, externalID)
	}

	body, err := c.get(ctx, "/games/"+strconv.FormatInt(externalID, 10), url.Values{})
	if err != nil {
		return Hit{}, err
	}

	var hit Hit
	if err := json.Unmarshal(body, &hit); err != nil {
		return Hit{}, fmt.Errorf("%w: decode game: %v", ErrInvalidResponse, err)
	}
	if hit.ExternalID <= 0 || strings.TrimSpace(hit.Name) == "" {
		return Hit{}, fmt.Errorf("%w: game %d missing id or name", ErrInvalidResponse, externalID)
	}
	return hit.normalized(), nil
}

func (c *Client) get(ctx context.Context, path string, values url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}
	if c.apiKey != "" {
		values.Set("key", c.apiKey)
	}
	endpoint := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, endpoint)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = response.Body.Close() }()

	switch {
	case response.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case response.StatusCode < 200 || response.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, response.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	return body, nil
}

func (h Hit) normalized() Hit {
	h.Name = strings.TrimSpace(h.Name)
	h.ImageURL = trimmedOrNil(h.ImageURL)
	h.ReleaseDate = trimmedOrNil(h.ReleaseDate)
	return h
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
