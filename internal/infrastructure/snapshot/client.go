package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

const (
	snapshotCacheKey = "snapshot:all"
	maxAttempts      = 3
	userAgent        = "carbon-reconcile/1.0"
)

// Config holds snapshot client settings
type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
	// Rate is the allowed requests per second to the provider
	Rate   float64
	Logger *zap.Logger
}

// Client fetches the POS/ERP catalog snapshot
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	cache       domain.CacheRepository
	cacheTTL    time.Duration
	logger      *zap.Logger
	debug       bool
	backoff     func(attempt int) time.Duration
}

// NewClient creates a new snapshot client; cache may be nil
func NewClient(config Config, cache domain.CacheRepository) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := config.Rate
	if limit <= 0 {
		limit = 2
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      config.APIKey,
		baseURL:     strings.TrimSuffix(config.BaseURL, "/"),
		rateLimiter: rate.NewLimiter(rate.Limit(limit), 2),
		cache:       cache,
		cacheTTL:    config.CacheTTL,
		logger:      logger,
		backoff:     exponentialBackoff,
	}
}

// SetDebug enables or disables debug logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// FetchSnapshot returns the catalog snapshot, served from cache unless req.Refresh
func (c *Client) FetchSnapshot(ctx context.Context, req domain.SnapshotRequest) (*domain.CatalogSnapshot, error) {
	if !req.Refresh {
		if snap, ok := c.fromCache(ctx); ok {
			return snap, nil
		}
	}

	snap, err := c.fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	c.toCache(ctx, snap)
	return snap, nil
}

func (c *Client) fromCache(ctx context.Context) (*domain.CatalogSnapshot, bool) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, snapshotCacheKey)
	if err != nil {
		return nil, false
	}
	var snap domain.CatalogSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.logger.Warn("discarding unreadable cached snapshot", zap.Error(err))
		return nil, false
	}
	if c.debug {
		c.logger.Debug("snapshot served from cache", zap.Int("rows", len(snap.Rows)))
	}
	return &snap, true
}

func (c *Client) toCache(ctx context.Context, snap *domain.CatalogSnapshot) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, snapshotCacheKey, raw, c.cacheTTL); err != nil {
		c.logger.Warn("failed to cache snapshot", zap.Error(err))
	}
}

func (c *Client) requestURL(req domain.SnapshotRequest) string {
	params := url.Values{}
	params.Set("all", boolParam(req.IncludeAll))
	if req.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(req.PageSize))
	}
	if req.SortField != "" {
		params.Set("sortField", req.SortField)
	}
	if req.SortDir != "" {
		params.Set("sortDir", req.SortDir)
	}
	params.Set("refresh", boolParam(req.Refresh))
	return fmt.Sprintf("%s/snapshot?%s", c.baseURL, params.Encode())
}

// doRequest executes an HTTP GET request with proper headers
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.httpClient.Do(req)
}

// permanentError marks failures that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func (c *Client) fetch(ctx context.Context, req domain.SnapshotRequest) (*domain.CatalogSnapshot, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: snapshot provider url not configured", domain.ErrSnapshotUnavailable)
	}
	reqURL := c.requestURL(req)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrSnapshotUnavailable, err)
		}

		snap, err := c.fetchOnce(ctx, reqURL)
		if err == nil {
			c.logger.Info("snapshot fetched",
				zap.Int("rows", len(snap.Rows)),
				zap.Int("total", snap.Total),
				zap.Bool("truncated", snap.Truncated),
				zap.Int("attempt", attempt))
			return snap, nil
		}

		lastErr = err
		c.logger.Warn("snapshot request failed", zap.Int("attempt", attempt), zap.Error(err))
		var perm *permanentError
		if errors.As(err, &perm) || attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrSnapshotUnavailable, ctx.Err())
		case <-time.After(c.backoff(attempt)):
		}
	}

	return nil, fmt.Errorf("%w: %v", domain.ErrSnapshotUnavailable, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, reqURL string) (*domain.CatalogSnapshot, error) {
	resp, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var payload snapshotResponse
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(payload.Error)
		if msg == "" {
			msg = truncate(string(body), 200)
		}
		err := fmt.Errorf("status %d: %s", resp.StatusCode, msg)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, permanent(err)
		}
		return nil, err
	}
	if decodeErr != nil {
		return nil, permanent(fmt.Errorf("failed to decode response: %w", decodeErr))
	}
	if msg := strings.TrimSpace(payload.Error); msg != "" {
		return nil, permanent(fmt.Errorf("provider error: %s", msg))
	}

	return MapToSnapshot(&payload), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
