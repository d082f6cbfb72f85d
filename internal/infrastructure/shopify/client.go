package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

const (
	defaultAPIVersion  = "2024-10"
	defaultPageSize    = 100
	defaultMaxPages    = 40
	defaultScanTimeout = 60 * time.Second
	defaultCacheTTL    = 5 * time.Minute
	maxAttempts        = 3
	cacheKeyPrefix     = "storefront:variants:"
	userAgent          = "carbon-reconcile/1.0"
)

// Config holds storefront scanner settings
type Config struct {
	APIVersion string
	// BaseURL replaces https://{store} when set
	BaseURL     string
	PageSize    int
	MaxPages    int
	Timeout     time.Duration
	ScanTimeout time.Duration
	CacheTTL    time.Duration
	// Rate is the allowed GraphQL requests per second
	Rate   float64
	Logger *zap.Logger
}

// Client walks the storefront Admin GraphQL API
type Client struct {
	httpClient  *http.Client
	apiVersion  string
	baseURL     string
	pageSize    int
	maxPages    int
	scanTimeout time.Duration
	cacheTTL    time.Duration
	rateLimiter *rate.Limiter
	credentials []domain.CredentialSource
	cache       domain.CacheRepository
	logger      *zap.Logger
	now         func() time.Time
	backoff     func(attempt int) time.Duration
}

// NewClient creates a storefront scanner. Credential sources are tried in
// order; cache may be nil.
func NewClient(config Config, credentials []domain.CredentialSource, cache domain.CacheRepository) *Client {
	apiVersion := config.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPages := config.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	scanTimeout := config.ScanTimeout
	if scanTimeout < 0 {
		scanTimeout = defaultScanTimeout
	}
	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
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
		apiVersion:  apiVersion,
		baseURL:     strings.TrimSuffix(config.BaseURL, "/"),
		pageSize:    pageSize,
		maxPages:    maxPages,
		scanTimeout: scanTimeout,
		cacheTTL:    cacheTTL,
		rateLimiter: rate.NewLimiter(rate.Limit(limit), 4),
		credentials: credentials,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
		backoff: func(attempt int) time.Duration {
			return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
		},
	}
}

func cacheKey(store string) string {
	return cacheKeyPrefix + store
}

// Scan returns every variant of the store's active products. Cached results
// are served for the cache TTL unless forceRefresh is set. A store without
// credentials yields an empty result with a warning.
func (c *Client) Scan(ctx context.Context, store string, forceRefresh bool) (*domain.ScanResult, error) {
	store = domain.CleanStore(store)
	if store == "" {
		return nil, fmt.Errorf("%w: invalid store", domain.ErrInvalidRequest)
	}

	if !forceRefresh {
		if result, ok := c.fromCache(ctx, store); ok {
			return result, nil
		}
	}

	tokens := c.tokens(ctx, store)
	if len(tokens) == 0 {
		c.logger.Warn("no storefront credentials", zap.String("store", store))
		return &domain.ScanResult{
			Variants: []domain.StorefrontVariant{},
			Warning:  fmt.Sprintf("Shopify credentials not configured for %s; storefront availability is unavailable.", store),
		}, nil
	}

	var lastErr error
	for i, token := range tokens {
		result, err := c.scan(ctx, store, token)
		if err == nil {
			c.toCache(ctx, store, result)
			return result, nil
		}
		lastErr = err
		c.logger.Warn("storefront scan failed",
			zap.String("store", store),
			zap.Int("credential", i+1),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// tokens collects the distinct non-empty tokens for store in source order
func (c *Client) tokens(ctx context.Context, store string) []string {
	seen := make(map[string]struct{})
	tokens := make([]string, 0, len(c.credentials))
	for _, src := range c.credentials {
		if src == nil {
			continue
		}
		token, err := src.Token(ctx, store)
		if err != nil {
			c.logger.Warn("credential source failed",
				zap.String("source", src.Name()),
				zap.String("store", store),
				zap.Error(err))
			continue
		}
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

func (c *Client) scan(ctx context.Context, store, token string) (*domain.ScanResult, error) {
	var deadline time.Time
	if c.scanTimeout > 0 {
		deadline = c.now().Add(c.scanTimeout)
	}

	result := &domain.ScanResult{Variants: []domain.StorefrontVariant{}}
	cursor := ""
	for page := 1; ; page++ {
		conn, err := c.fetchPage(ctx, store, token, cursor)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		for _, p := range conn.Nodes {
			result.Variants = append(result.Variants, flattenProduct(p)...)
		}
		c.logger.Debug("storefront page fetched",
			zap.String("store", store),
			zap.Int("page", page),
			zap.Int("products", len(conn.Nodes)))

		if !conn.PageInfo.HasNextPage || conn.PageInfo.EndCursor == "" {
			break
		}
		if page >= c.maxPages {
			result.Truncated = true
			result.Warning = fmt.Sprintf("Storefront scan stopped after %d pages; availability may be incomplete.", page)
			break
		}
		if !deadline.IsZero() && c.now().After(deadline) {
			result.Truncated = true
			result.Warning = fmt.Sprintf("Storefront scan exceeded %s after %d pages; availability may be incomplete.", c.scanTimeout, page)
			break
		}
		cursor = conn.PageInfo.EndCursor
	}

	if result.Truncated {
		c.logger.Warn("storefront scan truncated",
			zap.String("store", store),
			zap.Int("variants", len(result.Variants)))
	}
	return result, nil
}

func (c *Client) endpoint(store string) string {
	base := c.baseURL
	if base == "" {
		base = "https://" + store
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", base, c.apiVersion)
}

// retryableError marks throttling and server-side failures
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *Client) fetchPage(ctx context.Context, store, token, cursor string) (*productConnection, error) {
	variables := map[string]any{"first": c.pageSize}
	if cursor != "" {
		variables["after"] = cursor
	}
	body, err := json.Marshal(graphqlRequest{Query: productsQuery, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrStorefrontAPIFailure, err)
		}

		conn, err := c.doQuery(ctx, store, token, body)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		var retry *retryableError
		if !errors.As(err, &retry) || attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrStorefrontAPIFailure, ctx.Err())
		case <-time.After(c.backoff(attempt)):
		}
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrStorefrontAPIFailure, lastErr)
}

func (c *Client) doQuery(ctx context.Context, store, token string, body []byte) (*productConnection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(store), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Shopify-Access-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d: %s", resp.StatusCode, snippet(raw))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &retryableError{err: err}
		}
		return nil, err
	}

	var payload productsResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(payload.Errors) > 0 {
		return nil, fmt.Errorf("graphql: %s", errorMessages(payload.Errors))
	}
	if payload.Data == nil {
		return nil, errors.New("graphql: empty data")
	}
	return &payload.Data.Products, nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func (c *Client) fromCache(ctx context.Context, store string) (*domain.ScanResult, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, cacheKey(store))
	if err != nil {
		return nil, false
	}
	var result domain.ScanResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("discarding unreadable cached scan", zap.String("store", store), zap.Error(err))
		return nil, false
	}
	if result.Variants == nil {
		result.Variants = []domain.StorefrontVariant{}
	}
	result.FromCache = true
	c.logger.Debug("storefront scan served from cache",
		zap.String("store", store),
		zap.Int("variants", len(result.Variants)))
	return &result, true
}

func (c *Client) toCache(ctx context.Context, store string, result *domain.ScanResult) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(store), raw, c.cacheTTL); err != nil {
		c.logger.Warn("failed to cache storefront scan", zap.String("store", store), zap.Error(err))
	}
}
