package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/infrastructure/cache"
)

const testStore = "carbon-test.myshopify.com"

type fakeSource struct {
	name  string
	token string
	err   error
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Token(context.Context, string) (string, error) {
	return f.token, f.err
}

func staticTokens(values ...string) []domain.CredentialSource {
	sources := make([]domain.CredentialSource, 0, len(values))
	for i, v := range values {
		sources = append(sources, fakeSource{name: fmt.Sprintf("src%d", i), token: v})
	}
	return sources
}

func newTestClient(baseURL string, config Config, sources []domain.CredentialSource, c domain.CacheRepository) *Client {
	config.BaseURL = baseURL
	config.Rate = 1000
	client := NewClient(config, sources, c)
	client.backoff = func(int) time.Duration { return 0 }
	return client
}

// pageBody renders one products page holding a single product with one variant
func pageBody(page int, hasNext bool) string {
	return fmt.Sprintf(`{
  "data": {
    "products": {
      "pageInfo": {"hasNextPage": %t, "endCursor": "cursor-%d"},
      "nodes": [{
        "id": "gid://shopify/Product/%d",
        "title": "Tony Pants",
        "vendor": "Carbon",
        "featuredImage": {"url": "https://cdn.example.com/p%d.jpg"},
        "variants": {"nodes": [{
          "id": "gid://shopify/ProductVariant/%d00",
          "sku": " SKU-%d ",
          "barcode": "00012345%d",
          "price": "49.90",
          "inventoryQuantity": 3,
          "selectedOptions": [{"name": "Colour", "value": "Stone"}, {"name": "SIZE", "value": "L"}],
          "image": null
        }]}
      }]
    }
  }
}`, hasNext, page, page, page, page, page, page)
}

type pagedServer struct {
	pages int
	calls int32
	t     *testing.T
}

func (s *pagedServer) handler(w http.ResponseWriter, r *http.Request) {
	n := int(atomic.AddInt32(&s.calls, 1))

	var req graphqlRequest
	assert.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
	if n == 1 {
		assert.Nil(s.t, req.Variables["after"])
	} else {
		assert.Equal(s.t, fmt.Sprintf("cursor-%d", n-1), req.Variables["after"])
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(pageBody(n, n < s.pages)))
}

func TestScan_WalksAllPages(t *testing.T) {
	ps := &pagedServer{pages: 3, t: t}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/api/2024-10/graphql.json", r.URL.Path)
		assert.Equal(t, "token-a", r.Header.Get("X-Shopify-Access-Token"))
		ps.handler(w, r)
	}))
	defer server.Close()

	client := newTestClient(server.URL, Config{}, staticTokens("token-a"), nil)
	result, err := client.Scan(context.Background(), testStore, false)

	require.NoError(t, err)
	assert.False(t, result.Truncated)
	assert.Empty(t, result.Warning)
	require.Len(t, result.Variants, 3)

	v := result.Variants[0]
	assert.Equal(t, "gid://shopify/ProductVariant/100", v.ID)
	assert.Equal(t, "gid://shopify/Product/1", v.ProductID)
	assert.Equal(t, "Tony Pants", v.ProductTitle)
	assert.Equal(t, "Carbon", v.Vendor)
	assert.Equal(t, "SKU-1", v.SKU)
	assert.Equal(t, "Stone", v.Color)
	assert.Equal(t, "L", v.Size)
	assert.Equal(t, "https://cdn.example.com/p1.jpg", v.Image)
	assert.Equal(t, "https://cdn.example.com/p1.jpg", v.ProductImage)
	require.NotNil(t, v.Price)
	assert.InDelta(t, 49.90, *v.Price, 0.0001)
	require.NotNil(t, v.InventoryQuantity)
	assert.Equal(t, 3, *v.InventoryQuantity)
}

func TestScan_PageCapTruncates(t *testing.T) {
	ps := &pagedServer{pages: 10, t: t}
	server := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer server.Close()

	client := newTestClient(server.URL, Config{MaxPages: 2}, staticTokens("token-a"), nil)
	result, err := client.Scan(context.Background(), testStore, false)

	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.NotEmpty(t, result.Warning)
	assert.Len(t, result.Variants, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&ps.calls))
}

func TestScan_TimeBoxTruncates(t *testing.T) {
	ps := &pagedServer{pages: 10, t: t}
	server := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer server.Close()

	client := newTestClient(server.URL, Config{ScanTimeout: time.Minute}, staticTokens("token-a"), nil)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	client.now = func() time.Time {
		calls++
		// first call sets the deadline; later calls land past it
		if calls == 1 {
			return start
		}
		return start.Add(2 * time.Minute)
	}

	result, err := client.Scan(context.Background(), testStore, false)

	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Contains(t, result.Warning, "exceeded")
	assert.Len(t, result.Variants, 1)
}

func TestScan_NoCredentials(t *testing.T) {
	client := newTestClient("http://unused.invalid", Config{}, staticTokens("", "  "), nil)
	result, err := client.Scan(context.Background(), testStore, false)

	require.NoError(t, err)
	assert.Empty(t, result.Variants)
	assert.NotNil(t, result.Variants)
	assert.Contains(t, result.Warning, "credentials not configured")
}

func TestScan_InvalidStore(t *testing.T) {
	client := newTestClient("http://unused.invalid", Config{}, staticTokens("token-a"), nil)
	_, err := client.Scan(context.Background(), "not a store!", false)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestScan_CredentialFallback(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Shopify-Access-Token")
		seen = append(seen, token)
		if token != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errors":"[API] Invalid API key or access token"}`))
			return
		}
		w.Write([]byte(pageBody(1, false)))
	}))
	defer server.Close()

	sources := []domain.CredentialSource{
		fakeSource{name: "broken", err: errors.New("db down")},
		fakeSource{name: "postgres", token: "stale"},
		fakeSource{name: "config", token: "good"},
	}
	client := newTestClient(server.URL, Config{}, sources, nil)
	result, err := client.Scan(context.Background(), testStore, false)

	require.NoError(t, err)
	assert.Len(t, result.Variants, 1)
	assert.Equal(t, []string{"stale", "good"}, seen)
}

func TestScan_AllCredentialsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(server.URL, Config{}, staticTokens("a", "b"), nil)
	result, err := client.Scan(context.Background(), testStore, false)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrStorefrontAPIFailure)
	assert.Contains(t, err.Error(), "status 403")
}

func TestScan_GraphQLErrorsAbort(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte(pageBody(1, true)))
			return
		}
		w.Write([]byte(`{"errors":[{"message":"Throttled"},{"message":"Field 'foo' doesn't exist"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, Config{}, staticTokens("token-a"), nil)
	result, err := client.Scan(context.Background(), testStore, false)

	assert.Nil(t, result, "partial data must not be returned")
	assert.ErrorIs(t, err, domain.ErrStorefrontAPIFailure)
	assert.Contains(t, err.Error(), "Throttled; Field 'foo' doesn't exist")
}

func TestScan_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(pageBody(1, false)))
	}))
	defer server.Close()

	client := newTestClient(server.URL, Config{}, staticTokens("token-a"), nil)
	result, err := client.Scan(context.Background(), testStore, false)

	require.NoError(t, err)
	assert.Len(t, result.Variants, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestScan_CacheAndForceRefresh(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(pageBody(1, false)))
	}))
	defer server.Close()

	client := newTestClient(server.URL, Config{}, staticTokens("token-a"), cache.NewMemoryCache())
	ctx := context.Background()

	first, err := client.Scan(ctx, testStore, false)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := client.Scan(ctx, "HTTPS://Carbon-Test.myshopify.com/", false)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Variants, second.Variants)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	third, err := client.Scan(ctx, testStore, true)
	require.NoError(t, err)
	assert.False(t, third.FromCache)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEndpoint(t *testing.T) {
	client := NewClient(Config{APIVersion: "2025-01"}, nil, nil)
	assert.Equal(t, "https://a.myshopify.com/admin/api/2025-01/graphql.json", client.endpoint("a.myshopify.com"))

	client = NewClient(Config{BaseURL: "http://localhost:9000/"}, nil, nil)
	assert.Equal(t, "http://localhost:9000/admin/api/2024-10/graphql.json", client.endpoint("a.myshopify.com"))
}

func TestFlattenProduct_ImageFallbackAndOptions(t *testing.T) {
	p := productNode{
		ID:            "gid://shopify/Product/1",
		Title:         " Shirt ",
		FeaturedImage: &imageNode{URL: "https://cdn/p.jpg"},
	}
	p.Variants.Nodes = []variantNode{
		{ID: "v1", Price: "", SelectedOptions: []option{{Name: "Color", Value: "Red"}}, Image: &imageNode{URL: "https://cdn/v1.jpg"}},
		{ID: "v2", Price: "abc", SelectedOptions: []option{{Name: "Material", Value: "Wool"}}},
	}

	got := flattenProduct(p)
	require.Len(t, got, 2)

	assert.Equal(t, "Shirt", got[0].ProductTitle)
	assert.Equal(t, "Red", got[0].Color)
	assert.Equal(t, "https://cdn/v1.jpg", got[0].Image)
	assert.Nil(t, got[0].Price)

	assert.Equal(t, "", got[1].Color)
	assert.Equal(t, "", got[1].Size)
	assert.Equal(t, "https://cdn/p.jpg", got[1].Image)
	assert.Nil(t, got[1].Price)
}
