package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/config"
	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeInventory struct {
	page    *domain.InventoryPage
	err     error
	stores  []string
	lastReq domain.InventoryQuery
}

func (f *fakeInventory) Query(_ context.Context, q domain.InventoryQuery) (*domain.InventoryPage, error) {
	f.lastReq = q
	return f.page, f.err
}

func (f *fakeInventory) Stores(context.Context) ([]string, error) {
	return f.stores, f.err
}

type fakeStaging struct {
	parents    []domain.StagingParent
	warning    string
	err        error
	lastStore  string
	lastIDs    []string
	lastStatus domain.StagingStatus
	upserted   []domain.StagingParent
}

func (f *fakeStaging) List(_ context.Context, store string) ([]domain.StagingParent, string, error) {
	f.lastStore = store
	return f.parents, f.warning, f.err
}

func (f *fakeStaging) Upsert(_ context.Context, store string, parents []domain.StagingParent) (int, string, error) {
	f.lastStore = store
	f.upserted = parents
	return len(parents), f.warning, f.err
}

func (f *fakeStaging) Remove(_ context.Context, store string, ids []string) (int, string, error) {
	f.lastStore = store
	f.lastIDs = ids
	return len(ids), f.warning, f.err
}

func (f *fakeStaging) UpdateStatus(_ context.Context, store string, ids []string, status domain.StagingStatus) (int, string, error) {
	f.lastStore = store
	f.lastIDs = ids
	f.lastStatus = status
	return len(ids), f.warning, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
		Cache: config.CacheConfig{Type: "memory"},
	}
}

// setupTestRouter creates a test router around the given fakes
func setupTestRouter(inv *fakeInventory, stg *fakeStaging) *gin.Engine {
	if inv == nil {
		inv = &fakeInventory{}
	}
	if stg == nil {
		stg = &fakeStaging{}
	}
	return SetupRouter(testConfig(), NewHandler(inv, stg, nil), nil)
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		w := doRequest(setupTestRouter(nil, nil), http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "carbon-reconcile", body["service"])
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter(nil, nil)
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			w := doRequest(router, method, "/health", "")
			assert.Equal(t, http.StatusNotFound, w.Code, method)
		}
	})
}

func TestStoresEndpoint(t *testing.T) {
	t.Run("lists stores", func(t *testing.T) {
		inv := &fakeInventory{stores: []string{"a.myshopify.com", "b.myshopify.com"}}
		w := doRequest(setupTestRouter(inv, nil), http.MethodGet, "/api/v1/stores", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"stores":["a.myshopify.com","b.myshopify.com"]}`, w.Body.String())
	})

	t.Run("empty list is an array", func(t *testing.T) {
		w := doRequest(setupTestRouter(&fakeInventory{}, nil), http.MethodGet, "/api/v1/stores", "")
		assert.JSONEq(t, `{"stores":[]}`, w.Body.String())
	})
}

func TestInventoryEndpoint(t *testing.T) {
	t.Run("parses query parameters", func(t *testing.T) {
		inv := &fakeInventory{page: &domain.InventoryPage{Store: "a.myshopify.com", Page: 2, PageSize: 20}}
		router := setupTestRouter(inv, nil)

		w := doRequest(router, http.MethodGet,
			"/api/v1/inventory?store=a.myshopify.com&page=2&pageSize=20&refresh=true"+
				"&cart=notEnabled&shopify=AVAILABLE&sku=%20c123%20&name=tony&category=Pants"+
				"&minPrice=10&maxPrice=99.5&minStock=1", "")

		require.Equal(t, http.StatusOK, w.Code)
		q := inv.lastReq
		assert.Equal(t, "a.myshopify.com", q.Store)
		assert.Equal(t, 2, q.Page)
		assert.Equal(t, 20, q.PageSize)
		assert.True(t, q.Refresh)
		assert.Equal(t, domain.CartNotEnabled, q.Filters.CartState)
		assert.Equal(t, domain.ShopifyAvailable, q.Filters.ShopifyState)
		assert.Equal(t, "c123", q.Filters.SKU)
		assert.Equal(t, "tony", q.Filters.Name)
		assert.Equal(t, "Pants", q.Filters.Category)
		require.NotNil(t, q.Filters.MinPrice)
		assert.Equal(t, 10.0, *q.Filters.MinPrice)
		require.NotNil(t, q.Filters.MaxPrice)
		assert.Equal(t, 99.5, *q.Filters.MaxPrice)
		require.NotNil(t, q.Filters.MinStock)
		assert.Nil(t, q.Filters.MaxStock)

		body := decodeBody(t, w)
		assert.Equal(t, "a.myshopify.com", body["store"])
		assert.Equal(t, float64(2), body["page"])
	})

	t.Run("defaults", func(t *testing.T) {
		inv := &fakeInventory{page: &domain.InventoryPage{}}
		w := doRequest(setupTestRouter(inv, nil), http.MethodGet, "/api/v1/inventory?cart=all", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, inv.lastReq.Page)
		assert.Equal(t, 0, inv.lastReq.PageSize)
		assert.Equal(t, "", inv.lastReq.Filters.CartState)
		assert.False(t, inv.lastReq.Refresh)
	})

	invalid := []string{
		"page=abc",
		"pageSize=1.5",
		"refresh=maybe",
		"cart=sometimes",
		"shopify=gone",
		"minPrice=cheap",
	}
	for _, qs := range invalid {
		t.Run("rejects "+qs, func(t *testing.T) {
			inv := &fakeInventory{page: &domain.InventoryPage{}}
			w := doRequest(setupTestRouter(inv, nil), http.MethodGet, "/api/v1/inventory?"+qs, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decodeBody(t, w)["error"])
		})
	}

	errorCases := []struct {
		name string
		err  error
		want int
	}{
		{"no store", domain.ErrNoStore, http.StatusBadRequest},
		{"snapshot down", fmt.Errorf("%w: status 503", domain.ErrSnapshotUnavailable), http.StatusBadGateway},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInventory{err: tt.err}
			w := doRequest(setupTestRouter(inv, nil), http.MethodGet, "/api/v1/inventory", "")
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.err.Error(), decodeBody(t, w)["error"])
		})
	}
}

func TestStagingEndpoints(t *testing.T) {
	t.Run("list carries fallback warning", func(t *testing.T) {
		stg := &fakeStaging{
			parents: []domain.StagingParent{{ID: "matrix:1", SKU: "TONY", Status: domain.StatusPending}},
			warning: "Staging database is not configured",
		}
		w := doRequest(setupTestRouter(nil, stg), http.MethodGet, "/api/v1/staging?store=A.myshopify.com", "")

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "a.myshopify.com", body["store"])
		assert.Equal(t, "Staging database is not configured", body["warning"])
		assert.Len(t, body["items"], 1)
		assert.Equal(t, "A.myshopify.com", stg.lastStore)
	})

	t.Run("list without warning omits it", func(t *testing.T) {
		w := doRequest(setupTestRouter(nil, &fakeStaging{}), http.MethodGet, "/api/v1/staging", "")
		body := decodeBody(t, w)
		assert.NotContains(t, body, "warning")
		assert.Equal(t, "default", body["store"])
		assert.Equal(t, []any{}, body["items"])
	})

	t.Run("upsert", func(t *testing.T) {
		stg := &fakeStaging{}
		payload := `{"store":"a.myshopify.com","parents":[{"id":"matrix:1","sku":"TONY","variants":[{"sku":"TONY-S","status":"PENDING"}]}]}`
		w := doRequest(setupTestRouter(nil, stg), http.MethodPost, "/api/v1/staging", payload)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"count":1}`, w.Body.String())
		require.Len(t, stg.upserted, 1)
		assert.Equal(t, "TONY-S", stg.upserted[0].Variants[0].SKU)
	})

	t.Run("upsert rejects malformed body", func(t *testing.T) {
		w := doRequest(setupTestRouter(nil, &fakeStaging{}), http.MethodPost, "/api/v1/staging", `{"store":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("upsert requires parents", func(t *testing.T) {
		w := doRequest(setupTestRouter(nil, &fakeStaging{}), http.MethodPost, "/api/v1/staging", `{"store":"a.myshopify.com"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("remove", func(t *testing.T) {
		stg := &fakeStaging{}
		w := doRequest(setupTestRouter(nil, stg), http.MethodDelete, "/api/v1/staging", `{"store":"a.myshopify.com","ids":["matrix:1","matrix:2"]}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"removed":2}`, w.Body.String())
		assert.Equal(t, []string{"matrix:1", "matrix:2"}, stg.lastIDs)
	})

	t.Run("status update parses status case-insensitively", func(t *testing.T) {
		stg := &fakeStaging{}
		w := doRequest(setupTestRouter(nil, stg), http.MethodPost, "/api/v1/staging/status", `{"store":"a.myshopify.com","ids":["matrix:1"],"status":"processed"}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"updated":1,"status":"PROCESSED"}`, w.Body.String())
		assert.Equal(t, domain.StatusProcessed, stg.lastStatus)
	})

	t.Run("status update rejects unknown status", func(t *testing.T) {
		stg := &fakeStaging{}
		w := doRequest(setupTestRouter(nil, stg), http.MethodPost, "/api/v1/staging/status", `{"ids":["matrix:1"],"status":"DONE"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, stg.lastIDs)
	})

	t.Run("persistence failure", func(t *testing.T) {
		stg := &fakeStaging{err: fmt.Errorf("%w: no backend", domain.ErrPersistenceUnavailable)}
		w := doRequest(setupTestRouter(nil, stg), http.MethodGet, "/api/v1/staging", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestCORSIntegration(t *testing.T) {
	router := setupTestRouter(&fakeInventory{stores: []string{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, RequestIDHeader, w.Header().Get("Access-Control-Expose-Headers"))
}
