package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

// InventoryUsecase is the reconciliation façade used by the handlers
type InventoryUsecase interface {
	Query(ctx context.Context, q domain.InventoryQuery) (*domain.InventoryPage, error)
	Stores(ctx context.Context) ([]string, error)
}

// StagingUsecase manages staged parents. Every call returns a warning that
// is non-empty when the in-memory fallback answered.
type StagingUsecase interface {
	List(ctx context.Context, store string) ([]domain.StagingParent, string, error)
	Upsert(ctx context.Context, store string, parents []domain.StagingParent) (int, string, error)
	Remove(ctx context.Context, store string, ids []string) (int, string, error)
	UpdateStatus(ctx context.Context, store string, ids []string, status domain.StagingStatus) (int, string, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	inventory InventoryUsecase
	staging   StagingUsecase
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(inventory InventoryUsecase, staging StagingUsecase, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{inventory: inventory, staging: staging, logger: logger}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "carbon-reconcile",
		"version": "1.0.0",
	})
}

// ListStores returns the stores available for reconciliation
func (h *Handler) ListStores(c *gin.Context) {
	stores, err := h.inventory.Stores(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if stores == nil {
		stores = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

// GetInventory reconciles the catalog against the storefront and returns one page
func (h *Handler) GetInventory(c *gin.Context) {
	q, err := parseInventoryQuery(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	page, err := h.inventory.Query(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListStaging returns the staged parents for a store
func (h *Handler) ListStaging(c *gin.Context) {
	store := c.Query("store")
	parents, warning, err := h.staging.List(c.Request.Context(), store)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if parents == nil {
		parents = []domain.StagingParent{}
	}
	c.JSON(http.StatusOK, stagingResponse(gin.H{
		"store": domain.NormalizeStore(store),
		"items": parents,
	}, warning))
}

// UpsertStagingRequest is the body of POST /api/v1/staging
type UpsertStagingRequest struct {
	Store   string                 `json:"store"`
	Parents []domain.StagingParent `json:"parents" binding:"required"`
}

// UpsertStaging stages or replaces parents
func (h *Handler) UpsertStaging(c *gin.Context) {
	var req UpsertStagingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	count, warning, err := h.staging.Upsert(c.Request.Context(), req.Store, req.Parents)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stagingResponse(gin.H{"count": count}, warning))
}

// RemoveStagingRequest is the body of DELETE /api/v1/staging
type RemoveStagingRequest struct {
	Store string   `json:"store"`
	IDs   []string `json:"ids" binding:"required"`
}

// RemoveStaging unstages parents by id
func (h *Handler) RemoveStaging(c *gin.Context) {
	var req RemoveStagingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	removed, warning, err := h.staging.Remove(c.Request.Context(), req.Store, req.IDs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stagingResponse(gin.H{"removed": removed}, warning))
}

// UpdateStatusRequest is the body of POST /api/v1/staging/status
type UpdateStatusRequest struct {
	Store  string   `json:"store"`
	IDs    []string `json:"ids" binding:"required"`
	Status string   `json:"status" binding:"required"`
}

// UpdateStagingStatus sets the status of every variant of the given parents
func (h *Handler) UpdateStagingStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	status, err := domain.ParseStagingStatus(req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	updated, warning, err := h.staging.UpdateStatus(c.Request.Context(), req.Store, req.IDs, status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stagingResponse(gin.H{"updated": updated, "status": status}, warning))
}

func stagingResponse(body gin.H, warning string) gin.H {
	if warning != "" {
		body["warning"] = warning
	}
	return body
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrNoStore):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSnapshotUnavailable),
		errors.Is(err, domain.ErrStorefrontAPIFailure):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// parseInventoryQuery reads the façade parameters from the query string
func parseInventoryQuery(c *gin.Context) (domain.InventoryQuery, error) {
	q := domain.InventoryQuery{
		Store: c.Query("store"),
		Filters: domain.InventoryFilters{
			SKU:      strings.TrimSpace(c.Query("sku")),
			Name:     strings.TrimSpace(c.Query("name")),
			Category: strings.TrimSpace(c.Query("category")),
		},
	}

	var err error
	if q.Page, err = intParam(c, "page", 1); err != nil {
		return q, err
	}
	if q.PageSize, err = intParam(c, "pageSize", 0); err != nil {
		return q, err
	}
	if raw := c.Query("refresh"); raw != "" {
		if q.Refresh, err = strconv.ParseBool(raw); err != nil {
			return q, fmt.Errorf("%w: refresh must be a boolean", domain.ErrInvalidRequest)
		}
	}

	if q.Filters.CartState, err = enumParam(c, "cart", domain.CartEnabled, domain.CartNotEnabled); err != nil {
		return q, err
	}
	if q.Filters.ShopifyState, err = enumParam(c, "shopify", domain.ShopifyAvailable, domain.ShopifyMissing); err != nil {
		return q, err
	}

	for name, dst := range map[string]**float64{
		"minPrice": &q.Filters.MinPrice,
		"maxPrice": &q.Filters.MaxPrice,
		"minStock": &q.Filters.MinStock,
		"maxStock": &q.Filters.MaxStock,
	} {
		if *dst, err = numberParam(c, name); err != nil {
			return q, err
		}
	}
	return q, nil
}

func intParam(c *gin.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidRequest, name)
	}
	return v, nil
}

func numberParam(c *gin.Context, name string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidRequest, name)
	}
	v, _ := d.Float64()
	return &v, nil
}

// enumParam returns "" for absent or "all"; other values must be allowed
func enumParam(c *gin.Context, name string, allowed ...string) (string, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" || strings.EqualFold(raw, domain.FilterAll) {
		return "", nil
	}
	for _, a := range allowed {
		if strings.EqualFold(raw, a) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %s must be one of all, %s", domain.ErrInvalidRequest, name, strings.Join(allowed, ", "))
}
