package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

// Defaults for the inventory façade
const (
	defaultPageSize         = 50
	defaultSnapshotPageSize = 500
	warnSnapshotTruncated   = "Catalog snapshot was truncated; results may be incomplete."
)

var defaultPageSizes = []int{20, 50, 100, 200}

// StagedIDSource answers "which parents are staged for this store"
type StagedIDSource interface {
	ListIDs(ctx context.Context, store string) (StagedSet, string, error)
}

// InventoryServiceConfig holds configuration for the inventory service
type InventoryServiceConfig struct {
	PageSizes        []int
	DefaultPageSize  int
	SnapshotPageSize int
	Logger           *zap.Logger
}

// InventoryService reconciles the POS/ERP snapshot against the storefront
// catalog and serves paginated, filtered parent products.
type InventoryService struct {
	snapshots  domain.SnapshotProvider
	scanner    domain.VariantScanner
	stores     domain.StoreDirectory
	staged     StagedIDSource
	aggregator *AggregationService

	pageSizes        []int
	defaultPageSize  int
	snapshotPageSize int
	logger           *zap.Logger
}

// NewInventoryService creates a new inventory service with dependencies
func NewInventoryService(
	snapshots domain.SnapshotProvider,
	scanner domain.VariantScanner,
	stores domain.StoreDirectory,
	staged StagedIDSource,
	aggregator *AggregationService,
	config InventoryServiceConfig,
) *InventoryService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if aggregator == nil {
		aggregator = NewAggregationService(NewMatchingService(MatchConfig{Logger: logger}))
	}

	pageSizes := config.PageSizes
	if len(pageSizes) == 0 {
		pageSizes = defaultPageSizes
	}
	pageSize := config.DefaultPageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	snapshotPageSize := config.SnapshotPageSize
	if snapshotPageSize <= 0 {
		snapshotPageSize = defaultSnapshotPageSize
	}

	return &InventoryService{
		snapshots:        snapshots,
		scanner:          scanner,
		stores:           stores,
		staged:           staged,
		aggregator:       aggregator,
		pageSizes:        pageSizes,
		defaultPageSize:  pageSize,
		snapshotPageSize: snapshotPageSize,
		logger:           logger,
	}
}

// storeData is everything fetched per store
type storeData struct {
	staged   StagedSet
	scan     *domain.ScanResult
	warnings []string
}

// Stores lists the stores available for reconciliation
func (s *InventoryService) Stores(ctx context.Context) ([]string, error) {
	if s.stores == nil {
		return nil, nil
	}
	return s.stores.ListStores(ctx)
}

// Query runs one reconciliation and returns the requested page.
// Only a snapshot failure or an unresolvable store fails the request;
// storefront and staging problems become warnings.
func (s *InventoryService) Query(ctx context.Context, q domain.InventoryQuery) (*domain.InventoryPage, error) {
	store := domain.CleanStore(q.Store)

	var (
		snapshot      *domain.CatalogSnapshot
		stores        []string
		storesWarning string
		data          storeData
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := s.snapshots.FetchSnapshot(gctx, domain.SnapshotRequest{
			IncludeAll: true,
			PageSize:   s.snapshotPageSize,
			SortField:  "customSku",
			SortDir:    "asc",
			Refresh:    q.Refresh,
		})
		if err != nil {
			if errors.Is(err, domain.ErrSnapshotUnavailable) {
				return err
			}
			return fmt.Errorf("%w: %v", domain.ErrSnapshotUnavailable, err)
		}
		if snap == nil {
			return fmt.Errorf("%w: empty response", domain.ErrSnapshotUnavailable)
		}
		snapshot = snap
		return nil
	})
	g.Go(func() error {
		list, err := s.Stores(gctx)
		if err != nil {
			s.logger.Warn("store directory unavailable", zap.Error(err))
			storesWarning = "Store list unavailable: " + err.Error()
			return nil
		}
		stores = list
		return nil
	})
	if store != "" {
		g.Go(func() error {
			data = s.fetchStoreData(gctx, store, q.Refresh)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("inventory query failed", zap.String("store", store), zap.Error(err))
		return nil, err
	}

	if store == "" {
		if len(stores) == 0 {
			return nil, domain.ErrNoStore
		}
		store = stores[0]
		data = s.fetchStoreData(ctx, store, q.Refresh)
	}

	idx := NewVariantIndex(data.scan.Variants)
	parents, stats := s.aggregator.Aggregate(snapshot.Rows, idx, data.staged, snapshot.Shops)

	filtered := filterParents(parents, q.Filters)
	pageSize := s.resolvePageSize(q.PageSize)
	page, totalPages, start, end := paginate(len(filtered), q.Page, pageSize)

	warnings := []string{storesWarning}
	warnings = append(warnings, data.warnings...)
	if snapshot.Truncated {
		warnings = append(warnings, warnSnapshotTruncated)
	}

	s.logger.Debug("inventory reconciled",
		zap.String("store", store),
		zap.Int("rows", len(snapshot.Rows)),
		zap.Int("variants", len(data.scan.Variants)),
		zap.Int("parents", len(parents)),
		zap.Int("filtered", len(filtered)),
		zap.Int("exactSku", stats.ExactSKU),
		zap.Int("fuzzySku", stats.FuzzySKU),
		zap.Int("barcode", stats.Barcode),
		zap.Int("unmatched", stats.Unmatched))

	return &domain.InventoryPage{
		Store:      store,
		Stores:     stores,
		Items:      filtered[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Totals:     computeTotals(filtered),
		Facets:     buildFacets(parents),
		Truncated:  snapshot.Truncated || data.scan.Truncated,
		MatchStats: stats,
		Warnings:   collectWarnings(warnings...),
	}, nil
}

// fetchStoreData loads staged ids and storefront variants concurrently.
// Neither failure is fatal.
func (s *InventoryService) fetchStoreData(ctx context.Context, store string, refresh bool) storeData {
	var (
		staged        = StagedSet{}
		stagedWarning string
		scan          = &domain.ScanResult{}
		scanWarning   string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.staged == nil {
			return nil
		}
		ids, warning, err := s.staged.ListIDs(gctx, store)
		stagedWarning = warning
		if err != nil {
			s.logger.Warn("staged ids unavailable", zap.String("store", store), zap.Error(err))
			stagedWarning = joinWarnings(warning, "Staged products could not be loaded: "+err.Error())
			return nil
		}
		staged = ids
		return nil
	})
	g.Go(func() error {
		if s.scanner == nil {
			scanWarning = "Shopify data unavailable: no storefront scanner configured."
			return nil
		}
		res, err := s.scanner.Scan(gctx, store, refresh)
		if err != nil {
			s.logger.Warn("storefront scan failed", zap.String("store", store), zap.Error(err))
			scanWarning = "Shopify data unavailable: " + err.Error()
			return nil
		}
		if res != nil {
			scan = res
			scanWarning = res.Warning
		}
		return nil
	})
	_ = g.Wait()

	return storeData{
		staged:   staged,
		scan:     scan,
		warnings: []string{scanWarning, stagedWarning},
	}
}

func (s *InventoryService) resolvePageSize(size int) int {
	for _, allowed := range s.pageSizes {
		if size == allowed {
			return size
		}
	}
	return s.defaultPageSize
}

// paginate clamps page into [1, totalPages] and returns the slice bounds
func paginate(total, page, pageSize int) (clampedPage, totalPages, start, end int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	totalPages = (total + pageSize - 1) / pageSize

	clampedPage = page
	if clampedPage > totalPages {
		clampedPage = totalPages
	}
	if clampedPage < 1 {
		clampedPage = 1
	}

	start = (clampedPage - 1) * pageSize
	if start > total {
		start = total
	}
	end = start + pageSize
	if end > total {
		end = total
	}
	return clampedPage, totalPages, start, end
}

func filterParents(parents []domain.ParentGroup, f domain.InventoryFilters) []domain.ParentGroup {
	out := make([]domain.ParentGroup, 0, len(parents))
	for i := range parents {
		if matchesFilters(&parents[i], f) {
			out = append(out, parents[i])
		}
	}
	return out
}

func matchesFilters(p *domain.ParentGroup, f domain.InventoryFilters) bool {
	switch {
	case strings.EqualFold(f.CartState, domain.CartEnabled):
		if !p.AvailableAt.Cart {
			return false
		}
	case strings.EqualFold(f.CartState, domain.CartNotEnabled):
		if p.AvailableAt.Cart {
			return false
		}
	}

	switch {
	case strings.EqualFold(f.ShopifyState, domain.ShopifyAvailable):
		if !p.AvailableAt.Shopify {
			return false
		}
	case strings.EqualFold(f.ShopifyState, domain.ShopifyMissing):
		if p.AvailableAt.Shopify {
			return false
		}
	}

	if needle := normalizeLower(f.SKU); needle != "" && !parentHasSKU(p, needle) {
		return false
	}
	if needle := normalizeLower(f.Name); needle != "" && !strings.Contains(strings.ToLower(p.Title), needle) {
		return false
	}
	if category := normalizeText(f.Category); category != "" && !strings.EqualFold(normalizeText(p.Category), category) {
		return false
	}

	return inRange(p.Price, f.MinPrice, f.MaxPrice) && inRange(p.Stock, f.MinStock, f.MaxStock)
}

func parentHasSKU(p *domain.ParentGroup, needle string) bool {
	if strings.Contains(strings.ToLower(p.SKU), needle) {
		return true
	}
	for _, v := range p.Variants {
		for _, candidate := range []string{v.SKU, v.UPC, v.SellerSKU} {
			if strings.Contains(strings.ToLower(candidate), needle) {
				return true
			}
		}
	}
	return false
}

// inRange treats an unknown value as outside any bounded range
func inRange(v, lo, hi *float64) bool {
	if lo == nil && hi == nil {
		return true
	}
	if v == nil {
		return false
	}
	if lo != nil && *v < *lo {
		return false
	}
	if hi != nil && *v > *hi {
		return false
	}
	return true
}

func computeTotals(parents []domain.ParentGroup) domain.InventoryTotals {
	var t domain.InventoryTotals
	t.Products = len(parents)
	for _, p := range parents {
		t.Items += p.Variations
		if p.AvailableAt.Cart {
			t.Staged++
		}
		if p.AvailableAt.Shopify {
			t.ShopifyAvailable++
		}
	}
	return t
}

func buildFacets(parents []domain.ParentGroup) domain.InventoryFacets {
	categories := make(map[string]string)
	brands := make(map[string]string)
	for _, p := range parents {
		if c := normalizeText(p.Category); c != "" {
			if _, ok := categories[strings.ToLower(c)]; !ok {
				categories[strings.ToLower(c)] = c
			}
		}
		if b := normalizeText(p.Brand); b != "" {
			if _, ok := brands[strings.ToLower(b)]; !ok {
				brands[strings.ToLower(b)] = b
			}
		}
	}

	cmp := newNaturalComparator()
	facets := domain.InventoryFacets{
		Categories: mapValues(categories),
		Brands:     mapValues(brands),
	}
	cmp.sortStrings(facets.Categories)
	cmp.sortStrings(facets.Brands)
	return facets
}

func mapValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
