package usecase

import (
	"go.uber.org/zap"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

// Minimum key lengths for the C-prefix fuzzy tier
const (
	fuzzyMinKeyLength      = 4
	fuzzyMinStrippedLength = 3
)

// VariantIndex is a lookup over one storefront scan, built once per scan
type VariantIndex struct {
	bySku     map[string][]*domain.StorefrontVariant
	byBarcode map[string][]*domain.StorefrontVariant
	// skuKeys keeps bySku keys in insertion order so fuzzy scans are deterministic
	skuKeys []string
}

// NewVariantIndex indexes variants by normalized SKU and barcode.
// bySku also carries barcodes so SKU-like POS fields can hit a barcode.
func NewVariantIndex(variants []domain.StorefrontVariant) *VariantIndex {
	idx := &VariantIndex{
		bySku:     make(map[string][]*domain.StorefrontVariant, len(variants)),
		byBarcode: make(map[string][]*domain.StorefrontVariant, len(variants)),
	}

	for i := range variants {
		v := &variants[i]
		if key := normalizeSkuKey(v.SKU); key != "" {
			idx.addSku(key, v)
		}
		if key := normalizeSkuKey(v.Barcode); key != "" {
			idx.addSku(key, v)
			idx.byBarcode[key] = append(idx.byBarcode[key], v)
		}
	}
	return idx
}

func (idx *VariantIndex) addSku(key string, v *domain.StorefrontVariant) {
	list, ok := idx.bySku[key]
	if !ok {
		idx.skuKeys = append(idx.skuKeys, key)
	}
	for _, existing := range list {
		if existing == v {
			return
		}
	}
	idx.bySku[key] = append(list, v)
}

// Len returns the number of distinct SKU keys
func (idx *VariantIndex) Len() int {
	return len(idx.skuKeys)
}

// matchStrategy is one tier of the matching chain; find returns nil to fall through
type matchStrategy struct {
	tier domain.MatchTier
	find func(idx *VariantIndex, row *domain.CatalogRow) *domain.StorefrontVariant
}

// matchStrategies run in order; the first hit wins
var matchStrategies = []matchStrategy{
	{tier: domain.TierExactSKU, find: findExactSKU},
	{tier: domain.TierFuzzySKU, find: findFuzzySKU},
	{tier: domain.TierBarcode, find: findBarcode},
}

func skuCandidates(row *domain.CatalogRow) []string {
	return nonEmptyKeys(row.CustomSKU, row.SystemSKU, row.ItemID)
}

func barcodeCandidates(row *domain.CatalogRow) []string {
	return nonEmptyKeys(row.UPC, row.EAN)
}

func nonEmptyKeys(values ...string) []string {
	keys := make([]string, 0, len(values))
	for _, v := range values {
		if k := normalizeSkuKey(v); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func first(list []*domain.StorefrontVariant) *domain.StorefrontVariant {
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

func findExactSKU(idx *VariantIndex, row *domain.CatalogRow) *domain.StorefrontVariant {
	for _, key := range skuCandidates(row) {
		if v := first(idx.bySku[key]); v != nil {
			return v
		}
	}
	return nil
}

// findFuzzySKU compares keys with at most one leading "c" removed on either side
func findFuzzySKU(idx *VariantIndex, row *domain.CatalogRow) *domain.StorefrontVariant {
	for _, key := range skuCandidates(row) {
		if len(key) < fuzzyMinKeyLength {
			continue
		}

		stripped := stripLeadingC(key)
		if stripped != key && len(stripped) >= fuzzyMinStrippedLength {
			if v := first(idx.bySku[stripped]); v != nil {
				return v
			}
		}

		for _, indexed := range idx.skuKeys {
			indexedStripped := stripLeadingC(indexed)
			if indexedStripped == stripped || indexedStripped == key {
				if v := first(idx.bySku[indexed]); v != nil {
					return v
				}
			}
		}
	}
	return nil
}

func findBarcode(idx *VariantIndex, row *domain.CatalogRow) *domain.StorefrontVariant {
	for _, key := range barcodeCandidates(row) {
		if v := first(idx.byBarcode[key]); v != nil {
			return v
		}
	}
	return nil
}

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	EnableDebugLogging bool
	Logger             *zap.Logger
}

// MatchingService resolves catalog rows to storefront variants
type MatchingService struct {
	enableDebugLogging bool
	logger             *zap.Logger
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchingService{
		enableDebugLogging: config.EnableDebugLogging,
		logger:             logger,
	}
}

// Match returns exactly one result for row; a nil index matches nothing
func (s *MatchingService) Match(row *domain.CatalogRow, idx *VariantIndex) domain.MatchResult {
	if row == nil || idx == nil {
		return domain.MatchResult{Row: row, Tier: domain.TierNone}
	}

	for _, strategy := range matchStrategies {
		if v := strategy.find(idx, row); v != nil {
			if s.enableDebugLogging {
				s.logger.Debug("row matched",
					zap.String("tier", string(strategy.tier)),
					zap.String("customSku", row.CustomSKU),
					zap.String("systemSku", row.SystemSKU),
					zap.String("variantSku", v.SKU))
			}
			return domain.MatchResult{Row: row, Variant: v, Tier: strategy.tier}
		}
	}

	return domain.MatchResult{Row: row, Tier: domain.TierNone}
}

// MatchAll matches every row and tallies tier usage
func (s *MatchingService) MatchAll(rows []domain.CatalogRow, idx *VariantIndex) ([]domain.MatchResult, domain.MatchStats) {
	results := make([]domain.MatchResult, len(rows))
	var stats domain.MatchStats
	for i := range rows {
		results[i] = s.Match(&rows[i], idx)
		stats.Record(results[i].Tier)
	}
	return results, stats
}
