package usecase

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

// Group key prefixes
const (
	matrixKeyPrefix = "matrix:"
	skuKeyPrefix    = "sku:"
)

const (
	titleStripPasses     = 3
	titleSeparatorChars  = " -_/"
	directTokenMinLength = 3
)

// StagedSet is a case-insensitive set of staged parent ids
type StagedSet map[string]struct{}

// NewStagedSet builds a set from ids
func NewStagedSet(ids []string) StagedSet {
	set := make(StagedSet, len(ids))
	for _, id := range ids {
		if k := normalizeLower(id); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// Has reports whether id is staged
func (s StagedSet) Has(id string) bool {
	_, ok := s[normalizeLower(id)]
	return ok
}

// IDs returns the members in sorted order
func (s StagedSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AggregationService groups matched catalog rows into parent products
type AggregationService struct {
	matcher *MatchingService
}

// NewAggregationService creates an aggregation service backed by matcher
func NewAggregationService(matcher *MatchingService) *AggregationService {
	if matcher == nil {
		matcher = NewMatchingService(MatchConfig{})
	}
	return &AggregationService{matcher: matcher}
}

// groupAccumulator collects the rows of one parent in input order
type groupAccumulator struct {
	key        string
	displaySKU string
	members    []domain.MatchResult
}

// groupKey returns the parent key and display SKU for a row; ok is false
// when the row carries no usable identifier.
func groupKey(row *domain.CatalogRow) (key, displaySKU string, ok bool) {
	if matrix := normalizeText(row.ItemMatrixID); matrix != "" && matrix != "0" {
		return matrixKeyPrefix + strings.ToLower(matrix), matrix, true
	}
	fallback := firstNonEmpty(row.SystemSKU, row.ItemID, row.CustomSKU, row.ID)
	if fallback == "" {
		return "", "", false
	}
	return skuKeyPrefix + strings.ToLower(fallback), fallback, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if t := normalizeText(v); t != "" {
			return t
		}
	}
	return ""
}

// Aggregate matches rows against idx and builds the sorted parent list
func (s *AggregationService) Aggregate(
	rows []domain.CatalogRow,
	idx *VariantIndex,
	staged StagedSet,
	knownLocations []string,
) ([]domain.ParentGroup, domain.MatchStats) {
	matches, stats := s.matcher.MatchAll(rows, idx)
	known := newLocationSet(knownLocations)
	cmp := newNaturalComparator()

	groups := make(map[string]*groupAccumulator)
	order := make([]string, 0)
	for _, m := range matches {
		key, displaySKU, ok := groupKey(m.Row)
		if !ok {
			continue
		}
		g, exists := groups[key]
		if !exists {
			g = &groupAccumulator{key: key, displaySKU: displaySKU}
			groups[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, m)
	}

	parents := make([]domain.ParentGroup, 0, len(order))
	for _, key := range order {
		parents = append(parents, buildParent(groups[key], staged, known, cmp))
	}

	sort.SliceStable(parents, func(i, j int) bool {
		if c := cmp.compare(parents[i].SKU, parents[j].SKU); c != 0 {
			return c < 0
		}
		return parents[i].ID < parents[j].ID
	})

	return parents, stats
}

func buildParent(g *groupAccumulator, staged StagedSet, known locationSet, cmp *naturalComparator) domain.ParentGroup {
	isStaged := staged.Has(g.key)

	parent := domain.ParentGroup{
		ID:  g.key,
		SKU: g.displaySKU,
		AvailableAt: domain.Availability{
			Cart: isStaged,
		},
	}

	variants := make([]domain.VariantRow, 0, len(g.members))
	var description, productTitle, vendor string
	for _, m := range g.members {
		row := m.Row
		if description == "" {
			description = normalizeText(row.Description)
		}
		if parent.Category == "" {
			parent.Category = normalizeText(row.Category)
		}
		if parent.Brand == "" {
			parent.Brand = normalizeText(row.Brand)
		}
		if m.Matched() {
			parent.AvailableAt.Shopify = true
			if productTitle == "" {
				productTitle = normalizeText(m.Variant.ProductTitle)
			}
			if vendor == "" {
				vendor = normalizeText(m.Variant.Vendor)
			}
		}
		variants = append(variants, buildVariantRow(g.key, m, isStaged, known))
	}
	if parent.Brand == "" {
		parent.Brand = vendor
	}

	sort.SliceStable(variants, func(i, j int) bool {
		if c := cmp.compare(variants[i].SKU, variants[j].SKU); c != 0 {
			return c < 0
		}
		return cmp.compare(variants[i].UPC, variants[j].UPC) < 0
	})

	var stock float64
	stockKnown := false
	for _, v := range variants {
		if v.Stock != nil {
			stock += *v.Stock
			stockKnown = true
		}
		if parent.Price == nil && v.Price != nil {
			parent.Price = v.Price
		}
		if parent.Image == "" && v.Image != "" {
			parent.Image = v.Image
		}
	}
	if stockKnown {
		rounded := round2(stock)
		parent.Stock = &rounded
	}

	title := firstNonEmpty(description, productTitle, g.displaySKU)
	parent.Title = stripVariantTokens(title, variantTokens(variants))
	parent.Variations = len(variants)
	parent.Variants = variants
	return parent
}

func buildVariantRow(parentID string, m domain.MatchResult, staged bool, known locationSet) domain.VariantRow {
	row := m.Row
	stock, locations := aggregateLocations(row.Locations, known)

	v := domain.VariantRow{
		ParentID:     parentID,
		SKU:          firstNonEmpty(row.CustomSKU, row.SystemSKU, row.ItemID),
		UPC:          firstNonEmpty(row.UPC, row.EAN),
		Stock:        stock,
		Locations:    locations,
		Price:        finite(row.RetailPrice),
		Color:        normalizeText(row.Color),
		Size:         normalizeText(row.Size),
		StagedInCart: staged,
		MatchTier:    m.Tier,
	}

	if m.Matched() {
		sf := m.Variant
		v.AvailableInShopify = true
		v.SellerSKU = normalizeText(sf.SKU)
		v.CartID = cartID(sf.ProductID, sf.ID)
		v.Image = firstNonEmpty(sf.Image, sf.ProductImage)
		if v.Price == nil {
			v.Price = finite(sf.Price)
		}
		if v.Color == "" {
			v.Color = normalizeText(sf.Color)
		}
		if v.Size == "" {
			v.Size = normalizeText(sf.Size)
		}
	}
	return v
}

// cartID joins the numeric storefront product and variant ids ("123:456")
func cartID(productGID, variantGID string) string {
	productID := gidNumber(productGID)
	variantID := gidNumber(variantGID)
	if productID == "" || variantID == "" {
		return ""
	}
	return productID + ":" + variantID
}

// gidNumber extracts the trailing numeric id of a GID like gid://shopify/ProductVariant/123
func gidNumber(gid string) string {
	gid = strings.TrimSpace(gid)
	if i := strings.IndexByte(gid, '?'); i >= 0 {
		gid = gid[:i]
	}
	if i := strings.LastIndexByte(gid, '/'); i >= 0 {
		gid = gid[i+1:]
	}
	if _, err := strconv.ParseUint(gid, 10, 64); err != nil {
		return ""
	}
	return gid
}

// variantTokens returns the distinct size and color values of a group,
// longest first so multi-word tokens strip before their fragments.
func variantTokens(variants []domain.VariantRow) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, v := range variants {
		for _, t := range []string{v.Size, v.Color} {
			t = normalizeText(t)
			key := strings.ToUpper(t)
			if t == "" || seen[key] {
				continue
			}
			seen[key] = true
			tokens = append(tokens, t)
		}
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return strings.ToUpper(tokens[i]) < strings.ToUpper(tokens[j])
	})
	return tokens
}

// stripVariantTokens removes trailing size/color tokens from an ERP
// description in up to three passes.
func stripVariantTokens(title string, tokens []string) string {
	result := normalizeText(title)
	if len(tokens) == 0 {
		return result
	}
	for pass := 0; pass < titleStripPasses; pass++ {
		next, stripped := stripTrailingToken(result, tokens)
		if !stripped {
			break
		}
		result = next
	}
	return result
}

// stripTrailingToken removes one token that follows a separator. A token
// glued directly to the previous word only counts when it is at least
// directTokenMinLength long, so single-letter sizes never eat word endings.
func stripTrailingToken(title string, tokens []string) (string, bool) {
	for _, tok := range tokens {
		if rest, ok := cutTokenSuffix(title, tok); ok && rest != strings.TrimRight(rest, titleSeparatorChars) {
			if trimmed := strings.TrimRight(rest, titleSeparatorChars); trimmed != "" {
				return trimmed, true
			}
		}
	}
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < directTokenMinLength {
			continue
		}
		if rest, ok := cutTokenSuffix(title, tok); ok {
			if trimmed := strings.TrimRight(rest, titleSeparatorChars); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return title, false
}

func cutTokenSuffix(title, tok string) (string, bool) {
	if tok == "" || len(tok) >= len(title) {
		return "", false
	}
	cut := len(title) - len(tok)
	if !utf8.RuneStart(title[cut]) || !strings.EqualFold(title[cut:], tok) {
		return "", false
	}
	return title[:cut], true
}

// naturalComparator orders strings locale-aware with digit runs compared numerically.
// A collator is not safe for concurrent use; create one per call site.
type naturalComparator struct {
	collator *collate.Collator
}

func newNaturalComparator() *naturalComparator {
	return &naturalComparator{collator: collate.New(language.English, collate.Numeric)}
}

func (n *naturalComparator) compare(a, b string) int {
	if c := n.collator.CompareString(a, b); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func (n *naturalComparator) sortStrings(values []string) {
	sort.SliceStable(values, func(i, j int) bool {
		return n.compare(values[i], values[j]) < 0
	})
}
