package domain

// MatchTier identifies which matching strategy paired a row with a variant
type MatchTier string

const (
	TierExactSKU MatchTier = "exact_sku"
	TierFuzzySKU MatchTier = "fuzzy_sku"
	TierBarcode  MatchTier = "barcode"
	TierNone     MatchTier = "none"
)

// MatchResult pairs a catalog row with at most one storefront variant
type MatchResult struct {
	Row     *CatalogRow
	Variant *StorefrontVariant
	Tier    MatchTier
}

// Matched reports whether a storefront variant was found
func (m MatchResult) Matched() bool {
	return m.Variant != nil && m.Tier != TierNone
}

// MatchStats counts tier usage across a reconciliation run
type MatchStats struct {
	Rows      int `json:"rows"`
	ExactSKU  int `json:"exactSku"`
	FuzzySKU  int `json:"fuzzySku"`
	Barcode   int `json:"barcode"`
	Unmatched int `json:"unmatched"`
}

// Availability flags where a parent product is present
type Availability struct {
	Shopify bool `json:"shopify"`
	Cart    bool `json:"cart"`
}

// LocationQty is the stock held at one location
type LocationQty struct {
	Location string   `json:"location"`
	Qty      *float64 `json:"qty"`
}

// ParentGroup is an aggregated product built from matched catalog rows
type ParentGroup struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Category    string       `json:"category"`
	Brand       string       `json:"brand"`
	SKU         string       `json:"sku"`
	Stock       *float64     `json:"stock"`
	Price       *float64     `json:"price"`
	Variations  int          `json:"variations"`
	Image       string       `json:"image"`
	AvailableAt Availability `json:"availableAt"`
	Variants    []VariantRow `json:"variants"`
}

// VariantRow is one SKU-level member of a ParentGroup
type VariantRow struct {
	ParentID           string        `json:"parentId"`
	SKU                string        `json:"sku"`
	UPC                string        `json:"upc"`
	SellerSKU          string        `json:"sellerSku"`
	CartID             string        `json:"cartId"`
	Stock              *float64      `json:"stock"`
	Locations          []LocationQty `json:"locations"`
	Price              *float64      `json:"price"`
	Color              string        `json:"color"`
	Size               string        `json:"size"`
	Image              string        `json:"image"`
	AvailableInShopify bool          `json:"availableInShopify"`
	StagedInCart       bool          `json:"stagedInCart"`
	MatchTier          MatchTier     `json:"matchTier"`
}

// Record counts one match outcome
func (s *MatchStats) Record(tier MatchTier) {
	s.Rows++
	switch tier {
	case TierExactSKU:
		s.ExactSKU++
	case TierFuzzySKU:
		s.FuzzySKU++
	case TierBarcode:
		s.Barcode++
	default:
		s.Unmatched++
	}
}
