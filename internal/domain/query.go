package domain

// Filter values for cart and storefront state
const (
	FilterAll        = "all"
	CartEnabled      = "enabled"
	CartNotEnabled   = "notEnabled"
	ShopifyAvailable = "available"
	ShopifyMissing   = "missing"
)

// InventoryFilters narrows the parent list; zero values disable a filter
type InventoryFilters struct {
	CartState    string
	ShopifyState string
	SKU          string
	Name         string
	Category     string
	MinPrice     *float64
	MaxPrice     *float64
	MinStock     *float64
	MaxStock     *float64
}

// InventoryQuery is a façade request
type InventoryQuery struct {
	Store    string
	Filters  InventoryFilters
	Page     int
	PageSize int
	Refresh  bool
}

// InventoryTotals summarizes the filtered parent set
type InventoryTotals struct {
	Products         int `json:"products"`
	Items            int `json:"items"`
	Staged           int `json:"staged"`
	ShopifyAvailable int `json:"shopifyAvailable"`
}

// InventoryFacets are derived from the unfiltered parent set
type InventoryFacets struct {
	Categories []string `json:"categories"`
	Brands     []string `json:"brands"`
}

// InventoryPage is the façade response
type InventoryPage struct {
	Store      string          `json:"store"`
	Stores     []string        `json:"stores"`
	Items      []ParentGroup   `json:"items"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
	Totals     InventoryTotals `json:"totals"`
	Facets     InventoryFacets `json:"facets"`
	Truncated  bool            `json:"truncated"`
	MatchStats MatchStats      `json:"matchStats"`
	Warnings   []string        `json:"warnings"`
}
