package domain

// CatalogRow is one SKU-level row of the POS/ERP catalog snapshot.
// Rows are normalized on ingress and treated as immutable afterwards.
type CatalogRow struct {
	ID           string `json:"id,omitempty"`
	ItemID       string `json:"itemId,omitempty"`
	ItemMatrixID string `json:"itemMatrixId,omitempty"`
	SystemSKU    string `json:"systemSku,omitempty"`
	CustomSKU    string `json:"customSku,omitempty"`
	UPC          string `json:"upc,omitempty"`
	EAN          string `json:"ean,omitempty"`

	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Size        string `json:"size,omitempty"`
	Category    string `json:"category,omitempty"`
	ItemType    string `json:"itemType,omitempty"`
	Brand       string `json:"brand,omitempty"`

	RetailPrice *float64 `json:"retailPrice,omitempty"`

	// Locations maps location name to quantity; a nil quantity means unknown.
	Locations map[string]*float64 `json:"locations,omitempty"`
}

// CatalogSnapshot is a point-in-time export of the POS/ERP catalog
type CatalogSnapshot struct {
	Rows       []CatalogRow `json:"rows"`
	Total      int          `json:"total"`
	Categories []string     `json:"categories"`
	Shops      []string     `json:"shops"`
	Truncated  bool         `json:"truncated"`
}

// SnapshotRequest carries the hints sent to the snapshot provider
type SnapshotRequest struct {
	IncludeAll bool
	PageSize   int
	SortField  string
	SortDir    string
	Refresh    bool
}
