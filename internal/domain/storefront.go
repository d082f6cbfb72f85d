package domain

// StorefrontVariant is a flattened storefront product variant
type StorefrontVariant struct {
	ID                string   `json:"id"`
	ProductID         string   `json:"productId"`
	ProductTitle      string   `json:"productTitle"`
	Vendor            string   `json:"vendor,omitempty"`
	SKU               string   `json:"sku"`
	Barcode           string   `json:"barcode"`
	Price             *float64 `json:"price,omitempty"`
	InventoryQuantity *int     `json:"inventoryQuantity,omitempty"`
	Color             string   `json:"color,omitempty"`
	Size              string   `json:"size,omitempty"`
	Image             string   `json:"image,omitempty"`
	ProductImage      string   `json:"productImage,omitempty"`
}

// ScanResult is the outcome of a storefront variant scan
type ScanResult struct {
	Variants  []StorefrontVariant `json:"variants"`
	Truncated bool                `json:"truncated"`
	Warning   string              `json:"warning,omitempty"`
	FromCache bool                `json:"-"`
}
