package domain

import (
	"fmt"
	"strings"
	"time"
)

// StagingStatus is the push state of a staged variant
type StagingStatus string

const (
	StatusPending   StagingStatus = "PENDING"
	StatusProcessed StagingStatus = "PROCESSED"
	StatusError     StagingStatus = "ERROR"
)

// ReviewErrorMessage is attached to variants bulk-marked as ERROR
const ReviewErrorMessage = "Marked for review"

// ParseStagingStatus accepts a status in any letter case
func ParseStagingStatus(s string) (StagingStatus, error) {
	switch StagingStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusProcessed:
		return StatusProcessed, nil
	case StatusError:
		return StatusError, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// StagingVariant is a persisted variant of a staged parent
type StagingVariant struct {
	SKU       string        `json:"sku"`
	UPC       string        `json:"upc,omitempty"`
	SellerSKU string        `json:"sellerSku,omitempty"`
	CartID    string        `json:"cartId,omitempty"`
	Color     string        `json:"color,omitempty"`
	Size      string        `json:"size,omitempty"`
	Stock     *float64      `json:"stock"`
	Price     *float64      `json:"price"`
	Image     string        `json:"image,omitempty"`
	Status    StagingStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// StagingParent is a parent product marked for push to the storefront.
// Status and Stock are derived from Variants; see Derive.
type StagingParent struct {
	ID        string           `json:"id"`
	SKU       string           `json:"sku"`
	Title     string           `json:"title"`
	Category  string           `json:"category,omitempty"`
	Brand     string           `json:"brand,omitempty"`
	Stock     *float64         `json:"stock"`
	Price     *float64         `json:"price"`
	Image     string           `json:"image,omitempty"`
	Status    StagingStatus    `json:"status"`
	Error     string           `json:"error,omitempty"`
	Variants  []StagingVariant `json:"variants"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// DeriveStatus computes a parent status from its variants: ERROR wins,
// PROCESSED needs at least one variant and no PENDING ones.
func DeriveStatus(variants []StagingVariant) StagingStatus {
	pending := 0
	for _, v := range variants {
		switch v.Status {
		case StatusError:
			return StatusError
		case StatusProcessed:
		default:
			pending++
		}
	}
	if len(variants) > 0 && pending == 0 {
		return StatusProcessed
	}
	return StatusPending
}

// DeriveStock sums numeric variant stocks; nil when no variant has one
func DeriveStock(variants []StagingVariant) *float64 {
	var total float64
	known := false
	for _, v := range variants {
		if v.Stock == nil {
			continue
		}
		total += *v.Stock
		known = true
	}
	if !known {
		return nil
	}
	return &total
}

// Derive overwrites the parent-level status, error and stock from its variants
func (p *StagingParent) Derive() {
	for i := range p.Variants {
		if p.Variants[i].Status == "" {
			p.Variants[i].Status = StatusPending
		}
	}
	p.Status = DeriveStatus(p.Variants)
	p.Stock = DeriveStock(p.Variants)
	p.Error = ""
	if p.Status == StatusError {
		for _, v := range p.Variants {
			if v.Status == StatusError && v.Error != "" {
				p.Error = v.Error
				break
			}
		}
	}
}
