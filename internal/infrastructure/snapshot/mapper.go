package snapshot

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

// flexString accepts a JSON string, number, bool or null.
// The provider is inconsistent about quoting identifiers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	*f = flexString(strings.TrimSpace(string(b)))
	return nil
}

// flexNumber accepts a JSON number or numeric string; anything else is unknown
type flexNumber struct {
	value *float64
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	f.value = parseNumber(string(bytes.Trim(bytes.TrimSpace(b), `"`)))
	return nil
}

// parseNumber parses "12", "12.50" or "1,234.5"; empty and malformed input yield nil
func parseNumber(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "null" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	v, _ := d.Float64()
	return &v
}

type snapshotResponse struct {
	Rows    []rawRow `json:"rows"`
	Total   int      `json:"total"`
	Options struct {
		Categories []flexString `json:"categories"`
		Shops      []flexString `json:"shops"`
	} `json:"options"`
	Truncated bool   `json:"truncated"`
	Error     string `json:"error"`
}

type rawRow struct {
	ID           flexString            `json:"id"`
	ItemID       flexString            `json:"itemId"`
	ItemMatrixID flexString            `json:"itemMatrixId"`
	SystemSKU    flexString            `json:"systemSku"`
	CustomSKU    flexString            `json:"customSku"`
	UPC          flexString            `json:"upc"`
	EAN          flexString            `json:"ean"`
	Description  flexString            `json:"description"`
	Color        flexString            `json:"color"`
	Size         flexString            `json:"size"`
	Category     flexString            `json:"category"`
	ItemType     flexString            `json:"itemType"`
	Brand        flexString            `json:"brand"`
	RetailPrice  flexNumber            `json:"retailPrice"`
	Locations    map[string]flexNumber `json:"locations"`
}

// MapToSnapshot converts the provider payload into the typed snapshot
func MapToSnapshot(resp *snapshotResponse) *domain.CatalogSnapshot {
	rows := make([]domain.CatalogRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		rows = append(rows, mapRow(r))
	}

	total := resp.Total
	if total < len(rows) {
		total = len(rows)
	}

	return &domain.CatalogSnapshot{
		Rows:       rows,
		Total:      total,
		Categories: flexStrings(resp.Options.Categories),
		Shops:      flexStrings(resp.Options.Shops),
		Truncated:  resp.Truncated || total > len(rows),
	}
}

func mapRow(r rawRow) domain.CatalogRow {
	row := domain.CatalogRow{
		ID:           string(r.ID),
		ItemID:       string(r.ItemID),
		ItemMatrixID: string(r.ItemMatrixID),
		SystemSKU:    string(r.SystemSKU),
		CustomSKU:    string(r.CustomSKU),
		UPC:          string(r.UPC),
		EAN:          string(r.EAN),
		Description:  string(r.Description),
		Color:        string(r.Color),
		Size:         string(r.Size),
		Category:     string(r.Category),
		ItemType:     string(r.ItemType),
		Brand:        string(r.Brand),
		RetailPrice:  r.RetailPrice.value,
	}

	if len(r.Locations) > 0 {
		row.Locations = make(map[string]*float64, len(r.Locations))
		for name, qty := range r.Locations {
			row.Locations[name] = qty.value
		}
	}
	return row
}

func flexStrings(in []flexString) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, string(s))
		}
	}
	return out
}

func boolParam(b bool) string {
	return strconv.FormatBool(b)
}
