package usecase

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

// Placeholder location rows emitted by the snapshot provider
var (
	shopZeroRegex = regexp.MustCompile(`(?i)^shop\s*#\s*0+$`)
	shopIDRegex   = regexp.MustCompile(`(?i)^shopid\s*=\s*\d+$`)
)

func normalizeText(s string) string {
	return strings.TrimSpace(s)
}

func normalizeLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeSkuKey trims, removes all whitespace and lowercases a SKU or barcode
func normalizeSkuKey(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// stripLeadingC drops one leading "c" from a normalized key.
// Only used for fuzzy comparison, never for display.
func stripLeadingC(key string) string {
	if strings.HasPrefix(key, "c") {
		return key[1:]
	}
	return key
}

// isInvalidLocationName reports sentinel location names that must never be summed
func isInvalidLocationName(name string) bool {
	n := strings.TrimSpace(name)
	if n == "" || n == "0" {
		return true
	}
	return shopZeroRegex.MatchString(n) || shopIDRegex.MatchString(n)
}

// finite returns nil for NaN and infinities
func finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

// round2 rounds half away from zero to two decimal places
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// locationSet is a case-insensitive allow-list of known location names.
// An empty set accepts every valid location.
type locationSet map[string]struct{}

func newLocationSet(names []string) locationSet {
	set := make(locationSet, len(names))
	for _, n := range names {
		if isInvalidLocationName(n) {
			continue
		}
		set[normalizeLower(n)] = struct{}{}
	}
	return set
}

func (s locationSet) accepts(name string) bool {
	if isInvalidLocationName(name) {
		return false
	}
	if len(s) == 0 {
		return true
	}
	_, ok := s[normalizeLower(name)]
	return ok
}

// aggregateLocations sums the quantities of accepted locations.
// The total is nil when no accepted location carried a numeric quantity,
// which callers must keep distinct from a known zero.
func aggregateLocations(locations map[string]*float64, known locationSet) (*float64, []domain.LocationQty) {
	names := make([]string, 0, len(locations))
	for name := range locations {
		if known.accepts(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	entries := make([]domain.LocationQty, 0, len(names))
	var total float64
	counted := false
	for _, name := range names {
		qty := finite(locations[name])
		entries = append(entries, domain.LocationQty{Location: normalizeText(name), Qty: qty})
		if qty == nil {
			continue
		}
		total += *qty
		counted = true
	}

	if !counted {
		return nil, entries
	}
	return &total, entries
}
