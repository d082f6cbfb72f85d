package usecase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestNormalizeSkuKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"ABC-123", "abc-123"},
		{" abc 123 ", "abc123"},
		{"A\tB\nC", "abc"},
		{"ÄBC", "äbc"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeSkuKey(tt.in))
		})
	}
}

func TestStripLeadingC(t *testing.T) {
	assert.Equal(t, "12345", stripLeadingC("c12345"))
	assert.Equal(t, "c12345", stripLeadingC("cc12345"))
	assert.Equal(t, "12345", stripLeadingC("12345"))
	assert.Equal(t, "C12345", stripLeadingC("C12345"), "keys are normalized lowercase before stripping")
	assert.Equal(t, "", stripLeadingC("c"))
}

func TestIsInvalidLocationName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"0", true},
		{"Shop #0", true},
		{"shop#000", true},
		{"SHOP # 0", true},
		{"ShopId=12", true},
		{"shopid = 7", true},
		{"Shop #1", false},
		{"Store A", false},
		{"ShopId=", false},
		{"10", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isInvalidLocationName(tt.name))
		})
	}
}

func TestFinite(t *testing.T) {
	assert.Nil(t, finite(nil))
	assert.Nil(t, finite(f64(math.NaN())))
	assert.Nil(t, finite(f64(math.Inf(1))))
	assert.Equal(t, 2.5, *finite(f64(2.5)))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 0.3, round2(0.1+0.2))
	assert.Equal(t, 1.01, round2(1.005))
	assert.Equal(t, -2.35, round2(-2.345))
	assert.Equal(t, 5.0, round2(5))
}

func TestLocationSet(t *testing.T) {
	t.Run("empty accepts every valid location", func(t *testing.T) {
		set := newLocationSet(nil)
		assert.True(t, set.accepts("Anywhere"))
		assert.False(t, set.accepts("Shop #0"))
	})

	t.Run("allow-list is case-insensitive", func(t *testing.T) {
		set := newLocationSet([]string{"Store A", "Shop #0"})
		assert.True(t, set.accepts(" store a "))
		assert.False(t, set.accepts("Store B"))
		assert.False(t, set.accepts("Shop #0"))
		assert.Len(t, set, 1)
	})
}

func TestAggregateLocations(t *testing.T) {
	known := newLocationSet([]string{"A", "B"})

	t.Run("sums numeric quantities and keeps unknown entries", func(t *testing.T) {
		total, entries := aggregateLocations(map[string]*float64{
			"B": nil,
			"A": f64(3),
		}, known)

		require.NotNil(t, total)
		assert.Equal(t, 3.0, *total)
		require.Len(t, entries, 2)
		assert.Equal(t, "A", entries[0].Location)
		assert.Equal(t, "B", entries[1].Location)
		assert.Nil(t, entries[1].Qty)
	})

	t.Run("drops unknown and placeholder locations", func(t *testing.T) {
		total, entries := aggregateLocations(map[string]*float64{
			"A":        f64(1),
			"C":        f64(100),
			"Shop #0":  f64(50),
			"ShopId=4": f64(50),
		}, known)

		require.NotNil(t, total)
		assert.Equal(t, 1.0, *total)
		assert.Len(t, entries, 1)
	})

	t.Run("known zero is not unknown", func(t *testing.T) {
		total, _ := aggregateLocations(map[string]*float64{"A": f64(0)}, known)
		require.NotNil(t, total)
		assert.Equal(t, 0.0, *total)
	})

	t.Run("no numeric quantity yields nil", func(t *testing.T) {
		total, entries := aggregateLocations(map[string]*float64{"A": nil, "B": f64(math.NaN())}, known)
		assert.Nil(t, total)
		assert.Len(t, entries, 2)

		total, entries = aggregateLocations(nil, known)
		assert.Nil(t, total)
		assert.Empty(t, entries)
	})
}
