package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTripPriceCents(t *testing.T) {
	tests := []struct {
		name       string
		base       uint32
		isExpress  bool
		multiplier float64
		want       uint32
	}{
		{"base fare $20 express x1.2", 2000, true, 1.2, 2400},
		{"non-express ignores multiplier", 2000, false, 1.2, 2000},
		{"express x1 keeps base", 1550, true, 1.0, 1550},
		{"multiplier below 1 clamped", 2000, true, 0.5, 2000},
		{"rounds to nearest cent", 999, true, 1.15, 1149},
		{"zero base", 0, true, 2.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TripPriceCents(tt.base, tt.isExpress, tt.multiplier))
		})
	}
}

func TestItbmsCents(t *testing.T) {
	// Fare $24.00 carries $1.68 of ITBMS for a $25.68 total.
	assert.Equal(t, uint32(168), ItbmsCents(2400))
	assert.Equal(t, uint32(2568), TotalCents(2400))

	// Rounding edges.
	assert.Equal(t, uint32(0), ItbmsCents(0))
	assert.Equal(t, uint32(1), ItbmsCents(10))    // 0.7 rounds up
	assert.Equal(t, uint32(0), ItbmsCents(5))     // 0.35 rounds down
	assert.Equal(t, uint32(7), ItbmsCents(100))   // exact
	assert.Equal(t, uint32(70), ItbmsCents(1000)) // exact
}
