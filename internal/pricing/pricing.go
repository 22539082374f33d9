// Package pricing holds the fare arithmetic shared by trip generation and
// booking.  All money is integer cents; rounding happens exactly once per
// derived amount so the same inputs always produce the same totals.
package pricing

import "math"

// ItbmsRate is the fixed ITBMS transaction tax applied to every fare.
const ItbmsRate = 0.07

// TripPriceCents computes the frozen per-seat price for a generated trip.
// Express templates multiply the route base fare by their multiplier;
// non-express trips sell at the base fare regardless of the multiplier
// stored on the template.  Multipliers below 1 are treated as 1 — an
// express service never undercuts the base fare.
func TripPriceCents(baseCents uint32, isExpress bool, multiplier float64) uint32 {
	if !isExpress {
		return baseCents
	}
	if multiplier < 1 {
		multiplier = 1
	}
	return uint32(math.Round(float64(baseCents) * multiplier))
}

// ItbmsCents computes the tax on a fare: round(fare × 0.07) to the cent.
func ItbmsCents(fareCents uint32) uint32 {
	return uint32(math.Round(float64(fareCents) * ItbmsRate))
}

// TotalCents is the amount the buyer pays: fare plus ITBMS.
func TotalCents(fareCents uint32) uint32 {
	return fareCents + ItbmsCents(fareCents)
}
