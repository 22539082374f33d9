package model

import "time"

// Seat type constants.  Only sellable and accessible seats participate in
// booking; the remaining types describe fixtures in the vehicle layout so
// kiosks can render a faithful seat map.
const (
	SeatTypeSellable   = "SELLABLE"
	SeatTypeAisle      = "AISLE"
	SeatTypeStair      = "STAIR"
	SeatTypeRestroom   = "RESTROOM"
	SeatTypeAccessible = "ACCESSIBLE"
	SeatTypeExtraSpace = "EXTRA_SPACE"
)

// Vehicle is a physical bus.  Capacity counts purchasable seats only and
// is copied onto trips at generation time; growing or shrinking a fleet
// vehicle later never resizes trips that already exist.
//
// Fields:
//  ID        – primary key identifier.
//  Plate     – licence plate, unique per fleet.
//  Capacity  – number of purchasable seats.
//  IsActive  – inactive vehicles are skipped during trip generation.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Vehicle struct {
	ID        uint64    `json:"id"`
	Plate     string    `json:"plate"`
	Capacity  uint32    `json:"capacity"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Seat describes one position in a vehicle's seat map.  Seats are
// uniquely identified by (vehicle, number).  SeatType decides whether the
// seat can be sold at all; see Purchasable.
type Seat struct {
	ID        uint64    `json:"id"`
	VehicleID uint64    `json:"vehicle_id"`
	Number    uint32    `json:"number"` // printed on the seat
	Row       uint32    `json:"row"`    // layout row, 0-based
	Col       uint32    `json:"col"`    // layout column, 0-based
	SeatType  string    `json:"seat_type"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Purchasable reports whether this seat may carry a ticket.  Aisles,
// stairs, restrooms and extra-space markers exist only for layout
// rendering.
func (s Seat) Purchasable() bool {
	return s.IsActive && (s.SeatType == SeatTypeSellable || s.SeatType == SeatTypeAccessible)
}
