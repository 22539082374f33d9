package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rutadirecta/boleteria/internal/model"
	"github.com/rutadirecta/boleteria/internal/repository"
	"github.com/rutadirecta/boleteria/internal/service"
)

// Seat statuses reported by the seat-map endpoint.  "blocked" marks
// layout fixtures and deactivated seats that can never carry a ticket.
const (
	seatFree    = "free"
	seatLocked  = "locked"
	seatSold    = "sold"
	seatBlocked = "blocked"
)

// TripHandler serves trip generation, sellable listings and seat maps.
type TripHandler struct {
	Generator *service.TripGenerator
	Resolver  *service.SellableResolver
	Trips     *repository.TripRepo
	Routes    *repository.RouteRepo
	Vehicles  *repository.VehicleRepo
	Tickets   *repository.TicketRepo
	Locks     *service.LockService
}

func NewTripHandler(g *service.TripGenerator, r *service.SellableResolver, t *repository.TripRepo, rt *repository.RouteRepo, v *repository.VehicleRepo, tk *repository.TicketRepo, l *service.LockService) *TripHandler {
	return &TripHandler{Generator: g, Resolver: r, Trips: t, Routes: rt, Vehicles: v, Tickets: tk, Locks: l}
}

type generateReq struct {
	Date string `json:"date"` // YYYY-MM-DD, interpreted as UTC
}

// Generate materializes trips for every assignment on the given date.
// Safe to re-run: already-generated departures come back as skips, never
// duplicates.
func (h *TripHandler) Generate(c echo.Context) error {
	var req generateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	result, err := h.Generator.Generate(ctx, date)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Sellable lists the purchasable offerings for a date (default: today,
// UTC).
func (h *TripHandler) Sellable(c echo.Context) error {
	date := time.Now().UTC()
	if q := c.QueryParam("date"); q != "" {
		var err error
		date, err = time.Parse("2006-01-02", q)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	schedules, err := h.Resolver.Resolve(ctx, date)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date.Format("2006-01-02"), "schedules": schedules})
}

// Get returns one trip with its route stops and sold-seat count.
func (h *TripHandler) Get(c echo.Context) error {
	tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	trip, err := h.Trips.GetByID(ctx, tripID)
	if err != nil {
		return httpError(c, err)
	}
	stops, err := h.Routes.StopsByRoute(ctx, trip.RouteID)
	if err != nil {
		return httpError(c, err)
	}
	sold, err := h.Tickets.CountActiveByTrip(ctx, tripID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"trip": trip, "stops": stops, "sold_seats": sold})
}

type seatView struct {
	SeatID    uint64 `json:"seat_id"`
	Number    uint32 `json:"number"`
	Row       uint32 `json:"row"`
	Col       uint32 `json:"col"`
	SeatType  string `json:"seat_type"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at,omitempty"` // lock expiry, RFC3339 UTC
}

// SeatMap renders the live seat map of a trip: the vehicle layout merged
// with active tickets and unexpired advisory locks.  Holder identities
// are not exposed — a viewer only learns that a seat is taken.
func (h *TripHandler) SeatMap(c echo.Context) error {
	tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	trip, err := h.Trips.GetByID(ctx, tripID)
	if err != nil {
		return httpError(c, err)
	}
	seats, err := h.Vehicles.SeatsByVehicle(ctx, trip.VehicleID)
	if err != nil {
		return httpError(c, err)
	}
	tickets, err := h.Tickets.ActiveByTrip(ctx, tripID)
	if err != nil {
		return httpError(c, err)
	}
	locks, err := h.Locks.ActiveLocks(ctx, tripID)
	if err != nil {
		return httpError(c, err)
	}

	views := make([]seatView, 0, len(seats))
	for _, s := range seats {
		v := seatView{SeatID: s.ID, Number: s.Number, Row: s.Row, Col: s.Col, SeatType: s.SeatType}
		if !s.Purchasable() {
			v.Status = seatBlocked
		} else if _, sold := tickets[s.ID]; sold {
			v.Status = seatSold
		} else if l, held := locks[s.ID]; held {
			v.Status = seatLocked
			v.ExpiresAt = l.ExpiresAt.UTC().Format(time.RFC3339)
		} else {
			v.Status = seatFree
		}
		views = append(views, v)
	}

	return c.JSON(http.StatusOK, echo.Map{"trip": trip, "seats": views})
}

type statusReq struct {
	Status string `json:"status"`
}

// UpdateStatus moves a trip through its lifecycle (SCHEDULED → BOARDING
// → COMPLETED, or → CANCELLED).  Illegal transitions report a conflict.
func (h *TripHandler) UpdateStatus(c echo.Context) error {
	tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	switch req.Status {
	case model.TripStatusBoarding, model.TripStatusCompleted, model.TripStatusCancelled:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Trips.UpdateStatus(ctx, tripID, req.Status); err != nil {
		return httpError(c, err)
	}
	trip, err := h.Trips.GetByID(ctx, tripID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, trip)
}
