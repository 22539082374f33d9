package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rutadirecta/boleteria/internal/middleware"
	"github.com/rutadirecta/boleteria/internal/service"
)

// BookingHandler serves ticket sales, payment confirmation, boarding
// validation and cancellation.
type BookingHandler struct {
	Bookings *service.BookingService
}

func NewBookingHandler(b *service.BookingService) *BookingHandler {
	return &BookingHandler{Bookings: b}
}

type seatReq struct {
	SeatID        uint64 `json:"seat_id"`
	PassengerName string `json:"passenger_name"`
	PassengerDoc  string `json:"passenger_doc"`
	Destination   string `json:"destination"`
}

type bookReq struct {
	Seats         []seatReq `json:"seats"`
	Holder        string    `json:"holder"`         // advisory lock holder, if one was taken
	Channel       string    `json:"channel"`        // fallback when the token carries none
	TenderedCents uint32    `json:"tendered_cents"` // cash channels only; 0 = gateway settles
}

// Create books the requested seats on a trip as one commercial
// transaction.  Seats settle independently: 201 when every seat was
// booked, 207 when some failed, 409 when none succeeded.  Channel and
// actor come from the caller's token when present; the web storefront's
// backend names its channel in the body instead.
func (h *BookingHandler) Create(c echo.Context) error {
	tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.Seats) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one seat required"})
	}

	channel := middleware.Channel(c)
	if channel == "" {
		channel = strings.ToUpper(strings.TrimSpace(req.Channel))
	}
	if channel == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "sales channel required"})
	}
	actor := middleware.ActorID(c)

	reqs := make([]service.BookingRequest, 0, len(req.Seats))
	for _, s := range req.Seats {
		reqs = append(reqs, service.BookingRequest{
			TripID:        tripID,
			SeatID:        s.SeatID,
			PassengerName: s.PassengerName,
			PassengerDoc:  s.PassengerDoc,
			Destination:   s.Destination,
			ChannelID:     channel,
			ActorID:       actor,
			Holder:        req.Holder,
			TenderedCents: req.TenderedCents,
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	result, err := h.Bookings.BookBulk(ctx, reqs)
	if err != nil {
		return httpError(c, err)
	}
	switch {
	case len(result.Tickets) == 0:
		return c.JSON(http.StatusConflict, result)
	case result.Partial():
		return c.JSON(http.StatusMultiStatus, result)
	default:
		return c.JSON(http.StatusCreated, result)
	}
}

type confirmReq struct {
	TicketID   uint64 `json:"ticket_id"`
	Outcome    string `json:"outcome"` // completed | failed
	PaymentRef string `json:"payment_ref"`
}

// ConfirmPayment applies the payment gateway's verdict to a pending
// ticket.  Duplicate callbacks come back as 409 without changing
// anything.
func (h *BookingHandler) ConfirmPayment(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.TicketID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ticket, err := h.Bookings.ConfirmPayment(ctx, req.TicketID, req.Outcome, req.PaymentRef)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// Get returns one ticket.
func (h *BookingHandler) Get(c echo.Context) error {
	ticketID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ticket, err := h.Bookings.Store.GetTicket(ctx, ticketID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// Validate handles a boarding scan: the ticket moves to BOARDED, or the
// scan is rejected with 409 when the ticket is not in a boardable state.
func (h *BookingHandler) Validate(c echo.Context) error {
	ticketID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ticket, err := h.Bookings.Validate(ctx, ticketID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// Cancel voids a PENDING or PAID ticket and returns its seat to the
// trip.  Boarded and completed tickets cannot be cancelled.
func (h *BookingHandler) Cancel(c echo.Context) error {
	ticketID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ticket, err := h.Bookings.Cancel(ctx, ticketID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}
