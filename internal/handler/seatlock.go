package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rutadirecta/boleteria/internal/pubsub"
	"github.com/rutadirecta/boleteria/internal/service"
)

// SeatLockHandler serves the advisory seat-lock endpoints and the live
// event stream kiosks subscribe to.
type SeatLockHandler struct {
	Locks  *service.LockService
	Events *pubsub.Broadcaster
}

func NewSeatLockHandler(l *service.LockService, b *pubsub.Broadcaster) *SeatLockHandler {
	return &SeatLockHandler{Locks: l, Events: b}
}

type lockReq struct {
	Holder     string `json:"holder"`
	TTLSeconds int    `json:"ttl_seconds"` // 0 = server default
}

// Acquire takes or refreshes the advisory lock on a seat.  The holder is
// an opaque client identity (session token, kiosk UUID); the same holder
// re-locking extends the hold.  Clients without an identity of their own
// get a fresh one minted, returned in the lock body so they can release
// or book with it.
func (h *SeatLockHandler) Acquire(c echo.Context) error {
	tripID, seatID, err := tripSeatParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req lockReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Holder = strings.TrimSpace(req.Holder)
	if req.Holder == "" {
		req.Holder = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	lock, err := h.Locks.Acquire(ctx, tripID, seatID, req.Holder, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, lock)
}

// Release drops the holder's lock.  Always 204: releasing a seat you do
// not hold, or one that already lapsed, is a no-op rather than an error.
func (h *SeatLockHandler) Release(c echo.Context) error {
	tripID, seatID, err := tripSeatParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	holder := strings.TrimSpace(c.QueryParam("holder"))
	if holder == "" {
		var req lockReq
		if err := c.Bind(&req); err == nil {
			holder = strings.TrimSpace(req.Holder)
		}
	}
	if holder == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "holder required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Locks.Release(ctx, tripID, seatID, holder); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Stream pushes seat-lock events for one trip as server-sent events.
// Delivery is best effort: a client that reconnects re-reads the seat
// map and loses nothing.  Keepalive comments flow every 25 seconds so
// proxies do not reap the idle connection.
func (h *SeatLockHandler) Stream(c echo.Context) error {
	tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}

	ctx := c.Request().Context()
	events, cancel, err := h.Events.Subscribe(ctx, tripID)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "event stream unavailable"})
	}
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepalive.C:
			if _, err := fmt.Fprint(res, ": keepalive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			body, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(res, "data: %s\n\n", body); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func tripSeatParams(c echo.Context) (uint64, uint64, error) {
	tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid trip id")
	}
	seatID, err := strconv.ParseUint(c.Param("seatID"), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid seat id")
	}
	return tripID, seatID, nil
}
