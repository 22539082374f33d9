// Package router wires the HTTP endpoints to their handlers and
// middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/rutadirecta/boleteria/internal/handler"
	"github.com/rutadirecta/boleteria/internal/middleware"
	"github.com/rutadirecta/boleteria/internal/model"
)

// Deps carries everything the route table needs.
type Deps struct {
	Auth        *handler.AuthHandler
	Trips       *handler.TripHandler
	SeatLocks   *handler.SeatLockHandler
	Bookings    *handler.BookingHandler
	Assignments *handler.AssignmentHandler
	Schedules   *handler.ScheduleHandler
	JWTSecret   string
	RateLimit   echo.MiddlewareFunc // nil disables limiting
}

// Register installs every route.  Browsing (sellable listings, seat
// maps, the event stream) and advisory locks are public so storefronts
// and kiosks work without a session; anything that creates tickets or
// edits the operational ledger requires an operator token.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	if d.RateLimit != nil {
		e.Use(d.RateLimit)
	}

	e.POST("/v1/auth/login", d.Auth.Login)

	// Public browsing and seat selection.
	e.GET("/v1/schedules", d.Schedules.List)
	e.GET("/v1/schedules/sellable", d.Trips.Sellable)
	e.GET("/v1/trips/:id", d.Trips.Get)
	e.GET("/v1/trips/:id/seats", d.Trips.SeatMap)
	e.GET("/v1/trips/:id/seat-events", d.SeatLocks.Stream)
	e.POST("/v1/trips/:id/seats/:seatID/lock", d.SeatLocks.Acquire)
	e.DELETE("/v1/trips/:id/seats/:seatID/lock", d.SeatLocks.Release)

	// Payment gateway callback.  Authenticated by the gateway's own
	// signature scheme at the proxy layer, not by operator JWTs.
	e.POST("/v1/payments/confirm", d.Bookings.ConfirmPayment)

	// Selling and boarding: any authenticated terminal.
	sell := e.Group("/v1")
	sell.Use(middleware.JWTAuth(d.JWTSecret))
	sell.Use(middleware.RequireRole(model.RoleOperator, model.RoleDispatcher))
	sell.POST("/trips/generate", d.Trips.Generate)
	sell.POST("/trips/:id/tickets", d.Bookings.Create)
	sell.GET("/tickets/:id", d.Bookings.Get)
	sell.POST("/tickets/:id/validate", d.Bookings.Validate)
	sell.DELETE("/tickets/:id", d.Bookings.Cancel)

	// Operational ledger: dispatchers only.
	dispatch := e.Group("/v1")
	dispatch.Use(middleware.JWTAuth(d.JWTSecret))
	dispatch.Use(middleware.RequireRole(model.RoleDispatcher))
	dispatch.PATCH("/trips/:id/status", d.Trips.UpdateStatus)
	dispatch.PATCH("/schedules/:id", d.Schedules.Update)
	dispatch.POST("/assignments", d.Assignments.Create)
	dispatch.GET("/assignments", d.Assignments.ListByDate)
	dispatch.PATCH("/assignments/:id/vehicle", d.Assignments.ChangeVehicle)
	dispatch.GET("/assignments/:id/changes", d.Assignments.ListChanges)
}
