package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rutadirecta/boleteria/internal/middleware"
	"github.com/rutadirecta/boleteria/internal/model"
	"github.com/rutadirecta/boleteria/internal/repository"
)

// AssignmentHandler serves the dispatcher's assignment ledger: binding
// templates to dates and vehicles, and the audited vehicle swaps.
type AssignmentHandler struct {
	Assignments *repository.AssignmentRepo
}

func NewAssignmentHandler(a *repository.AssignmentRepo) *AssignmentHandler {
	return &AssignmentHandler{Assignments: a}
}

type assignmentReq struct {
	ScheduleID uint64  `json:"schedule_id"`
	VehicleID  *uint64 `json:"vehicle_id"` // may be pencilled in later
	DriverID   *uint64 `json:"driver_id"`
	Date       string  `json:"date"` // YYYY-MM-DD
}

// Create binds a schedule template to a date.  A template runs at most
// once per day, so a second assignment for the same (template, date)
// reports a conflict.
func (h *AssignmentHandler) Create(c echo.Context) error {
	var req assignmentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ScheduleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "schedule_id required"})
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a := &model.Assignment{
		ScheduleID: req.ScheduleID,
		VehicleID:  req.VehicleID,
		DriverID:   req.DriverID,
		Date:       date,
	}
	if err := h.Assignments.Create(ctx, a); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// ListByDate returns the assignments for one calendar date.
func (h *AssignmentHandler) ListByDate(c echo.Context) error {
	q := c.QueryParam("date")
	if q == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date query parameter required"})
	}
	date, err := time.Parse("2006-01-02", q)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	assignments, err := h.Assignments.ListByDate(ctx, date)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, assignments)
}

type vehicleChangeReq struct {
	VehicleID uint64 `json:"vehicle_id"`
	Reason    string `json:"reason"`
}

// ChangeVehicle swaps the bus on an assignment.  A reason is mandatory —
// every swap lands in the audit trail with the operator who made it.
// Trips already generated from the assignment keep their original
// vehicle; the swap affects future generation only.
func (h *AssignmentHandler) ChangeVehicle(c echo.Context) error {
	assignmentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}
	var req vehicleChangeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.VehicleID == 0 || req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicle_id and reason required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	change, err := h.Assignments.ChangeVehicle(ctx, assignmentID, req.VehicleID, middleware.ActorID(c), req.Reason)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, change)
}

// ListChanges returns the vehicle-swap audit trail for an assignment,
// newest first.
func (h *AssignmentHandler) ListChanges(c echo.Context) error {
	assignmentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	changes, err := h.Assignments.ListChanges(ctx, assignmentID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, changes)
}
