package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rutadirecta/boleteria/internal/repository"
)

// ScheduleHandler serves the schedule catalog: the recurring templates
// dispatchers edit between seasons.
type ScheduleHandler struct {
	Schedules *repository.ScheduleRepo
}

func NewScheduleHandler(s *repository.ScheduleRepo) *ScheduleHandler {
	return &ScheduleHandler{Schedules: s}
}

// List returns every active template joined with its route.
func (h *ScheduleHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	templates, err := h.Schedules.ListActiveWithRoutes(ctx)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, templates)
}

type scheduleUpdateReq struct {
	Active            *bool    `json:"active"`
	ExpressMultiplier *float64 `json:"express_multiplier"`
}

// Update edits a template's active flag and/or express multiplier.
// Edits are forward-looking only: trips already generated keep their
// frozen price and stay sellable regardless.
func (h *ScheduleHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}
	var req scheduleUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Active == nil && req.ExpressMultiplier == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tpl, err := h.Schedules.GetByID(ctx, id)
	if err != nil {
		return httpError(c, err)
	}

	if req.ExpressMultiplier != nil {
		if *req.ExpressMultiplier < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "express_multiplier must be >= 1"})
		}
		if !tpl.IsExpress {
			return c.JSON(http.StatusConflict, echo.Map{"error": "template is not express"})
		}
		// The update matches zero rows when the value is unchanged;
		// existence was checked above, so that is a harmless no-op.
		if err := h.Schedules.SetExpressMultiplier(ctx, id, *req.ExpressMultiplier); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return httpError(c, err)
		}
	}
	if req.Active != nil {
		if err := h.Schedules.SetActive(ctx, id, *req.Active); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return httpError(c, err)
		}
	}

	tpl, err = h.Schedules.GetByID(ctx, id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, tpl)
}
