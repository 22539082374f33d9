package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rutadirecta/boleteria/internal/repository"
	"github.com/rutadirecta/boleteria/internal/service"
)

// httpError translates domain errors into JSON responses.  4xx responses
// carry the error text; everything unrecognized becomes an opaque 500 so
// internals never leak to terminals.
func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrSeatLocked),
		errors.Is(err, repository.ErrSeatUnavailable),
		errors.Is(err, repository.ErrTripNotSellable),
		errors.Is(err, repository.ErrDuplicateTrip),
		errors.Is(err, repository.ErrDuplicateAssignment),
		errors.Is(err, repository.ErrNoChange):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientPayment):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": err.Error()})
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
