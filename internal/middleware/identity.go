package middleware

// identity.go exposes typed accessors for the values JWTAuth stores in
// the Echo context, so handlers never repeat the type assertions.

import "github.com/labstack/echo/v4"

// ActorID returns the authenticated operator's id, or 0 when the route
// is unauthenticated.
func ActorID(c echo.Context) uint64 {
	if v, ok := c.Get("actor_id").(uint64); ok {
		return v
	}
	return 0
}

// Role returns the operator's role claim, or "" when absent.
func Role(c echo.Context) string {
	if v, ok := c.Get("role").(string); ok {
		return v
	}
	return ""
}

// Channel returns the sales channel the operator's terminal is bound
// to, or "" when absent.
func Channel(c echo.Context) string {
	if v, ok := c.Get("channel").(string); ok {
		return v
	}
	return ""
}
