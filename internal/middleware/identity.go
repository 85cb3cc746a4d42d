package middleware

import "github.com/labstack/echo/v4"

// currentUserID returns the operator id stored by JWTAuth, or "anon" for
// public requests.
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(ContextUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
