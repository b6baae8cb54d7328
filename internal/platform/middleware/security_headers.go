package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	apiCSP  = "default-src 'none'; frame-ancestors 'none'"
	pageCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'"
)

// SecurityHeaders sets hardening headers on every response. JSON endpoints
// get a deny-all content policy; the root page and /static assets may load
// resources from the same origin.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			path := c.Request().URL.Path
			if path == "/" || strings.HasPrefix(path, "/static/") {
				h.Set("Content-Security-Policy", pageCSP)
			} else {
				h.Set("Content-Security-Policy", apiCSP)
				// Predictions are computed from patient records.
				h.Set("Cache-Control", "no-store")
			}

			return next(c)
		}
	}
}
