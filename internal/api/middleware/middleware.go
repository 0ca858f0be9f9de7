// Package middleware holds the HTTP middleware the API server installs
// beyond what echo ships.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets browser-facing headers on every response.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "frame-ancestors 'self'")

			// API responses must not be cached.
			if strings.HasPrefix(c.Request().URL.Path, "/api") {
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
				h.Set("Pragma", "no-cache")
			}

			return next(c)
		}
	}
}

// APIKey rejects requests that do not present the configured key in the
// X-Api-Key header or an apikey query parameter. An empty key disables
// the guard.
func APIKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" {
				return next(c)
			}

			presented := c.Request().Header.Get("X-Api-Key")
			if presented == "" {
				presented = c.QueryParam("apikey")
			}
			if presented != key {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
			}

			return next(c)
		}
	}
}
