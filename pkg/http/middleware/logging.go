package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs one line per request. Scrape and probe endpoints
// are skipped to keep the log readable at short scrape intervals.
func RequestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if path == "/metrics" || path == "/api/health" {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			log.Printf("%s %s %d %s %s",
				c.Request().Method,
				c.Request().RequestURI,
				c.Response().Status,
				time.Since(start),
				c.Request().RemoteAddr,
			)
			return err
		}
	}
}
