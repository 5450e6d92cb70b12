package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ahrav/shinise-scout/internal/logger"
)

// originCheck rejects browser requests from hosts other than the loopback
// names and the allowed origins, compared by scheme and host. Requests
// without Origin and Referer pass.
func originCheck(allowed []string, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if origin == "" {
				origin = c.Request().Referer()
			}
			if originAllowed(origin, allowed) {
				return next(c)
			}
			log.Warn("blocked request from unauthorized origin", map[string]any{
				"origin": origin,
				"path":   c.Request().URL.Path,
			})
			return echo.NewHTTPError(http.StatusForbidden, "Forbidden: Unauthorized Origin")
		}
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	for _, entry := range allowed {
		a, err := url.Parse(strings.TrimSpace(entry))
		if err != nil || a.Host == "" {
			continue
		}
		if strings.EqualFold(a.Scheme, u.Scheme) && strings.EqualFold(a.Host, u.Host) {
			return true
		}
	}
	return false
}
