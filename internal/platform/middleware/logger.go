package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/platform/auth"
)

// Logger writes one line per request. The request context carries a child
// logger tagged with the request id, reachable through zerolog.Ctx.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqLog := logger.With().Str("request_id", GetRequestID(c)).Logger()
			req := c.Request().WithContext(reqLog.WithContext(c.Request().Context()))
			c.SetRequest(req)

			err := next(c)

			// Auth runs on route groups, after this middleware.
			ctx := c.Request().Context()
			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}

			var evt *zerolog.Event
			switch {
			case status >= 500:
				evt = reqLog.Error().Err(err)
			case err != nil || status >= 400:
				evt = reqLog.Warn().AnErr("error", err)
			default:
				evt = reqLog.Info()
			}
			if uid := auth.UserIDFromContext(ctx); uid != "" {
				evt = evt.Str("user_id", uid)
			}
			if roles := auth.RolesFromContext(ctx); len(roles) > 0 {
				evt = evt.Strs("roles", roles)
			}
			evt.Str("method", req.Method).
				Str("path", c.Path()).
				Str("uri", req.URL.RequestURI()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
