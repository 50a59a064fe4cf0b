package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Development identity headers.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (v *verifier) authenticate(c echo.Context, header string) error {
	raw, ok := bearerToken(header)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	claims, err := v.verify(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	setIdentity(c, claims.Subject, claims.roleList())
	return nil
}

func setIdentity(c echo.Context, userID string, roles []string) {
	req := c.Request()
	c.SetRequest(req.WithContext(WithUser(req.Context(), userID, roles...)))
}

// JWTMiddleware requires a valid bearer token on every request.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	v := newVerifier(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			if err := v.authenticate(c, header); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// DevAuthMiddleware identifies callers from the X-User-ID and X-User-Role
// headers, defaulting to an anonymous admin. A bearer token, when present and
// a key source is configured, is verified instead.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	var v *verifier
	if len(cfg.SigningKey) > 0 || cfg.JWKSURL != "" {
		v = newVerifier(cfg)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			if header := h.Get(echo.HeaderAuthorization); header != "" && v != nil {
				if err := v.authenticate(c, header); err != nil {
					return err
				}
				return next(c)
			}
			role := h.Get(HeaderUserRole)
			if role == "" {
				role = RoleAdmin
			}
			setIdentity(c, h.Get(HeaderUserID), []string{role})
			return next(c)
		}
	}
}
