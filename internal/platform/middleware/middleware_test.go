package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/platform/auth"
)

// chain builds an echo instance with RequestID, Logger and Recovery applied in
// server order and a single route at GET /r.
func chain(buf *bytes.Buffer, h echo.HandlerFunc) *echo.Echo {
	logger := zerolog.New(buf)
	e := echo.New()
	e.Use(Recovery(logger), RequestID(), Logger(logger))
	e.GET("/r", h)
	return e
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &out); err != nil {
		t.Fatalf("decode log line %q: %v", lines[len(lines)-1], err)
	}
	return out
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"propagated", "req-abc", true},
		{"oversized replaced", strings.Repeat("x", maxRequestIDLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			e := echo.New()
			e.Use(RequestID())
			e.GET("/r", func(c echo.Context) error {
				seen = GetRequestID(c)
				return c.NoContent(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/r", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
				t.Fatalf("handler saw %q, response header %q", seen, rec.Header().Get(RequestIDHeader))
			}
			if (seen == tt.incoming) != tt.keep {
				t.Errorf("incoming %q kept=%v", tt.incoming, seen == tt.incoming)
			}
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name    string
		handler echo.HandlerFunc
		status  int
		level   string
	}{
		{"ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, 200, "info"},
		{"client error", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "alert not found") }, 404, "warn"},
		{"written 409", func(c echo.Context) error { return c.JSON(http.StatusConflict, map[string]string{"error": "busy"}) }, 409, "warn"},
		{"internal", func(c echo.Context) error { return errors.New("db down") }, 500, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e := chain(&buf, tt.handler)
			req := httptest.NewRequest(http.MethodGet, "/r", nil)
			req.Header.Set(RequestIDHeader, "req-123")
			e.ServeHTTP(httptest.NewRecorder(), req)

			line := lastLine(t, &buf)
			if line["status"] != float64(tt.status) || line["level"] != tt.level {
				t.Errorf("got status %v level %v", line["status"], line["level"])
			}
			if line["request_id"] != "req-123" || line["path"] != "/r" {
				t.Errorf("missing request fields: %v", line)
			}
		})
	}
}

func TestLogger_ContextLoggerAndIdentity(t *testing.T) {
	var buf bytes.Buffer
	e := chain(&buf, func(c echo.Context) error {
		ctx := auth.WithUser(c.Request().Context(), "u-42", auth.RoleDoctor)
		c.SetRequest(c.Request().WithContext(ctx))
		zerolog.Ctx(ctx).Info().Msg("inside handler")
		return c.NoContent(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/r", nil)
	req.Header.Set(RequestIDHeader, "req-ctx")
	e.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"request_id":"req-ctx"`) {
		t.Errorf("handler log line lacks request id: %s", lines[0])
	}
	line := lastLine(t, &buf)
	if line["user_id"] != "u-42" {
		t.Errorf("expected user_id u-42, got %v", line["user_id"])
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	e := chain(&buf, func(c echo.Context) error { panic("queue exploded") })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/r", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	out := buf.String()
	if !strings.Contains(out, "panic recovered") || !strings.Contains(out, "queue exploded") {
		t.Errorf("panic not logged: %s", out)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	e := chain(&buf, func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/r", nil))
	if rec.Code != http.StatusOK || strings.Contains(buf.String(), "panic") {
		t.Errorf("unexpected result %d %s", rec.Code, buf.String())
	}
}
