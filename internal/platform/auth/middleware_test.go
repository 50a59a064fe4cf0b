package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var hmacKey = []byte("medicore-test-signing-key-0123456789")

func signHS256(t *testing.T, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(hmacKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func staffClaims(sub string, role string) Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "medicore",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Role: role,
	}
}

// serve runs mw with the given headers and returns the error and the context
// the inner handler observed (nil when it was not reached).
func serve(mw echo.MiddlewareFunc, headers map[string]string) (context.Context, error) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c := echo.New().NewContext(req, httptest.NewRecorder())

	var seen context.Context
	err := mw(func(c echo.Context) error {
		seen = c.Request().Context()
		return nil
	})(c)
	return seen, err
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Bearer", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"abc", "", false},
	}
	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		if token != tt.token || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v", tt.header, token, ok)
		}
	}
}

func TestJWTMiddleware(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{SigningKey: hmacKey, Issuer: "medicore"})

	expired := staffClaims("u-1", RoleDoctor)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	foreign := staffClaims("u-1", RoleDoctor)
	foreign.Issuer = "elsewhere"
	noSubject := staffClaims("", RoleDoctor)
	noExpiry := staffClaims("u-1", RoleDoctor)
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Token abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"expired", "Bearer " + signHS256(t, expired)},
		{"wrong issuer", "Bearer " + signHS256(t, foreign)},
		{"no subject", "Bearer " + signHS256(t, noSubject)},
		{"no expiry", "Bearer " + signHS256(t, noExpiry)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, err := serve(mw, map[string]string{echo.HeaderAuthorization: tt.header})
			if statusOf(err) != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %v", err)
			}
			if ctx != nil {
				t.Error("handler should not run")
			}
		})
	}
}

func TestJWTMiddleware_SetsIdentity(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{SigningKey: hmacKey})

	claims := staffClaims("3b1f0e1c-0000-4000-8000-000000000001", RoleReceptionist)
	claims.Roles = []string{RoleReceptionist, RolePharmacist}
	ctx, err := serve(mw, map[string]string{echo.HeaderAuthorization: "Bearer " + signHS256(t, claims)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(ctx); got != claims.Subject {
		t.Errorf("user id = %q", got)
	}
	if !HasRole(ctx, RolePharmacist) || HasRole(ctx, RoleAdmin) {
		t.Errorf("unexpected roles %v", RolesFromContext(ctx))
	}
}

func TestJWTMiddleware_RejectsOtherAlgorithms(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{SigningKey: hmacKey})
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, staffClaims("u-1", RoleDoctor)).SignedString(hmacKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := serve(mw, map[string]string{echo.HeaderAuthorization: "Bearer " + tok}); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func jwksServer(t *testing.T, kid string, pub *rsa.PublicKey) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": kid,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestJWTMiddleware_JWKS(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv, hits := jwksServer(t, "k1", &priv.PublicKey)
	mw := JWTMiddleware(JWTConfig{JWKSURL: srv.URL})

	sign := func(kid string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, staffClaims("u-9", RoleDoctor))
		tok.Header["kid"] = kid
		s, err := tok.SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return "Bearer " + s
	}

	for i := 0; i < 2; i++ {
		ctx, err := serve(mw, map[string]string{echo.HeaderAuthorization: sign("k1")})
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if !HasRole(ctx, RoleDoctor) {
			t.Errorf("expected doctor role, got %v", RolesFromContext(ctx))
		}
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("expected keys fetched once, got %d", n)
	}

	if _, err := serve(mw, map[string]string{echo.HeaderAuthorization: sign("rotated")}); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("unknown kid: expected 401, got %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("unknown kid inside the refresh window should not refetch, got %d fetches", n)
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	mw := DevAuthMiddleware(JWTConfig{})

	ctx, err := serve(mw, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !HasRole(ctx, RoleAdmin) || UserIDFromContext(ctx) != "" {
		t.Errorf("expected anonymous admin, got %q %v", UserIDFromContext(ctx), RolesFromContext(ctx))
	}

	ctx, err = serve(mw, map[string]string{
		HeaderUserID:   "7f0c8a3e-1111-4222-8333-944445555666",
		HeaderUserRole: RoleReceptionist,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if UserIDFromContext(ctx) != "7f0c8a3e-1111-4222-8333-944445555666" {
		t.Errorf("user id = %q", UserIDFromContext(ctx))
	}
	if !HasRole(ctx, RoleReceptionist) || HasRole(ctx, RoleAdmin) {
		t.Errorf("header role should replace the admin default, got %v", RolesFromContext(ctx))
	}

	// Without a key source a bearer header is ignored.
	if _, err := serve(mw, map[string]string{echo.HeaderAuthorization: "Bearer junk"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDevAuthMiddleware_VerifiesBearerWhenConfigured(t *testing.T) {
	mw := DevAuthMiddleware(JWTConfig{SigningKey: hmacKey})

	if _, err := serve(mw, map[string]string{echo.HeaderAuthorization: "Bearer junk"}); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}

	ctx, err := serve(mw, map[string]string{
		echo.HeaderAuthorization: "Bearer " + signHS256(t, staffClaims("u-2", RolePatient)),
		HeaderUserRole:           RoleAdmin,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !HasRole(ctx, RolePatient) || HasRole(ctx, RoleAdmin) {
		t.Errorf("token identity should win over headers, got %v", RolesFromContext(ctx))
	}
}
