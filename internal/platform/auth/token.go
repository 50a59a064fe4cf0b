package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the caller's identity. Subject is the user id. Role holds a
// single role; Roles, when present, wins.
type Claims struct {
	jwt.RegisteredClaims
	Role  string   `json:"role"`
	Roles []string `json:"roles,omitempty"`
}

func (c *Claims) roleList() []string {
	switch {
	case len(c.Roles) > 0:
		return c.Roles
	case c.Role != "":
		return []string{c.Role}
	default:
		return nil
	}
}

// JWTConfig selects how bearer tokens are verified. SigningKey enables HS256;
// otherwise RS256 keys are fetched from JWKSURL.
type JWTConfig struct {
	Issuer     string
	Audience   string
	JWKSURL    string
	SigningKey []byte
}

var errNoKeySource = errors.New("no signing key or JWKS url configured")

// verifier parses and validates bearer tokens.
type verifier struct {
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
}

func newVerifier(cfg JWTConfig) *verifier {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	v := &verifier{}
	switch {
	case len(cfg.SigningKey) > 0:
		key := cfg.SigningKey
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return key, nil }
	case cfg.JWKSURL != "":
		ks := newKeySet(cfg.JWKSURL, 5*time.Minute)
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
		v.keyFunc = ks.keyFunc
	default:
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return nil, errNoKeySource }
	}
	v.parser = jwt.NewParser(opts...)
	return v
}

func (v *verifier) verify(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, v.keyFunc); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// keySet caches the RSA keys published at a JWKS endpoint. An unknown kid
// triggers a refetch, at most once per minRefresh.
type keySet struct {
	url        string
	ttl        time.Duration
	minRefresh time.Duration
	client     *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func newKeySet(url string, ttl time.Duration) *keySet {
	return &keySet{
		url:        url,
		ttl:        ttl,
		minRefresh: 10 * time.Second,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (ks *keySet) keyFunc(t *jwt.Token) (interface{}, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("token has no kid header")
	}
	return ks.lookup(context.Background(), kid)
}

func (ks *keySet) lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	age := time.Since(ks.fetchedAt)
	key, ok := ks.keys[kid]
	if ok && age < ks.ttl {
		return key, nil
	}
	if ks.keys == nil || age >= ks.minRefresh {
		keys, err := ks.fetch(ctx)
		if err != nil {
			return nil, err
		}
		ks.keys, ks.fetchedAt = keys, time.Now()
		key, ok = keys[kid]
	}
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return key, nil
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (ks *keySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ks.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		if pub, err := k.rsaKey(); err == nil {
			keys[k.Kid] = pub
		}
	}
	return keys, nil
}

func (k jwk) rsaKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 3 {
		return nil, errors.New("bad rsa exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
