// Package auth verifies bearer tokens into role-bearing principals.
package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier turns a bearer token into a Principal. Modes:
//
//	dev   token is "role:email", nothing is checked
//	hmac  HS256 JWT signed with HMACSecret
//	jwks  RS256 JWT whose kid resolves against the key set at JWKSURL
type Verifier struct {
	Mode       string
	HMACSecret []byte
	JWKSURL    string
	RoleClaim  string
	EmailClaim string

	http     *http.Client
	now      func() time.Time
	cacheTTL time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	lastFetch time.Time
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

type Principal struct {
	Email string
	Role  string
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrBadSignature = errors.New("bad signature")
	ErrExpired      = errors.New("token expired")
	ErrUnknownKey   = errors.New("kid not found in JWKS")
)

// jwksMinRefresh bounds how often an unknown kid can force a key set refetch.
const jwksMinRefresh = 30 * time.Second

// NewVerifier builds a verifier for mode. An empty mode means dev.
func NewVerifier(mode, hmacSecret, jwksURL string) *Verifier {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{
		Mode:       mode,
		HMACSecret: []byte(hmacSecret),
		JWKSURL:    jwksURL,
		RoleClaim:  "role",
		EmailClaim: "email",
		http:       &http.Client{Timeout: 5 * time.Second},
		now:        time.Now,
		cacheTTL:   10 * time.Minute,
	}
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		role, email, ok := strings.Cut(token, ":")
		if !ok || role == "" {
			return Principal{}, fmt.Errorf("%w: expected role:email", ErrInvalidToken)
		}
		return Principal{Role: strings.ToLower(role), Email: email}, nil
	}

	var (
		method  string
		keyFunc jwt.Keyfunc
	)
	switch v.Mode {
	case "hmac":
		method = jwt.SigningMethodHS256.Alg()
		keyFunc = func(*jwt.Token) (any, error) { return v.HMACSecret, nil }
	case "jwks":
		method = jwt.SigningMethodRS256.Alg()
		keyFunc = func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			return v.rsaKey(kid)
		}
	default:
		return Principal{}, fmt.Errorf("unsupported auth mode %q", v.Mode)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, keyFunc,
		jwt.WithValidMethods([]string{method}),
		jwt.WithTimeFunc(v.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Principal{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Principal{}, ErrBadSignature
	case errors.Is(err, ErrUnknownKey):
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrUnknownKey)
	default:
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	role, _ := claims[v.RoleClaim].(string)
	email, _ := claims[v.EmailClaim].(string)
	if role == "" {
		return Principal{}, fmt.Errorf("%w: missing %s claim", ErrInvalidToken, v.RoleClaim)
	}
	return Principal{Role: strings.ToLower(role), Email: email}, nil
}

// rsaKey resolves kid from the cached key set, refreshing it when stale.
func (v *Verifier) rsaKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	stale := v.now().Sub(v.lastFetch) > v.cacheTTL
	v.mu.RUnlock()
	if ok && !stale {
		return key, nil
	}
	if !ok && v.now().Sub(v.lastFetch) < jwksMinRefresh {
		return nil, ErrUnknownKey
	}
	if err := v.fetchJWKS(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	return nil, ErrUnknownKey
}

func (v *Verifier) fetchJWKS() error {
	if v.JWKSURL == "" {
		return errors.New("AUTH_JWKS_URL not set")
	}
	resp, err := v.http.Get(v.JWKSURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}
	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		pub, err := k.rsa()
		if err != nil {
			return fmt.Errorf("jwks key %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	v.mu.Lock()
	v.keys = keys
	v.lastFetch = v.now()
	v.mu.Unlock()
	return nil
}

func (k jwk) rsa() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(new(big.Int).SetBytes(e).Int64())}, nil
}
