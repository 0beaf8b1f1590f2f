package security

import (
	"context"
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

const GoogleDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

var (
	// ErrIdentityRejected means the token was parsed but failed verification.
	ErrIdentityRejected = errors.New("identity token rejected")
	// ErrProviderUnavailable means discovery or key retrieval failed.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

type ExternalIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityVerifier checks an identity token issued by a trusted provider.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*ExternalIdentity, error)
}

type oidcVerifier struct {
	httpClient   *http.Client
	discoveryURL string
	allowedIss   []string
	audience     string

	jwks *jwksCache

	mu      sync.Mutex
	jwksURL string
}

// NewGoogleVerifier builds a verifier for Google ID tokens addressed to clientID.
func NewGoogleVerifier(httpClient *http.Client, clientID string) (IdentityVerifier, error) {
	return NewOIDCVerifier(httpClient, GoogleDiscoveryURL,
		[]string{"accounts.google.com", "https://accounts.google.com"}, clientID)
}

func NewOIDCVerifier(httpClient *http.Client, discoveryURL string, issuers []string, audience string) (IdentityVerifier, error) {
	if strings.TrimSpace(audience) == "" {
		return nil, fmt.Errorf("oidc audience (client id) is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &oidcVerifier{
		httpClient:   httpClient,
		discoveryURL: discoveryURL,
		allowedIss:   issuers,
		audience:     audience,
		jwks:         newJWKSCache(httpClient),
	}, nil
}

type oidcDiscovery struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// ensureDiscovery resolves the JWKS location. A failed attempt is retried on
// the next call.
func (v *oidcVerifier) ensureDiscovery(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwksURL != "" {
		return v.jwksURL, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.discoveryURL, nil)
	if err != nil {
		return "", err
	}
	res, err := v.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("discovery request failed: %s", res.Status)
	}

	var d oidcDiscovery
	if err := json.NewDecoder(res.Body).Decode(&d); err != nil {
		return "", err
	}
	if strings.TrimSpace(d.JWKSURI) == "" {
		return "", fmt.Errorf("discovery missing jwks_uri")
	}
	v.jwksURL = d.JWKSURI
	return v.jwksURL, nil
}

func (v *oidcVerifier) Verify(ctx context.Context, idToken string) (*ExternalIdentity, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, fmt.Errorf("%w: id_token is empty", ErrIdentityRejected)
	}
	jwksURL, err := v.ensureDiscovery(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: discovery: %v", ErrProviderUnavailable, err)
	}

	var fetchErr error
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	claims := jwt.MapClaims{}
	_, err = parser.ParseWithClaims(idToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("missing kid")
		}
		key, err := v.jwks.getKey(ctx, jwksURL, kid)
		if errors.Is(err, errJWKSFetch) {
			fetchErr = err
		}
		return key, err
	})
	if fetchErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, fetchErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityRejected, err)
	}

	iss, _ := claims["iss"].(string)
	if !containsString(v.allowedIss, iss) {
		return nil, fmt.Errorf("%w: issuer mismatch %q", ErrIdentityRejected, iss)
	}
	out := claimsToIdentity(claims)
	if out.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrIdentityRejected)
	}
	if out.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrIdentityRejected)
	}
	return out, nil
}

func claimsToIdentity(c jwt.MapClaims) *ExternalIdentity {
	out := &ExternalIdentity{Provider: "google"}
	out.Subject, _ = c["sub"].(string)
	out.Email, _ = c["email"].(string)
	out.Name, _ = c["name"].(string)
	if out.Name == "" {
		given, _ := c["given_name"].(string)
		family, _ := c["family_name"].(string)
		out.Name = strings.TrimSpace(given + " " + family)
	}
	switch x := c["email_verified"].(type) {
	case bool:
		out.EmailVerified = x
	case string:
		out.EmailVerified = strings.EqualFold(x, "true")
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ----- JWKS cache -----

var errJWKSFetch = errors.New("jwks fetch failed")

type jwksCache struct {
	httpClient *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	ttl       time.Duration
}

func newJWKSCache(httpClient *http.Client) *jwksCache {
	return &jwksCache{
		httpClient: httpClient,
		keys:       map[string]*rsa.PublicKey{},
		ttl:        6 * time.Hour,
	}
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (j *jwksCache) getKey(ctx context.Context, url, kid string) (*rsa.PublicKey, error) {
	j.mu.RLock()
	key := j.keys[kid]
	stale := time.Since(j.fetchedAt) > j.ttl
	j.mu.RUnlock()
	if key != nil && !stale {
		return key, nil
	}

	if err := j.refresh(ctx, url); err != nil {
		if key != nil {
			return key, nil
		}
		return nil, fmt.Errorf("%w: %v", errJWKSFetch, err)
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	key = j.keys[kid]
	if key == nil {
		return nil, fmt.Errorf("kid not found in jwks: %s", kid)
	}
	return key, nil
}

func (j *jwksCache) refresh(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := j.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("jwks status: %s", res.Status)
	}

	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(res.Body).Decode(&set); err != nil {
		return err
	}

	next := map[string]*rsa.PublicKey{}
	for _, k := range set.Keys {
		if k.Kid == "" || k.Kty != "RSA" {
			continue
		}
		if pub, err := rsaFromModExp(k.N, k.E); err == nil {
			next[k.Kid] = pub
		}
	}
	if len(next) == 0 {
		return fmt.Errorf("jwks contained no usable keys")
	}

	j.mu.Lock()
	j.keys = next
	j.fetchedAt = time.Now()
	j.mu.Unlock()
	return nil
}

func rsaFromModExp(nB64, eB64 string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eb {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, fmt.Errorf("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}
