// Package identity verifies access tokens issued by an external OpenID Connect provider.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"github.com/taskflow/core/internal/infrastructure/config"
	"github.com/taskflow/core/internal/ports"
)

const (
	defaultKeyCacheTTL = 15 * time.Minute
	// clockSkew is tolerated between us and the provider on exp, nbf and iat.
	clockSkew = time.Minute
)

var (
	errJWKSNotConfigured = errors.New("jwks not configured")
	errMissingSubject    = errors.New("missing sub")
)

// Verifier validates RS256 tokens against the provider's JWKS.
type Verifier struct {
	jwks     *keyfunc.JWKS
	audience string
	issuer   string

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
	now         func() time.Time
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

var _ ports.IdentityVerifier = (*Verifier)(nil)

// NewVerifier creates a Verifier over an already loaded key set.
func NewVerifier(jwks *keyfunc.JWKS, cfg config.IdentityConfig) *Verifier {
	ttl := cfg.KeyCacheTTL
	if ttl == 0 {
		ttl = defaultKeyCacheTTL
	}
	return &Verifier{
		jwks:        jwks,
		audience:    cfg.Audience,
		issuer:      cfg.Issuer,
		parser:      jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithoutClaimsValidation()),
		keyCacheTTL: ttl,
		now:         time.Now,
	}
}

// Dial fetches the key set from cfg.JWKSURL and keeps it refreshed in the background.
func Dial(cfg config.IdentityConfig, onRefreshError func(error)) (*Verifier, error) {
	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshInterval:     time.Hour,
		RefreshRateLimit:    5 * time.Minute,
		RefreshTimeout:      10 * time.Second,
		RefreshUnknownKID:   true,
		RefreshErrorHandler: onRefreshError,
	})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return NewVerifier(jwks, cfg), nil
}

// Close stops the background key refresh.
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func (v *Verifier) Verify(token string) (*ports.ExternalIdentity, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}

	parsed, err := v.parser.Parse(token, v.keyForToken)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	now := v.now()
	if !claims.VerifyExpiresAt(now.Add(-clockSkew).Unix(), true) {
		return nil, errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now.Add(clockSkew).Unix(), false) {
		return nil, errors.New("token not valid yet")
	}
	if !claims.VerifyIssuedAt(now.Add(clockSkew).Unix(), false) {
		return nil, errors.New("token used before issued")
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, errors.New("invalid audience")
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, errors.New("invalid issuer")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errMissingSubject
	}

	id := &ports.ExternalIdentity{Subject: sub}
	id.Email, _ = claims["email"].(string)
	id.Name, _ = claims["name"].(string)
	id.Picture, _ = claims["picture"].(string)
	id.EmailVerified = emailVerified(claims["email_verified"])
	return id, nil
}

// emailVerified accepts the boolean claim and the "true" string some providers send.
func emailVerified(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "true")
	}
	return false
}

func (v *Verifier) keyForToken(token *jwt.Token) (any, error) {
	if v.jwks == nil {
		return nil, errJWKSNotConfigured
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && v.keyCacheTTL > 0 {
		if cached, ok := v.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if v.now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			v.keyCache.Delete(kid)
		}
	}

	key, err := v.jwks.Keyfunc(token)
	if err != nil {
		return nil, err
	}

	if kid != "" && v.keyCacheTTL > 0 {
		v.keyCache.Store(kid, cachedKey{key: key, expiresAt: v.now().Add(v.keyCacheTTL)})
	}
	return key, nil
}
