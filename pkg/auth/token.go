package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the verified-token LRU when the caller passes
// zero.
const DefaultCacheSize = 4096

// ErrNoIdentity is returned when a token verifies but carries no user
// identity claim.
var ErrNoIdentity = errors.New("token has no identity claim")

// Identity is the verified identity extracted from a token.
type Identity struct {
	UserID string `json:"user_id"`
}

// identityClaims is the claim set Astricord tokens carry. The user ID
// lives in the standard subject claim.
type identityClaims struct {
	jwt.RegisteredClaims
}

type cachedIdentity struct {
	identity  Identity
	expiresAt time.Time
}

// Verifier validates HMAC-signed identity tokens and extracts the user
// identity. Safe for concurrent use.
type Verifier struct {
	secret []byte
	cache  *lru.Cache[string, cachedIdentity]
	now    func() time.Time
}

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret []byte, cacheSize int) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, cachedIdentity](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create token cache: %w", err)
	}
	return &Verifier{
		secret: secret,
		cache:  cache,
		now:    time.Now,
	}, nil
}

// Verify parses and validates a token, returning the identity it encodes.
// An empty, malformed, tampered, or expired token returns an error; the
// caller decides whether that means "reject" or "anonymous".
func (v *Verifier) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}

	if entry, ok := v.cache.Get(token); ok {
		if v.now().Before(entry.expiresAt) {
			identity := entry.identity
			return &identity, nil
		}
		v.cache.Remove(token)
		return nil, jwt.ErrTokenExpired
	}

	var claims identityClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, ErrNoIdentity
	}

	identity := Identity{UserID: claims.Subject}
	expiresAt := v.now().Add(time.Minute)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	v.cache.Add(token, cachedIdentity{identity: identity, expiresAt: expiresAt})
	return &identity, nil
}

// Issue signs a token for userID valid for ttl. Production tokens come
// from the external identity service; this exists for local development
// and tests.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
