package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// TokenVerifier validates a bearer token and returns its subject
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// JWTVerifier accepts signed JWTs whose key is in a JWK set and whose
// audience matches.
type JWTVerifier struct {
	keySet   jwk.Set
	audience string
}

func NewJWTVerifier(keySet jwk.Set, audience string) (*JWTVerifier, error) {
	if keySet == nil {
		return nil, fmt.Errorf("key set cannot be nil")
	}
	if audience == "" {
		return nil, fmt.Errorf("audience is required")
	}
	return &JWTVerifier{keySet: keySet, audience: audience}, nil
}

// NewJWKSVerifier fetches the JWK set at jwksURL and keeps it refreshed
func NewJWKSVerifier(ctx context.Context, jwksURL string, audience string, refreshInterval time.Duration) (*JWTVerifier, error) {
	keySet, err := NewJWKCache(ctx, jwksURL, refreshInterval)
	if err != nil {
		return nil, err
	}
	return NewJWTVerifier(keySet, audience)
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (string, error) {
	parsed, err := jwt.Parse(
		[]byte(token),
		jwt.WithKeySet(v.keySet),
		jwt.WithValidate(true),
		jwt.WithAudience(v.audience),
		jwt.WithAcceptableSkew(30*time.Second),
	)
	if err != nil {
		return "", fmt.Errorf("token verification failed: %w", err)
	}
	subject, _ := parsed.Subject()
	return subject, nil
}

func NewJWKCache(ctx context.Context, jwkUrl string, refreshInterval time.Duration) (jwk.Set, error) {
	if refreshInterval <= 0 {
		refreshInterval = 15 * time.Minute
	}
	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to create jwk cache: %w", err)
	}

	if err := cache.Register(ctx, jwkUrl, jwk.WithConstantInterval(refreshInterval)); err != nil {
		return nil, fmt.Errorf("failed to register jwk location: %w", err)
	}

	// fail at startup rather than on the first request
	if _, err := cache.Refresh(ctx, jwkUrl); err != nil {
		return nil, fmt.Errorf("failed to fetch on startup: %w", err)
	}

	return cache.CachedSet(jwkUrl)
}
