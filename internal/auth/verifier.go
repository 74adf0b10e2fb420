package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/abduss/practiceroom/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JWKSVerifier validates RS256 identity tokens against the provider's published key set.
type JWKSVerifier struct {
	keyFor func(ctx context.Context) jwt.Keyfunc
	opts   []jwt.ParserOption
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NewJWKSVerifier fetches and periodically refreshes the provider key set.
func NewJWKSVerifier(cfg config.IdentityConfig, log *zap.Logger) (*JWKSVerifier, error) {
	if log == nil {
		log = zap.NewNop()
	}

	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: cfg.ClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			log.Error("refresh identity provider keys", zap.String("url", cfg.JWKSURL), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create jwks storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}

	return newJWKSVerifier(k.KeyfuncCtx, cfg), nil
}

func newJWKSVerifier(keyFor func(ctx context.Context) jwt.Keyfunc, cfg config.IdentityConfig) *JWKSVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWKSVerifier{keyFor: keyFor, opts: opts}
}

// Verify parses rawToken and returns the identity it asserts.
func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	claims := &idTokenClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(rawToken), claims, v.keyFor(ctx), v.opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("parse identity token: %w", err)
	}
	if !token.Valid {
		return Identity{}, errors.New("identity token invalid")
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("identity token has no subject")
	}
	return Identity{UID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}
