package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/practiceroom/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const sessionIssuer = "practiceroom"

// IdentityVerifier checks an identity-provider token and returns who it names.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (Identity, error)
}

// Service encapsulates login and session handling.
type Service struct {
	cfg      config.SessionConfig
	verifier IdentityVerifier
	log      *zap.Logger
	nowFunc  func() time.Time
	parser   *jwt.Parser
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// NewService creates a Service. verifier may be nil, in which case the
// login payload is trusted as the client supplies it.
func NewService(cfg config.SessionConfig, verifier IdentityVerifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		cfg:      cfg,
		verifier: verifier,
		log:      log,
		nowFunc:  time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.nowFunc() }),
	)
	return s
}

// Login validates the provider result and issues a session.
func (s *Service) Login(ctx context.Context, input LoginInput) (Session, error) {
	if input == (LoginInput{}) {
		return Session{}, ErrNoData
	}
	identity := Identity{
		UID:   strings.TrimSpace(input.UID),
		Email: strings.TrimSpace(input.Email),
		Name:  strings.TrimSpace(input.Name),
	}
	if identity.Email == "" {
		return Session{}, &MissingFieldError{Field: "email"}
	}
	if identity.UID == "" {
		return Session{}, &MissingFieldError{Field: "uid"}
	}

	if s.verifier != nil {
		if strings.TrimSpace(input.IDToken) == "" {
			return Session{}, &MissingFieldError{Field: "idToken"}
		}
		verified, err := s.verifier.Verify(ctx, input.IDToken)
		if err != nil {
			s.log.Info("identity token rejected", zap.String("uid", identity.UID), zap.Error(err))
			return Session{}, ErrInvalidIdentity
		}
		if verified.UID != identity.UID {
			return Session{}, ErrInvalidIdentity
		}
		if verified.Email != "" && !strings.EqualFold(verified.Email, identity.Email) {
			return Session{}, ErrInvalidIdentity
		}
	}

	return s.issueSession(identity)
}

// ValidateSession verifies the session token and extracts the identity.
func (s *Service) ValidateSession(token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, ErrUnauthorized
	}

	claims := &sessionClaims{}
	parsed, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthorized
	}
	if claims.Subject == "" {
		return Identity{}, ErrUnauthorized
	}

	return Identity{UID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// SessionTTL is how long an issued session stays valid.
func (s *Service) SessionTTL() time.Duration {
	return s.cfg.TTL
}

func (s *Service) issueSession(identity Identity) (Session, error) {
	now := s.nowFunc()
	expiresAt := now.Add(s.cfg.TTL)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: identity.Email,
		Name:  identity.Name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}

	return Session{Identity: identity, Token: signed, ExpiresAt: expiresAt}, nil
}

// IsMissingField reports whether err is a MissingFieldError.
func IsMissingField(err error) (*MissingFieldError, bool) {
	var mf *MissingFieldError
	if errors.As(err, &mf) {
		return mf, true
	}
	return nil, false
}
