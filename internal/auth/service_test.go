package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/abduss/practiceroom/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		Secret:     "session-secret",
		TTL:        time.Hour,
		CookieName: "practiceroom_session",
	}
}

func TestLoginIssuesSession(t *testing.T) {
	service := NewService(testSessionConfig(), nil, nil)

	session, err := service.Login(context.Background(), LoginInput{
		Email: "player@example.com",
		UID:   "u1",
		Name:  "Player One",
	})
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}
	if session.Token == "" {
		t.Fatalf("expected session token")
	}

	identity, err := service.ValidateSession(session.Token)
	if err != nil {
		t.Fatalf("ValidateSession returned error: %v", err)
	}
	if identity != (Identity{UID: "u1", Email: "player@example.com", Name: "Player One"}) {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestLoginMissingFields(t *testing.T) {
	service := NewService(testSessionConfig(), nil, nil)

	cases := []struct {
		name  string
		input LoginInput
		field string
	}{
		{"no email", LoginInput{UID: "u1"}, "email"},
		{"blank uid", LoginInput{Email: "a@b.c", UID: "   "}, "uid"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Login(context.Background(), tc.input)
			mf, ok := IsMissingField(err)
			if !ok {
				t.Fatalf("expected MissingFieldError, got %v", err)
			}
			if mf.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, mf.Field)
			}
		})
	}
}

func TestValidateSessionRejectsExpiredToken(t *testing.T) {
	service := NewService(testSessionConfig(), nil, nil)
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	service.nowFunc = func() time.Time { return issued }

	session, err := service.Login(context.Background(), LoginInput{Email: "a@b.c", UID: "u1"})
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}

	service.nowFunc = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := service.ValidateSession(session.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateSessionRejectsForeignSecret(t *testing.T) {
	other := testSessionConfig()
	other.Secret = "another-secret"
	forger := NewService(other, nil, nil)
	service := NewService(testSessionConfig(), nil, nil)

	session, err := forger.Login(context.Background(), LoginInput{Email: "a@b.c", UID: "u1"})
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}

	if _, err := service.ValidateSession(session.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := service.ValidateSession(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
}

func TestLoginWithVerifierRequiresMatchingToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	idpCfg := config.IdentityConfig{Issuer: "https://idp.example.com/practice", Audience: "practice", Leeway: time.Second}
	verifier := newJWKSVerifier(staticKey(&key.PublicKey), idpCfg)
	service := NewService(testSessionConfig(), verifier, nil)

	token := signIDToken(t, key, "u1", "a@b.c", idpCfg.Issuer, idpCfg.Audience, time.Now().Add(time.Hour))

	if _, err := service.Login(context.Background(), LoginInput{Email: "a@b.c", UID: "u1", IDToken: token}); err != nil {
		t.Fatalf("expected verified login, got %v", err)
	}

	if _, err := service.Login(context.Background(), LoginInput{Email: "a@b.c", UID: "u2", IDToken: token}); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity for uid mismatch, got %v", err)
	}

	if _, err := service.Login(context.Background(), LoginInput{Email: "a@b.c", UID: "u1"}); err == nil {
		t.Fatalf("expected missing idToken to be rejected")
	}

	expired := signIDToken(t, key, "u1", "a@b.c", idpCfg.Issuer, idpCfg.Audience, time.Now().Add(-time.Hour))
	if _, err := service.Login(context.Background(), LoginInput{Email: "a@b.c", UID: "u1", IDToken: expired}); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity for expired token, got %v", err)
	}

	wrongAudience := signIDToken(t, key, "u1", "a@b.c", idpCfg.Issuer, "someone-else", time.Now().Add(time.Hour))
	if _, err := service.Login(context.Background(), LoginInput{Email: "a@b.c", UID: "u1", IDToken: wrongAudience}); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity for wrong audience, got %v", err)
	}
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, sub, email, issuer, audience string, exp time.Time) string {
	t.Helper()
	claims := idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign id token: %v", err)
	}
	return signed
}

func staticKey(key interface{}) func(context.Context) jwt.Keyfunc {
	return func(context.Context) jwt.Keyfunc {
		return func(*jwt.Token) (interface{}, error) { return key, nil }
	}
}

func TestLoginEmptyPayload(t *testing.T) {
	service := NewService(testSessionConfig(), nil, nil)

	if _, err := service.Login(context.Background(), LoginInput{}); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
