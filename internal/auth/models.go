package auth

import "time"

// Identity is the authenticated musician as asserted by the identity provider.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// LoginInput carries the client-side identity provider result.
type LoginInput struct {
	Email   string
	UID     string
	Name    string
	IDToken string
}

// Session is a signed, self-contained session ticket.
type Session struct {
	Identity  Identity
	Token     string
	ExpiresAt time.Time
}
