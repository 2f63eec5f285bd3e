// Package identity defines the identity collaborator: it turns credentials into sessions and
// sessions back into the user they belong to.
package identity

import (
	"context"
	"time"
)

type Identity struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	SessionID string `json:"-"`
}

type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Provider interface {
	Authenticate(ctx context.Context, email, password string) (*Session, error)
	// GetCurrentIdentity returns nil without error when token does not belong to a live session.
	GetCurrentIdentity(ctx context.Context, token string) (*Identity, error)
	EndSession(ctx context.Context, token string) error
	SignUp(ctx context.Context, email, password string, name *string) (*Identity, error)
	UpdatePassword(ctx context.Context, token, newPassword string) error
}
