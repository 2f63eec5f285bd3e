// Package jwt implements identity.Provider with HS256 tokens, bcrypt password hashes and
// session rows in the record store. Deleting a session row revokes its token.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/identity"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
	"github.com/fekuna/omnipos-inventory-service/internal/saga"
	"github.com/fekuna/omnipos-inventory-service/internal/store"
)

const minPasswordLength = 6

type Config struct {
	Secret     string
	TTL        time.Duration
	BcryptCost int
}

type Provider struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewProvider(s store.Store, cfg *Config) *Provider {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Provider{
		store:  s,
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		cost:   cost,
		now:    time.Now,
	}
}

var errBadCredentials = &apperror.AuthenticationError{Reason: "invalid email or password"}

func (p *Provider) Authenticate(ctx context.Context, email, password string) (*identity.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errBadCredentials
	}

	cred, err := store.First(ctx, p.store, store.TableUserCredentials, store.Filter{store.Eq("email", email)})
	if errors.Is(err, store.ErrNoRows) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.String("password_hash")), []byte(password)); err != nil {
		return nil, errBadCredentials
	}

	return p.startSession(ctx, cred.String("id"))
}

func (p *Provider) startSession(ctx context.Context, userID string) (*identity.Session, error) {
	now := p.now().UTC()
	sessionID := uuid.New().String()
	expiresAt := now.Add(p.ttl)

	if _, err := p.store.Insert(ctx, store.TableAuthSessions, store.Row{
		"id":         sessionID,
		"user_id":    userID,
		"created_at": now,
		"expires_at": expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &identity.Session{Token: token, UserID: userID, ExpiresAt: expiresAt}, nil
}

func (p *Provider) GetCurrentIdentity(ctx context.Context, token string) (*identity.Identity, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := p.parse(token, true)
	if err != nil {
		return nil, nil
	}

	session, err := store.Get(ctx, p.store, store.TableAuthSessions, claims.ID)
	if errors.Is(err, store.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.String("user_id") != claims.Subject || !session.Time("expires_at").After(p.now()) {
		return nil, nil
	}

	cred, err := store.Get(ctx, p.store, store.TableUserCredentials, claims.Subject)
	if errors.Is(err, store.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	return &identity.Identity{
		UserID:    claims.Subject,
		Email:     cred.String("email"),
		SessionID: claims.ID,
	}, nil
}

// EndSession revokes the session behind token. Ending an already ended session is a no-op.
func (p *Provider) EndSession(ctx context.Context, token string) error {
	claims, err := p.parse(token, false)
	if err != nil {
		return &apperror.AuthenticationError{Reason: "invalid token", Err: err}
	}

	err = p.store.Delete(ctx, store.TableAuthSessions, claims.ID)
	if err != nil && !errors.Is(err, store.ErrNoRows) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SignUp registers credentials and a profile with the least privileged role. The profile
// insert is compensated by removing the credentials so no half-registered user remains.
func (p *Provider) SignUp(ctx context.Context, email, password string, name *string) (*identity.Identity, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, &apperror.ValidationError{Field: "email", Reason: "must be a valid e-mail address"}
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	_, err := store.First(ctx, p.store, store.TableUserCredentials, store.Filter{store.Eq("email", email)})
	if err == nil {
		return nil, &apperror.ValidationError{Field: "email", Reason: "already registered"}
	}
	if !errors.Is(err, store.ErrNoRows) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID := uuid.New().String()
	now := p.now().UTC()

	err = saga.Run(ctx,
		saga.Step{
			Name: "create credentials",
			Do: func(ctx context.Context) error {
				_, err := p.store.Insert(ctx, store.TableUserCredentials, store.Row{
					"id":            userID,
					"email":         email,
					"password_hash": string(hash),
					"created_at":    now,
				})
				return err
			},
			Compensate: func(ctx context.Context) error {
				return p.store.Delete(ctx, store.TableUserCredentials, userID)
			},
		},
		saga.Step{
			Name: "create profile",
			Do: func(ctx context.Context) error {
				_, err := p.store.Insert(ctx, store.TableUserProfiles, store.Row{
					"id":         userID,
					"email":      email,
					"name":       name,
					"role":       string(policy.RoleUser),
					"created_at": now,
					"updated_at": now,
				})
				return err
			},
		},
	)
	if errors.Is(err, store.ErrConflict) && !errors.Is(err, apperror.ErrPartialFailure) {
		return nil, &apperror.ValidationError{Field: "email", Reason: "already registered"}
	}
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	return &identity.Identity{UserID: userID, Email: email}, nil
}

func (p *Provider) UpdatePassword(ctx context.Context, token, newPassword string) error {
	ident, err := p.GetCurrentIdentity(ctx, token)
	if err != nil {
		return err
	}
	if ident == nil {
		return &apperror.AuthenticationError{Reason: "no active session"}
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := p.store.Update(ctx, store.TableUserCredentials, ident.UserID, store.Row{
		"password_hash": string(hash),
	}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// parse verifies the signature. Expiry is only enforced when validate is set, so an
// expired token can still end its own session.
func (p *Provider) parse(token string, validate bool) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	}
	if !validate {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("token has no session")
	}
	return claims, nil
}

func checkPassword(password string) error {
	if len(password) < minPasswordLength {
		return &apperror.ValidationError{
			Field:  "password",
			Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength),
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
