package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetData() map[string]any
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	Impersonate(ctx context.Context, identifier string) (string, error)
	SessionFromToken(token string) (Session, error)
	IdentityFromSession(ctx context.Context, session Session) (Identity, error)
}

// TokenAuthenticator is an Authenticator that exposes the token service it
// signs sessions with, so middleware can validate what it issued.
type TokenAuthenticator interface {
	Authenticator
	TokenService() TokenService
}

type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
	GetExtendedSession() bool
}

type HTTPAuthenticator interface {
	Middleware
	Login(c router.Context, payload LoginPayload) error
	LoginWithToken(c router.Context, payload LoginPayload) (string, error)
	SessionFromToken(token string) (Session, error)
	Logout(c router.Context)
	MakeClientRouteAuthErrorHandler(optionalAuth bool) func(c router.Context, err error) error
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Email() string
	Name() string
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetExtendedTokenDuration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// TokenService issues and validates bearer tokens
type TokenService interface {
	Generate(identity Identity) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// PurposeTokenService mints and verifies single purpose tokens bound to a
// user's current security stamp, such as email confirmation codes and
// password reset codes.
type PurposeTokenService interface {
	Generate(user *User, purpose string) (string, error)
	Verify(user *User, purpose string, token string) bool
}

// Mailer delivers account lifecycle notifications
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// Email is the message handed to a Mailer
type Email struct {
	To       string
	Subject  string
	HTMLBody string
}
