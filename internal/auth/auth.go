package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleTenant   Role = "tenant"
	RoleAdmin    Role = "admin"
)

type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

var (
	ErrMissingToken = apperr.Unauthenticated("no token provided")
	ErrInvalidToken = apperr.Unauthenticated("token is invalid")
)

type claims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Authenticate validates an HS256 bearer credential and returns the identity it carries.
func (a *Authenticator) Authenticate(credential string) (Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Identity{}, ErrMissingToken
	}

	var c claims
	_, err := jwt.ParseWithClaims(credential, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperr.Wrap(apperr.KindUnauthenticated, err, "token has expired")
		}
		return Identity{}, apperr.Wrap(apperr.KindUnauthenticated, err, ErrInvalidToken.Message())
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Identity{}, ErrInvalidToken
	}

	switch c.Role {
	case RoleCustomer, RoleTenant, RoleAdmin:
	default:
		return Identity{}, ErrInvalidToken
	}

	return Identity{ID: id, Username: c.Username, Role: c.Role}, nil
}

// Issue mints a token for the identity. Production tokens come from the
// identity service; this exists for tooling and tests.
func (a *Authenticator) Issue(identity Identity, ttl time.Duration) (string, error) {
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: identity.Username,
		Role:     identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// RequireRole fails with Forbidden unless the identity holds one of roles.
func RequireRole(identity Identity, roles ...Role) error {
	for _, r := range roles {
		if identity.Role == r {
			return nil
		}
	}
	return apperr.Forbidden("insufficient role")
}
