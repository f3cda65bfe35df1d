// Package identity turns bearer tokens from the identity provider into
// lifecycle actors.
package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
)

// Claims are the access token claims issued by the identity provider. The
// subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService validates HS256 access tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

func NewTokenService(signingKey, issuer, audience string) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
}

// IssueToken signs a token for userID. Used by local tooling and tests; in
// production tokens come from the identity provider.
func (s *TokenService) IssueToken(userID id.UserID, role, email string, expiresIn time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ResolveActor validates the token and maps its claims to an Actor.
func (s *TokenService) ResolveActor(tokenString string) (id.Actor, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return id.Actor{}, err
	}
	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return id.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token subject is not a user id")
	}
	role, err := MapRole(claims.Role)
	if err != nil {
		return id.Actor{}, err
	}
	return id.NewUserActor(userID, role, strings.ToLower(strings.TrimSpace(claims.Email)))
}

// MapRole translates identity provider role names. Unknown roles are
// rejected rather than downgraded.
func MapRole(raw string) (id.Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "administrator":
		return id.RoleAdministrator, nil
	case "customer", "user", "registered_user":
		return id.RoleRegisteredUser, nil
	default:
		return "", dErrors.New(dErrors.CodeUnauthorized, "unsupported role")
	}
}
