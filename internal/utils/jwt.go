package utils // package utils provides helper functions for admin token creation and verification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// Roles allowed to change the festival program.
const (
	RoleAdmin     = "ADMIN"
	RoleOrganizer = "ORGANIZER"
)

// ErrInvalidToken is returned for tokens that are malformed, expired, signed
// with another key or algorithm, or missing the subject or role claim.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the claims carried by an admin access token.  The subject
// identifies the operator; the role decides which routes they may call.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for an operator.  The token
// carries the standard sub, exp and iat claims plus the role.
func NewAccessToken(secret, subject, role string, ttl time.Duration) (AccessToken, error) {
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(role) == "" {
		return AccessToken{}, fmt.Errorf("new access token: subject and role are required")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign access token: %w", err)
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw against secret and returns its claims.  Only
// HS256 is accepted and the exp claim is mandatory.
func ParseAccessToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
