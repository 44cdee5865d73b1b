// Package auth resolves the calling user from a signed bearer token.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
)

// User is the authenticated identity attached to a request.
type User struct {
	ID    string
	Email string
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies the HS256 access tokens the API accepts.
type TokenService struct {
	secret []byte
	issuer string
}

func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: issuer}
}

// IssueToken mints a token for the user, mainly used by tooling and tests.
func (s *TokenService) IssueToken(user User, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(s.secret)
}

// ParseToken verifies the signature, issuer and expiry and returns the user.
func (s *TokenService) ParseToken(tokenString string) (*User, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, apperrors.NewUnauthenticatedError("invalid token: " + err.Error())
	}

	tokenClaims, ok := parsed.Claims.(*claims)
	if !ok || strings.TrimSpace(tokenClaims.Subject) == "" {
		return nil, apperrors.NewUnauthenticatedError("token carries no subject")
	}

	return &User{ID: tokenClaims.Subject, Email: tokenClaims.Email}, nil
}
