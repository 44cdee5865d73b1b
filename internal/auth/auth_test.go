package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	service := NewTokenService("secret", "comiccrafter")

	token, err := service.IssueToken(User{ID: "user-1", Email: "keeper@example.com"}, time.Hour)
	require.NoError(t, err)

	user, err := service.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "keeper@example.com", user.Email)
}

func TestTokenService_ParseToken_Rejections(t *testing.T) {
	service := NewTokenService("secret", "comiccrafter")

	expired, err := service.IssueToken(User{ID: "user-1"}, -time.Hour)
	require.NoError(t, err)

	otherSecret, err := NewTokenService("other", "comiccrafter").IssueToken(User{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewTokenService("secret", "someone-else").IssueToken(User{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "comiccrafter",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	noSubjectToken, err := noSubject.SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired", token: expired},
		{name: "wrong secret", token: otherSecret},
		{name: "wrong issuer", token: otherIssuer},
		{name: "missing subject", token: noSubjectToken},
		{name: "garbage", token: "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ParseToken(tt.token)
			assert.Error(t, err)
		})
	}
}
