package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
)

func signTestToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims *models.JWTClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func testClaims(userID string, role models.UserRole, expiresIn time.Duration) *models.JWTClaims {
	now := time.Now().UTC()
	return &models.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chapter-platform",
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", Issuer: "chapter-platform"})
	token := signTestToken(t, jwt.SigningMethodHS256, []byte("secret"), testClaims("u1", models.RoleMember, time.Hour))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleMember, claims.Role)
}

func TestValidateTokenRejectsInvalidTokens(t *testing.T) {
	svc := NewAuthService(zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", Issuer: "chapter-platform"})

	cases := map[string]string{
		"wrong secret": signTestToken(t, jwt.SigningMethodHS256, []byte("other"), testClaims("u1", models.RoleMember, time.Hour)),
		"expired":      signTestToken(t, jwt.SigningMethodHS256, []byte("secret"), testClaims("u1", models.RoleMember, -time.Hour)),
		"wrong method": signTestToken(t, jwt.SigningMethodHS512, []byte("secret"), testClaims("u1", models.RoleMember, time.Hour)),
		"no subject":   signTestToken(t, jwt.SigningMethodHS256, []byte("secret"), testClaims("", models.RoleMember, time.Hour)),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
		})
	}
}

func TestValidateTokenChecksIssuer(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else"})
	token := signTestToken(t, jwt.SigningMethodHS256, []byte("secret"), testClaims("u1", models.RoleAdmin, time.Hour))

	_, err := svc.ValidateToken(token)
	require.Error(t, err)
}
