package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *jwtService {
	return NewJWTService(Config{
		Secret:        "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "clinic-platform",
	}).(*jwtService)
}

func TestJWTService_AccessToken(t *testing.T) {
	svc := newTestService()
	sub := Subject{UserID: uuid.New(), Email: "doc@example.com", Role: "doctor"}

	token, err := svc.GenerateAccessToken(sub)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, sub.UserID, claims.UserID)
	assert.Equal(t, "doctor", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)

	_, err = svc.ValidateRefreshToken(token)
	assert.Error(t, err)
}

func TestJWTService_RefreshToken(t *testing.T) {
	svc := newTestService()
	sub := Subject{UserID: uuid.New(), Email: "p@example.com", Role: "patient"}

	token, err := svc.GenerateRefreshToken(sub)
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Expired(t *testing.T) {
	svc := newTestService()
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateAccessToken(Subject{UserID: uuid.New(), Role: "admin"})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_WrongTypeSameSecret(t *testing.T) {
	svc := NewJWTService(Config{Secret: "shared"})
	token, err := svc.GenerateRefreshToken(Subject{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}
