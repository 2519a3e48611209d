package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursehub-api/internal/models"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
)

func newAuth(secret string) *AuthService {
	return NewAuthService(nil, AuthConfig{AccessTokenSecret: secret, AccessTokenExpiry: time.Hour, Issuer: "coursehub"})
}

func TestIssueAndValidateToken(t *testing.T) {
	svc := newAuth("s3cret")
	token, expiresAt, err := svc.IssueToken(Identity{UserID: "u-1", Role: models.RoleStudent, FullName: "Linus", Email: "linus@example.com"})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, models.UserSnapshot{UserID: "u-1", FullName: "Linus", Email: "linus@example.com"}, claims.Snapshot())
}

func TestValidateTokenRejects(t *testing.T) {
	svc := newAuth("s3cret")
	token, _, err := svc.IssueToken(Identity{UserID: "u-1", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = newAuth("other").ValidateToken(token)
	assertCode(t, err, appErrors.ErrUnauthorized)

	expired := newAuth("s3cret")
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.ValidateToken(token)
	assertCode(t, err, appErrors.ErrUnauthorized)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, models.JWTClaims{UserID: "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assertCode(t, err, appErrors.ErrUnauthorized)

	_, _, err = svc.IssueToken(Identity{UserID: "u-1", Role: "ROOT"})
	assertCode(t, err, appErrors.ErrValidation)
}
