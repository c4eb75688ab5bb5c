package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routecast/routecast/internal/auth"
)

func newTestService(key, issuer, audience string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
	})
}

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	svc := newTestService("test-secret-key-for-testing-only", "https://id.routecast.dev", "routecast-api")

	token, expiresAt, err := svc.GenerateAccessToken("usr_test123", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultAccessTokenExpiry), expiresAt, 5*time.Second)

	userID, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_test123", userID)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newTestService("test-secret-key-for-testing-only", "", "")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_WrongSigningKey(t *testing.T) {
	token, _, err := newTestService("key-one", "", "").GenerateAccessToken("usr_test123", time.Minute)
	require.NoError(t, err)

	_, err = newTestService("key-two", "", "").ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_WrongIssuer(t *testing.T) {
	token, _, err := newTestService("test-key", "issuer-one", "").GenerateAccessToken("usr_test123", time.Minute)
	require.NoError(t, err)

	_, err = newTestService("test-key", "issuer-two", "").ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_WrongAudience(t *testing.T) {
	token, _, err := newTestService("test-key", "", "audience-one").GenerateAccessToken("usr_test123", time.Minute)
	require.NoError(t, err)

	_, err = newTestService("test-key", "", "audience-two").ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_Expired(t *testing.T) {
	key := "test-key"
	claims := auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr_old",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)

	_, err = newTestService(key, "", "").ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestJWTService_SubjectOnlyToken(t *testing.T) {
	key := "test-key"
	claims := auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr_sub",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)

	userID, err := newTestService(key, "", "").ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_sub", userID)
}

func TestJWTService_RejectsOtherAlgorithms(t *testing.T) {
	claims := auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr_none",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestService("test-key", "", "").ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_MissingSubject(t *testing.T) {
	key := "test-key"
	claims := auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)

	_, err = newTestService(key, "", "").ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrMissingSubject)
}
