package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestToken(subject, issuer, secret string, expiry time.Duration, tokenType AuthTokenType) (string, error) {
	var expiryTime *jwt.NumericDate
	if expiry != 0 {
		expiryTime = jwt.NewNumericDate(time.Now().Add(expiry))
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: expiryTime,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Type: tokenType,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func TestParseClaims_ValidToken(t *testing.T) {
	secret := "test-secret"
	token, err := createTestToken("uploader-1", "issuer", secret, time.Minute, AccessToken)
	require.NoError(t, err)

	claims, err := ParseClaims(token, secret)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "uploader-1", claims.Subject)
	assert.Equal(t, AccessToken, claims.Type)
	assert.Equal(t, "issuer", claims.Issuer)
}

func TestParseClaims_InvalidToken(t *testing.T) {
	_, err := ParseClaims("invalid.token.string", "test-secret")
	assert.Error(t, err)
}

func TestParseClaims_WrongSecret(t *testing.T) {
	token, err := createTestToken("uploader-1", "issuer", "test-secret", time.Minute, AccessToken)
	require.NoError(t, err)

	_, err = ParseClaims(token, "wrong-secret")
	assert.Error(t, err)
}

func TestParseClaims_Expired(t *testing.T) {
	token, err := createTestToken("uploader-1", "issuer", "test-secret", -time.Minute, AccessToken)
	require.NoError(t, err)

	_, err = ParseClaims(token, "test-secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseClaims_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{Type: AccessToken})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ParseClaims(signed, "test-secret")
	assert.Error(t, err)
}

func TestNewToken_NoExpiry(t *testing.T) {
	token, err := NewToken("ops", "issuer", "test-secret", 0, AccessToken)
	require.NoError(t, err)

	claims, err := ParseClaims(token, "test-secret")
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
	assert.NotEmpty(t, claims.ID)

	_, err = NewToken("ops", "issuer", "", 0, AccessToken)
	assert.Error(t, err)
}
