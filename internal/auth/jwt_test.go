package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := IssueToken("s3cret", 7, "a@b.c", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := VerifyToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.Equal(t, "admin", claims.Role)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := IssueToken("s3cret", 7, "a@b.c", "user", time.Hour)
	require.NoError(t, err)

	_, err = VerifyToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	token, err := IssueToken("s3cret", 7, "a@b.c", "user", -time.Minute)
	require.NoError(t, err)

	_, err = VerifyToken("s3cret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	_, err := VerifyToken("s3cret", "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
