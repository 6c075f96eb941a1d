// internal/auth/auth_test.go
package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.Contains(t, hash, "$argon2id$")

	match, err := ComparePasswordAndHash("correct horse battery staple", hash)
	require.NoError(t, err)
	require.True(t, match)

	match, err = ComparePasswordAndHash("wrong password", hash)
	require.NoError(t, err)
	require.False(t, match)
}

func TestComparePasswordRejectsMalformedHash(t *testing.T) {
	_, err := ComparePasswordAndHash("pw", "not-a-hash")
	require.ErrorIs(t, err, ErrInvalidHash)

	_, err = ComparePasswordAndHash("pw", "$argon2id$v=999$m=1,t=1,p=1$c2FsdA$a2V5")
	require.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestJWTRoundTrip(t *testing.T) {
	Init()

	token, err := CreateJWT("user-123")
	require.NoError(t, err)

	identity, err := AuthenticateJWT(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", identity)

	_, err = AuthenticateJWT(token + "tampered")
	require.Error(t, err)
}
