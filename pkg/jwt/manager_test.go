package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager("secret", 60, 3600)

	token, err := m.GenerateAccessToken("u1", "Alice", "c1", 3)
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Alice", claims.Nickname)
	assert.Equal(t, "c1", claims.CompanyID)
	assert.Equal(t, 3, claims.Level)
}

func TestManager_WrongSecret(t *testing.T) {
	token, err := NewManager("a", 60, 60).GenerateAccessToken("u1", "", "", 0)
	require.NoError(t, err)

	_, err = NewManager("b", 60, 60).VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Expired(t *testing.T) {
	m := NewManager("secret", -10, 60)
	token, err := m.GenerateAccessToken("u1", "", "", 0)
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
