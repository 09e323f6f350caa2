package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "craftlink-backend", time.Hour)

	tok, exp, err := tm.Generate("user-1", "admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := tm.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "craftlink-backend", claims.Issuer)
}

func TestParseRejectsBadTokens(t *testing.T) {
	tm := NewTokenManager("secret", "craftlink-backend", time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("other-secret", "craftlink-backend", time.Hour)
		tok, _, err := other.Generate("user-1", "admin")
		require.NoError(t, err)
		_, err = tm.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		short := NewTokenManager("secret", "craftlink-backend", -time.Minute)
		tok, _, err := short.Generate("user-1", "admin")
		require.NoError(t, err)
		_, err = short.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.Parse("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
