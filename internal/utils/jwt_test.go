package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManagerRoundTrip(t *testing.T) {
	issued := time.Now()
	m := NewJWTManager("secret", nil)

	token, err := m.GenerateJWT("sess-1", "10.0.0.1", issued, 2*time.Hour)
	require.NoError(t, err)

	claims, err := m.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "10.0.0.1", claims.ClientKey)
	assert.Equal(t, "admin", claims.Subject)
}

func TestJWTManagerRejects(t *testing.T) {
	issued := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	signer := NewJWTManager("secret", nil)
	token, err := signer.GenerateJWT("sess-1", "client", issued, time.Hour)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		m := NewJWTManager("secret", func() time.Time { return issued.Add(2 * time.Hour) })
		_, err := m.ValidateJWT(token)
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		m := NewJWTManager("other", func() time.Time { return issued })
		_, err := m.ValidateJWT(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := signer.ValidateJWT("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestJWTManagerRequiresSecret(t *testing.T) {
	_, err := NewJWTManager("", nil).GenerateJWT("sess", "client", time.Now(), time.Hour)
	assert.Error(t, err)
}

func TestLockoutErrorMessage(t *testing.T) {
	err := &LockoutError{Remaining: 14*time.Minute + 30*time.Second + 200*time.Millisecond}
	assert.Equal(t, "too many failed attempts, try again in 14:31", err.Error())
	assert.ErrorIs(t, err, ErrLockedOut)
}

func TestNewRemoteError(t *testing.T) {
	assert.Nil(t, NewRemoteError("op", nil))

	first := NewRemoteError("products.list", assert.AnError)
	assert.ErrorIs(t, first, assert.AnError)
	assert.Same(t, first, NewRemoteError("outer", first))
}
