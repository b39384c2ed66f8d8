package jwtware

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigningKeyFuncAlgEnforcement(t *testing.T) {
	keyFn := signingKeyFunc(SigningKey{JWTAlg: "HS256", Key: []byte("secret")})

	t.Run("matching algorithm returns the key", func(t *testing.T) {
		got, err := keyFn(&jwt.Token{Header: map[string]any{"alg": "HS256"}})
		require.NoError(t, err)
		assert.Equal(t, []byte("secret"), got)
	})

	t.Run("mismatched algorithm is rejected", func(t *testing.T) {
		_, err := keyFn(&jwt.Token{Header: map[string]any{"alg": "RS256"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected jwt signing method")
	})

	t.Run("missing algorithm header is rejected", func(t *testing.T) {
		_, err := keyFn(&jwt.Token{Header: map[string]any{}})
		require.Error(t, err)
	})

	t.Run("empty configured algorithm skips enforcement", func(t *testing.T) {
		open := signingKeyFunc(SigningKey{Key: []byte("secret")})
		got, err := open(&jwt.Token{Header: map[string]any{"alg": "none"}})
		require.NoError(t, err)
		assert.Equal(t, []byte("secret"), got)
	})
}

func TestKeyfuncOptions(t *testing.T) {
	opts := keyfuncOptions(nil)

	require.NotNil(t, opts.RefreshErrorHandler)
	require.NotPanics(t, func() {
		opts.RefreshErrorHandler(errors.New("refresh failed"))
	})

	assert.Equal(t, time.Hour, opts.RefreshInterval)
	assert.Equal(t, 5*time.Minute, opts.RefreshRateLimit)
	assert.Equal(t, 10*time.Second, opts.RefreshTimeout)
	assert.True(t, opts.RefreshUnknownKID)
}

func TestRunValidationListenersSkipsNilEntries(t *testing.T) {
	calls := 0
	cfg := &Config{
		ValidationListeners: []ValidationListener{
			nil,
			func(ctx router.Context, claims AuthClaims) error {
				calls++
				return nil
			},
		},
	}

	err := cfg.runValidationListeners(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
