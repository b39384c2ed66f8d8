package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/versifyhq/go-auth"
)

func TestJWTClaims_Subject(t *testing.T) {
	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "user123",
		},
	}

	assert.Equal(t, "user123", claims.Subject())
}

func TestJWTClaims_UserID(t *testing.T) {
	// the user id rides in the subject claim, UserID is an alias
	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "user123",
		},
	}

	assert.Equal(t, claims.Subject(), claims.UserID())
}

func TestJWTClaims_Email(t *testing.T) {
	t.Run("returns email when present", func(t *testing.T) {
		claims := &auth.JWTClaims{
			UserEmail: "test@example.com",
		}

		assert.Equal(t, "test@example.com", claims.Email())
	})

	t.Run("empty when absent", func(t *testing.T) {
		claims := &auth.JWTClaims{}

		assert.Equal(t, "", claims.Email())
	})
}

func TestJWTClaims_Name(t *testing.T) {
	claims := &auth.JWTClaims{
		FullName: "Test User",
	}

	assert.Equal(t, "Test User", claims.Name())
}

func TestJWTClaims_Expires(t *testing.T) {
	t.Run("returns expiry when set", func(t *testing.T) {
		expiry := time.Now().Add(time.Hour).Truncate(time.Second)
		claims := &auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(expiry),
			},
		}

		assert.True(t, expiry.Equal(claims.Expires()))
	})

	t.Run("zero time when unset", func(t *testing.T) {
		claims := &auth.JWTClaims{}

		assert.True(t, claims.Expires().IsZero())
	})
}

func TestJWTClaims_IssuedAt(t *testing.T) {
	t.Run("returns issued at when set", func(t *testing.T) {
		issued := time.Now().Truncate(time.Second)
		claims := &auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt: jwt.NewNumericDate(issued),
			},
		}

		assert.True(t, issued.Equal(claims.IssuedAt()))
	})

	t.Run("zero time when unset", func(t *testing.T) {
		claims := &auth.JWTClaims{}

		assert.True(t, claims.IssuedAt().IsZero())
	})
}

func TestJWTClaimsSurviveSigning(t *testing.T) {
	now := time.Now()
	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "8d2e33a7-8f3a-4b47-90b1-6e43c1e7000a",
			Issuer:    "versify",
			Audience:  jwt.ClaimStrings{"versify:web"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			ID:        "token-1",
		},
		UserEmail: "test@example.com",
		FullName:  "Test User",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	parsed, err := jwt.ParseWithClaims(signed, &auth.JWTClaims{}, func(t *jwt.Token) (any, error) {
		return []byte("test-signing-key"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	out, ok := parsed.Claims.(*auth.JWTClaims)
	require.True(t, ok)

	assert.Equal(t, claims.Subject(), out.Subject())
	assert.Equal(t, "test@example.com", out.Email())
	assert.Equal(t, "Test User", out.Name())
	assert.Equal(t, "versify", out.RegisteredClaims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"versify:web"}, out.RegisteredClaims.Audience)
	assert.Equal(t, "token-1", out.RegisteredClaims.ID)
}
