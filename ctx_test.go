package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
)

func TestWithContext(t *testing.T) {
	tests := []struct {
		name     string
		setupCtx func() context.Context
		wantOK   bool
	}{
		{
			name: "should return user when present in context",
			setupCtx: func() context.Context {
				user := &User{Email: "test@example.com"}
				return WithContext(context.Background(), user)
			},
			wantOK: true,
		},
		{
			name: "should return false when no user in context",
			setupCtx: func() context.Context {
				return context.Background()
			},
			wantOK: false,
		},
		{
			name: "should return false when context has wrong type",
			setupCtx: func() context.Context {
				return context.WithValue(context.Background(), userCtxKey, "not-a-user")
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.setupCtx()
			gotUser, gotOK := FromContext(ctx)

			assert.Equal(t, tt.wantOK, gotOK)
			if tt.wantOK {
				assert.NotNil(t, gotUser)
				assert.Equal(t, "test@example.com", gotUser.Email)
			} else {
				assert.Nil(t, gotUser)
			}
		})
	}
}

func TestGetClaims(t *testing.T) {
	tests := []struct {
		name     string
		setupCtx func() context.Context
		wantOK   bool
	}{
		{
			name: "should return claims when present in context",
			setupCtx: func() context.Context {
				claims := &JWTClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						Subject: "user123",
					},
					UserEmail: "test@example.com",
				}
				ctx := context.Background()
				return WithClaimsContext(ctx, claims)
			},
			wantOK: true,
		},
		{
			name: "should return false when no claims in context",
			setupCtx: func() context.Context {
				return context.Background()
			},
			wantOK: false,
		},
		{
			name: "should return false when context has wrong type",
			setupCtx: func() context.Context {
				ctx := context.Background()
				return context.WithValue(ctx, claimsCtxKey, "not-a-claims-object")
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.setupCtx()
			gotClaims, gotOK := GetClaims(ctx)

			assert.Equal(t, tt.wantOK, gotOK)
			if tt.wantOK {
				assert.NotNil(t, gotClaims)
				assert.Equal(t, "user123", gotClaims.Subject())
				assert.Equal(t, "user123", gotClaims.UserID())
				assert.Equal(t, "test@example.com", gotClaims.Email())
			} else {
				assert.Nil(t, gotClaims)
			}
		})
	}
}

func TestGetRouterClaims(t *testing.T) {
	tests := []struct {
		name    string
		setupFn func() router.Context
		key     string
		wantOK  bool
	}{
		{
			name: "should return claims when present with default key",
			setupFn: func() router.Context {
				ctx := router.NewMockContext()
				ctx.LocalsMock["user"] = &JWTClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						Subject: "user123",
					},
				}
				return ctx
			},
			key:    "", // Use default key
			wantOK: true,
		},
		{
			name: "should return claims when present with custom key",
			setupFn: func() router.Context {
				ctx := router.NewMockContext()
				ctx.LocalsMock["custom-claims"] = &JWTClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						Subject: "user123",
					},
				}
				return ctx
			},
			key:    "custom-claims",
			wantOK: true,
		},
		{
			name: "should return false when key not present",
			setupFn: func() router.Context {
				ctx := router.NewMockContext()
				return ctx
			},
			key:    "user",
			wantOK: false,
		},
		{
			name: "should return false when value is wrong type",
			setupFn: func() router.Context {
				ctx := router.NewMockContext()
				ctx.LocalsMock["user"] = "not-a-claims-object"
				return ctx
			},
			key:    "user",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.setupFn()
			gotClaims, gotOK := GetRouterClaims(ctx, tt.key)

			assert.Equal(t, tt.wantOK, gotOK)
			if tt.wantOK {
				assert.NotNil(t, gotClaims)
				assert.Equal(t, "user123", gotClaims.Subject())
			} else {
				assert.Nil(t, gotClaims)
			}
		})
	}
}

func TestWithClaimsContext(t *testing.T) {
	issued := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user123",
			ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(issued),
		},
		UserEmail: "test@example.com",
		FullName:  "Test User",
	}

	ctx := context.Background()
	newCtx := WithClaimsContext(ctx, claims)

	retrievedClaims, ok := GetClaims(newCtx)
	assert.True(t, ok)
	assert.NotNil(t, retrievedClaims)
	assert.Equal(t, "user123", retrievedClaims.Subject())
	assert.Equal(t, "user123", retrievedClaims.UserID())
	assert.Equal(t, "test@example.com", retrievedClaims.Email())
	assert.Equal(t, "Test User", retrievedClaims.Name())
	assert.False(t, retrievedClaims.Expires().IsZero())

	// the original context stays untouched
	_, ok = GetClaims(ctx)
	assert.False(t, ok)
}
