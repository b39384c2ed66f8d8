package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/versifyhq/go-auth"
)

func TestUserProviderVerifyIdentity(t *testing.T) {
	ctx := context.Background()
	mockTracker := new(MockUserTracker)

	provider := auth.NewUserProvider(mockTracker).WithLogger(testLogger{})

	t.Run("successful verification", func(t *testing.T) {
		userID := uuid.New()
		passwordHash, _ := auth.HashPassword("password123")
		user := &auth.User{
			ID:            userID,
			FullName:      "Test User",
			Email:         "test@example.com",
			PasswordHash:  passwordHash,
			LoginAttempts: 0,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackSucccessfulLogin", ctx, user).Return(nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.NoError(t, err)
		assert.NotNil(t, identity)
		assert.Equal(t, userID.String(), identity.ID())
		assert.Equal(t, "test@example.com", identity.Email())
		assert.Equal(t, "Test User", identity.Name())

		mockTracker.AssertExpectations(t)
	})

	t.Run("invalid password tracks the attempt", func(t *testing.T) {
		userID := uuid.New()
		passwordHash, _ := auth.HashPassword("correct_password")
		user := &auth.User{
			ID:            userID,
			FullName:      "Test User",
			Email:         "test@example.com",
			PasswordHash:  passwordHash,
			LoginAttempts: 0,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackAttemptedLogin", ctx, user).Return(nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "wrong_password")

		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
		assert.Nil(t, identity)

		mockTracker.AssertExpectations(t)
	})

	t.Run("unknown identifier reads as a credential mismatch", func(t *testing.T) {
		mockTracker.On("GetByIdentifier", ctx, "nonexistent@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		identity, err := provider.VerifyIdentity(ctx, "nonexistent@example.com", "password123")

		// Unknown accounts and wrong passwords are indistinguishable so the
		// endpoint cannot be used to probe for registered emails.
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
		assert.Nil(t, identity)

		mockTracker.AssertExpectations(t)
	})

	t.Run("store failure surfaces as an internal error", func(t *testing.T) {
		mockTracker.On("GetByIdentifier", ctx, "test@example.com").
			Return(nil, errors.New("pq: connection refused")).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
		assert.Contains(t, err.Error(), "failed to retrieve user during verification")
		assert.Nil(t, identity)

		mockTracker.AssertExpectations(t)
	})

	t.Run("nil user reports identity not found", func(t *testing.T) {
		mockTracker.On("GetByIdentifier", ctx, "ghost@example.com").
			Return(nil, nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "ghost@example.com", "password123")

		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
		assert.Nil(t, identity)

		mockTracker.AssertExpectations(t)
	})

	t.Run("too many login attempts", func(t *testing.T) {
		userID := uuid.New()
		passwordHash, _ := auth.HashPassword("password123")
		now := time.Now()
		user := &auth.User{
			ID:             userID,
			FullName:       "Test User",
			Email:          "test@example.com",
			PasswordHash:   passwordHash,
			LoginAttempts:  auth.MaxLoginAttempts + 1,
			LoginAttemptAt: &now,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.ErrorIs(t, err, auth.ErrTooManyLoginAttempts)
		assert.Nil(t, identity)

		mockTracker.AssertExpectations(t)
	})

	t.Run("attempt count at the limit still allows login", func(t *testing.T) {
		userID := uuid.New()
		passwordHash, _ := auth.HashPassword("password123")
		now := time.Now()
		user := &auth.User{
			ID:             userID,
			FullName:       "Test User",
			Email:          "test@example.com",
			PasswordHash:   passwordHash,
			LoginAttempts:  auth.MaxLoginAttempts,
			LoginAttemptAt: &now,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackSucccessfulLogin", ctx, user).Return(nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.NoError(t, err)
		assert.NotNil(t, identity)

		mockTracker.AssertExpectations(t)
	})

	t.Run("login attempts cooldown expired", func(t *testing.T) {
		userID := uuid.New()
		passwordHash, _ := auth.HashPassword("password123")
		oldAttempt := time.Now().Add(-48 * time.Hour)
		user := &auth.User{
			ID:             userID,
			FullName:       "Test User",
			Email:          "test@example.com",
			PasswordHash:   passwordHash,
			LoginAttempts:  auth.MaxLoginAttempts + 1,
			LoginAttemptAt: &oldAttempt,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackSucccessfulLogin", ctx, mock.MatchedBy(func(u *auth.User) bool {
			return u.ID == userID && u.LoginAttempts == 0 // attempts reset
		})).Return(nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.NoError(t, err)
		assert.NotNil(t, identity)
		assert.Equal(t, userID.String(), identity.ID())

		mockTracker.AssertExpectations(t)
	})

	t.Run("tracking failure on success does not block the login", func(t *testing.T) {
		userID := uuid.New()
		passwordHash, _ := auth.HashPassword("password123")
		user := &auth.User{
			ID:           userID,
			FullName:     "Test User",
			Email:        "test@example.com",
			PasswordHash: passwordHash,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackSucccessfulLogin", ctx, user).
			Return(errors.New("write timeout")).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.NoError(t, err)
		assert.NotNil(t, identity)

		mockTracker.AssertExpectations(t)
	})

	t.Run("tracking failure on a bad password surfaces", func(t *testing.T) {
		userID := uuid.New()
		passwordHash, _ := auth.HashPassword("correct_password")
		user := &auth.User{
			ID:           userID,
			FullName:     "Test User",
			Email:        "test@example.com",
			PasswordHash: passwordHash,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackAttemptedLogin", ctx, user).
			Return(errors.New("write timeout")).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "wrong_password")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to track login attempt")
		assert.Nil(t, identity)

		mockTracker.AssertExpectations(t)
	})
}

func TestUserProviderFindIdentityByIdentifier(t *testing.T) {
	ctx := context.Background()
	mockTracker := new(MockUserTracker)

	provider := auth.NewUserProvider(mockTracker).WithLogger(testLogger{})

	t.Run("user found", func(t *testing.T) {
		userID := uuid.New()
		user := &auth.User{
			ID:       userID,
			FullName: "Test User",
			Email:    "test@example.com",
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		identity, err := provider.FindIdentityByIdentifier(ctx, "test@example.com")

		assert.NoError(t, err)
		assert.NotNil(t, identity)
		assert.Equal(t, userID.String(), identity.ID())
		assert.Equal(t, "test@example.com", identity.Email())
		assert.Equal(t, "Test User", identity.Name())

		mockTracker.AssertExpectations(t)
	})

	t.Run("store errors pass through untranslated", func(t *testing.T) {
		mockTracker.On("GetByIdentifier", ctx, "nonexistent@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		identity, err := provider.FindIdentityByIdentifier(ctx, "nonexistent@example.com")

		assert.Error(t, err)
		assert.True(t, repository.IsRecordNotFound(err))
		assert.Nil(t, identity)

		mockTracker.AssertExpectations(t)
	})

	t.Run("nil user reports identity not found", func(t *testing.T) {
		mockTracker.On("GetByIdentifier", ctx, "ghost@example.com").
			Return(nil, nil).Once()

		identity, err := provider.FindIdentityByIdentifier(ctx, "ghost@example.com")

		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
		assert.Nil(t, identity)

		mockTracker.AssertExpectations(t)
	})

	t.Run("record without an email fails validation", func(t *testing.T) {
		user := &auth.User{
			ID:       uuid.New(),
			FullName: "Test User",
		}

		mockTracker.On("GetByIdentifier", ctx, "broken-record").Return(user, nil).Once()

		identity, err := provider.FindIdentityByIdentifier(ctx, "broken-record")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "missing an email")
		assert.Nil(t, identity)

		mockTracker.AssertExpectations(t)
	})
}

func TestUserProviderValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("default validator accepts a complete record", func(t *testing.T) {
		provider := auth.NewUserProvider(new(MockUserTracker))

		err := provider.Validator(&auth.User{
			ID:    uuid.New(),
			Email: "test@example.com",
		})
		assert.NoError(t, err)
	})

	t.Run("default validator rejects a record without an email", func(t *testing.T) {
		provider := auth.NewUserProvider(new(MockUserTracker))

		err := provider.Validator(&auth.User{ID: uuid.New()})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "missing an email")
	})

	t.Run("custom validator gates verification", func(t *testing.T) {
		mockTracker := new(MockUserTracker)
		provider := auth.NewUserProvider(mockTracker).WithLogger(testLogger{})

		customErr := errors.New("account suspended")
		provider.Validator = func(u *auth.User) error {
			return customErr
		}

		passwordHash, _ := auth.HashPassword("password123")
		user := &auth.User{
			ID:           uuid.New(),
			FullName:     "Test User",
			Email:        "test@example.com",
			PasswordHash: passwordHash,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackSucccessfulLogin", ctx, user).Return(nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.ErrorIs(t, err, customErr)
		assert.Nil(t, identity)

		mockTracker.AssertExpectations(t)
	})
}
