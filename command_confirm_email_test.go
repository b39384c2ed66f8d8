package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/versifyhq/go-auth"
)

func TestConfirmEmailHandler(t *testing.T) {
	ctx := context.Background()
	tokens := auth.NewPurposeTokenService([]byte("purpose-secret"))

	t.Run("confirms the account with a valid code", func(t *testing.T) {
		repo := new(MockRepositoryManager)
		users := new(MockUsers)
		sink := new(MockActivitySink)

		user := &auth.User{ID: uuid.New(), SecurityStamp: uuid.New(), Email: "test@example.com"}
		code, err := tokens.Generate(user, auth.PurposeConfirmEmail)
		require.NoError(t, err)

		repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		repo.On("Users").Return(users)
		users.On("GetByIdentifierTx", mock.Anything, mock.Anything, user.ID.String()).Return(user, nil)
		users.On("ConfirmEmailTx", mock.Anything, mock.Anything, user.ID).Return(nil).Once()

		sink.On("Record", mock.Anything, mock.MatchedBy(func(e auth.ActivityEvent) bool {
			return e.EventType == auth.ActivityEventEmailConfirmed &&
				e.Actor.ID == user.ID.String() &&
				e.UserID == user.ID.String()
		})).Return(nil).Once()

		handler := auth.NewConfirmEmailHandler(repo).
			WithPurposeTokenService(tokens).
			WithActivitySink(sink).
			WithLogger(testLogger{})

		var resp *auth.ConfirmEmailResponse
		err = handler.Execute(ctx, auth.ConfirmEmailMessage{
			UserID: user.ID.String(),
			Token:  code,
			OnResponse: func(r *auth.ConfirmEmailResponse) {
				resp = r
			},
		})
		require.NoError(t, err)

		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.True(t, resp.User.EmailValidated)

		users.AssertExpectations(t)
		sink.AssertExpectations(t)
	})

	t.Run("rejects a code minted for another purpose", func(t *testing.T) {
		repo := new(MockRepositoryManager)
		users := new(MockUsers)

		user := &auth.User{ID: uuid.New(), SecurityStamp: uuid.New(), Email: "test@example.com"}
		code, err := tokens.Generate(user, auth.PurposeResetPassword)
		require.NoError(t, err)

		repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		repo.On("Users").Return(users)
		users.On("GetByIdentifierTx", mock.Anything, mock.Anything, user.ID.String()).Return(user, nil)

		handler := auth.NewConfirmEmailHandler(repo).
			WithPurposeTokenService(tokens).
			WithLogger(testLogger{})

		err = handler.Execute(ctx, auth.ConfirmEmailMessage{
			UserID: user.ID.String(),
			Token:  code,
		})
		assert.ErrorIs(t, err, auth.ErrInvalidToken)

		users.AssertNotCalled(t, "ConfirmEmailTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rotated security stamp retires old codes", func(t *testing.T) {
		repo := new(MockRepositoryManager)
		users := new(MockUsers)

		user := &auth.User{ID: uuid.New(), SecurityStamp: uuid.New(), Email: "test@example.com"}
		code, err := tokens.Generate(user, auth.PurposeConfirmEmail)
		require.NoError(t, err)

		// The stored record rotated its stamp after the code went out
		user.SecurityStamp = uuid.New()

		repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		repo.On("Users").Return(users)
		users.On("GetByIdentifierTx", mock.Anything, mock.Anything, user.ID.String()).Return(user, nil)

		handler := auth.NewConfirmEmailHandler(repo).
			WithPurposeTokenService(tokens).
			WithLogger(testLogger{})

		err = handler.Execute(ctx, auth.ConfirmEmailMessage{
			UserID: user.ID.String(),
			Token:  code,
		})
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("unknown account reports identity not found", func(t *testing.T) {
		repo := new(MockRepositoryManager)
		users := new(MockUsers)

		unknownID := uuid.New().String()

		repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		repo.On("Users").Return(users)
		users.On("GetByIdentifierTx", mock.Anything, mock.Anything, unknownID).
			Return(nil, repository.NewRecordNotFound())

		handler := auth.NewConfirmEmailHandler(repo).
			WithPurposeTokenService(tokens).
			WithLogger(testLogger{})

		err := handler.Execute(ctx, auth.ConfirmEmailMessage{
			UserID: unknownID,
			Token:  "whatever",
		})
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	})

	t.Run("store failure while marking verified surfaces", func(t *testing.T) {
		repo := new(MockRepositoryManager)
		users := new(MockUsers)

		user := &auth.User{ID: uuid.New(), SecurityStamp: uuid.New(), Email: "test@example.com"}
		code, err := tokens.Generate(user, auth.PurposeConfirmEmail)
		require.NoError(t, err)

		repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		repo.On("Users").Return(users)
		users.On("GetByIdentifierTx", mock.Anything, mock.Anything, user.ID.String()).Return(user, nil)
		users.On("ConfirmEmailTx", mock.Anything, mock.Anything, user.ID).
			Return(errors.New("write timeout")).Once()

		handler := auth.NewConfirmEmailHandler(repo).
			WithPurposeTokenService(tokens).
			WithLogger(testLogger{})

		err = handler.Execute(ctx, auth.ConfirmEmailMessage{
			UserID: user.ID.String(),
			Token:  code,
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to mark email as verified")
	})

	t.Run("requires a purpose token service", func(t *testing.T) {
		repo := new(MockRepositoryManager)

		handler := auth.NewConfirmEmailHandler(repo).WithLogger(testLogger{})

		err := handler.Execute(ctx, auth.ConfirmEmailMessage{
			UserID: uuid.New().String(),
			Token:  "whatever",
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no purpose token service configured")

		repo.AssertNotCalled(t, "RunInTx", mock.Anything, mock.Anything, mock.Anything)
	})
}
