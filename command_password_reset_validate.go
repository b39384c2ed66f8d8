package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type ValidateResetTokenMessage struct {
	Email      string `json:"email"`
	Token      string `json:"token"`
	OnResponse func(resp *ValidateResetTokenResponse)
}

func (p ValidateResetTokenMessage) Type() string { return "user.password_reset_validate" }

type ValidateResetTokenResponse struct {
	Success bool
}

// ValidateResetTokenHandler is the read only pre check clients run before
// showing the new password form. Unknown emails and failed verifications
// come back as the same invalid token error, the check never confirms
// whether an account exists.
type ValidateResetTokenHandler struct {
	repo   RepositoryManager
	tokens PurposeTokenService
	logger Logger
}

// NewValidateResetTokenHandler creates a handler with sane defaults
func NewValidateResetTokenHandler(repo RepositoryManager) *ValidateResetTokenHandler {
	return &ValidateResetTokenHandler{
		repo:   repo,
		logger: defaultLogger(),
	}
}

// WithPurposeTokenService sets the service that verifies reset codes
func (h *ValidateResetTokenHandler) WithPurposeTokenService(tokens PurposeTokenService) *ValidateResetTokenHandler {
	if tokens != nil {
		h.tokens = tokens
	}
	return h
}

// WithLogger overrides the logger used by the handler
func (h *ValidateResetTokenHandler) WithLogger(logger Logger) *ValidateResetTokenHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithLoggerProvider resolves a scoped logger for the handler
func (h *ValidateResetTokenHandler) WithLoggerProvider(provider LoggerProvider) *ValidateResetTokenHandler {
	_, h.logger = ResolveLogger("auth.password_reset", provider, h.logger)
	return h
}

func (h *ValidateResetTokenHandler) Execute(ctx context.Context, event ValidateResetTokenMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during reset token validation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ValidateResetTokenHandler) execute(ctx context.Context, event ValidateResetTokenMessage) error {
	if h.tokens == nil {
		return goerrors.New("no purpose token service configured", goerrors.CategoryInternal)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrInvalidOrExpiredToken
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for token validation")
	}

	if !h.tokens.Verify(user, PurposeResetPassword, event.Token) {
		return ErrInvalidOrExpiredToken
	}

	if event.OnResponse != nil {
		event.OnResponse(&ValidateResetTokenResponse{Success: true})
	}

	return nil
}
