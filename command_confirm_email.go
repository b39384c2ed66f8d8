package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ConfirmEmailMessage struct {
	UserID     string `json:"user_id"`
	Token      string `json:"token"`
	OnResponse func(resp *ConfirmEmailResponse)
}

func (e ConfirmEmailMessage) Type() string { return "user.confirm_email" }

type ConfirmEmailResponse struct {
	User    *User
	Success bool
}

// ConfirmEmailHandler marks an account as verified once the confirmation
// code checks out against the user's current security stamp. An unknown
// user id is reported as not found, the confirmation link already names
// the account so there is nothing left to hide.
type ConfirmEmailHandler struct {
	repo     RepositoryManager
	tokens   PurposeTokenService
	activity ActivitySink
	logger   Logger
}

// NewConfirmEmailHandler creates a handler with sane defaults
func NewConfirmEmailHandler(repo RepositoryManager) *ConfirmEmailHandler {
	return &ConfirmEmailHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defaultLogger(),
	}
}

// WithPurposeTokenService sets the service that verifies confirmation codes
func (h *ConfirmEmailHandler) WithPurposeTokenService(tokens PurposeTokenService) *ConfirmEmailHandler {
	if tokens != nil {
		h.tokens = tokens
	}
	return h
}

// WithActivitySink sets the sink used to emit confirmation events
func (h *ConfirmEmailHandler) WithActivitySink(sink ActivitySink) *ConfirmEmailHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler
func (h *ConfirmEmailHandler) WithLogger(logger Logger) *ConfirmEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithLoggerProvider resolves a scoped logger for the handler
func (h *ConfirmEmailHandler) WithLoggerProvider(provider LoggerProvider) *ConfirmEmailHandler {
	_, h.logger = ResolveLogger("auth.confirm_email", provider, h.logger)
	return h
}

func (h *ConfirmEmailHandler) Execute(ctx context.Context, event ConfirmEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email confirmation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailHandler) execute(ctx context.Context, event ConfirmEmailMessage) error {
	if h.tokens == nil {
		return goerrors.New("no purpose token service configured", goerrors.CategoryInternal)
	}

	user := &User{}
	resp := &ConfirmEmailResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for email confirmation")
		}

		if !h.tokens.Verify(user, PurposeConfirmEmail, event.Token) {
			return ErrInvalidToken
		}

		if err := h.repo.Users().ConfirmEmailTx(ctx, tx, user.ID); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email as verified")
		}

		user.EmailValidated = true

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email confirmation transaction failed")
	}

	h.recordActivity(ctx, user)

	resp.User = user
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *ConfirmEmailHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventEmailConfirmed,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during email confirmation", "error", err)
	}
}
