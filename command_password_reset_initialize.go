package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Customer email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	Success bool
}

// InitializePasswordResetHandler starts the forgot password flow. The
// response is the same whether the email maps to an account or not, only
// the account holder learns anything and only through their inbox. The one
// exception is a mail transport failure, which can only happen after the
// account lookup succeeded and surfaces as a service error.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   PurposeTokenService
	mailer   Mailer
	composer *EmailComposer
	activity ActivitySink
	logger   Logger
}

// NewInitializePasswordResetHandler creates a handler with log only notifications
func NewInitializePasswordResetHandler(repo RepositoryManager) *InitializePasswordResetHandler {
	logger := defaultLogger()
	return &InitializePasswordResetHandler{
		repo:     repo,
		mailer:   NewLogMailer(logger),
		composer: NewEmailComposer(""),
		activity: noopActivitySink{},
		logger:   logger,
	}
}

// WithPurposeTokenService sets the service that mints reset codes
func (h *InitializePasswordResetHandler) WithPurposeTokenService(tokens PurposeTokenService) *InitializePasswordResetHandler {
	if tokens != nil {
		h.tokens = tokens
	}
	return h
}

// WithMailer sets the transport used for the reset email
func (h *InitializePasswordResetHandler) WithMailer(mailer Mailer) *InitializePasswordResetHandler {
	if mailer != nil {
		h.mailer = mailer
	}
	return h
}

// WithEmailComposer sets the composer that renders the reset email
func (h *InitializePasswordResetHandler) WithEmailComposer(composer *EmailComposer) *InitializePasswordResetHandler {
	if composer != nil {
		h.composer = composer
	}
	return h
}

// WithActivitySink sets the sink used to emit reset request events
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithLoggerProvider resolves a scoped logger for the handler
func (h *InitializePasswordResetHandler) WithLoggerProvider(provider LoggerProvider) *InitializePasswordResetHandler {
	_, h.logger = ResolveLogger("auth.password_reset", provider, h.logger)
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	var user *User
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				user = nil
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if user != nil {
		if err := h.dispatchReset(ctx, user); err != nil {
			return err
		}
		h.recordActivity(ctx, user)
	}

	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *InitializePasswordResetHandler) dispatchReset(ctx context.Context, user *User) error {
	if h.tokens == nil {
		return goerrors.New("no purpose token service configured", goerrors.CategoryInternal)
	}

	token, err := h.tokens.Generate(user, PurposeResetPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset token")
	}

	msg, err := h.composer.PasswordResetEmail(user, token)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render reset email")
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("reset email dispatch error", "error", err, "user_id", user.ID.String())
		return ErrEmailServiceUnavailable
	}

	return nil
}

func (h *InitializePasswordResetHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset request", "error", err)
	}
}
