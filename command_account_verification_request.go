package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type AccountVerificationMesage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Customer email."`
	OnResponse func(a *AccountVerificationResponse)
}

func (e AccountVerificationMesage) Type() string { return "user.account_verification" }

type AccountVerificationResponse struct {
	Success bool
}

// AccountVerificationHandler resends the confirmation email for accounts
// that have not verified yet. The response is uniform, an unknown email and
// an already verified account both come back as plain success so the
// endpoint cannot be used to probe for accounts.
type AccountVerificationHandler struct {
	repo     RepositoryManager
	tokens   PurposeTokenService
	mailer   Mailer
	composer *EmailComposer
	logger   Logger
}

// NewAccountVerificationHandler creates a handler with log only notifications
func NewAccountVerificationHandler(repo RepositoryManager) *AccountVerificationHandler {
	logger := defaultLogger()
	return &AccountVerificationHandler{
		repo:     repo,
		mailer:   NewLogMailer(logger),
		composer: NewEmailComposer(""),
		logger:   logger,
	}
}

// WithPurposeTokenService sets the service that mints confirmation codes
func (h *AccountVerificationHandler) WithPurposeTokenService(tokens PurposeTokenService) *AccountVerificationHandler {
	if tokens != nil {
		h.tokens = tokens
	}
	return h
}

// WithMailer sets the transport used for the confirmation email
func (h *AccountVerificationHandler) WithMailer(mailer Mailer) *AccountVerificationHandler {
	if mailer != nil {
		h.mailer = mailer
	}
	return h
}

// WithEmailComposer sets the composer that renders the confirmation email
func (h *AccountVerificationHandler) WithEmailComposer(composer *EmailComposer) *AccountVerificationHandler {
	if composer != nil {
		h.composer = composer
	}
	return h
}

// WithLogger overrides the logger used by the handler
func (h *AccountVerificationHandler) WithLogger(logger Logger) *AccountVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithLoggerProvider resolves a scoped logger for the handler
func (h *AccountVerificationHandler) WithLoggerProvider(provider LoggerProvider) *AccountVerificationHandler {
	_, h.logger = ResolveLogger("auth.account_verification", provider, h.logger)
	return h
}

func (h *AccountVerificationHandler) Execute(ctx context.Context, event AccountVerificationMesage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *AccountVerificationHandler) execute(ctx context.Context, event AccountVerificationMesage) error {
	var user *User
	resp := &AccountVerificationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, event.Email)
		if err != nil {
			// if the record is not found, is part of expected flow, not an application error
			if repository.IsRecordNotFound(err) {
				user = nil
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve verification request")
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute account verification")
	}

	if user != nil && !user.EmailValidated {
		if err := h.dispatchConfirmation(ctx, user); err != nil {
			return err
		}
	}

	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *AccountVerificationHandler) dispatchConfirmation(ctx context.Context, user *User) error {
	if h.tokens == nil {
		return goerrors.New("no purpose token service configured", goerrors.CategoryInternal)
	}

	token, err := h.tokens.Generate(user, PurposeConfirmEmail)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate confirmation token")
	}

	msg, err := h.composer.ConfirmationEmail(user, token)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render confirmation email")
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("confirmation email dispatch error", "error", err, "user_id", user.ID.String())
		return ErrEmailServiceUnavailable
	}

	return nil
}
