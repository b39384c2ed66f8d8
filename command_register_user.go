package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User    *User
	Success bool
}

// RegisterUserHandler creates the account and dispatches the confirmation
// link. The account wins or loses on the email uniqueness constraint, a
// duplicate insert comes back as ErrDuplicateEmail. Dispatch happens after
// the transaction commits and is fire and forget, a delivery failure never
// rolls back the account.
type RegisterUserHandler struct {
	repo     RepositoryManager
	tokens   PurposeTokenService
	mailer   Mailer
	composer *EmailComposer
	activity ActivitySink
	logger   Logger
}

// NewRegisterUserHandler creates a handler with log only notifications
func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	logger := defaultLogger()
	return &RegisterUserHandler{
		repo:     repo,
		mailer:   NewLogMailer(logger),
		composer: NewEmailComposer(""),
		activity: noopActivitySink{},
		logger:   logger,
	}
}

// WithPurposeTokenService sets the service that mints confirmation codes
func (h *RegisterUserHandler) WithPurposeTokenService(tokens PurposeTokenService) *RegisterUserHandler {
	if tokens != nil {
		h.tokens = tokens
	}
	return h
}

// WithMailer sets the transport used for the confirmation email
func (h *RegisterUserHandler) WithMailer(mailer Mailer) *RegisterUserHandler {
	if mailer != nil {
		h.mailer = mailer
	}
	return h
}

// WithEmailComposer sets the composer that renders the confirmation email
func (h *RegisterUserHandler) WithEmailComposer(composer *EmailComposer) *RegisterUserHandler {
	if composer != nil {
		h.composer = composer
	}
	return h
}

// WithActivitySink sets the sink used to emit registration events
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithLoggerProvider resolves a scoped logger for the handler
func (h *RegisterUserHandler) WithLoggerProvider(provider LoggerProvider) *RegisterUserHandler {
	_, h.logger = ResolveLogger("auth.register", provider, h.logger)
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	resp := &RegisterUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = NormalizeEmail(event.Email)
		user.FullName = event.FullName

		if event.Phone != "" {
			phone, err := NormalizePhone(event.Phone)
			if err != nil {
				return err
			}
			user.Phone = phone
		}

		if event.UseHashid {
			if id, err := hashid.NewUUID(user.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			if IsDuplicateKeyError(err) {
				return ErrDuplicateEmail
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	go h.dispatchConfirmation(user)

	h.recordActivity(ctx, user)

	resp.User = user
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// dispatchConfirmation sends the confirm email link on a fresh context, the
// request context is gone by the time the goroutine runs
func (h *RegisterUserHandler) dispatchConfirmation(user *User) {
	if user == nil {
		return
	}

	if h.tokens == nil {
		h.logger.Warn("no purpose token service configured, skipping confirmation email",
			"user_id", user.ID.String(),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	token, err := h.tokens.Generate(user, PurposeConfirmEmail)
	if err != nil {
		h.logger.Error("confirmation token error", "error", err, "user_id", user.ID.String())
		return
	}

	msg, err := h.composer.ConfirmationEmail(user, token)
	if err != nil {
		h.logger.Error("confirmation email render error", "error", err, "user_id", user.ID.String())
		return
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("confirmation email dispatch error", "error", err, "user_id", user.ID.String())
	}
}

func (h *RegisterUserHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventRegisterSuccess,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID: user.ID.String(),
		Metadata: map[string]any{
			"email": user.Email,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during registration", "error", err)
	}
}
