package auth

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

type Middleware interface {
	Impersonate(c router.Context, identifier string) error
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	stored := c.Locals(key)
	if stored == nil {
		return nil, ErrUnableToFindSession
	}

	claims, ok := stored.(AuthClaims)
	if claims == nil || !ok {
		return nil, ErrUnableToDecodeSession
	}

	return sessionFromAuthClaims(claims)
}

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	protected := controller.Auther.ProtectedRoute(
		controller.Config,
		controller.Auther.MakeClientRouteAuthErrorHandler(false),
	)

	app.
		Post(controller.Routes.Register, controller.RegisterPost).
		SetName("auth.register.post")

	app.
		Get(controller.Routes.ConfirmEmail, controller.ConfirmEmailGet).
		SetName("auth.confirm-email.get")

	app.
		Post(
			controller.Routes.Login,
			// limitReq,
			controller.LoginPost,
		).
		SetName("auth.sign-in.post")

	app.Post(controller.Routes.ForgotPassword, controller.ForgotPasswordPost).
		SetName("auth.pwd-forgot.post")

	app.Post(controller.Routes.ResendConfirmation, controller.ResendConfirmationPost).
		SetName("auth.resend-confirmation.post")

	app.Get(controller.Routes.ValidateResetToken, controller.ValidateResetTokenGet).
		SetName("auth.pwd-reset-validate.get")

	app.Post(controller.Routes.ResetPassword, controller.ResetPasswordPost).
		SetName("auth.pwd-reset.post")

	app.Post(controller.Routes.Logout, controller.LogoutPost, protected).
		SetName("auth.sign-out.post")

	app.Get(controller.Routes.Me, controller.MeGet, protected).
		SetName("auth.me.get")
}

type AuthControllerRoutes struct {
	Register           string
	ConfirmEmail       string
	Login              string
	ForgotPassword     string
	ResendConfirmation string
	ValidateResetToken string
	ResetPassword      string
	Logout             string
	Me                 string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	Config       Config
	Tokens       PurposeTokenService
	Mailer       Mailer
	Composer     *EmailComposer
	Activity     ActivitySink
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defaultLogger(),
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Register:           "/api/auth/register",
			ConfirmEmail:       "/api/auth/confirm-email",
			Login:              "/api/auth/login",
			ForgotPassword:     "/api/auth/forgot-password",
			ResendConfirmation: "/api/auth/resend-confirmation",
			ValidateResetToken: "/api/auth/validate-reset-token",
			ResetPassword:      "/api/auth/reset-password",
			Logout:             "/api/auth/logout",
			Me:                 "/api/auth/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in auth controller...")
	}

	return c
}

// RegisterRequest payload
type RegisterRequest struct {
	FullName        string `form:"fullName" json:"fullName"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone" json:"phone"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload: ", "error", err)
		return a.ErrorHandler(ctx, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"success":    false,
			"message":    "Validation failed.",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var res *RegisterUserResponse

	req := RegisterUserMessage{
		FullName: payload.FullName,
		Email:    payload.Email,
		Phone:    payload.Phone,
		Password: payload.Password,
		OnResponse: func(r *RegisterUserResponse) {
			res = r
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo).
		WithPurposeTokenService(a.Tokens).
		WithMailer(a.Mailer).
		WithEmailComposer(a.Composer).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register user error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= AUTH REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("============================")
	}

	userID := ""
	if res != nil && res.User != nil {
		userID = res.User.ID.String()
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "Account created. Check your email to confirm your address.",
		"userId":  userID,
	})
}

func (a *AuthController) ConfirmEmailGet(ctx router.Context) error {
	userID := ctx.Query("userId")
	code := ctx.Query("code")

	if userID == "" || code == "" {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Missing userId or code.",
		})
	}

	req := ConfirmEmailMessage{
		UserID: userID,
		Token:  code,
	}

	confirmEmail := NewConfirmEmailHandler(a.Repo).
		WithPurposeTokenService(a.Tokens).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := confirmEmail.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("confirm email error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "Email address confirmed. You can sign in now.",
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"rememberMe" json:"rememberMe"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Email
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession will return the password
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: ", "error", err)
		return a.ErrorHandler(ctx, ErrUnableToParseData)
	}

	// Credentials that fail validation cannot belong to an account, they get
	// the same response as a wrong password.
	if err := payload.Validate(); err != nil {
		return a.respondInvalidCredentials(ctx)
	}

	token, err := a.Auther.LoginWithToken(ctx, payload)
	if err != nil {
		if HTTPStatusForError(err) >= router.StatusInternalServerError {
			return a.ErrorHandler(ctx, err)
		}
		return a.respondInvalidCredentials(ctx)
	}

	session, err := a.Auther.SessionFromToken(token)
	if err != nil {
		a.Logger.Error("login session decode error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	email := payload.Email
	if data := session.GetData(); data != nil {
		if v, ok := data["email"].(string); ok && v != "" {
			email = v
		}
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success":     true,
		"message":     "Signed in.",
		"accessToken": token,
		"userId":      session.GetUserID(),
		"email":       email,
	})
}

// respondInvalidCredentials is the single failed login response. Unknown
// emails, wrong passwords, unverified accounts, and throttled accounts all
// produce this exact body.
func (a *AuthController) respondInvalidCredentials(ctx router.Context) error {
	return ctx.JSON(router.StatusUnauthorized, map[string]any{
		"success": false,
		"message": "Invalid email or password.",
	})
}

func (a *AuthController) LogoutPost(ctx router.Context) error {
	session, err := GetRouterSession(ctx, a.Config.GetContextKey())

	a.Auther.Logout(ctx)

	// Audit only sessions we minted. Impersonated sessions carry a
	// non-UUID subject and are logged at issuance instead.
	if err == nil && a.Activity != nil && HasUserUUID(session) {
		event := ActivityEvent{
			EventType:  ActivityEventLogout,
			Actor:      ActorRef{ID: session.GetUserID(), Type: "user"},
			UserID:     session.GetUserID(),
			OccurredAt: time.Now(),
		}
		if aerr := a.Activity.Record(ctx.Context(), event); aerr != nil {
			a.Logger.Warn("activity sink error during logout", "error", aerr)
		}
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "Signed out.",
	})
}

func (a *AuthController) MeGet(ctx router.Context) error {
	session, err := GetRouterSession(ctx, a.Config.GetContextKey())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	out := map[string]any{
		"userId": session.GetUserID(),
	}

	if data := session.GetData(); data != nil {
		if v, ok := data["email"].(string); ok {
			out["email"] = v
		}
		if v, ok := data["name"].(string); ok {
			out["name"] = v
		}
	}

	return ctx.JSON(router.StatusOK, out)
}

// ForgotPasswordRequest payload
type ForgotPasswordRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AuthController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: ", "error", err)
		return a.ErrorHandler(ctx, ErrUnableToParseData)
	}

	// An email that fails validation cannot map to an account, it gets the
	// same acknowledgement without touching the store.
	if err := payload.Validate(); err == nil {
		req := InitializePasswordResetMessage{
			Email: payload.Email,
		}

		initPwdReset := NewInitializePasswordResetHandler(a.Repo).
			WithPurposeTokenService(a.Tokens).
			WithMailer(a.Mailer).
			WithEmailComposer(a.Composer).
			WithActivitySink(a.Activity).
			WithLogger(a.Logger)

		if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
			a.Logger.Error("password reset init error: ", "error", err)
			return a.ErrorHandler(ctx, err)
		}
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "If that email maps to an account you will receive a reset link shortly.",
	})
}

func (a *AuthController) ResendConfirmationPost(ctx router.Context) error {
	payload := new(ForgotPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("resend confirmation parse payload: ", "error", err)
		return a.ErrorHandler(ctx, ErrUnableToParseData)
	}

	if err := payload.Validate(); err == nil {
		req := AccountVerificationMesage{
			Email: payload.Email,
		}

		accountVerify := NewAccountVerificationHandler(a.Repo).
			WithPurposeTokenService(a.Tokens).
			WithMailer(a.Mailer).
			WithEmailComposer(a.Composer).
			WithLogger(a.Logger)

		if err := accountVerify.Execute(ctx.Context(), req); err != nil {
			a.Logger.Error("resend confirmation error: ", "error", err)
			return a.ErrorHandler(ctx, err)
		}
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "If that email maps to an unverified account a new confirmation link is on its way.",
	})
}

func (a *AuthController) ValidateResetTokenGet(ctx router.Context) error {
	email := ctx.Query("email")
	code := ctx.Query("code")

	if email == "" || code == "" {
		return a.ErrorHandler(ctx, ErrInvalidOrExpiredToken)
	}

	req := ValidateResetTokenMessage{
		Email: email,
		Token: code,
	}

	validateToken := NewValidateResetTokenHandler(a.Repo).
		WithPurposeTokenService(a.Tokens).
		WithLogger(a.Logger)

	if err := validateToken.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("validate reset token error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "Token is valid.",
	})
}

// ResetPasswordRequest payload
type ResetPasswordRequest struct {
	Email           string `form:"email" json:"email"`
	Token           string `form:"token" json:"token"`
	NewPassword     string `form:"newPassword" json:"newPassword"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword"`
}

// Validate will run validation rules
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 72)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
	)
}

func (a *AuthController) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: ", "error", err)
		return a.ErrorHandler(ctx, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"success":    false,
			"message":    "Validation failed.",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := FinalizePasswordResetMesasge{
		Email:           payload.Email,
		Token:           payload.Token,
		NewPassword:     payload.NewPassword,
		ConfirmPassword: payload.ConfirmPassword,
	}

	finalizePwdReset := NewFinalizePasswordResetHandler(a.Repo).
		WithPurposeTokenService(a.Tokens).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := finalizePwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset finalize error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "Password updated. You can sign in with your new password.",
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidatePhoneNumber accepts phone numbers that normalize to E.164 and
// empty values, optional fields skip it by staying empty.
func ValidatePhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := NormalizePhone(s); err != nil {
		return errors.New("must be a valid international phone number")
	}
	return nil
}

// FormatValidationErrorToMap flattens ozzo validation errors into a field to
// message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var fields validation.Errors
	if errors.As(err, &fields) {
		for name, ferr := range fields {
			if ferr != nil {
				out[name] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.JSON(HTTPStatusForError(err), map[string]any{
		"success": false,
		"message": PublicMessageForError(err),
	})
}
