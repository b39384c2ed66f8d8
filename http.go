package auth

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/versifyhq/go-auth/middleware/jwtware"
)

// RouteAuthenticator adapts an Authenticator to the HTTP layer. It signs
// users in, keeps the session cookie in step with the issued token, and
// maps errors to JSON responses.
type RouteAuthenticator struct {
	auth                   TokenAuthenticator
	cfg                    Config
	cookieDuration         time.Duration
	extendedCookieDuration time.Duration
	logger                 Logger
	loggerProvider         LoggerProvider
	validationListeners    []ValidationListener
	tokenValidator         TokenValidator
	AuthErrorHandler       func(c router.Context, err error) error // TODO: make functions
	ErrorHandler           func(c router.Context, err error) error // TODO: make functions
}

// NewHTTPAuthenticator wraps a TokenAuthenticator for use in HTTP handlers.
// Cookie lifetimes track the token expiration so a cookie never outlives
// the token it carries.
func NewHTTPAuthenticator(auther TokenAuthenticator, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Minute
	}

	extendedCookieDuration := cookieDuration
	if cfg.GetExtendedTokenDuration() > 0 {
		extendedCookieDuration = time.Duration(cfg.GetExtendedTokenDuration()) * time.Minute
	}

	loggerProvider, logger := ResolveLogger("auth.http", nil, nil)

	a := &RouteAuthenticator{
		cfg:                    cfg,
		auth:                   auther,
		logger:                 logger,
		loggerProvider:         loggerProvider,
		cookieDuration:         cookieDuration,
		extendedCookieDuration: extendedCookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

// WithLogger sets the logger used for HTTP auth events.
func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.loggerProvider, a.logger = ResolveLogger("auth.http", nil, logger)
	return a
}

// WithLoggerProvider resolves a scoped logger for the HTTP layer.
func (a *RouteAuthenticator) WithLoggerProvider(provider LoggerProvider) *RouteAuthenticator {
	a.loggerProvider, a.logger = ResolveLogger("auth.http", provider, a.logger)
	return a
}

// WithValidationListeners registers hooks that run after a token validates on
// protected routes, e.g. audit logging or claim checks.
func (a *RouteAuthenticator) WithValidationListeners(listeners ...ValidationListener) *RouteAuthenticator {
	a.validationListeners = append(a.validationListeners, listeners...)
	return a
}

// WithTokenValidator overrides the validator used on protected routes.
// Pass a MultiTokenValidator here to accept tokens signed with retired keys
// during a rotation.
func (a *RouteAuthenticator) WithTokenValidator(validator TokenValidator) *RouteAuthenticator {
	a.tokenValidator = validator
	return a
}

func (a *RouteAuthenticator) getLogger() Logger {
	if a.logger != nil {
		return a.logger
	}
	return defaultLogger()
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a RouteAuthenticator) GetExtendedCookieDuration() time.Duration {
	return a.extendedCookieDuration
}

// jwtValidatorAdapter bridges a TokenValidator into the middleware's own
// validator interface, which mirrors our claims to avoid an import cycle.
type jwtValidatorAdapter struct {
	validator TokenValidator
}

func (v jwtValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := v.validator.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	validator := a.tokenValidator
	if validator == nil {
		validator = a.auth.TokenService()
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		mwCfg := jwtware.Config{
			ErrorHandler: errorHandler,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(cfg.GetSigningKey()),
				JWTAlg: cfg.GetSigningMethod(),
			},
			AuthScheme:      cfg.GetAuthScheme(),
			ContextKey:      cfg.GetContextKey(),
			TokenLookup:     cfg.GetTokenLookup(),
			TokenValidator:  jwtValidatorAdapter{validator: validator},
			ContextEnricher: ContextEnricherAdapter,
		}
		RegisterValidationListeners(&mwCfg, a.validationListeners...)
		return jwtware.New(mwCfg)(hf)
	}
}

// Login authenticates the payload and sets the session cookie.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) error {
	_, err := a.LoginWithToken(ctx, payload)
	return err
}

// LoginWithToken authenticates the payload, sets the session cookie, and
// returns the signed token for clients that carry it as a bearer token
// instead.
func (a *RouteAuthenticator) LoginWithToken(ctx router.Context, payload LoginPayload) (string, error) {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.getLogger().Error("Login error", "error", err)
		return "", err
	}

	duration := a.cookieDuration
	if payload.GetExtendedSession() {
		duration = a.extendedCookieDuration
	}

	a.setCookieToken(ctx, token, duration)
	return token, nil
}

// SessionFromToken decodes a raw token into a Session.
func (a *RouteAuthenticator) SessionFromToken(token string) (Session, error) {
	return a.auth.SessionFromToken(token)
}

func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.getLogger().Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) Impersonate(c router.Context, identifier string) error {
	token, err := a.auth.Impersonate(c.Context(), identifier)
	if err != nil {
		a.getLogger().Error("Impersonate authentication error", "error", err)
		return err
	}

	a.setCookieToken(c, token, a.cookieDuration)
	return nil
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// HTTPStatusForError maps an error to the status code the JSON API reports.
// Rate limited logins map to 401 on purpose: attempts only accrue on
// accounts that exist, so a 429 would reveal the account.
func HTTPStatusForError(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return router.StatusInternalServerError
	}

	if richErr.TextCode == TextCodeEmailUnavailable {
		return http.StatusServiceUnavailable
	}

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz, errors.CategoryRateLimit:
		return router.StatusUnauthorized
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryValidation, errors.CategoryBadInput, errors.CategoryConflict:
		return router.StatusBadRequest
	case errors.CategoryOperation, errors.CategoryInternal:
		return router.StatusInternalServerError
	}

	if richErr.Code > 0 {
		return richErr.Code
	}

	return router.StatusInternalServerError
}

// PublicMessageForError returns the message the JSON API exposes for err.
// Internal failures collapse to a generic message so callers never see
// wrapped detail.
func PublicMessageForError(err error) string {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return "An unexpected server error occurred."
	}

	switch richErr.Category {
	case errors.CategoryInternal, errors.CategoryOperation:
		if richErr.TextCode == TextCodeEmailUnavailable {
			return "We could not send the email. Please try again later."
		}
		return "An unexpected server error occurred."
	}

	return richErr.Message
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.getLogger().Info(
		"Authentication error",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	return c.JSON(router.StatusUnauthorized, map[string]any{
		"success": false,
		"message": "Authentication required.",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.getLogger().Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.JSON(HTTPStatusForError(richErr), map[string]any{
			"success": false,
			"message": PublicMessageForError(richErr),
		})
	}
}
