package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds          = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts       = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeSessionNotFound       = "SESSION_NOT_FOUND"
	TextCodeSessionDecodeError    = "SESSION_DECODE_ERROR"
	TextCodeClaimsMappingError    = "CLAIMS_MAPPING_ERROR"
	TextCodeDataParseError        = "DATA_PARSE_ERROR"
	TextCodeEmptyPassword         = "EMPTY_PASSWORD"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeTokenMalformed        = "TOKEN_MALFORMED"
	TextCodeTokenSignatureInvalid = "TOKEN_SIGNATURE_INVALID"
	TextCodeTokenInvalidIssuer    = "TOKEN_INVALID_ISSUER"
	TextCodeTokenInvalidAudience  = "TOKEN_INVALID_AUDIENCE"
	TextCodeDuplicateEmail        = "DUPLICATE_EMAIL"
	TextCodeInvalidToken          = "INVALID_TOKEN"
	TextCodeInvalidResetToken     = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeInvalidEmail          = "INVALID_EMAIL"
	TextCodeInvalidPhone          = "INVALID_PHONE_NUMBER"
	TextCodePasswordMismatch      = "PASSWORD_MISMATCH"
	TextCodeEmailUnavailable      = "EMAIL_SERVICE_UNAVAILABLE"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is the uniform credential failure. Login
// reports it for unknown identifiers and for wrong passwords alike so the
// response never reveals which one it was.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned once an account exhausts its attempts
// inside the cool down period.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrUnableToFindSession is the error when our reequest has no cookie
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data", errors.CategoryBadInput).
	WithTextCode(TextCodeDataParseError).
	WithCode(errors.CodeBadRequest)

// ErrNoEmptyString rejects empty passwords before they reach the hasher.
var ErrNoEmptyString = errors.New("password cannot be an empty string", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrTokenExpired is returned when a JWT is past its expiration claim.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a JWT cannot be parsed at all.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenSignatureInvalid is returned when a JWT fails HMAC verification.
var ErrTokenSignatureInvalid = errors.New("token signature is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeTokenSignatureInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenInvalidIssuer is returned when the iss claim does not match ours.
var ErrTokenInvalidIssuer = errors.New("token has invalid issuer", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalidIssuer).
	WithCode(errors.CodeUnauthorized)

// ErrTokenInvalidAudience is returned when the aud claim does not include us.
var ErrTokenInvalidAudience = errors.New("token has invalid audience", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalidAudience).
	WithCode(errors.CodeUnauthorized)

// ErrDuplicateEmail is returned when registration hits an existing account.
// The public contract reports it as a plain bad request.
var ErrDuplicateEmail = errors.New("an account with that email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeBadRequest)

// ErrInvalidToken is returned when an email confirmation code fails to verify.
var ErrInvalidToken = errors.New("invalid token", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeBadRequest)

// ErrInvalidOrExpiredToken covers reset tokens that fail verification for
// any reason. Callers never learn whether the token was tampered with, aimed
// at the wrong account, stale, or already spent.
var ErrInvalidOrExpiredToken = errors.New("invalid or expired token", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidResetToken).
	WithCode(errors.CodeBadRequest)

// ErrPasswordMismatch is returned when a password and its confirmation do
// not match.
var ErrPasswordMismatch = errors.New("passwords do not match", errors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(errors.CodeBadRequest)

// ErrInvalidEmail is returned by the reset endpoints when the email has no
// matching account.
var ErrInvalidEmail = errors.New("the email provided is invalid", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidEmail).
	WithCode(errors.CodeBadRequest)

// ErrEmailServiceUnavailable is returned when the mailer cannot deliver and
// the caller should retry later.
var ErrEmailServiceUnavailable = errors.New("email service unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeEmailUnavailable)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsSignatureInvalidError will check for HMAC verification failures
func IsSignatureInvalidError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "signature is invalid")
}

// IsDuplicateKeyError reports whether err is a unique constraint violation.
// It matches the driver messages for sqlite and postgres since bun surfaces
// them verbatim.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
