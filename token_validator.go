package auth

// TokenValidator validates a raw token and returns its claims. It is the
// seam that lets the HTTP layer and the authenticator accept tokens signed
// by something other than the live TokenService.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a plain function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(tokenString)
}

// MultiTokenValidator tries validators in order until one accepts the token.
// Its main use is signing key rotation: the live key goes first and retired
// keys follow, so sessions minted before a rotation keep working until they
// expire.
//
// A signature failure or a malformed token only means "wrong key, try the
// next one". Any other failure, expiry included, would repeat under every
// key and is returned immediately.
type MultiTokenValidator struct {
	validators []TokenValidator
}

// NewMultiTokenValidator drops nil entries and composes the rest in order.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	kept := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			kept = append(kept, v)
		}
	}
	return &MultiTokenValidator{validators: kept}
}

// Validate satisfies the TokenValidator interface. When every validator
// rejects the token it returns the first rejection, which belongs to the
// live key.
func (m *MultiTokenValidator) Validate(tokenString string) (AuthClaims, error) {
	var firstErr error
	for _, v := range m.validators {
		claims, err := v.Validate(tokenString)
		if err == nil {
			return claims, nil
		}
		if IsSignatureInvalidError(err) || IsMalformedError(err) {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrTokenMalformed
}
