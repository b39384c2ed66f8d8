package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Token purposes. Each purpose yields its own token space, so a token minted
// to confirm an email can never reset a password.
const (
	PurposeConfirmEmail  = "confirm-email"
	PurposeResetPassword = "reset-password"
)

// DefaultPurposeTokenWindow is how long a minted token stays valid.
const DefaultPurposeTokenWindow = 24 * time.Hour

// purposeTokenVersion tags the wire format so the key or layout can rotate.
const purposeTokenVersion = byte(0x01)

const purposeTokenHeaderLen = 9

// PurposeTokenServiceImpl implements the PurposeTokenService interface.
//
// Tokens are derived, never stored: the HMAC covers the user ID, the user's
// current security stamp, and the purpose, keyed by the server secret. The
// encoded token carries only a version byte, the issue timestamp, and the
// signature. Rotating the security stamp invalidates every token minted
// before the rotation.
type PurposeTokenServiceImpl struct {
	secret []byte
	window time.Duration
	now    func() time.Time
}

// Verify interface compliance
var _ PurposeTokenService = (*PurposeTokenServiceImpl)(nil)

// NewPurposeTokenService creates a purpose token service keyed by secret.
func NewPurposeTokenService(secret []byte) *PurposeTokenServiceImpl {
	return &PurposeTokenServiceImpl{
		secret: secret,
		window: DefaultPurposeTokenWindow,
		now:    time.Now,
	}
}

// WithWindow overrides the validity window
func (s *PurposeTokenServiceImpl) WithWindow(window time.Duration) *PurposeTokenServiceImpl {
	if window > 0 {
		s.window = window
	}
	return s
}

// WithClock overrides the time source, mostly for tests
func (s *PurposeTokenServiceImpl) WithClock(now func() time.Time) *PurposeTokenServiceImpl {
	if now != nil {
		s.now = now
	}
	return s
}

// Generate mints a URL safe token for the user and purpose.
func (s *PurposeTokenServiceImpl) Generate(user *User, purpose string) (string, error) {
	if user == nil || user.ID == uuid.Nil {
		return "", errors.New("user is required", errors.CategoryBadInput)
	}
	if user.SecurityStamp == uuid.Nil {
		return "", errors.New("user has no security stamp", errors.CategoryBadInput)
	}
	if purpose == "" {
		return "", errors.New("purpose is required", errors.CategoryBadInput)
	}

	payload := make([]byte, purposeTokenHeaderLen)
	payload[0] = purposeTokenVersion
	binary.BigEndian.PutUint64(payload[1:], uint64(s.now().UTC().Unix()))

	signature := s.sign(user, purpose, payload)

	return base64.RawURLEncoding.EncodeToString(append(payload, signature...)), nil
}

// Verify reports whether token was minted for the user and purpose and is
// still inside the validity window. It returns false for every failure mode,
// tampering, wrong user, wrong purpose, a rotated security stamp, or age,
// without distinguishing them.
func (s *PurposeTokenServiceImpl) Verify(user *User, purpose string, token string) bool {
	if user == nil || purpose == "" || token == "" {
		return false
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return false
	}

	if len(data) != purposeTokenHeaderLen+sha256.Size {
		return false
	}

	if data[0] != purposeTokenVersion {
		return false
	}

	payload, signature := data[:purposeTokenHeaderLen], data[purposeTokenHeaderLen:]

	expected := s.sign(user, purpose, payload)
	if !hmac.Equal(signature, expected) {
		return false
	}

	issuedAt := time.Unix(int64(binary.BigEndian.Uint64(payload[1:purposeTokenHeaderLen])), 0)
	now := s.now()

	if issuedAt.After(now) {
		return false
	}

	return now.Sub(issuedAt) <= s.window
}

func (s *PurposeTokenServiceImpl) sign(user *User, purpose string, payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	mac.Write([]byte(user.ID.String()))
	mac.Write([]byte{0})
	mac.Write([]byte(user.SecurityStamp.String()))
	mac.Write([]byte{0})
	mac.Write([]byte(purpose))
	return mac.Sum(nil)
}
