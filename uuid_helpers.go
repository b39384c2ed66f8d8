package auth

import "github.com/google/uuid"

// HasUserUUID reports whether the session subject parses as a UUID. Sessions
// minted by this package always carry one, but impersonated or externally
// issued tokens may not.
func HasUserUUID(session Session) bool {
	if session == nil {
		return false
	}
	_, err := session.GetUserUUID()
	return err == nil
}

// UserUUIDFromSession returns the session subject as a UUID, with ok false
// when the session is nil or the subject is not a UUID.
func UserUUIDFromSession(session Session) (uuid.UUID, bool) {
	if session == nil {
		return uuid.Nil, false
	}
	id, err := session.GetUserUUID()
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
