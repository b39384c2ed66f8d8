//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// Race-enabled runs pay roughly a 10x slowdown, so drop to the library
	// default to keep the suite inside its timeout.
	return bcrypt.DefaultCost
}
