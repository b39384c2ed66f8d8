//go:build !race

package auth

func passwordHashCost() int {
	// Work factor for stored credentials.
	return 14
}
