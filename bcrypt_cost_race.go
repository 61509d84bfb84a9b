//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// race builds run much slower, keep suites under their timeouts
	return bcrypt.DefaultCost
}
