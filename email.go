package auth

import "strings"

// NormalizeEmail trims and lower cases an address. Applied on create and on
// every lookup so the directory is case insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
