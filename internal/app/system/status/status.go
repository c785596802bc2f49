// Package status holds the account status values stored on users.
// They are plain strings so they can be used directly in Mongo filters.
package status

import "github.com/devcanvas/devcanvas/internal/app/system/normalize"

const (
	Active   = "active"
	Disabled = "disabled"
)

// IsValid returns true if s is a recognized status value.
func IsValid(s string) bool {
	return s == Active || s == Disabled
}

// Default returns the status given to new accounts.
func Default() string {
	return Active
}

// CanSignIn reports whether an account with status s may start a session
// or use a token. Unknown values are refused.
func CanSignIn(s string) bool {
	return normalize.Status(s) == Active
}
