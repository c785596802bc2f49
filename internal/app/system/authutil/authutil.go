// internal/app/system/authutil/authutil.go
// Package authutil validates and prepares credentials for registration and
// login.
package authutil

import (
	"strings"
	"unicode/utf8"

	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/inputval"
	"github.com/devcanvas/devcanvas/internal/app/system/normalize"
)

// MaxNameLength bounds display names.
const MaxNameLength = 80

// Registration is the validated result of a register request.
type Registration struct {
	Name         string
	Email        string
	PasswordHash string
}

// ValidEmail reports whether s is a bare address with a dotted domain.
func ValidEmail(s string) bool {
	if !inputval.IsValidEmail(s) {
		return false
	}
	at := strings.LastIndex(s, "@")
	domain := s[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// ValidateRegistration normalizes the inputs, checks them and hashes the
// password. Errors are apperror validation errors naming the field.
func ValidateRegistration(name, email, password string) (*Registration, error) {
	name = normalize.Name(name)
	email = normalize.Email(email)

	switch {
	case name == "":
		return nil, apperror.ValidationFailed("name", "Name is required.")
	case utf8.RuneCountInString(name) > MaxNameLength:
		return nil, apperror.ValidationFailed("name", "Name must be at most 80 characters.")
	case email == "":
		return nil, apperror.ValidationFailed("email", "Email is required.")
	case !ValidEmail(email):
		return nil, apperror.ValidationFailed("email", "Please enter a valid email address.")
	}
	if err := ValidatePassword(password); err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &Registration{Name: name, Email: email, PasswordHash: hash}, nil
}
