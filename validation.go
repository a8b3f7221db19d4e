package goSessionAuth

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	passwordMinLength = 8
	passwordMaxLength = 100
	passwordSpecials  = "@$!%*?&"
)

func validateEmail(v *ValidationError, path, email string) {
	if email == "" {
		v.Add(path, "Email is required")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndexByte(email, '@'):], ".") {
		v.Add(path, "Invalid email address")
	}
}

// validatePassword enforces the password policy: 8-100 characters with at
// least one upper-case letter, one lower-case letter, one digit and one of
// @$!%*?&.
func validatePassword(v *ValidationError, path, password string) {
	n := utf8.RuneCountInString(password)
	switch {
	case password == "":
		v.Add(path, "Password is required")
		return
	case n < passwordMinLength:
		v.Add(path, "Password must be at least 8 characters long")
		return
	case n > passwordMaxLength:
		v.Add(path, "Password must be at most 100 characters long")
		return
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		v.Add(path, "Password must contain an uppercase letter, a lowercase letter, a number and a special character (@$!%*?&)")
	}
}

func requireField(v *ValidationError, path, value, message string) {
	if strings.TrimSpace(value) == "" {
		v.Add(path, message)
	}
}
