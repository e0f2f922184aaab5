package auth

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/dailydrop/server/internal/apierr"
)

const (
	bcryptCost        = 10
	minPasswordLength = 8
	passwordSymbols   = "!@#$%^&*()?"

	// only ASCII letters and digits satisfy the class rules
	asciiUpper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	asciiDigits = "0123456789"
)

var passwordRules = []struct {
	ok      func(string) bool
	message string
}{
	{func(p string) bool { return strings.ContainsAny(p, asciiUpper) }, "Password must contain at least one uppercase letter."},
	{func(p string) bool { return strings.ContainsAny(p, asciiDigits) }, "Password must contain at least one digit."},
	{func(p string) bool { return strings.ContainsAny(p, passwordSymbols) }, "Password must contain at least one symbol."},
	{func(p string) bool { return utf8.RuneCountInString(p) >= minPasswordLength }, "Password must be at least 8 characters long."},
}

// ValidatePassword returns a BAD_REQUEST naming the first rule password breaks
func ValidatePassword(password string) error {
	for _, rule := range passwordRules {
		if !rule.ok(password) {
			return apierr.ErrBadRequest.WithMessage(rule.message)
		}
	}
	return nil
}

// HashPassword hashes password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
