// Package validate holds the request field checks shared by the handlers.
package validate

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/webmitra3-cloud/webmitra.tech/internal/apperr"
)

// Email accepts a bare address only; display-name forms are rejected.
func Email(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.New(apperr.Validation, "Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return apperr.New(apperr.Validation, "Email must be a valid email address")
	}
	return nil
}

func Password(password string, minLength, maxLength int) error {
	if len(password) < minLength {
		return apperr.New(apperr.Validation, fmt.Sprintf("Password must be at least %d characters", minLength))
	}
	if maxLength > 0 && len(password) > maxLength {
		return apperr.New(apperr.Validation, fmt.Sprintf("Password must be at most %d characters", maxLength))
	}
	return nil
}

func Name(name string) error {
	n := len([]rune(strings.TrimSpace(name)))
	if n < 2 || n > 80 {
		return apperr.New(apperr.Validation, "Name must be between 2 and 80 characters")
	}
	return nil
}
