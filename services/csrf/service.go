package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/webmitra3-cloud/webmitra.tech/config"
)

const minTokenBytes = 32

var (
	ErrCsrfMissing  = errors.New("csrf token missing")
	ErrCsrfMismatch = errors.New("csrf token mismatch")
)

type Service struct {
	tokenBytes int
}

func NewService(cfg *config.Config) *Service {
	n := cfg.CSRF.TokenBytes
	if n < minTokenBytes {
		n = minTokenBytes
	}
	return &Service{tokenBytes: n}
}

func (s *Service) Issue() (string, error) {
	buf := make([]byte, s.tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Validate applies the double-submit check to mutating methods. The cookie
// and header values must both be present and equal.
func (s *Service) Validate(cookieValue, headerValue, method string) error {
	if !IsMutating(method) {
		return nil
	}
	if cookieValue == "" || headerValue == "" {
		return ErrCsrfMissing
	}
	if subtle.ConstantTimeCompare([]byte(cookieValue), []byte(headerValue)) != 1 {
		return ErrCsrfMismatch
	}
	return nil
}

func IsMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
