package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/webmitra3-cloud/webmitra.tech/config"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPasswordTooShort      = errors.New("password is too short")
	ErrPasswordTooLong       = errors.New("password is too long")
)

type Service struct {
	config *config.Config
	logger *logging.Service

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		cfg.Auth.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Auth.MinPasswordLength <= 0 {
		cfg.Auth.MinPasswordLength = 8
	}
	if cfg.Auth.MaxPasswordLength <= 0 || cfg.Auth.MaxPasswordLength > 72 {
		cfg.Auth.MaxPasswordLength = 72
	}
	return &Service{
		config: cfg,
		logger: logger,
	}
}

func (s *Service) Cost() int {
	return s.config.Auth.BcryptCost
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.Auth.MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooShort, s.config.Auth.MinPasswordLength)
	}
	// bcrypt ignores everything past 72 bytes
	if len(password) > s.config.Auth.MaxPasswordLength {
		return fmt.Errorf("%w: must be at most %d bytes", ErrPasswordTooLong, s.config.Auth.MaxPasswordLength)
	}
	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("password hashing failed", zap.Error(err))
		}
		return "", ErrPasswordHashingFailed
	}

	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if hashedPassword == "" {
		s.burnComparison(password)
		return ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		if s.logger != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Warn("stored password hash is unusable", zap.Error(err))
		}
		return ErrInvalidCredentials
	}

	return nil
}

// RejectUnknown spends the same bcrypt work as a real comparison so unknown
// emails cannot be told apart from wrong passwords by response time.
func (s *Service) RejectUnknown(password string) error {
	s.burnComparison(password)
	return ErrInvalidCredentials
}

func (s *Service) burnComparison(password string) {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("webmitra-placeholder-password"), s.config.Auth.BcryptCost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
	}
}

func (s *Service) MustHashPassword(password string) string {
	hash, err := s.HashPassword(password)
	if err != nil {
		panic(err)
	}
	return hash
}
