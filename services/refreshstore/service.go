package refreshstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/webmitra3-cloud/webmitra.tech/config"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrVersionConflict = errors.New("refresh token was rotated concurrently")
	ErrHashingFailed   = errors.New("failed to hash refresh token")
)

// State is the stored refresh credential of one account.
type State struct {
	Hash    string
	Version uint64
}

func (s State) Empty() bool {
	return s.Hash == ""
}

type Service struct {
	db     *gorm.DB
	cost   int
	logger *logging.Service
}

func NewService(db *gorm.DB, cfg *config.Config, logger *logging.Service) *Service {
	cost := cfg.Auth.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		db:     db,
		cost:   cost,
		logger: logger.Named("refreshstore"),
	}
}

// SetCurrent replaces the account's refresh hash unconditionally.
func (s *Service) SetCurrent(ctx context.Context, accountID, refreshToken string) error {
	hash, err := s.hash(refreshToken)
	if err != nil {
		return err
	}
	return s.write(ctx, accountID, hash, nil)
}

// Rotate replaces the hash only while the stored version still equals
// expectedVersion.
func (s *Service) Rotate(ctx context.Context, accountID string, expectedVersion uint64, refreshToken string) error {
	hash, err := s.hash(refreshToken)
	if err != nil {
		return err
	}
	return s.write(ctx, accountID, hash, &expectedVersion)
}

func (s *Service) Clear(ctx context.Context, accountID string) error {
	return s.write(ctx, accountID, "", nil)
}

func (s *Service) Lookup(ctx context.Context, accountID string) (State, error) {
	var account models.Account
	err := s.db.WithContext(ctx).
		Select("refresh_token_hash", "token_version").
		Where("id = ?", accountID).
		Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return State{}, ErrAccountNotFound
		}
		return State{}, fmt.Errorf("failed to load refresh state: %w", err)
	}
	return State{Hash: account.RefreshTokenHash, Version: account.TokenVersion}, nil
}

func (s *Service) CurrentVersion(ctx context.Context, accountID string) (uint64, error) {
	state, err := s.Lookup(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return state.Version, nil
}

// Matches reports whether candidate is the token the state was written for.
func (s *Service) Matches(state State, candidate string) bool {
	if state.Empty() || candidate == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(state.Hash), digest(candidate)) == nil
}

func (s *Service) VerifyCurrent(ctx context.Context, accountID, candidate string) (bool, error) {
	state, err := s.Lookup(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.Matches(state, candidate), nil
}

func (s *Service) write(ctx context.Context, accountID, hash string, expectedVersion *uint64) error {
	query := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", accountID)
	if expectedVersion != nil {
		query = query.Where("token_version = ?", *expectedVersion)
	}

	result := query.Updates(map[string]any{
		"refresh_token_hash": hash,
		"token_version":      gorm.Expr("token_version + 1"),
	})
	if result.Error != nil {
		s.logger.Error("failed to write refresh state", zap.String("account_id", accountID), zap.Error(result.Error))
		return fmt.Errorf("failed to write refresh state: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		if expectedVersion == nil {
			return ErrAccountNotFound
		}
		if _, err := s.Lookup(ctx, accountID); errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		s.logger.Warn("refresh rotation lost version race",
			zap.String("account_id", accountID),
			zap.Uint64("expected_version", *expectedVersion))
		return ErrVersionConflict
	}

	return nil
}

func (s *Service) hash(refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", fmt.Errorf("%w: empty token", ErrHashingFailed)
	}
	hash, err := bcrypt.GenerateFromPassword(digest(refreshToken), s.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailed, err)
	}
	return string(hash), nil
}

// digest keeps every byte of the token significant; bcrypt reads only the
// first 72 and JWTs of one account share long prefixes.
func digest(refreshToken string) []byte {
	sum := sha256.Sum256([]byte(refreshToken))
	return []byte(hex.EncodeToString(sum[:]))
}
