package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email is already registered")
)

type Service struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewService(db *gorm.DB, logger *logging.Service) *Service {
	return &Service{db: db, logger: logger.Named("account")}
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return &account, nil
}

func (s *Service) FindByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &account, nil
}

func (s *Service) List(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (s *Service) Count(ctx context.Context, role models.Role) (int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Account{})
	if role != "" {
		query = query.Where("role = ?", role)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

func (s *Service) Create(ctx context.Context, account *models.Account) error {
	account.Email = models.NormalizeEmail(account.Email)

	if _, err := s.FindByEmail(ctx, account.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrAccountNotFound) {
		return err
	}

	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account created", zap.String("account_id", account.ID), zap.String("role", string(account.Role)))
	return nil
}

// Upsert creates the account or refreshes name, password hash and role of
// the existing account with the same email.
func (s *Service) Upsert(ctx context.Context, account *models.Account) (*models.Account, error) {
	existing, err := s.FindByEmail(ctx, account.Email)
	if errors.Is(err, ErrAccountNotFound) {
		if err := s.Create(ctx, account); err != nil {
			return nil, err
		}
		return account, nil
	}
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(existing).Updates(map[string]any{
		"name":          account.Name,
		"password_hash": account.PasswordHash,
		"role":          account.Role,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	existing.Name = account.Name
	existing.PasswordHash = account.PasswordHash
	existing.Role = account.Role
	return existing, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Account{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	s.logger.Info("account deleted", zap.String("account_id", id))
	return nil
}
