package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mileusna/useragent"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrUnknownAttemptType = errors.New("unknown failed attempt type")

type Attempt struct {
	Type      models.AttemptType
	IP        string
	UserAgent string
	Reason    string
}

type Service struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewService(db *gorm.DB, logger *logging.Service) *Service {
	return &Service{db: db, logger: logger.Named("audit")}
}

func (s *Service) RecordFailedAttempt(ctx context.Context, attempt Attempt) error {
	switch attempt.Type {
	case models.AttemptLogin, models.AttemptContact, models.AttemptTestimonial:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAttemptType, attempt.Type)
	}

	record := &models.FailedAttempt{
		Type:      attempt.Type,
		IP:        truncate(attempt.IP, 64),
		UserAgent: truncate(attempt.UserAgent, 500),
		Client:    describeClient(attempt.UserAgent),
		Reason:    truncate(attempt.Reason, 255),
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		s.logger.Error("failed to record failed attempt",
			zap.String("type", string(attempt.Type)),
			zap.String("ip", attempt.IP),
			zap.Error(err))
		return fmt.Errorf("failed to record failed attempt: %w", err)
	}

	s.logger.Info("failed attempt recorded",
		zap.String("type", string(attempt.Type)),
		zap.String("ip", attempt.IP),
		zap.String("client", record.Client),
		zap.String("reason", attempt.Reason))
	return nil
}

func (s *Service) CountSince(ctx context.Context, attemptType models.AttemptType, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.FailedAttempt{}).
		Where("type = ? AND created_at >= ?", attemptType, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count failed attempts: %w", err)
	}
	return count, nil
}

func (s *Service) Recent(ctx context.Context, attemptType models.AttemptType, limit int) ([]models.FailedAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var attempts []models.FailedAttempt
	err := s.db.WithContext(ctx).
		Where("type = ?", attemptType).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list failed attempts: %w", err)
	}
	return attempts, nil
}

func describeClient(raw string) string {
	if raw == "" {
		return ""
	}

	ua := useragent.Parse(raw)
	switch {
	case ua.Bot:
		return truncate("bot/"+ua.Name, 120)
	case ua.Name == "" && ua.OS == "":
		return "unknown"
	}

	parts := make([]string, 0, 2)
	if ua.Name != "" {
		parts = append(parts, ua.Name)
	}
	if ua.OS != "" {
		parts = append(parts, ua.OS)
	}
	return truncate(strings.Join(parts, "/"), 120)
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
