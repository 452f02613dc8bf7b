package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/services/account"
	"github.com/webmitra3-cloud/webmitra.tech/services/audit"
	"github.com/webmitra3-cloud/webmitra.tech/services/auth"
	"github.com/webmitra3-cloud/webmitra.tech/services/csrf"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"github.com/webmitra3-cloud/webmitra.tech/services/metrics"
	"github.com/webmitra3-cloud/webmitra.tech/services/refreshstore"
	"github.com/webmitra3-cloud/webmitra.tech/services/token"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrMissingRefreshToken = errors.New("missing refresh token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshRejected     = errors.New("refresh token rejected")
)

const maxLoginRotationAttempts = 3

type AttemptRecorder interface {
	RecordFailedAttempt(ctx context.Context, attempt audit.Attempt) error
}

type Issued struct {
	AccessToken      string
	RefreshToken     string
	CSRFToken        string
	Account          *models.Account
	RefreshExpiresAt time.Time
}

type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

type Params struct {
	fx.In

	Accounts  *account.Service
	Passwords *auth.Service
	Tokens    *token.Service
	Store     *refreshstore.Service
	CSRF      *csrf.Service
	Audit     AttemptRecorder  `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
	Logger    *logging.Service `optional:"true"`
}

type Service struct {
	accounts  *account.Service
	passwords *auth.Service
	tokens    *token.Service
	store     *refreshstore.Service
	csrf      *csrf.Service
	audit     AttemptRecorder
	metrics   *metrics.Metrics
	logger    *logging.Service
}

func NewService(p Params) *Service {
	return &Service{
		accounts:  p.Accounts,
		passwords: p.Passwords,
		tokens:    p.Tokens,
		store:     p.Store,
		csrf:      p.CSRF,
		audit:     p.Audit,
		metrics:   p.Metrics,
		logger:    p.Logger.Named("session"),
	}
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*Issued, error) {
	acct, err := s.accounts.FindByEmail(ctx, models.NormalizeEmail(in.Email))
	if err != nil {
		if !errors.Is(err, account.ErrAccountNotFound) {
			s.metrics.ObserveLogin(metrics.OutcomeError)
			return nil, err
		}
		_ = s.passwords.RejectUnknown(in.Password)
		s.rejectLogin(ctx, in, "unknown email")
		return nil, ErrInvalidCredentials
	}

	if err := s.passwords.VerifyPassword(acct.PasswordHash, in.Password); err != nil {
		s.rejectLogin(ctx, in, "wrong password")
		return nil, ErrInvalidCredentials
	}

	// a concurrent login for the same account may bump the version between
	// our read and write; reload and try again
	for attempt := 1; ; attempt++ {
		issued, err := s.issue(ctx, acct, acct.TokenVersion)
		if err == nil {
			s.metrics.ObserveLogin(metrics.OutcomeSuccess)
			s.logger.Info("login succeeded", zap.String("account_id", acct.ID), zap.String("ip", in.IP))
			return issued, nil
		}
		if !errors.Is(err, refreshstore.ErrVersionConflict) || attempt >= maxLoginRotationAttempts {
			s.metrics.ObserveLogin(metrics.OutcomeError)
			return nil, fmt.Errorf("failed to issue session: %w", err)
		}

		version, err := s.store.CurrentVersion(ctx, acct.ID)
		if err != nil {
			s.metrics.ObserveLogin(metrics.OutcomeError)
			return nil, fmt.Errorf("failed to issue session: %w", err)
		}
		acct.TokenVersion = version
	}
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Issued, error) {
	if refreshToken == "" {
		s.metrics.ObserveRefresh(metrics.OutcomeMissingToken)
		return nil, ErrMissingRefreshToken
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.metrics.ObserveRefresh(metrics.OutcomeInvalidToken)
		s.logger.Debug("refresh token failed verification", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	acct, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, s.rejectRefresh(claims.Subject, "account no longer exists")
		}
		s.metrics.ObserveRefresh(metrics.OutcomeError)
		return nil, err
	}

	state, err := s.store.Lookup(ctx, acct.ID)
	if err != nil {
		if errors.Is(err, refreshstore.ErrAccountNotFound) {
			return nil, s.rejectRefresh(acct.ID, "account no longer exists")
		}
		s.metrics.ObserveRefresh(metrics.OutcomeError)
		return nil, err
	}

	switch {
	case state.Empty():
		return nil, s.rejectRefresh(acct.ID, "no active session")
	case state.Version != claims.Version:
		return nil, s.rejectRefresh(acct.ID, "token version superseded")
	case !s.store.Matches(state, refreshToken):
		return nil, s.rejectRefresh(acct.ID, "token hash mismatch")
	}

	issued, err := s.issue(ctx, acct, state.Version)
	if err != nil {
		if errors.Is(err, refreshstore.ErrVersionConflict) || errors.Is(err, refreshstore.ErrAccountNotFound) {
			s.metrics.ObserveRefresh(metrics.OutcomeConflict)
			s.logger.Warn("refresh lost rotation race", zap.String("account_id", acct.ID))
			return nil, ErrRefreshRejected
		}
		s.metrics.ObserveRefresh(metrics.OutcomeError)
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	s.metrics.ObserveRefresh(metrics.OutcomeSuccess)
	s.logger.Debug("session rotated", zap.String("account_id", acct.ID))
	return issued, nil
}

// Logout never fails. Whatever can be cleared for the presented token is
// cleared; everything else is logged.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	s.metrics.ObserveLogout()

	if refreshToken == "" {
		return
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.logger.Debug("logout with unverifiable refresh token", zap.Error(err))
		return
	}

	if err := s.store.Clear(ctx, claims.Subject); err != nil {
		if errors.Is(err, refreshstore.ErrAccountNotFound) {
			s.logger.Debug("logout for missing account", zap.String("account_id", claims.Subject))
			return
		}
		s.logger.Warn("failed to clear refresh token on logout", zap.String("account_id", claims.Subject), zap.Error(err))
		return
	}

	s.logger.Info("logged out", zap.String("account_id", claims.Subject))
}

// Revoke ends every session of the account, e.g. when an admin forces a logout.
func (s *Service) Revoke(ctx context.Context, accountID string) error {
	if err := s.store.Clear(ctx, accountID); err != nil {
		if errors.Is(err, refreshstore.ErrAccountNotFound) {
			return account.ErrAccountNotFound
		}
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.logger.Info("session revoked", zap.String("account_id", accountID))
	return nil
}

func (s *Service) IssueCSRF() (string, error) {
	return s.csrf.Issue()
}

func (s *Service) issue(ctx context.Context, acct *models.Account, expectedVersion uint64) (*Issued, error) {
	identity := token.Identity{AccountID: acct.ID, Role: acct.Role}

	accessToken, err := s.tokens.SignAccess(identity)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExpiresAt, err := s.tokens.SignRefresh(identity, expectedVersion+1)
	if err != nil {
		return nil, err
	}
	csrfToken, err := s.csrf.Issue()
	if err != nil {
		return nil, err
	}

	if err := s.store.Rotate(ctx, acct.ID, expectedVersion, refreshToken); err != nil {
		return nil, err
	}
	acct.TokenVersion = expectedVersion + 1

	return &Issued{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		CSRFToken:        csrfToken,
		Account:          acct,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func (s *Service) rejectLogin(ctx context.Context, in LoginInput, reason string) {
	s.metrics.ObserveLogin(metrics.OutcomeInvalidCredentials)
	s.logger.Warn("login rejected", zap.String("ip", in.IP), zap.String("reason", reason))

	if s.audit == nil {
		return
	}
	err := s.audit.RecordFailedAttempt(ctx, audit.Attempt{
		Type:      models.AttemptLogin,
		IP:        in.IP,
		UserAgent: in.UserAgent,
		Reason:    "Invalid credentials",
	})
	if err != nil {
		s.logger.Error("failed to audit rejected login", zap.Error(err))
	}
}

func (s *Service) rejectRefresh(accountID, reason string) error {
	s.metrics.ObserveRefresh(metrics.OutcomeRejected)
	s.logger.Warn("refresh rejected", zap.String("account_id", accountID), zap.String("reason", reason))
	return ErrRefreshRejected
}
