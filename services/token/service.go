package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/webmitra3-cloud/webmitra.tech/config"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = fmt.Errorf("%w: token has expired", ErrInvalidToken)
	ErrWrongTokenType = fmt.Errorf("%w: unexpected token type", ErrInvalidToken)
)

type Service struct {
	config *config.Config
	logger *logging.Service
	now    func() time.Time
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		logger: logger.Named("token"),
		now:    time.Now,
	}
}

func (s *Service) SignAccess(identity Identity) (string, error) {
	signed, _, err := s.sign(KindAccess, identity, 0)
	return signed, err
}

// SignRefresh embeds the account's token version the signed token will be
// stored under, and returns the token's exp claim.
func (s *Service) SignRefresh(identity Identity, version uint64) (string, time.Time, error) {
	return s.sign(KindRefresh, identity, version)
}

func (s *Service) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims, err := s.verify(tokenString, KindAccess)
	if err != nil {
		return nil, err
	}
	access, ok := claims.(*AccessClaims)
	if !ok {
		return nil, ErrWrongTokenType
	}
	return access, nil
}

func (s *Service) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims, err := s.verify(tokenString, KindRefresh)
	if err != nil {
		return nil, err
	}
	refresh, ok := claims.(*RefreshClaims)
	if !ok {
		return nil, ErrWrongTokenType
	}
	return refresh, nil
}

func (s *Service) sign(kind Kind, identity Identity, version uint64) (string, time.Time, error) {
	if identity.AccountID == "" {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: missing account id", kind)
	}

	now := s.now()
	claims := wireClaims{
		Role:    identity.Role,
		Type:    kind,
		Version: version,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.JWT.Issuer,
			Subject:   identity.AccountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry(kind))),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret(kind))
	if err != nil {
		s.logger.Error("failed to sign token", zap.String("type", string(kind)), zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return tokenString, claims.ExpiresAt.Time, nil
}

func (s *Service) verify(tokenString string, kind Kind) (Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	parsed := &wireClaims{}
	_, err := jwt.ParseWithClaims(tokenString, parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret(kind), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.JWT.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		s.logger.Debug("token verification failed", zap.String("type", string(kind)), zap.Error(err))
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, err := parsed.decode()
	if err != nil {
		return nil, err
	}
	if claims.Kind() != kind {
		s.logger.Warn("token presented with wrong type", zap.String("expected", string(kind)), zap.String("got", string(claims.Kind())))
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (s *Service) secret(kind Kind) []byte {
	if kind == KindRefresh {
		return []byte(s.config.JWT.RefreshSecret)
	}
	return []byte(s.config.JWT.AccessSecret)
}

func (s *Service) expiry(kind Kind) time.Duration {
	if kind == KindRefresh {
		return s.config.JWT.RefreshExpiry
	}
	return s.config.JWT.AccessExpiry
}
