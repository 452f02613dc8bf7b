package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/testutils"
)

var adminIdentity = Identity{AccountID: "01HZX3J6Q8M5W2T9K4B7N1C0DE", Role: models.RoleAdmin}

func newTestService() *Service {
	return NewService(testutils.GetTestConfig(), nil)
}

func craft(t *testing.T, s *Service, secret string, method jwt.SigningMethod, claims wireClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	var key any = []byte(secret)
	if method == jwt.SigningMethodNone {
		key = jwt.UnsafeAllowNoneSignatureType
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func registered(s *Service, subject string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.config.JWT.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func TestService_AccessRoundTrip(t *testing.T) {
	s := newTestService()

	signed, err := s.SignAccess(adminIdentity)
	require.NoError(t, err)

	claims, err := s.VerifyAccess(signed)
	require.NoError(t, err)

	assert.Equal(t, KindAccess, claims.Kind())
	assert.Equal(t, adminIdentity, claims.Identity())
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestService_RefreshRoundTrip(t *testing.T) {
	s := newTestService()

	signed, expiresAt, err := s.SignRefresh(adminIdentity, 7)
	require.NoError(t, err)

	claims, err := s.VerifyRefresh(signed)
	require.NoError(t, err)
	assert.Equal(t, claims.ExpiresAt.Time, expiresAt)

	assert.Equal(t, KindRefresh, claims.Kind())
	assert.Equal(t, adminIdentity, claims.Identity())
	assert.Equal(t, uint64(7), claims.Version)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestService_TokensAreUnique(t *testing.T) {
	s := newTestService()

	first, _, err := s.SignRefresh(adminIdentity, 1)
	require.NoError(t, err)
	second, _, err := s.SignRefresh(adminIdentity, 1)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestService_TokenKindsAreNotInterchangeable(t *testing.T) {
	s := newTestService()

	access, err := s.SignAccess(adminIdentity)
	require.NoError(t, err)
	refresh, _, err := s.SignRefresh(adminIdentity, 1)
	require.NoError(t, err)

	_, err = s.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_TypeCheckedAfterSignature(t *testing.T) {
	s := newTestService()

	t.Run("refresh secret labelled access", func(t *testing.T) {
		forged := craft(t, s, s.config.JWT.RefreshSecret, jwt.SigningMethodHS256, wireClaims{
			Role: models.RoleAdmin, Type: KindAccess, RegisteredClaims: registered(s, adminIdentity.AccountID),
		})

		_, err := s.VerifyAccess(forged)
		assert.ErrorIs(t, err, ErrInvalidToken)

		_, err = s.VerifyRefresh(forged)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("access secret labelled refresh", func(t *testing.T) {
		forged := craft(t, s, s.config.JWT.AccessSecret, jwt.SigningMethodHS256, wireClaims{
			Role: models.RoleAdmin, Type: KindRefresh, RegisteredClaims: registered(s, adminIdentity.AccountID),
		})

		_, err := s.VerifyAccess(forged)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("unknown type", func(t *testing.T) {
		forged := craft(t, s, s.config.JWT.AccessSecret, jwt.SigningMethodHS256, wireClaims{
			Role: models.RoleAdmin, Type: "session", RegisteredClaims: registered(s, adminIdentity.AccountID),
		})

		_, err := s.VerifyAccess(forged)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})
}

func TestService_RejectsInvalidTokens(t *testing.T) {
	s := newTestService()
	valid, err := s.SignAccess(adminIdentity)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	require.Len(t, parts, 3)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"tampered payload", parts[0] + "." + parts[1] + "x." + parts[2]},
		{"tampered signature", parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))},
		{"none algorithm", craft(t, s, "", jwt.SigningMethodNone, wireClaims{
			Role: models.RoleAdmin, Type: KindAccess, RegisteredClaims: registered(s, adminIdentity.AccountID),
		})},
		{"HS512", craft(t, s, s.config.JWT.AccessSecret, jwt.SigningMethodHS512, wireClaims{
			Role: models.RoleAdmin, Type: KindAccess, RegisteredClaims: registered(s, adminIdentity.AccountID),
		})},
		{"wrong issuer", craft(t, s, s.config.JWT.AccessSecret, jwt.SigningMethodHS256, wireClaims{
			Role: models.RoleAdmin, Type: KindAccess, RegisteredClaims: func() jwt.RegisteredClaims {
				rc := registered(s, adminIdentity.AccountID)
				rc.Issuer = "someone-else"
				return rc
			}(),
		})},
		{"missing subject", craft(t, s, s.config.JWT.AccessSecret, jwt.SigningMethodHS256, wireClaims{
			Role: models.RoleAdmin, Type: KindAccess, RegisteredClaims: registered(s, ""),
		})},
		{"missing expiry", craft(t, s, s.config.JWT.AccessSecret, jwt.SigningMethodHS256, wireClaims{
			Role: models.RoleAdmin, Type: KindAccess, RegisteredClaims: jwt.RegisteredClaims{
				Subject: adminIdentity.AccountID, Issuer: s.config.JWT.Issuer,
			},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.VerifyAccess(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestService_RejectsLastCharacterTamper(t *testing.T) {
	s := newTestService()

	for i := 0; i < 20; i++ {
		access, err := s.SignAccess(adminIdentity)
		require.NoError(t, err)
		refresh, _, err := s.SignRefresh(adminIdentity, uint64(i+1))
		require.NoError(t, err)

		_, err = s.VerifyAccess(testutils.FlipLastChar(t, access))
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = s.VerifyRefresh(testutils.FlipLastChar(t, refresh))
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestService_ExpiredToken(t *testing.T) {
	s := newTestService()
	issuedAt := time.Now().Add(-time.Hour)
	s.now = func() time.Time { return issuedAt }

	signed, err := s.SignAccess(adminIdentity)
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.VerifyAccess(signed)

	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_RefreshExpiryFollowsClock(t *testing.T) {
	s := newTestService()
	pinned := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return pinned }

	_, expiresAt, err := s.SignRefresh(adminIdentity, 1)

	require.NoError(t, err)
	assert.True(t, pinned.Add(s.expiry(KindRefresh)).Equal(expiresAt))
}

func TestService_SignRequiresAccount(t *testing.T) {
	s := newTestService()

	_, err := s.SignAccess(Identity{Role: models.RoleAdmin})

	assert.Error(t, err)
}

func TestService_Expiries(t *testing.T) {
	s := newTestService()

	assert.Equal(t, 15*time.Minute, s.expiry(KindAccess))
	assert.Equal(t, 7*24*time.Hour, s.expiry(KindRefresh))
}
