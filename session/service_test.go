package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/services/account"
	"github.com/webmitra3-cloud/webmitra.tech/services/audit"
	"github.com/webmitra3-cloud/webmitra.tech/services/auth"
	"github.com/webmitra3-cloud/webmitra.tech/services/csrf"
	"github.com/webmitra3-cloud/webmitra.tech/services/metrics"
	"github.com/webmitra3-cloud/webmitra.tech/services/refreshstore"
	"github.com/webmitra3-cloud/webmitra.tech/services/token"
	"github.com/webmitra3-cloud/webmitra.tech/testutils"
	"gorm.io/gorm"
)

type mockAttemptRecorder struct {
	mock.Mock
}

func (m *mockAttemptRecorder) RecordFailedAttempt(ctx context.Context, attempt audit.Attempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

type fixture struct {
	db      *gorm.DB
	service *Service
	tokens  *token.Service
	store   *refreshstore.Service
	audit   *mockAttemptRecorder
	admin   *models.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testutils.GetTestConfig()
	db := testutils.SetupAccountsDB(t)

	f := &fixture{
		db:     db,
		tokens: token.NewService(cfg, nil),
		store:  refreshstore.NewService(db, cfg, nil),
		audit:  &mockAttemptRecorder{},
	}
	f.service = NewService(Params{
		Accounts:  account.NewService(db, nil),
		Passwords: auth.NewService(cfg, nil),
		Tokens:    f.tokens,
		Store:     f.store,
		CSRF:      csrf.NewService(cfg),
		Audit:     f.audit,
		Metrics:   metrics.New(),
	})
	f.admin = testutils.CreateAccount(t, db, testutils.TestAccounts.Admin)
	return f
}

func (f *fixture) login(t *testing.T) *Issued {
	t.Helper()
	issued, err := f.service.Login(context.Background(), LoginInput{
		Email:    testutils.TestAccounts.Admin.Email,
		Password: testutils.TestAccounts.Admin.Password,
		IP:       "127.0.0.1",
	})
	require.NoError(t, err)
	return issued
}

func TestService_Login(t *testing.T) {
	f := newFixture(t)

	issued, err := f.service.Login(context.Background(), LoginInput{
		Email:    "  ADMIN@WebMitra.tech ",
		Password: testutils.TestAccounts.Admin.Password,
	})
	require.NoError(t, err)

	assert.Equal(t, f.admin.ID, issued.Account.ID)
	assert.NotEmpty(t, issued.AccessToken)
	assert.NotEmpty(t, issued.RefreshToken)
	assert.Len(t, issued.CSRFToken, 64)

	access, err := f.tokens.VerifyAccess(issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, token.Identity{AccountID: f.admin.ID, Role: models.RoleAdmin}, access.Identity())

	refresh, err := f.tokens.VerifyRefresh(issued.RefreshToken)
	require.NoError(t, err)
	assert.True(t, refresh.ExpiresAt.Time.Equal(issued.RefreshExpiresAt))

	ok, err := f.store.VerifyCurrent(context.Background(), f.admin.ID, issued.RefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)

	f.audit.AssertNotCalled(t, "RecordFailedAttempt", mock.Anything, mock.Anything)
}

func TestService_LoginFailuresAreIndistinguishable(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", testutils.TestAccounts.Admin.Email, "WrongPassword1"},
		{"unknown email", "ghost@webmitra.tech", testutils.TestAccounts.Admin.Password},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.audit.On("RecordFailedAttempt", mock.Anything, audit.Attempt{
				Type:      models.AttemptLogin,
				IP:        "203.0.113.9",
				UserAgent: "curl/8.0",
				Reason:    "Invalid credentials",
			}).Return(nil).Once()

			issued, err := f.service.Login(context.Background(), LoginInput{
				Email:     tt.email,
				Password:  tt.password,
				IP:        "203.0.113.9",
				UserAgent: "curl/8.0",
			})

			assert.Nil(t, issued)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Equal(t, "invalid email or password", err.Error())
			f.audit.AssertExpectations(t)

			stored := testutils.ReloadAccount(t, f.db, f.admin.ID)
			assert.Empty(t, stored.RefreshTokenHash)
		})
	}
}

func TestService_RefreshRotatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.login(t)

	second, err := f.service.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.CSRFToken, second.CSRFToken)

	_, err = f.tokens.VerifyAccess(second.AccessToken)
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshRejected)

	third, err := f.service.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, third.AccessToken)
}

func TestService_RefreshFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := f.login(t)

	t.Run("missing", func(t *testing.T) {
		_, err := f.service.Refresh(ctx, "")
		assert.ErrorIs(t, err, ErrMissingRefreshToken)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := f.service.Refresh(ctx, issued.RefreshToken+"x")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("last character changed", func(t *testing.T) {
		_, err := f.service.Refresh(ctx, testutils.FlipLastChar(t, issued.RefreshToken))
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("access token presented", func(t *testing.T) {
		_, err := f.service.Refresh(ctx, issued.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("unknown account", func(t *testing.T) {
		orphan, _, err := f.tokens.SignRefresh(token.Identity{AccountID: "01HZZZZZZZZZZZZZZZZZZZZZZZ", Role: models.RoleAdmin}, 1)
		require.NoError(t, err)

		_, err = f.service.Refresh(ctx, orphan)
		assert.ErrorIs(t, err, ErrRefreshRejected)
	})

	t.Run("valid signature but not the stored token", func(t *testing.T) {
		current, err := f.store.CurrentVersion(ctx, f.admin.ID)
		require.NoError(t, err)
		forged, _, err := f.tokens.SignRefresh(token.Identity{AccountID: f.admin.ID, Role: models.RoleAdmin}, current)
		require.NoError(t, err)

		_, err = f.service.Refresh(ctx, forged)
		assert.ErrorIs(t, err, ErrRefreshRejected)
	})

	t.Run("after logout", func(t *testing.T) {
		f.service.Logout(ctx, issued.RefreshToken)

		_, err := f.service.Refresh(ctx, issued.RefreshToken)
		assert.ErrorIs(t, err, ErrRefreshRejected)
	})
}

func TestService_ConcurrentRefreshSingleWinner(t *testing.T) {
	f := newFixture(t)
	issued := f.login(t)

	const contenders = 5
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Refresh(context.Background(), issued.RefreshToken)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrRefreshRejected)
	}
	assert.Equal(t, 1, wins)
}

func TestService_LoginReplacesPreviousSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.login(t)
	second := f.login(t)

	_, err := f.service.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshRejected)

	_, err = f.service.Refresh(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestService_Logout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := f.login(t)

	assert.NotPanics(t, func() {
		f.service.Logout(ctx, "")
		f.service.Logout(ctx, "garbage")
		f.service.Logout(ctx, issued.AccessToken)
	})

	ok, err := f.store.VerifyCurrent(ctx, f.admin.ID, issued.RefreshToken)
	require.NoError(t, err)
	assert.True(t, ok, "unverifiable tokens must not clear the session")

	f.service.Logout(ctx, issued.RefreshToken)
	f.service.Logout(ctx, issued.RefreshToken)

	stored := testutils.ReloadAccount(t, f.db, f.admin.ID)
	assert.Empty(t, stored.RefreshTokenHash)
}

func TestService_Revoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := f.login(t)

	require.NoError(t, f.service.Revoke(ctx, f.admin.ID))

	_, err := f.service.Refresh(ctx, issued.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshRejected)

	assert.ErrorIs(t, f.service.Revoke(ctx, "missing"), account.ErrAccountNotFound)
}

func TestService_IssueCSRF(t *testing.T) {
	f := newFixture(t)

	first, err := f.service.IssueCSRF()
	require.NoError(t, err)
	second, err := f.service.IssueCSRF()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestService_SeedAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seeded, err := f.service.SeedAdmin(ctx, SeedInput{
		Name:     "Seeded Admin",
		Email:    "Admin@WebMitra.tech",
		Password: "Rotated@12345",
	})
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, seeded.ID)
	assert.Equal(t, models.RoleAdmin, seeded.Role)

	_, err = f.service.Login(ctx, LoginInput{Email: "admin@webmitra.tech", Password: "Rotated@12345"})
	require.NoError(t, err)

	fresh, err := f.service.SeedAdmin(ctx, SeedInput{Email: "owner@webmitra.tech", Password: "Owner@12345"})
	require.NoError(t, err)
	assert.NotEqual(t, f.admin.ID, fresh.ID)
	assert.Equal(t, "Admin", fresh.Name)

	_, err = f.service.SeedAdmin(ctx, SeedInput{Email: "", Password: "Owner@12345"})
	assert.Error(t, err)

	_, err = f.service.SeedAdmin(ctx, SeedInput{Email: "short@webmitra.tech", Password: "x"})
	assert.ErrorIs(t, err, auth.ErrPasswordTooShort)
}

func TestSeedInputFromConfig(t *testing.T) {
	in := SeedInputFromConfig(testutils.GetTestConfig())

	assert.Equal(t, "admin@webmitra.tech", in.Email)
	assert.Equal(t, "Admin@12345", in.Password)
}
