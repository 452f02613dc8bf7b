package testutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens an in-memory sqlite database pinned to one connection,
// so concurrent callers in a test share the same schema.
func SetupTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		require.NoError(t, db.AutoMigrate(models...))
	}

	return db
}

func SetupAccountsDB(t *testing.T) *gorm.DB {
	return SetupTestDB(t, models.All()...)
}

func CreateAccount(t *testing.T, db *gorm.DB, fixture AccountFixture) *models.Account {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(fixture.Password), bcrypt.MinCost)
	require.NoError(t, err)

	account := &models.Account{
		Name:         fixture.Name,
		Email:        fixture.Email,
		PasswordHash: string(hash),
		Role:         models.Role(fixture.Role),
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func ReloadAccount(t *testing.T, db *gorm.DB, id string) *models.Account {
	t.Helper()

	var account models.Account
	require.NoError(t, db.First(&account, "id = ?", id).Error)
	return &account
}

func AssertErrorType(t *testing.T, expected error, actual error) {
	t.Helper()
	require.Error(t, actual)
	require.ErrorIs(t, actual, expected)
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// FlipLastChar flips the low bit of the final base64url character of a
// token, which only touches padding bits of a 32-byte signature.
func FlipLastChar(t *testing.T, token string) string {
	t.Helper()
	require.NotEmpty(t, token)
	i := strings.IndexByte(base64URLAlphabet, token[len(token)-1])
	require.GreaterOrEqual(t, i, 0, "token does not end in a base64url character")
	return token[:len(token)-1] + string(base64URLAlphabet[i^1])
}
