package user

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:test-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func TestRegister(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)

	u, err := svc.Register("Alice@Example.COM", "alice", "s3cretpass", "")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email, "email is normalized")
	assert.NotEmpty(t, u.ReferralCode)
	assert.Nil(t, u.ReferredBy)
	assert.NotEqual(t, "s3cretpass", u.PasswordHash)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)

	_, err := svc.Register("alice@example.com", "alice", "s3cretpass", "")
	require.NoError(t, err)

	_, err = svc.Register("ALICE@example.com", "alice2", "s3cretpass", "")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterWithReferralCode(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)

	referrer, err := svc.Register("alice@example.com", "alice", "s3cretpass", "")
	require.NoError(t, err)

	referred, err := svc.Register("bob@example.com", "bob", "s3cretpass", referrer.ReferralCode)
	require.NoError(t, err)
	require.NotNil(t, referred.ReferredBy)
	assert.Equal(t, referrer.ID, *referred.ReferredBy)
}

func TestRegisterUnknownReferralCode(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)

	_, err := svc.Register("bob@example.com", "bob", "s3cretpass", "no-such-code")
	assert.ErrorIs(t, err, ErrUnknownReferralCode)
}

func TestReferralCodesAreUnique(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)

	// "Same Name" and "same-name" slug to the same base code
	first, err := svc.Register("a@example.com", "Same Name", "s3cretpass", "")
	require.NoError(t, err)
	second, err := svc.Register("b@example.com", "same-name", "s3cretpass", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ReferralCode, second.ReferralCode)
}

func TestAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)

	registered, err := svc.Register("alice@example.com", "alice", "s3cretpass", "")
	require.NoError(t, err)

	u, err := svc.Authenticate("alice@example.com", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)

	_, err = svc.Authenticate("alice@example.com", "wrongpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate("nobody@example.com", "s3cretpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
