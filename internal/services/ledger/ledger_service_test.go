package ledger

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:test-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.LedgerEntry{}))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB) *models.User {
	user := &models.User{
		ID:       uuid.New(),
		Email:        fmt.Sprintf("%s@test.local", uuid.NewString()[:8]),
		Username:     uuid.NewString()[:8],
		ReferralCode: uuid.NewString()[:12],
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestBalanceOfSumsOnlySpendableCompletedEntries(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	user := createTestUser(t, db)

	entries := []models.LedgerEntry{
		{UserID: user.ID, Kind: models.LedgerKindYield, Amount: decimal.RequireFromString("10.50"), Status: models.LedgerStatusCompleted},
		{UserID: user.ID, Kind: models.LedgerKindReferral, Amount: decimal.RequireFromString("5.25"), Status: models.LedgerStatusCompleted},
		{UserID: user.ID, Kind: models.LedgerKindBonus, Amount: decimal.RequireFromString("2.00"), Status: models.LedgerStatusCompleted},
		{UserID: user.ID, Kind: models.LedgerKindWithdrawal, Amount: decimal.RequireFromString("-3.00"), Status: models.LedgerStatusCompleted},
		// Principal movements never count towards the spendable balance
		{UserID: user.ID, Kind: models.LedgerKindDeposit, Amount: decimal.RequireFromString("100.00"), Status: models.LedgerStatusCompleted},
		{UserID: user.ID, Kind: models.LedgerKindInvestment, Amount: decimal.RequireFromString("250.00"), Status: models.LedgerStatusCompleted},
		// Non-completed entries never count
		{UserID: user.ID, Kind: models.LedgerKindYield, Amount: decimal.RequireFromString("99.00"), Status: models.LedgerStatusPending},
		{UserID: user.ID, Kind: models.LedgerKindBonus, Amount: decimal.RequireFromString("50.00"), Status: models.LedgerStatusCancelled},
	}
	for i := range entries {
		_, err := svc.Append(&entries[i])
		require.NoError(t, err)
	}

	balance, err := svc.BalanceOf(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("14.75")), "got %s", balance)
}

func TestBalanceOfEmptyLedgerIsZero(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	user := createTestUser(t, db)

	balance, err := svc.BalanceOf(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestAppendRoundsAmountHalfUp(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	user := createTestUser(t, db)

	entry, err := svc.Append(&models.LedgerEntry{
		UserID: user.ID,
		Kind:   models.LedgerKindYield,
		Amount: decimal.RequireFromString("10.005"),
		Status: models.LedgerStatusCompleted,
	})
	require.NoError(t, err)
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("10.01")), "got %s", entry.Amount)
}

func TestRound2(t *testing.T) {
	cases := map[string]string{
		"10.004": "10.00",
		"10.005": "10.01",
		"10.01":  "10.01",
		"-2.505": "-2.51",
	}
	for in, want := range cases {
		got := Round2(decimal.RequireFromString(in))
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "Round2(%s) = %s, want %s", in, got, want)
	}
}

func TestHasReference(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	user := createTestUser(t, db)
	other := createTestUser(t, db)

	refID := "bonus:abc:1"
	_, err := svc.Append(&models.LedgerEntry{
		UserID:      user.ID,
		Kind:        models.LedgerKindReferral,
		Amount:      decimal.RequireFromString("1.00"),
		Status:      models.LedgerStatusCompleted,
		ReferenceID: &refID,
	})
	require.NoError(t, err)

	exists, err := svc.HasReference(user.ID, refID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.HasReference(other.ID, refID)
	require.NoError(t, err)
	assert.False(t, exists, "reference check is scoped per user")

	exists, err = svc.HasAnyReferenceWithTx(db, refID)
	require.NoError(t, err)
	assert.True(t, exists, "any-owner check ignores scope")
}

func TestAppendRejectsDuplicateUserReference(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	user := createTestUser(t, db)
	other := createTestUser(t, db)

	refID := "yield:window-1:2026-09-01"
	_, err := svc.Append(&models.LedgerEntry{
		UserID:      user.ID,
		Kind:        models.LedgerKindYield,
		Amount:      decimal.RequireFromString("5.00"),
		Status:      models.LedgerStatusCompleted,
		ReferenceID: &refID,
	})
	require.NoError(t, err)

	// Same user, same reference: the insert itself is the guard
	_, err = svc.Append(&models.LedgerEntry{
		UserID:      user.ID,
		Kind:        models.LedgerKindYield,
		Amount:      decimal.RequireFromString("5.00"),
		Status:      models.LedgerStatusCompleted,
		ReferenceID: &refID,
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Another user may carry the same reference
	_, err = svc.Append(&models.LedgerEntry{
		UserID:      other.ID,
		Kind:        models.LedgerKindYield,
		Amount:      decimal.RequireFromString("5.00"),
		Status:      models.LedgerStatusCompleted,
		ReferenceID: &refID,
	})
	assert.NoError(t, err)

	// Entries without a reference are exempt from the unique pair
	for i := 0; i < 2; i++ {
		_, err = svc.Append(&models.LedgerEntry{
			UserID: user.ID,
			Kind:   models.LedgerKindBonus,
			Amount: decimal.RequireFromString("1.00"),
			Status: models.LedgerStatusCompleted,
		})
		require.NoError(t, err)
	}
}

func TestStatementPagination(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	user := createTestUser(t, db)

	for i := 0; i < 5; i++ {
		_, err := svc.Append(&models.LedgerEntry{
			UserID: user.ID,
			Kind:   models.LedgerKindYield,
			Amount: decimal.NewFromInt(int64(i + 1)),
			Status: models.LedgerStatusCompleted,
		})
		require.NoError(t, err)
	}

	entries, total, err := svc.Statement(user.ID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, entries, 3)

	entries, _, err = svc.Statement(user.ID, 2, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
