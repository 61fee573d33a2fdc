package yield

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/models"
	"github.com/pixvest/backend/internal/services/ledger"
	"github.com/pixvest/backend/internal/services/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeMarket struct{}

func (f *fakeMarket) ListActiveAssets(ctx context.Context) ([]market.Asset, error) {
	return []market.Asset{{ID: "btc", Symbol: "BTC/USDT"}}, nil
}

func (f *fakeMarket) GetCandles(ctx context.Context, assetID, timeframe string) ([]market.Candle, error) {
	return []market.Candle{{Open: 65000.10, Close: 65120.55}}, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:test-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.LedgerEntry{},
		&models.YieldScheduleWindow{}, &models.Operation{}))
	return db
}

func createUser(t *testing.T, db *gorm.DB, principal string) *models.User {
	user := &models.User{
		ID:        uuid.New(),
		Email:     fmt.Sprintf("%s@test.local", uuid.NewString()[:8]),
		Username:  uuid.NewString()[:8],
		Principal: decimal.RequireFromString(principal),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createWindow(t *testing.T, db *gorm.DB, start, end, pct string) *models.YieldScheduleWindow {
	w := &models.YieldScheduleWindow{
		ID:         uuid.New(),
		StartTime:  start,
		EndTime:    end,
		Percentage: decimal.RequireFromString(pct),
	}
	require.NoError(t, db.Create(w).Error)
	return w
}

func TestClaimCreditsPercentageOfPrincipal(t *testing.T) {
	db := setupTestDB(t)
	ledgerSvc := ledger.NewLedgerService(db)
	svc := NewYieldService(db, ledgerSvc, &fakeMarket{})
	user := createUser(t, db, "1000.00")
	window := createWindow(t, db, "09:00", "10:00", "0.5")

	entry, err := svc.Claim(context.Background(), user.ID, window.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerKindYield, entry.Kind)
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("5.00")), "got %s", entry.Amount)

	balance, err := ledgerSvc.BalanceOf(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("5.00")))

	// Principal is untouched by yield
	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	assert.True(t, reloaded.Principal.Equal(decimal.RequireFromString("1000.00")))
}

func TestClaimOncePerDayPerWindow(t *testing.T) {
	db := setupTestDB(t)
	ledgerSvc := ledger.NewLedgerService(db)
	svc := NewYieldService(db, ledgerSvc, nil)
	user := createUser(t, db, "1000.00")
	window := createWindow(t, db, "09:00", "10:00", "0.5")

	_, err := svc.Claim(context.Background(), user.ID, window.ID)
	require.NoError(t, err)

	_, err = svc.Claim(context.Background(), user.ID, window.ID)
	assert.ErrorIs(t, err, ErrAlreadyCollected)

	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestClaimGuardIgnoresDescriptionText(t *testing.T) {
	db := setupTestDB(t)
	ledgerSvc := ledger.NewLedgerService(db)
	svc := NewYieldService(db, ledgerSvc, nil)
	user := createUser(t, db, "1000.00")
	window := createWindow(t, db, "09:00", "10:00", "0.5")

	// A prior credit carrying today's reference blocks the claim no matter
	// how the entry was described.
	refID := dailyReference(*window, time.Now())
	_, err := ledgerSvc.Append(&models.LedgerEntry{
		UserID:      user.ID,
		Kind:        models.LedgerKindYield,
		Amount:      decimal.RequireFromString("5.00"),
		Status:      models.LedgerStatusCompleted,
		Description: "migrated legacy credit",
		ReferenceID: &refID,
	})
	require.NoError(t, err)

	_, err = svc.Claim(context.Background(), user.ID, window.ID)
	assert.ErrorIs(t, err, ErrAlreadyCollected)

	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestClaimDifferentWindowsSameDay(t *testing.T) {
	db := setupTestDB(t)
	ledgerSvc := ledger.NewLedgerService(db)
	svc := NewYieldService(db, ledgerSvc, nil)
	user := createUser(t, db, "1000.00")
	morning := createWindow(t, db, "09:00", "10:00", "0.5")
	evening := createWindow(t, db, "20:00", "21:00", "1")

	_, err := svc.Claim(context.Background(), user.ID, morning.ID)
	require.NoError(t, err)
	_, err = svc.Claim(context.Background(), user.ID, evening.ID)
	require.NoError(t, err)

	balance, err := ledgerSvc.BalanceOf(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("15.00")), "got %s", balance)
}

func TestClaimRequiresPrincipal(t *testing.T) {
	db := setupTestDB(t)
	svc := NewYieldService(db, ledger.NewLedgerService(db), nil)
	user := createUser(t, db, "0")
	window := createWindow(t, db, "09:00", "10:00", "0.5")

	_, err := svc.Claim(context.Background(), user.ID, window.ID)
	assert.ErrorIs(t, err, ErrNoPrincipal)
}

func TestClaimUnknownWindow(t *testing.T) {
	db := setupTestDB(t)
	svc := NewYieldService(db, ledger.NewLedgerService(db), nil)
	user := createUser(t, db, "1000.00")

	_, err := svc.Claim(context.Background(), user.ID, uuid.New())
	assert.Error(t, err)
}

func TestClaimRecordsSimulatedTrade(t *testing.T) {
	db := setupTestDB(t)
	svc := NewYieldService(db, ledger.NewLedgerService(db), &fakeMarket{})
	user := createUser(t, db, "1000.00")
	window := createWindow(t, db, "09:00", "10:00", "0.5")

	_, err := svc.Claim(context.Background(), user.ID, window.ID)
	require.NoError(t, err)

	var op models.Operation
	require.NoError(t, db.First(&op, "user_id = ?", user.ID).Error)
	assert.Equal(t, "BTC/USDT", op.Asset)
	assert.True(t, op.Profit.Equal(decimal.RequireFromString("5.00")))
}
