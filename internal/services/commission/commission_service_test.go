package commission

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/models"
	"github.com/pixvest/backend/internal/services/ledger"
	"github.com/shopspring/decimal"
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
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.LedgerEntry{}, &models.Payment{}))
	return db
}

func createUser(t *testing.T, db *gorm.DB, referredBy *uuid.UUID) *models.User {
	user := &models.User{
		ID:         uuid.New(),
		Email:        fmt.Sprintf("%s@test.local", uuid.NewString()[:8]),
		Username:     uuid.NewString()[:8],
		ReferralCode: uuid.NewString()[:12],
		ReferredBy:   referredBy,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func confirmedPayment(t *testing.T, db *gorm.DB, userID uuid.UUID, amountCents int64, category models.PaymentCategory) *models.Payment {
	p := &models.Payment{
		ID:               uuid.New(),
		UserID:           userID,
		Method:           models.PaymentMethodPix,
		Category:         category,
		AmountCents:      amountCents,
		Status:           models.PaymentStatusConfirmed,
		ClientIdentifier: uuid.NewString(),
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func TestProcessPaymentLicenseCascade(t *testing.T) {
	db := setupTestDB(t)
	ledgerSvc := ledger.NewLedgerService(db)
	svc := NewCommissionService(db, ledgerSvc, nil)

	// level3 <- level2 <- level1 <- payer
	level3 := createUser(t, db, nil)
	level2 := createUser(t, db, &level3.ID)
	level1 := createUser(t, db, &level2.ID)
	payer := createUser(t, db, &level1.ID)

	// R$500 license purchase
	p := confirmedPayment(t, db, payer.ID, 50000, models.PaymentCategoryLicense)
	require.NoError(t, svc.ProcessPayment(p))

	expected := map[uuid.UUID]string{
		level1.ID: "75.00", // 15%
		level2.ID: "25.00", // 5%
		level3.ID: "15.00", // 3%
	}
	for userID, want := range expected {
		balance, err := ledgerSvc.BalanceOf(userID)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString(want)), "user %s got %s, want %s", userID, balance, want)
	}

	var entries []models.LedgerEntry
	require.NoError(t, db.Where("kind = ?", models.LedgerKindReferral).Find(&entries).Error)
	assert.Len(t, entries, 3)
	for _, e := range entries {
		require.NotNil(t, e.Level)
		require.NotNil(t, e.ReferenceID)
		assert.Equal(t, fmt.Sprintf("bonus:%s:%d", p.ID, *e.Level), *e.ReferenceID)
	}

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, "id = ?", p.ID).Error)
	assert.True(t, reloaded.CommissionProcessed)
}

func TestProcessPaymentDepositUsesBonusKindAndRates(t *testing.T) {
	db := setupTestDB(t)
	ledgerSvc := ledger.NewLedgerService(db)
	svc := NewCommissionService(db, ledgerSvc, nil)

	referrer := createUser(t, db, nil)
	payer := createUser(t, db, &referrer.ID)

	// R$200 deposit, level 1 gets 5%
	p := confirmedPayment(t, db, payer.ID, 20000, models.PaymentCategoryDeposit)
	require.NoError(t, svc.ProcessPayment(p))

	var entries []models.LedgerEntry
	require.NoError(t, db.Where("user_id = ?", referrer.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LedgerKindBonus, entries[0].Kind)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("10.00")), "got %s", entries[0].Amount)
}

func TestProcessPaymentIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ledgerSvc := ledger.NewLedgerService(db)
	svc := NewCommissionService(db, ledgerSvc, nil)

	referrer := createUser(t, db, nil)
	payer := createUser(t, db, &referrer.ID)
	p := confirmedPayment(t, db, payer.ID, 50000, models.PaymentCategoryLicense)

	require.NoError(t, svc.ProcessPayment(p))
	require.NoError(t, svc.ProcessPayment(p))
	require.NoError(t, svc.ProcessPayment(p))

	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Where("user_id = ?", referrer.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "rerunning the cascade must not credit twice")
}

func TestProcessPaymentRejectsUnconfirmed(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCommissionService(db, ledger.NewLedgerService(db), nil)

	payer := createUser(t, db, nil)
	p := &models.Payment{
		ID:               uuid.New(),
		UserID:           payer.ID,
		Category:         models.PaymentCategoryDeposit,
		AmountCents:      10000,
		Status:           models.PaymentStatusPending,
		ClientIdentifier: uuid.NewString(),
	}
	require.NoError(t, db.Create(p).Error)

	assert.Error(t, svc.ProcessPayment(p))
}

func TestAncestorChainStopsOnCycle(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCommissionService(db, ledger.NewLedgerService(db), nil)

	a := createUser(t, db, nil)
	b := createUser(t, db, &a.ID)
	// Corrupt the forest: a now points back at b
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", a.ID).Update("referred_by", b.ID).Error)

	chain, err := svc.AncestorChain(db, b.ID, MaxChainDepth)
	require.NoError(t, err)
	assert.Len(t, chain, 1, "walk must terminate at the cycle")
	assert.Equal(t, a.ID, chain[0].ID)
}

func TestAncestorChainDepthBound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCommissionService(db, ledger.NewLedgerService(db), nil)

	root := createUser(t, db, nil)
	current := root
	for i := 0; i < 12; i++ {
		current = createUser(t, db, &current.ID)
	}

	chain, err := svc.AncestorChain(db, current.ID, MaxChainDepth)
	require.NoError(t, err)
	assert.Len(t, chain, MaxChainDepth)
}

func TestProcessBacklog(t *testing.T) {
	db := setupTestDB(t)
	ledgerSvc := ledger.NewLedgerService(db)
	svc := NewCommissionService(db, ledgerSvc, nil)

	referrer := createUser(t, db, nil)
	payer := createUser(t, db, &referrer.ID)
	confirmedPayment(t, db, payer.ID, 10000, models.PaymentCategoryLicense)
	confirmedPayment(t, db, payer.ID, 25000, models.PaymentCategoryLicense)

	processed, err := svc.ProcessBacklog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	var unprocessed int64
	require.NoError(t, db.Model(&models.Payment{}).Where("commission_processed = ?", false).Count(&unprocessed).Error)
	assert.Zero(t, unprocessed)
}
