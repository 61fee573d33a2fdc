package database

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202508010001_initial_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&models.User{},
					&models.LedgerEntry{},
					&models.Payment{},
					&models.WebhookRecord{},
					&models.Withdrawal{},
					&models.YieldScheduleWindow{},
					&models.Operation{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"operations", "yield_schedule_windows", "withdrawals",
					"webhook_records", "payments", "ledger_entries", "users",
				)
			},
		},
		{
			ID: "202508010002_seed_yield_windows",
			Migrate: func(tx *gorm.DB) error {
				windows := []models.YieldScheduleWindow{
					{ID: uuid.New(), StartTime: "09:00", EndTime: "10:00", Percentage: decimal.RequireFromString("0.5"), OrderIndex: 1},
					{ID: uuid.New(), StartTime: "12:00", EndTime: "13:00", Percentage: decimal.RequireFromString("0.5"), OrderIndex: 2},
					{ID: uuid.New(), StartTime: "15:00", EndTime: "16:00", Percentage: decimal.RequireFromString("0.75"), OrderIndex: 3},
					{ID: uuid.New(), StartTime: "20:00", EndTime: "21:00", Percentage: decimal.RequireFromString("1.0"), OrderIndex: 4},
				}
				for _, w := range windows {
					if err := tx.Create(&w).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Where("1 = 1").Delete(&models.YieldScheduleWindow{}).Error
			},
		},
		{
			ID: "202509010001_ledger_reference_unique",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.LedgerEntry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropIndex(&models.LedgerEntry{}, "idx_ledger_user_reference")
			},
		},
	})

	return m.Migrate()
}
