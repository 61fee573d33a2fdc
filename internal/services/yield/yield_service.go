package yield

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/models"
	"github.com/pixvest/backend/internal/services/ledger"
	"github.com/pixvest/backend/internal/services/market"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNoPrincipal      = errors.New("user has no invested principal")
	ErrAlreadyCollected = errors.New("yield already collected for this window today")
)

// MarketData is the market-data collaborator at its interface boundary
type MarketData interface {
	ListActiveAssets(ctx context.Context) ([]market.Asset, error)
	GetCandles(ctx context.Context, assetID, timeframe string) ([]market.Candle, error)
}

// YieldService credits scheduled yield. A window is claimable once per
// calendar day; the yield amount is a fixed percentage of the user's
// principal and never mutates the principal itself.
type YieldService struct {
	db     *gorm.DB
	ledger *ledger.LedgerService
	market MarketData
}

// NewYieldService creates a new yield service
func NewYieldService(db *gorm.DB, ledgerSvc *ledger.LedgerService, marketData MarketData) *YieldService {
	return &YieldService{db: db, ledger: ledgerSvc, market: marketData}
}

// Claim credits the yield for one schedule window, once per day. The
// cosmetic trade simulation runs after the credit and its failure never
// blocks the claim.
func (s *YieldService) Claim(ctx context.Context, userID, scheduleID uuid.UUID) (*models.LedgerEntry, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	if user.Principal.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNoPrincipal
	}

	var window models.YieldScheduleWindow
	if err := s.db.First(&window, "id = ?", scheduleID).Error; err != nil {
		return nil, fmt.Errorf("error finding schedule window: %w", err)
	}

	// The date-scoped reference is the real once-per-day guard: the ledger
	// carries a unique (user, reference) index, so of two concurrent claims
	// only one insert can succeed. The lookup is just the friendly fast path.
	refID := dailyReference(window, time.Now())
	collected, err := s.ledger.HasReference(userID, refID)
	if err != nil {
		return nil, err
	}
	if collected {
		return nil, ErrAlreadyCollected
	}

	amount := ledger.Round2(user.Principal.Mul(window.Percentage).Div(decimal.NewFromInt(100)))

	balanceBefore, err := s.ledger.BalanceOf(userID)
	if err != nil {
		return nil, err
	}

	refType := "yield_window"
	entry, err := s.ledger.Append(&models.LedgerEntry{
		UserID:        userID,
		Kind:          models.LedgerKindYield,
		Amount:        amount,
		Status:        models.LedgerStatusCompleted,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceBefore.Add(amount),
		ReferenceID:   &refID,
		ReferenceType: &refType,
		Description:   fmt.Sprintf("Yield window %s", window.Label()),
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyCollected
		}
		return nil, err
	}

	// Presentation-only side effect; failure is logged, never propagated.
	if err := s.simulateTrade(ctx, userID, window, amount); err != nil {
		log.Printf("Error recording simulated trade for user %s: %v", userID, err)
	}

	return entry, nil
}

// dailyReference builds the claim's ledger reference, scoped to the window
// and the calendar day.
func dailyReference(window models.YieldScheduleWindow, day time.Time) string {
	return fmt.Sprintf("yield:%s:%s", window.ID, day.Format("2006-01-02"))
}

// simulateTrade fabricates an asset pick with entry/exit prices around real
// candles and stores it in the operations log.
func (s *YieldService) simulateTrade(ctx context.Context, userID uuid.UUID, window models.YieldScheduleWindow, profit decimal.Decimal) error {
	if s.market == nil {
		return nil
	}

	assets, err := s.market.ListActiveAssets(ctx)
	if err != nil {
		return err
	}
	if len(assets) == 0 {
		return fmt.Errorf("no active assets available")
	}
	asset := assets[rand.Intn(len(assets))]

	entryPrice := decimal.NewFromFloat(1.0)
	exitPrice := decimal.NewFromFloat(1.0)
	candles, err := s.market.GetCandles(ctx, asset.ID, "1m")
	if err == nil && len(candles) > 0 {
		last := candles[len(candles)-1]
		entryPrice = decimal.NewFromFloat(last.Open)
		exitPrice = decimal.NewFromFloat(last.Close)
	}

	op := models.Operation{
		ID:         uuid.New(),
		UserID:     userID,
		ScheduleID: window.ID,
		Asset:      asset.Symbol,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Profit:     profit,
	}
	if err := s.db.Create(&op).Error; err != nil {
		return fmt.Errorf("error creating operation record: %w", err)
	}
	return nil
}

// Windows returns the configured schedule windows in display order
func (s *YieldService) Windows() ([]models.YieldScheduleWindow, error) {
	var windows []models.YieldScheduleWindow
	if err := s.db.Order("order_index ASC").Find(&windows).Error; err != nil {
		return nil, fmt.Errorf("error finding schedule windows: %w", err)
	}
	return windows, nil
}
