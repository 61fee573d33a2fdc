package commission

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/models"
	"github.com/pixvest/backend/internal/services/ledger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxChainDepth is how far up the referral chain a payment can cascade
const MaxChainDepth = 10

// licenseRates and depositRates are the per-level commission percentages.
// Levels beyond the table length receive nothing.
var (
	licenseRates = []decimal.Decimal{
		decimal.RequireFromString("15"),
		decimal.RequireFromString("5"),
		decimal.RequireFromString("3"),
		decimal.RequireFromString("2"),
		decimal.RequireFromString("1"),
		decimal.RequireFromString("1"),
		decimal.RequireFromString("1"),
		decimal.RequireFromString("1"),
		decimal.RequireFromString("0.5"),
		decimal.RequireFromString("0.5"),
	}
	depositRates = []decimal.Decimal{
		decimal.RequireFromString("5"),
		decimal.RequireFromString("2"),
		decimal.RequireFromString("1"),
		decimal.RequireFromString("1"),
		decimal.RequireFromString("1"),
	}
)

// Notifier is the email collaborator at its interface boundary
type Notifier interface {
	SendCommissionEmail(to, username, amount string, level int) error
}

// CommissionService distributes multi-level referral commissions for
// confirmed payments. Each (payment, level) pair is credited at most once,
// guarded by a ledger reference id; the payment itself is marked processed
// by a conditional update so overlapping scheduler runs cannot double-run
// the cascade.
type CommissionService struct {
	db       *gorm.DB
	ledger   *ledger.LedgerService
	notifier Notifier
}

// NewCommissionService creates a new commission service
func NewCommissionService(db *gorm.DB, ledgerSvc *ledger.LedgerService, notifier Notifier) *CommissionService {
	return &CommissionService{db: db, ledger: ledgerSvc, notifier: notifier}
}

// commissionReference builds the idempotency key for one (payment, level) credit
func commissionReference(paymentID uuid.UUID, level int) string {
	return fmt.Sprintf("bonus:%s:%d", paymentID, level)
}

// AncestorChain walks the referred_by chain starting at userID, collecting
// up to maxDepth ancestors. The walk is iterative with an explicit depth
// counter and a visited set, so a corrupt cycle terminates.
func (s *CommissionService) AncestorChain(tx *gorm.DB, userID uuid.UUID, maxDepth int) ([]models.User, error) {
	var chain []models.User
	visited := map[uuid.UUID]bool{userID: true}

	var current models.User
	if err := tx.First(&current, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("error finding user: %w", err)
	}

	for depth := 0; depth < maxDepth; depth++ {
		if current.ReferredBy == nil {
			break
		}
		parentID := *current.ReferredBy
		if visited[parentID] {
			log.Printf("Referral chain cycle detected at user %s, stopping walk", parentID)
			break
		}
		visited[parentID] = true

		var parent models.User
		if err := tx.First(&parent, "id = ?", parentID).Error; err != nil {
			return nil, fmt.Errorf("error finding referrer %s: %w", parentID, err)
		}
		chain = append(chain, parent)
		current = parent
	}

	return chain, nil
}

// ratesFor returns the percentage table for a payment category
func ratesFor(category models.PaymentCategory) []decimal.Decimal {
	if category == models.PaymentCategoryLicense {
		return licenseRates
	}
	return depositRates
}

// kindFor returns the ledger kind credited for a payment category
func kindFor(category models.PaymentCategory) models.LedgerKind {
	if category == models.PaymentCategoryLicense {
		return models.LedgerKindReferral
	}
	return models.LedgerKindBonus
}

// ProcessPayment runs the commission cascade for a confirmed payment.
// A single-ancestor failure is logged and does not abort the other levels;
// the payment is only marked processed after the full pass, so a partial
// run is retried by the next scheduler tick.
func (s *CommissionService) ProcessPayment(payment *models.Payment) error {
	if payment.Status != models.PaymentStatusConfirmed {
		return fmt.Errorf("payment %s is not confirmed", payment.ID)
	}

	chain, err := s.AncestorChain(s.db, payment.UserID, MaxChainDepth)
	if err != nil {
		return fmt.Errorf("error walking referral chain: %w", err)
	}

	rates := ratesFor(payment.Category)
	kind := kindFor(payment.Category)
	amountReais := decimal.NewFromInt(payment.AmountCents).Div(decimal.NewFromInt(100))

	var failed int
	for i, ancestor := range chain {
		level := i + 1
		if level > len(rates) {
			break
		}

		bonus := ledger.Round2(amountReais.Mul(rates[level-1]).Div(decimal.NewFromInt(100)))
		if bonus.LessThanOrEqual(decimal.Zero) {
			continue
		}

		if err := s.creditAncestor(payment, ancestor, level, kind, bonus); err != nil {
			log.Printf("Error crediting level %d commission for payment %s: %v", level, payment.ID, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d commission credits failed for payment %s", failed, payment.ID)
	}

	// Conditional mark-processed is the guard against concurrent scheduler
	// runs. Affecting zero rows means another worker finished first; that is
	// a no-op, not an error.
	res := s.db.Model(&models.Payment{}).
		Where("id = ? AND commission_processed = ?", payment.ID, false).
		Update("commission_processed", true)
	if res.Error != nil {
		return fmt.Errorf("error marking payment commission processed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		log.Printf("Payment %s commission already marked processed", payment.ID)
	}

	return nil
}

// creditAncestor credits one ancestor at one level, at most once per payment
func (s *CommissionService) creditAncestor(payment *models.Payment, ancestor models.User, level int, kind models.LedgerKind, bonus decimal.Decimal) error {
	refID := commissionReference(payment.ID, level)

	exists, err := s.ledger.HasReference(ancestor.ID, refID)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("Commission %s already credited, skipping", refID)
		return nil
	}

	balanceBefore, err := s.ledger.BalanceOf(ancestor.ID)
	if err != nil {
		return err
	}

	refType := "payment_commission"
	lvl := level
	entry := &models.LedgerEntry{
		UserID:        ancestor.ID,
		Kind:          kind,
		Amount:        bonus,
		Status:        models.LedgerStatusCompleted,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceBefore.Add(bonus),
		ReferenceID:   &refID,
		ReferenceType: &refType,
		Level:         &lvl,
		Description:   fmt.Sprintf("Commission level %d on %s payment", level, payment.Category),
		Metadata: models.JSON{
			"payment_id": payment.ID.String(),
			"payer_id":   payment.UserID.String(),
		},
	}

	if _, err := s.ledger.Append(entry); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.SendCommissionEmail(ancestor.Email, ancestor.Username, bonus.StringFixed(2), level); err != nil {
			log.Printf("Error notifying referrer %s: %v", ancestor.ID, err)
		}
	}

	return nil
}

// ProcessBacklog runs the cascade for every confirmed payment not yet
// marked processed. Returns the number of payments handled.
func (s *CommissionService) ProcessBacklog(ctx context.Context) (int, error) {
	var payments []models.Payment
	if err := s.db.Where("status = ? AND commission_processed = ?", models.PaymentStatusConfirmed, false).
		Order("created_at ASC").Limit(100).Find(&payments).Error; err != nil {
		return 0, fmt.Errorf("error finding unprocessed payments: %w", err)
	}

	processed := 0
	for _, p := range payments {
		if ctx.Err() != nil {
			break
		}
		payment := p
		if err := s.ProcessPayment(&payment); err != nil {
			log.Printf("Error processing commissions for payment %s: %v", payment.ID, err)
			continue
		}
		processed++
	}

	return processed, nil
}
