package withdrawal

import (
	"errors"
	"fmt"
	"log"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/models"
	"github.com/pixvest/backend/internal/services/ledger"
	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Policy names a withdrawal entry point. The platform historically grew two
// parallel flows with different minimums and penalty models; both are kept
// as distinct named policies until product decides which is authoritative.
type Policy struct {
	Name string
	// Minimum requested amount accepted by this entry point
	Minimum decimal.Decimal
	// HoldPrincipalShare moves the principal-withdrawal share into a
	// blocked bucket on the request instead of charging it as a fee
	HoldPrincipalShare bool
}

var (
	// WalletPolicy is the in-app wallet flow: low minimum, fee-only
	WalletPolicy = Policy{Name: "wallet", Minimum: decimal.NewFromInt(10)}
	// FormalPolicy is the formal withdrawal flow: high minimum, principal
	// share held in a blocked bucket
	FormalPolicy = Policy{Name: "formal", Minimum: decimal.NewFromInt(100), HoldPrincipalShare: true}
)

// Tax rates by source: spendable balance 5%, principal 25%
var (
	balanceTaxRate   = decimal.RequireFromString("0.05")
	principalTaxRate = decimal.RequireFromString("0.25")
)

var (
	ErrBelowMinimum      = errors.New("amount below withdrawal minimum")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoPrincipal       = errors.New("user has no invested principal")
	ErrInvalidPayoutKey  = errors.New("invalid payout key")
	ErrInvalidTOTP       = errors.New("invalid two-factor code")
)

// Notifier sends withdrawal status emails. A nil notifier disables
// notifications.
type Notifier interface {
	SendWithdrawalStatusEmail(to, username, status, amount string) error
}

// WithdrawalService processes withdrawal requests. Funds are debited
// synchronously at creation (pessimistic pattern); terminal transitions are
// operator-driven.
type WithdrawalService struct {
	db       *gorm.DB
	ledger   *ledger.LedgerService
	notifier Notifier
}

// NewWithdrawalService creates a new withdrawal service
func NewWithdrawalService(db *gorm.DB, ledgerSvc *ledger.LedgerService, notifier Notifier) *WithdrawalService {
	return &WithdrawalService{db: db, ledger: ledgerSvc, notifier: notifier}
}

func taxRateFor(source models.WithdrawalSource) decimal.Decimal {
	if source == models.WithdrawalSourceInvest {
		return principalTaxRate
	}
	return balanceTaxRate
}

// validatePayoutKey checks the payout destination shape. Crypto keys must
// be hex addresses; PIX keys only need to be non-empty (the gateway
// validates further).
func validatePayoutKey(keyType, keyValue string) error {
	if keyValue == "" {
		return ErrInvalidPayoutKey
	}
	if keyType == "crypto" && !ethcommon.IsHexAddress(keyValue) {
		return ErrInvalidPayoutKey
	}
	return nil
}

// Create validates and creates a withdrawal request under the given policy,
// debiting the source balance in the same transaction.
func (s *WithdrawalService) Create(userID uuid.UUID, source models.WithdrawalSource, amount decimal.Decimal, keyType, keyValue string, policy Policy, totpCode string) (*models.Withdrawal, error) {
	amount = ledger.Round2(amount)
	if amount.LessThan(policy.Minimum) {
		return nil, fmt.Errorf("%w: minimum for %s flow is %s", ErrBelowMinimum, policy.Name, policy.Minimum)
	}
	if err := validatePayoutKey(keyType, keyValue); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	if user.Principal.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNoPrincipal
	}
	if user.TwoFactorSecret != nil {
		if !totp.Validate(totpCode, *user.TwoFactorSecret) {
			return nil, ErrInvalidTOTP
		}
	}

	rate := taxRateFor(source)
	fee := ledger.Round2(amount.Mul(rate))
	net := ledger.Round2(amount.Sub(amount.Mul(rate)))

	withdrawal := &models.Withdrawal{
		ID:              uuid.New(),
		UserID:          userID,
		SourceType:      source,
		Policy:          policy.Name,
		RequestedAmount: amount,
		Fee:             fee,
		NetAmount:       net,
		Status:          models.WithdrawalStatusPending,
		KeyType:         keyType,
		KeyValue:        keyValue,
	}
	if policy.HoldPrincipalShare && source == models.WithdrawalSourceInvest {
		// Formal flow: the 25% share is held blocked on the request rather
		// than charged as a fee.
		withdrawal.BlockedAmount = fee
		withdrawal.Fee = decimal.Zero
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		switch source {
		case models.WithdrawalSourceBalance:
			// Touching the owner row takes its lock for the rest of the
			// transaction, serializing concurrent withdrawals per user so
			// the sum below always sees any committed debit. Two unlocked
			// transactions could otherwise both sum the same balance and
			// both append, overdrawing the account.
			res := tx.Model(&models.User{}).
				Where("id = ?", userID).
				Update("updated_at", time.Now())
			if res.Error != nil {
				return fmt.Errorf("error locking user row: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("user %s not found", userID)
			}

			balance, err := s.ledger.BalanceOfWithTx(tx, userID)
			if err != nil {
				return err
			}
			if balance.LessThan(amount) {
				return ErrInsufficientFunds
			}

			refID := withdrawal.ID.String()
			refType := "withdrawal"
			if _, err := s.ledger.AppendWithTx(tx, &models.LedgerEntry{
				UserID:        userID,
				Kind:          models.LedgerKindWithdrawal,
				Amount:        amount.Neg(),
				Status:        models.LedgerStatusCompleted,
				BalanceBefore: balance,
				BalanceAfter:  balance.Sub(amount),
				ReferenceID:   &refID,
				ReferenceType: &refType,
				Description:   fmt.Sprintf("Withdrawal request (%s flow)", policy.Name),
			}); err != nil {
				return err
			}

		case models.WithdrawalSourceInvest:
			// Conditional decrement doubles as the sufficient-funds check;
			// zero rows affected means the balance moved under us.
			res := tx.Model(&models.User{}).
				Where("id = ? AND principal >= ?", userID, amount).
				Update("principal", gorm.Expr("principal - ?", amount))
			if res.Error != nil {
				return fmt.Errorf("error debiting principal: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrInsufficientFunds
			}

		default:
			return fmt.Errorf("unknown withdrawal source %q", source)
		}

		if err := tx.Create(withdrawal).Error; err != nil {
			return fmt.Errorf("error creating withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return withdrawal, nil
}

// MarkProcessing moves a pending withdrawal to processing (operator action)
func (s *WithdrawalService) MarkProcessing(withdrawalID, operatorID uuid.UUID) error {
	return s.operatorTransition(withdrawalID, operatorID,
		[]models.WithdrawalStatus{models.WithdrawalStatusPending},
		models.WithdrawalStatusProcessing)
}

// Complete marks a withdrawal as paid out (operator action)
func (s *WithdrawalService) Complete(withdrawalID, operatorID uuid.UUID) error {
	if err := s.operatorTransition(withdrawalID, operatorID,
		[]models.WithdrawalStatus{models.WithdrawalStatusPending, models.WithdrawalStatusProcessing},
		models.WithdrawalStatusCompleted); err != nil {
		return err
	}
	s.notifyStatus(withdrawalID, "completed")
	return nil
}

// notifyStatus sends a best-effort status email; failures are only logged
func (s *WithdrawalService) notifyStatus(withdrawalID uuid.UUID, status string) {
	if s.notifier == nil {
		return
	}

	var withdrawal models.Withdrawal
	if err := s.db.First(&withdrawal, "id = ?", withdrawalID).Error; err != nil {
		log.Printf("Error loading withdrawal %s for notification: %v", withdrawalID, err)
		return
	}
	var user models.User
	if err := s.db.First(&user, "id = ?", withdrawal.UserID).Error; err != nil {
		log.Printf("Error loading user %s for notification: %v", withdrawal.UserID, err)
		return
	}

	if err := s.notifier.SendWithdrawalStatusEmail(user.Email, user.Username,
		status, withdrawal.NetAmount.StringFixed(2)); err != nil {
		log.Printf("Error sending withdrawal status email to %s: %v", user.Email, err)
	}
}

// Cancel cancels a withdrawal and refunds the debited source (operator action)
func (s *WithdrawalService) Cancel(withdrawalID, operatorID uuid.UUID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var withdrawal models.Withdrawal
		if err := tx.First(&withdrawal, "id = ?", withdrawalID).Error; err != nil {
			return fmt.Errorf("error finding withdrawal: %w", err)
		}

		now := time.Now()
		res := tx.Model(&models.Withdrawal{}).
			Where("id = ? AND status IN ?", withdrawalID,
				[]models.WithdrawalStatus{models.WithdrawalStatusPending, models.WithdrawalStatusProcessing}).
			Updates(map[string]interface{}{
				"status":       models.WithdrawalStatusCancelled,
				"processed_by": operatorID,
				"processed_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("error cancelling withdrawal: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			log.Printf("Withdrawal %s already in a terminal state, cancel is a no-op", withdrawalID)
			return nil
		}

		switch withdrawal.SourceType {
		case models.WithdrawalSourceBalance:
			refID := fmt.Sprintf("reversal:%s", withdrawal.ID)
			refType := "withdrawal_reversal"
			_, err := s.ledger.AppendWithTx(tx, &models.LedgerEntry{
				UserID:        withdrawal.UserID,
				Kind:          models.LedgerKindWithdrawal,
				Amount:        withdrawal.RequestedAmount,
				Status:        models.LedgerStatusCompleted,
				ReferenceID:   &refID,
				ReferenceType: &refType,
				Description:   "Withdrawal cancelled, funds returned",
			})
			return err

		case models.WithdrawalSourceInvest:
			return tx.Model(&models.User{}).
				Where("id = ?", withdrawal.UserID).
				Update("principal", gorm.Expr("principal + ?", withdrawal.RequestedAmount)).Error
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notifyStatus(withdrawalID, "cancelled")
	return nil
}

func (s *WithdrawalService) operatorTransition(withdrawalID, operatorID uuid.UUID, from []models.WithdrawalStatus, to models.WithdrawalStatus) error {
	now := time.Now()
	res := s.db.Model(&models.Withdrawal{}).
		Where("id = ? AND status IN ?", withdrawalID, from).
		Updates(map[string]interface{}{
			"status":       to,
			"processed_by": operatorID,
			"processed_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("error updating withdrawal status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		log.Printf("Withdrawal %s not transitioned to %d (already moved)", withdrawalID, to)
	}
	return nil
}

// ListByUser returns a user's withdrawals, newest first
func (s *WithdrawalService) ListByUser(userID uuid.UUID, page, pageSize int) ([]models.Withdrawal, int64, error) {
	var withdrawals []models.Withdrawal
	var total int64

	if err := s.db.Model(&models.Withdrawal{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting withdrawals: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&withdrawals).Error; err != nil {
		return nil, 0, fmt.Errorf("error finding withdrawals: %w", err)
	}

	return withdrawals, total, nil
}
