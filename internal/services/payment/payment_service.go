package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/models"
	"github.com/pixvest/backend/internal/services/ledger"
	"github.com/pixvest/backend/internal/services/payment/providers/pixgate"
	"github.com/pixvest/backend/internal/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentTTL is how long a payment may stay PENDING before it is
// force-cancelled without a gateway call.
const PaymentTTL = 24 * time.Hour

// interRecordDelay throttles batch loops to avoid overloading the
// database; it is not a correctness mechanism.
const interRecordDelay = 500 * time.Millisecond

// Gateway is the payment gateway collaborator at its interface boundary
type Gateway interface {
	CreateCharge(ctx context.Context, req pixgate.ChargeRequest) (*pixgate.ChargeResponse, error)
	GetStatus(ctx context.Context, externalID, clientIdentifier string) (string, error)
}

// Gateway-side transaction statuses
const (
	GatewayStatusCompleted = "COMPLETED"
	GatewayStatusFailed    = "FAILED"
	GatewayStatusRefunded  = "REFUNDED"
)

// licenseTiers maps a paid amount in cents to the purchased license tier.
// Unmapped amounts are logged and left unprocessed, never guessed.
var licenseTiers = map[int64]int{
	10000:  1,
	25000:  2,
	50000:  3,
	100000: 4,
	250000: 5,
}

// ErrUnmappedLicenseAmount is returned when a license payment amount has no
// tier mapping; the settlement transaction rolls back and the payment stays
// APPROVED for manual review.
var ErrUnmappedLicenseAmount = errors.New("license amount has no tier mapping")

// PaymentService owns the payment lifecycle:
// PENDING -> {APPROVED, CANCELLED} -> {CONFIRMED, CANCELLED}.
// The APPROVED->CONFIRMED conditional update is the sole double-processing
// guard; only the worker whose update affects one row applies ledger effects.
type PaymentService struct {
	db      *gorm.DB
	ledger  *ledger.LedgerService
	gateway Gateway
}

// NewPaymentService creates a new payment service
func NewPaymentService(db *gorm.DB, ledgerSvc *ledger.LedgerService, gateway Gateway) *PaymentService {
	return &PaymentService{db: db, ledger: ledgerSvc, gateway: gateway}
}

// CreateCharge creates a deposit or license payment. If every gateway
// attempt fails the payment is still stored PENDING and flagged for manual
// processing, so the user-facing request does not fail; backoffice has to
// settle it by hand. Flagged for product review, preserved deliberately.
func (s *PaymentService) CreateCharge(ctx context.Context, userID uuid.UUID, amountCents int64, method models.PaymentMethod, category models.PaymentCategory) (*models.Payment, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("invalid payment amount: %d", amountCents)
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("error finding user: %w", err)
	}

	payment := &models.Payment{
		ID:               uuid.New(),
		UserID:           userID,
		Method:           method,
		Category:         category,
		AmountCents:      amountCents,
		Status:           models.PaymentStatusPending,
		ClientIdentifier: utils.GenerateReference("PIX"),
	}

	resp, err := s.gateway.CreateCharge(ctx, pixgate.ChargeRequest{
		AmountCents:      amountCents,
		Description:      fmt.Sprintf("%s via %s", category, method),
		ClientIdentifier: payment.ClientIdentifier,
		PayerName:        user.Username,
		PayerEmail:       user.Email,
	})
	if err != nil {
		log.Printf("Gateway charge creation failed for user %s, falling back to manual processing: %v", userID, err)
		payment.Metadata = models.JSON{"manual_processing": true, "gateway_error": err.Error()}
	} else {
		payment.ExternalTxID = resp.ExternalID
		payment.PayCode = resp.PayCode
		payment.QRCode = resp.QRCode
	}

	if err := s.db.Create(payment).Error; err != nil {
		return nil, fmt.Errorf("error creating payment: %w", err)
	}

	return payment, nil
}

// PollPending reconciles PENDING payments against the gateway. Payments
// older than the TTL are force-cancelled without a gateway call. The
// gateway is queried before any transaction is opened.
func (s *PaymentService) PollPending(ctx context.Context) (int, error) {
	var payments []models.Payment
	if err := s.db.Where("status = ?", models.PaymentStatusPending).
		Order("created_at ASC").Limit(100).Find(&payments).Error; err != nil {
		return 0, fmt.Errorf("error finding pending payments: %w", err)
	}

	processed := 0
	for i, p := range payments {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			time.Sleep(interRecordDelay)
		}

		if isManualProcessing(&p) {
			// Manual-fallback records are owned by backoffice: nothing to
			// poll, and the TTL must not silently destroy them after the
			// user was told the charge went through.
			if time.Since(p.CreatedAt) > PaymentTTL {
				log.Printf("Payment %s flagged manual_processing is past the TTL and still pending, needs backoffice review", p.ID)
			}
			continue
		}

		if time.Since(p.CreatedAt) > PaymentTTL {
			if err := s.transition(p.ID, models.PaymentStatusPending, models.PaymentStatusCancelled); err != nil {
				log.Printf("Error cancelling stale payment %s: %v", p.ID, err)
				continue
			}
			processed++
			continue
		}

		status, err := s.gateway.GetStatus(ctx, p.ExternalTxID, p.ClientIdentifier)
		if err != nil {
			log.Printf("Error querying gateway for payment %s: %v", p.ID, err)
			continue
		}

		switch status {
		case GatewayStatusCompleted:
			err = s.transition(p.ID, models.PaymentStatusPending, models.PaymentStatusApproved)
		case GatewayStatusFailed, GatewayStatusRefunded:
			err = s.transition(p.ID, models.PaymentStatusPending, models.PaymentStatusCancelled)
		default:
			continue
		}
		if err != nil {
			log.Printf("Error transitioning payment %s: %v", p.ID, err)
			continue
		}
		processed++
	}

	return processed, nil
}

// isManualProcessing reports whether a payment is a degraded-mode record
// created while the gateway was down.
func isManualProcessing(p *models.Payment) bool {
	if p.Metadata != nil {
		if flagged, ok := p.Metadata["manual_processing"].(bool); ok && flagged {
			return true
		}
	}
	return p.ExternalTxID == ""
}

// transition performs a conditional status update; affecting zero rows is a
// concurrent-worker no-op, not an error.
func (s *PaymentService) transition(paymentID uuid.UUID, from, to models.PaymentStatus) error {
	res := s.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, from).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("error updating payment status: %w", res.Error)
	}
	return nil
}

// SettleApproved confirms every APPROVED payment. Safe to run from
// overlapping schedulers: Confirm is a no-op for all but one worker.
func (s *PaymentService) SettleApproved(ctx context.Context) (int, error) {
	var payments []models.Payment
	if err := s.db.Where("status = ?", models.PaymentStatusApproved).
		Order("created_at ASC").Limit(100).Find(&payments).Error; err != nil {
		return 0, fmt.Errorf("error finding approved payments: %w", err)
	}

	settled := 0
	for i, p := range payments {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			time.Sleep(interRecordDelay)
		}
		if err := s.Confirm(p.ID); err != nil {
			log.Printf("Error settling payment %s: %v", p.ID, err)
			continue
		}
		settled++
	}

	return settled, nil
}

// Confirm transitions an APPROVED payment to CONFIRMED and applies its
// ledger effects, all inside one transaction. The conditional update is the
// at-most-once guard: given N concurrent attempts, exactly one affects a
// row and proceeds; the others return nil without side effects.
func (s *PaymentService) Confirm(paymentID uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", paymentID, models.PaymentStatusApproved).
			Update("status", models.PaymentStatusConfirmed)
		if res.Error != nil {
			return fmt.Errorf("error confirming payment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var payment models.Payment
		if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
			return fmt.Errorf("error reloading payment: %w", err)
		}

		return s.applyEffects(tx, &payment)
	})
}

// ConfirmFromWebhook is the webhook-driven shortcut: a TRANSACTION_PAID
// event confirms a still-PENDING payment directly, inside one transaction
// that also checks for an existing ledger entry as defense in depth against
// duplicate deliveries.
func (s *PaymentService) ConfirmFromWebhook(externalTxID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Where("external_tx_id = ?", externalTxID).First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("no payment for external transaction %s", externalTxID)
			}
			return fmt.Errorf("error finding payment: %w", err)
		}

		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Update("status", models.PaymentStatusConfirmed)
		if res.Error != nil {
			return fmt.Errorf("error confirming payment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		exists, err := s.ledger.HasAnyReferenceWithTx(tx, payment.ID.String())
		if err != nil {
			return err
		}
		if exists {
			log.Printf("Ledger entry already exists for payment %s, skipping effects", payment.ID)
			return nil
		}

		payment.Status = models.PaymentStatusConfirmed
		return s.applyEffects(tx, &payment)
	})
}

// CancelFromWebhook cancels a payment on a gateway failure/refund event
func (s *PaymentService) CancelFromWebhook(externalTxID string) error {
	res := s.db.Model(&models.Payment{}).
		Where("external_tx_id = ? AND status IN ?", externalTxID,
			[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusApproved}).
		Update("status", models.PaymentStatusCancelled)
	if res.Error != nil {
		return fmt.Errorf("error cancelling payment: %w", res.Error)
	}
	return nil
}

// applyEffects applies the confirmed payment's ledger effects inside tx:
// deposits credit principal, license purchases activate a tier. Both append
// a ledger entry carrying the payment id as reference.
func (s *PaymentService) applyEffects(tx *gorm.DB, payment *models.Payment) error {
	amountReais := ledger.Round2(decimal.NewFromInt(payment.AmountCents).Div(decimal.NewFromInt(100)))
	refID := payment.ID.String()
	refType := "payment"

	switch payment.Category {
	case models.PaymentCategoryDeposit:
		res := tx.Model(&models.User{}).
			Where("id = ?", payment.UserID).
			Update("principal", gorm.Expr("principal + ?", amountReais))
		if res.Error != nil {
			return fmt.Errorf("error crediting principal: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %s not found for deposit credit", payment.UserID)
		}

		_, err := s.ledger.AppendWithTx(tx, &models.LedgerEntry{
			UserID:        payment.UserID,
			Kind:          models.LedgerKindDeposit,
			Amount:        amountReais,
			Status:        models.LedgerStatusCompleted,
			ReferenceID:   &refID,
			ReferenceType: &refType,
			Description:   fmt.Sprintf("Deposit via %s", payment.Method),
		})
		return err

	case models.PaymentCategoryLicense:
		tier, ok := licenseTiers[payment.AmountCents]
		if !ok {
			log.Printf("License payment %s has unmapped amount %d cents, leaving unprocessed", payment.ID, payment.AmountCents)
			return ErrUnmappedLicenseAmount
		}

		if err := tx.Model(&models.User{}).Where("id = ?", payment.UserID).Update("tier", tier).Error; err != nil {
			return fmt.Errorf("error activating tier: %w", err)
		}

		_, err := s.ledger.AppendWithTx(tx, &models.LedgerEntry{
			UserID:        payment.UserID,
			Kind:          models.LedgerKindInvestment,
			Amount:        amountReais,
			Status:        models.LedgerStatusCompleted,
			ReferenceID:   &refID,
			ReferenceType: &refType,
			Description:   fmt.Sprintf("License tier %d activation", tier),
		})
		return err

	default:
		return fmt.Errorf("unknown payment category %q", payment.Category)
	}
}

// GetPayment returns a payment by id
func (s *PaymentService) GetPayment(paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.First(&payment, "id = ?", paymentID).Error; err != nil {
		return nil, fmt.Errorf("error finding payment: %w", err)
	}
	return &payment, nil
}
