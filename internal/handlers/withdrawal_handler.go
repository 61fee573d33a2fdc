package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/middleware"
	"github.com/pixvest/backend/internal/models"
	"github.com/pixvest/backend/internal/services/withdrawal"
	"github.com/shopspring/decimal"
)

// WithdrawalHandler exposes withdrawal creation and operator transitions
type WithdrawalHandler struct {
	withdrawalSvc *withdrawal.WithdrawalService
}

// NewWithdrawalHandler creates a new withdrawal handler
func NewWithdrawalHandler(svc *withdrawal.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: svc}
}

type createWithdrawalRequest struct {
	Source   string          `json:"source" binding:"required,oneof=balance balance_invest"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	KeyType  string          `json:"key_type" binding:"required,oneof=pix crypto"`
	KeyValue string          `json:"key_value" binding:"required"`
	Policy   string          `json:"policy" binding:"omitempty,oneof=wallet formal"`
	TOTPCode string          `json:"totp_code"`
}

// CreateWithdrawal handles POST /withdrawals
func (h *WithdrawalHandler) CreateWithdrawal(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req createWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policy := withdrawal.FormalPolicy
	if req.Policy == "wallet" {
		policy = withdrawal.WalletPolicy
	}

	w, err := h.withdrawalSvc.Create(userID, models.WithdrawalSource(req.Source),
		req.Amount, req.KeyType, req.KeyValue, policy, req.TOTPCode)
	if err != nil {
		switch {
		case errors.Is(err, withdrawal.ErrBelowMinimum),
			errors.Is(err, withdrawal.ErrInvalidPayoutKey),
			errors.Is(err, withdrawal.ErrNoPrincipal),
			errors.Is(err, withdrawal.ErrInvalidTOTP):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, withdrawal.ErrInsufficientFunds):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, w)
}

// ListWithdrawals handles GET /withdrawals
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	withdrawals, total, err := h.withdrawalSvc.ListByUser(userID, 1, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "withdrawals": withdrawals})
}

type operatorActionRequest struct {
	Action string `json:"action" binding:"required,oneof=processing complete cancel"`
}

// OperatorAction handles POST /admin/withdrawals/:id
func (h *WithdrawalHandler) OperatorAction(c *gin.Context) {
	operatorID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	withdrawalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid withdrawal id"})
		return
	}

	var req operatorActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Action {
	case "processing":
		err = h.withdrawalSvc.MarkProcessing(withdrawalID, operatorID)
	case "complete":
		err = h.withdrawalSvc.Complete(withdrawalID, operatorID)
	case "cancel":
		err = h.withdrawalSvc.Cancel(withdrawalID, operatorID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
