package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pixvest/backend/internal/middleware"
	"github.com/pixvest/backend/internal/models"
	"github.com/pixvest/backend/internal/services/ledger"
	"github.com/pixvest/backend/internal/services/payment"
)

// PaymentHandler exposes payment creation and the ledger statement
type PaymentHandler struct {
	paymentSvc *payment.PaymentService
	ledgerSvc  *ledger.LedgerService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentSvc *payment.PaymentService, ledgerSvc *ledger.LedgerService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, ledgerSvc: ledgerSvc}
}

type createPaymentRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Method      string `json:"method" binding:"required,oneof=pix crypto bonus"`
	Category    string `json:"category" binding:"required,oneof=deposit license"`
}

// CreatePayment handles POST /payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.paymentSvc.CreateCharge(c.Request.Context(), userID, req.AmountCents,
		models.PaymentMethod(req.Method), models.PaymentCategory(req.Category))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, p)
}

// GetStatement handles GET /ledger/statement
func (h *PaymentHandler) GetStatement(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	entries, total, err := h.ledgerSvc.Statement(userID, 1, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	balance, err := h.ledgerSvc.BalanceOf(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance": balance,
		"total":   total,
		"entries": entries,
	})
}
