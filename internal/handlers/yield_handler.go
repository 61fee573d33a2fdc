package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/middleware"
	"github.com/pixvest/backend/internal/services/yield"
)

// YieldHandler exposes yield window listing and claims
type YieldHandler struct {
	yieldSvc *yield.YieldService
}

// NewYieldHandler creates a new yield handler
func NewYieldHandler(svc *yield.YieldService) *YieldHandler {
	return &YieldHandler{yieldSvc: svc}
}

// ListWindows handles GET /yield/windows
func (h *YieldHandler) ListWindows(c *gin.Context) {
	windows, err := h.yieldSvc.Windows()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"windows": windows})
}

// Claim handles POST /yield/claim/:scheduleID
func (h *YieldHandler) Claim(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	scheduleID, err := uuid.Parse(c.Param("scheduleID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	entry, err := h.yieldSvc.Claim(c.Request.Context(), userID, scheduleID)
	if err != nil {
		switch {
		case errors.Is(err, yield.ErrAlreadyCollected):
			c.JSON(http.StatusConflict, gin.H{"error": "already collected today"})
		case errors.Is(err, yield.ErrNoPrincipal):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, entry)
}
