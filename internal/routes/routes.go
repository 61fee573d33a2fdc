package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pixvest/backend/internal/handlers"
	"github.com/pixvest/backend/internal/middleware"
)

// SetupRoutes wires all routes onto the router
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	paymentHandler *handlers.PaymentHandler,
	withdrawalHandler *handlers.WithdrawalHandler,
	yieldHandler *handlers.YieldHandler,
	webhookHandler *handlers.WebhookHandler,
	webhookLimiter *middleware.RateLimiter,
) {
	// Public webhook intake, rate limited per source IP
	router.POST("/webhooks/gateway", webhookLimiter.Middleware(), webhookHandler.HandleGatewayWebhook)

	auth := router.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(jwtSecret))
	{
		api.POST("/payments", paymentHandler.CreatePayment)
		api.GET("/ledger/statement", paymentHandler.GetStatement)

		api.POST("/withdrawals", withdrawalHandler.CreateWithdrawal)
		api.GET("/withdrawals", withdrawalHandler.ListWithdrawals)

		api.GET("/yield/windows", yieldHandler.ListWindows)
		api.POST("/yield/claim/:scheduleID", yieldHandler.Claim)

		admin := api.Group("/admin")
		admin.POST("/withdrawals/:id", withdrawalHandler.OperatorAction)
	}
}
