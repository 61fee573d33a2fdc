package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/pixvest/backend/internal/config"
	"github.com/pixvest/backend/internal/database"
	"github.com/pixvest/backend/internal/handlers"
	"github.com/pixvest/backend/internal/jobs"
	"github.com/pixvest/backend/internal/middleware"
	"github.com/pixvest/backend/internal/queue"
	"github.com/pixvest/backend/internal/routes"
	"github.com/pixvest/backend/internal/services/commission"
	"github.com/pixvest/backend/internal/services/email"
	"github.com/pixvest/backend/internal/services/ledger"
	"github.com/pixvest/backend/internal/services/market"
	"github.com/pixvest/backend/internal/services/payment"
	"github.com/pixvest/backend/internal/services/payment/providers/pixgate"
	"github.com/pixvest/backend/internal/services/user"
	"github.com/pixvest/backend/internal/services/withdrawal"
	"github.com/pixvest/backend/internal/services/yield"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Printf("Warning: redis unreachable, queue jobs will fail until it recovers: %v", err)
	}

	// Services
	emailSvc := email.NewEmailService(cfg.SMTP)
	ledgerSvc := ledger.NewLedgerService(db)
	commissionSvc := commission.NewCommissionService(db, ledgerSvc, emailSvc)

	gateway := pixgate.NewPixGateProvider(pixgate.PixGateConfig{
		APIKey:      cfg.Gateway.APIKey,
		APISecret:   cfg.Gateway.APISecret,
		BaseURL:     cfg.Gateway.BaseURL,
		PostbackURL: cfg.Gateway.PostbackURL,
		Timeout:     time.Duration(cfg.Gateway.TimeoutSecs) * time.Second,
	})
	paymentSvc := payment.NewPaymentService(db, ledgerSvc, gateway)

	marketClient := market.NewMarketClient(cfg.Market.BaseURL, time.Duration(cfg.Market.TimeoutSecs)*time.Second)
	yieldSvc := yield.NewYieldService(db, ledgerSvc, marketClient)
	withdrawalSvc := withdrawal.NewWithdrawalService(db, ledgerSvc, emailSvc)
	userSvc := user.NewUserService(db)

	// Queue workers
	redisQueue := queue.NewRedisQueue(redisClient)
	processor := queue.NewProcessor(redisQueue, 5)
	webhookJob := jobs.RegisterWebhookJobHandlers(processor, db, paymentSvc)
	processor.Start()

	// Recurring jobs
	scheduler := jobs.NewScheduler()
	replayJob := jobs.NewWebhookReplayJob(db, webhookJob)
	if err := scheduler.RegisterRecurring(paymentSvc, commissionSvc, replayJob); err != nil {
		log.Fatalf("Failed to register recurring jobs: %v", err)
	}
	scheduler.Start()

	// HTTP
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authHandler := handlers.NewAuthHandler(userSvc, cfg.JWT)
	paymentHandler := handlers.NewPaymentHandler(paymentSvc, ledgerSvc)
	withdrawalHandler := handlers.NewWithdrawalHandler(withdrawalSvc)
	yieldHandler := handlers.NewYieldHandler(yieldSvc)
	webhookHandler := handlers.NewWebhookHandler(db, redisQueue)
	webhookLimiter := middleware.NewRateLimiter(10, 20)

	routes.SetupRoutes(router, cfg.JWT.Secret,
		authHandler, paymentHandler, withdrawalHandler, yieldHandler,
		webhookHandler, webhookLimiter)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	scheduler.Stop()
	processor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
