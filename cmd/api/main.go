package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"spendwise/internal/app"
	"spendwise/internal/config"
	"spendwise/internal/handlers"
	"spendwise/internal/jobs"
	"spendwise/internal/logger"
	"spendwise/internal/middleware"
	"spendwise/internal/validator"

	_ "spendwise/internal/docs" // Import swagger docs
)

// @title           Spendwise API
// @version         1.0
// @description     Spendwise tracks accounts and transactions, materializes recurring entries, alerts on budgets and emails monthly reports.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 15 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	// Without a broker the work items live here, so this process consumes them.
	if a.InProcessQueue() {
		go func() {
			if err := a.ConsumeRecurring(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("recurring consumer stopped", "error", err)
			}
		}()
	}

	validator.Register()
	router := newRouter(a)

	srv := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      router,
		ReadTimeout:  appConfig.RequestTimeout,
		WriteTimeout: appConfig.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Spendwise backend server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(a *app.App) *gin.Engine {
	cfg := a.Config

	accountHandler := handlers.NewAccountHandler(a.Accounts, a.Audit)
	transactionHandler := handlers.NewTransactionHandler(a.Transactions, a.Audit)
	budgetHandler := handlers.NewBudgetHandler(a.Budgets, a.Audit)
	reportHandler := handlers.NewReportHandler(a.Reports)
	pipelineHandler := handlers.NewPipelineHandler(a.Recurring, a.BudgetAlerts, a.Reports)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Pipeline routes (external job runner)
	pipeline := v1.Group("/pipeline/jobs")
	pipeline.Use(middleware.PipelineAuthMiddleware(cfg.PipelineAPIKey))
	pipeline.POST("/"+jobs.Recurring, pipelineHandler.RunRecurring)
	pipeline.POST("/"+jobs.BudgetAlerts, pipelineHandler.RunBudgetAlerts)
	pipeline.POST("/"+jobs.MonthlyReports, pipelineHandler.RunMonthlyReports)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(middleware.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer), a.Users))

	accounts := protected.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.GetUserAccounts)
	accounts.GET("/:id", accountHandler.GetAccountByID)
	accounts.PUT("/:id/default", accountHandler.SetDefaultAccount)
	accounts.DELETE("/:id", accountHandler.DeleteAccount)
	accounts.GET("/:id/transactions", transactionHandler.GetAccountTransactions)

	createLimit := middleware.RateLimit(jobs.PerHour(cfg.CreateTxPerHour, cfg.CreateTxBurst))
	transactions := protected.Group("/transactions")
	transactions.POST("", createLimit, transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetUserTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.POST("/bulk-delete", transactionHandler.BulkDeleteTransactions)

	budget := protected.Group("/budget")
	budget.GET("", budgetHandler.GetBudget)
	budget.PUT("", budgetHandler.UpsertBudget)
	budget.GET("/progress", budgetHandler.GetBudgetProgress)

	protected.GET("/reports/monthly", reportHandler.GetMonthlyStats)

	return router
}
