package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/username/kncbank/web/src/bankapi"
	"github.com/username/kncbank/web/src/config"
	"github.com/username/kncbank/web/src/database"
	"github.com/username/kncbank/web/src/handlers"
	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/models"
	"github.com/username/kncbank/web/src/security"
	"github.com/username/kncbank/web/src/services"
	"github.com/username/kncbank/web/src/session"
	"github.com/username/kncbank/web/src/snapshot"
	"github.com/username/kncbank/web/src/submitter"
)

const sessionPurgeInterval = 15 * time.Minute

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel, config.Cfg.LogFormat)
	logger.L.Info("KNC Bank web server starting...")

	if err := config.Cfg.Validate(); err != nil {
		logger.L.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	if err := database.InitDB(config.Cfg.DatabasePath); err != nil {
		logger.L.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	logger.L.Info("Database initialized successfully.")

	authService, err := security.NewAuthService(config.Cfg.SessionSecret, config.Cfg.SessionExpiry)
	if err != nil {
		logger.L.Error("Failed to initialize auth service", "error", err)
		os.Exit(1)
	}

	api, err := bankapi.NewClient(bankapi.Options{
		BaseURL:      config.Cfg.APIBaseURL,
		Timeout:      config.Cfg.APITimeout,
		RateLimit:    config.Cfg.APIRateLimit,
		ClientID:     config.Cfg.APIClientID,
		ClientSecret: config.Cfg.APIClientSecret,
		TokenURL:     config.Cfg.APITokenURL,
	})
	if err != nil {
		logger.L.Error("Failed to initialize account service client", "error", err)
		os.Exit(1)
	}
	logger.L.Info("Account service client initialized", "baseURL", config.Cfg.APIBaseURL)

	logger.L.Info("Initializing services and handlers...")
	snapshots := snapshot.New(api, config.Cfg.SnapshotTTL)
	emailService := services.NewEmailService()
	accounts := services.NewAccountService(api, snapshots, database.DB, services.AccountServiceConfig{
		Currency:       config.Cfg.CurrencyCode,
		DashboardLimit: config.Cfg.DashboardLimit,
		HistoryLimit:   config.Cfg.HistoryLimit,
	})

	txSubmitter := submitter.New(api, snapshots,
		submitter.WithCurrency(config.Cfg.CurrencyCode),
		submitter.WithJournal(submitter.SQLJournal{DB: database.DB}),
		submitter.WithNotifier(services.NewReceiptNotifier(api, emailService, config.Cfg.CurrencyCode)),
		submitter.WithDelay(models.KindWithdraw, config.Cfg.WithdrawRedirectDelay),
		submitter.WithDelay(models.KindDeposit, config.Cfg.DepositRedirectDelay),
		submitter.WithDelay(models.KindSendMoney, config.Cfg.SendMoneyRedirectDelay),
		submitter.WithDelay(models.KindPayBills, config.Cfg.PayBillsRedirectDelay),
	)
	workspaces := submitter.NewRegistry(txSubmitter, api, config.Cfg.SessionExpiry, config.Cfg.RecipientDebounce)

	guard := session.NewGuard(authService, database.DB, config.Cfg.SecureCookies)

	logger.L.Info("Configuring routes...")
	router := handlers.NewRouter(handlers.Router{
		Guard:         guard,
		CSRF:          handlers.NewCSRFHandler(authService, config.Cfg.SecureCookies),
		Users:         handlers.NewUserHandler(accounts, guard, workspaces, config.Cfg.LoginRedirectDelay, config.Cfg.SignupRedirectDelay),
		Accounts:      handlers.NewAccountHandler(accounts, guard),
		Transactions:  handlers.NewTransactionHandler(workspaces, snapshots, accounts, guard, config.Cfg.CurrencyCode),
		RateLimiter:   handlers.DefaultRateLimiter(),
		AllowedOrigin: config.Cfg.AllowedOrigin,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go guard.PurgeExpired(ctx, sessionPurgeInterval)

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: config.Cfg.APITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("Failed to start server", "error", err)
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		logger.L.Info("Shutdown signal received")
	}

	if err := shutdown(server); err != nil {
		logger.L.Error("Server shutdown incomplete", "error", err)
		os.Exit(1)
	}
	logger.L.Info("Server stopped gracefully.")
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var result *multierror.Error
	if err := server.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if database.DB != nil {
		if err := database.DB.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
