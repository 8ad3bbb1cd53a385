package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	authhandler "github.com/UMHC/umhc-finance/internal/domain/auth/handler"
	authrepo "github.com/UMHC/umhc-finance/internal/domain/auth/repository"
	authservice "github.com/UMHC/umhc-finance/internal/domain/auth/service"
	"github.com/UMHC/umhc-finance/internal/domain/balance"
	balancehandler "github.com/UMHC/umhc-finance/internal/domain/balance/handler"
	"github.com/UMHC/umhc-finance/internal/domain/categorization"
	categorizationhandler "github.com/UMHC/umhc-finance/internal/domain/categorization/handler"
	"github.com/UMHC/umhc-finance/internal/domain/extraction"
	"github.com/UMHC/umhc-finance/internal/domain/finance"
	financehandler "github.com/UMHC/umhc-finance/internal/domain/finance/handler"
	importhandler "github.com/UMHC/umhc-finance/internal/domain/import/handler"
	importrepo "github.com/UMHC/umhc-finance/internal/domain/import/repository"
	importservice "github.com/UMHC/umhc-finance/internal/domain/import/service"
	"github.com/UMHC/umhc-finance/internal/domain/insights"
	insightshandler "github.com/UMHC/umhc-finance/internal/domain/insights/handler"
	"github.com/UMHC/umhc-finance/pkg/config"
	"github.com/UMHC/umhc-finance/pkg/cron"
	"github.com/UMHC/umhc-finance/pkg/db"
	"github.com/UMHC/umhc-finance/pkg/push"
	"github.com/UMHC/umhc-finance/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	AuthRepo           *authrepo.AuthRepository
	FinanceRepo        *finance.Repository
	ImportRepo         *importrepo.Repository
	CategorizationRepo *categorization.Repository
	InsightsRepo       *insights.Repository
	BalanceRepo        *balance.Repository

	// Services
	TokenManager          authservice.TokenManager
	AuthService           *authservice.AuthService
	CategorizationService *categorization.Service
	SearchIndex           *categorization.SearchIndex
	FinanceService        *finance.Service
	ImportService         *importservice.ImportService
	InsightsService       *insights.Service
	BalanceService        *balance.Service
	PushService           *push.Service
	ReportMailer          *insights.Mailer
	FileStorage           storage.Storage
	Scheduler             *cron.Scheduler

	// Handlers
	AuthHandler           *authhandler.AuthHandler
	FinanceHandler        *financehandler.FinanceHandler
	ImportHandler         *importhandler.ImportHandler
	InsightsHandler       *insightshandler.InsightsHandler
	BalanceHandler        *balancehandler.BalanceHandler
	CategorizationHandler *categorizationhandler.CategorizationHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.AuthRepo = authrepo.NewAuthRepository(d.DB.Pool)
	d.FinanceRepo = finance.NewRepository(d.DB.Pool)
	d.ImportRepo = importrepo.NewRepository(d.DB.Pool)
	d.CategorizationRepo = categorization.NewRepository(d.DB.Pool)
	d.InsightsRepo = insights.NewRepository(d.DB.Pool)
	d.BalanceRepo = balance.NewRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	cfg := d.Config

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}

	d.TokenManager = authservice.NewJWTTokenManager(
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour,
	)
	d.AuthService = authservice.NewAuthService(d.AuthRepo, d.TokenManager, d.Logger)

	// Categorization rules feed both the import pipeline and the dashboard
	d.CategorizationService = categorization.NewService(d.CategorizationRepo, d.Logger)

	// Search index lives next to the statement archive. A broken index on
	// disk falls back to in-memory so the dashboard still comes up.
	indexPath := filepath.Join(cfg.Storage.Dir, "index", "transactions.bleve")
	index, err := categorization.NewSearchIndex(indexPath)
	if err != nil {
		d.Logger.Warn("disk search index unavailable, using in-memory index",
			slog.String("path", indexPath),
			slog.Any("error", err),
		)
		index, err = categorization.NewSearchIndex("")
		if err != nil {
			return fmt.Errorf("failed to init search index: %w", err)
		}
	}
	d.SearchIndex = index

	d.FinanceService = finance.NewService(d.FinanceRepo, d.Logger).
		WithClassifier(d.CategorizationService).
		WithSearchIndex(d.SearchIndex)

	// Webhook notifications (committee Discord/Slack); disabled when no URL
	d.PushService = push.NewService(cfg.Push.WebhookURL, d.Logger)

	// Statement archive on local disk
	fileStorage, err := storage.New(&storage.Config{Dir: cfg.Storage.Dir})
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	extractCfg := extraction.DefaultConfig()
	extractCfg.MaxPages = cfg.Extraction.MaxPages
	extractCfg.MaxAmount = decimal.NewFromInt(int64(cfg.Extraction.MaxAmount))
	extractCfg.MaxFutureYears = cfg.Extraction.MaxFutureYears

	d.ImportService = importservice.NewImportService(d.ImportRepo, d.FinanceRepo, d.Logger).
		WithStorage(d.FileStorage).
		WithClassifier(d.CategorizationService).
		WithNotifier(d.PushService).
		WithExtractionConfig(extractCfg)

	// Monthly treasurer report; mail is optional, the report endpoint is not
	d.ReportMailer = insights.NewMailer(cfg.Mail.ResendAPIKey, cfg.Mail.FromEmail, cfg.Mail.ReportEmail, d.Logger)
	d.InsightsService = insights.NewService(d.InsightsRepo, d.Logger).
		WithMailer(d.ReportMailer).
		WithNotifier(d.PushService)

	d.BalanceService = balance.NewService(d.BalanceRepo, d.Logger)

	d.Scheduler = cron.NewScheduler(
		d.InsightsService,
		&searchReindexer{finance: d.FinanceService},
		d.Logger,
	).WithSessionPruner(d.AuthService)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.AuthHandler = authhandler.NewAuthHandler(d.AuthService, d.Logger)
	d.FinanceHandler = financehandler.NewFinanceHandler(d.FinanceService, d.Logger)
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Config.Storage.MaxUploadMB, d.Logger)
	d.InsightsHandler = insightshandler.NewInsightsHandler(d.InsightsService, d.Logger)
	d.BalanceHandler = balancehandler.NewBalanceHandler(d.BalanceService, d.Logger)
	d.CategorizationHandler = categorizationhandler.NewCategorizationHandler(d.CategorizationService, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.SearchIndex != nil {
		if err := d.SearchIndex.Close(); err != nil {
			d.Logger.Warn("search index close failed", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
