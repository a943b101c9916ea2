package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/echo-statements/internal/domain/balance"
	balancehandler "github.com/FACorreiaa/echo-statements/internal/domain/balance/handler"
	importhandler "github.com/FACorreiaa/echo-statements/internal/domain/import/handler"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/parser"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/patterns"
	importrepo "github.com/FACorreiaa/echo-statements/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/echo-statements/internal/domain/import/service"

	"github.com/FACorreiaa/echo-statements/pkg/config"
	"github.com/FACorreiaa/echo-statements/pkg/cron"
	"github.com/FACorreiaa/echo-statements/pkg/db"
	"github.com/FACorreiaa/echo-statements/pkg/metrics"
	"github.com/FACorreiaa/echo-statements/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB
	Logger   *slog.Logger
	Registry *prometheus.Registry

	// Metrics
	ImportMetrics *metrics.Import
	RPCMetrics    *metrics.RPC

	// Repositories
	ImportRepo  importrepo.ImportRepository
	BalanceRepo *balance.Repository

	// Services
	Engine         *parser.Engine
	ImportService  *importservice.ImportService
	BalanceService *balance.Service
	FileStorage    storage.Storage
	Scheduler      *cron.Scheduler

	// Handlers
	ImportHandler  *importhandler.ImportHandler
	BalanceHandler *balancehandler.BalanceHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics()

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// Initialize services
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Initialize handlers
	deps.initHandlers()

	if err := deps.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

func (d *Dependencies) initMetrics() {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.ImportMetrics = metrics.NewImport(d.Registry)
	d.RPCMetrics = metrics.NewRPC(d.Registry)
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

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.ImportRepo = importrepo.NewPostgresImportRepository(d.DB.Pool)
	d.BalanceRepo = balance.NewRepository(d.DB.Pool)

	fileStorage, err := storage.NewLocalStorage(d.Config.Storage.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	// One engine serves every request; it holds no mutable state.
	d.Engine = parser.NewEngine(patterns.Default(),
		parser.WithLogger(d.Logger),
		parser.WithScanLimit(d.Config.Import.ScanLimit),
		parser.WithSampleRows(d.Config.Import.SampleRows),
	)

	// Balance service keeps snapshots in step with approvals
	d.BalanceService = balance.NewService(d.BalanceRepo, balance.NewMemoryCache(), d.Logger)

	d.ImportService = importservice.NewImportService(d.Engine, d.ImportRepo, d.Logger).
		WithStorage(d.FileStorage).
		WithBalanceUpdater(d.BalanceService).
		WithMetrics(d.ImportMetrics).
		WithWorkers(d.Config.Import.Workers)

	d.Scheduler = cron.NewScheduler(d.ImportService, d.Config.Import.SweepSchedule, d.Config.Import.PendingTTL, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all RPC handlers
func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, importhandler.Limits{
		MaxFileBytes: d.Config.Import.MaxFileBytes,
		MaxFiles:     d.Config.Import.MaxFiles,
	}, d.Logger)
	d.BalanceHandler = balancehandler.NewBalanceHandler(d.BalanceService)

	d.Logger.Info("handlers initialized")
}

// Cleanup releases resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("dependencies cleaned up")
}
