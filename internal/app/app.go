// Package app wires configuration, storage, and services into a single
// shared core used by cmd/tally-server and the test harnesses.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/services/balance"
	"github.com/tallyhq/tally/internal/services/cube"
	"github.com/tallyhq/tally/internal/services/ledger"
	"github.com/tallyhq/tally/internal/services/reconcile"
	"github.com/tallyhq/tally/internal/services/trend"
	"github.com/tallyhq/tally/internal/storage/memory"
	"github.com/tallyhq/tally/internal/storage/surrealdb"
)

// App holds all initialized services and storage.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	BalanceService   interfaces.BalanceService
	ReconcileService interfaces.ReconcileService
	CubeService      interfaces.CubeService
	TrendService     interfaces.TrendService
	LedgerService    interfaces.LedgerService
	StartupTime      time.Time

	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, and all services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Load configuration - check provided path, TALLY_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("TALLY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "tally.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tally.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := newStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Check schema version — purge cube rows on mismatch
	ctx := context.Background()
	checkSchemaVersion(ctx, storageManager, logger)

	cubeService := cube.NewService(storageManager, config.Cube, logger)
	balanceService := balance.NewService(storageManager, logger)
	reconcileService := reconcile.NewService(storageManager, balanceService, cubeService, logger)
	trendService := trend.NewService(storageManager, logger)
	ledgerService := ledger.NewService(storageManager, cubeService, logger)

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		BalanceService:   balanceService,
		ReconcileService: reconcileService,
		CubeService:      cubeService,
		TrendService:     trendService,
		LedgerService:    ledgerService,
		StartupTime:      startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// newStorageManager selects the storage backend from the configured address.
// The literal address "memory" runs everything in-process, which is what the
// integration tests and local development without SurrealDB use.
func newStorageManager(logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	if config.Storage.Address == "memory" {
		return memory.NewManager(logger), nil
	}
	return surrealdb.NewManager(logger, config)
}

// Close releases all resources held by the App.
// Shutdown order: cancel scheduler, close storage.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}

// StartRecomputeScheduler launches the background goroutine that drains the
// deferred cube recompute queue.
func (a *App) StartRecomputeScheduler() {
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	a.schedulerCancel = schedulerCancel
	go startRecomputeScheduler(schedulerCtx, a.CubeService, a.Logger, a.Config.Cube.GetRecomputeInterval())
}
