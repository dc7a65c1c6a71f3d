package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/catalog-backend/internal/data/db"
	apphttp "github.com/yungbote/catalog-backend/internal/http"
	"github.com/yungbote/catalog-backend/internal/observability"
	"github.com/yungbote/catalog-backend/internal/platform/envutil"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
	"github.com/yungbote/catalog-backend/internal/services"
)

type App struct {
	Log      *logger.Logger
	DB       *db.Service
	Router   *gin.Engine
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Services Services

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

func New() (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig()
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(log, cfg)
}

func NewWithConfig(log *logger.Logger, cfg Config) (*App, error) {
	otelCfg := observability.OtelConfigFromEnv()
	otelShutdown := observability.InitOTel(context.Background(), log, otelCfg)
	metrics := observability.Init(log)

	mirrorDB, err := db.Open(db.Config{Driver: cfg.Mirror.Driver, DSN: cfg.Mirror.DSN}, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init mirror database: %w", err)
	}
	if err := db.AutoMigrateAll(mirrorDB.DB()); err != nil {
		_ = mirrorDB.Close()
		log.Sync()
		return nil, fmt.Errorf("mirror automigrate: %w", err)
	}

	clients, err := wireClients(log, cfg, metrics)
	if err != nil {
		_ = mirrorDB.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(mirrorDB.DB(), log)

	serviceset, err := wireServices(mirrorDB.DB(), log, cfg, clients, reposet, metrics)
	if err != nil {
		clients.Close()
		_ = mirrorDB.Close()
		log.Sync()
		return nil, err
	}

	pingDB := func(ctx context.Context) error {
		sqlDB, err := mirrorDB.DB().DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	handlerset := wireHandlers(log, serviceset, healthChecks(clients, pingDB))
	router := wireRouter(log, cfg, otelCfg.ServiceName, metrics, handlerset)

	return &App{
		Log:          log,
		DB:           mirrorDB,
		Router:       router,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background work: metric collectors and, when configured,
// the interval reconciliation sweep.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Metrics != nil {
		a.Metrics.StartMirrorCollector(ctx, a.Log, a.DB.DB())
		if a.Clients.RedisLedger != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.RedisLedger)
		}
	}

	if every := a.Cfg.Reconcile.Interval.Std(); every > 0 {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.sweepLoop(ctx, every)
		}()
	}
}

func (a *App) sweepLoop(ctx context.Context, every time.Duration) {
	log := a.Log.With("worker", "reconcile_sweep")
	replay := a.Cfg.Reconcile.ReplayPending
	mode := a.Services.Reconcile.Policy().Mode
	log.Info("interval sweep started", "interval", every.String(), "mode", mode, "replay_pending", replay)
	if replay && mode == services.ReconcileReport {
		log.Warn("ledger replay repairs recorded pairs in both stores even in report mode; set reconcile.replay_pending=false to disable")
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		sweepOnce(ctx, log, a.Services.Reconcile, replay)
	}
}

func sweepOnce(ctx context.Context, log *logger.Logger, svc services.ReconcileService, replay bool) {
	if replay {
		if rep, err := svc.RepairPending(ctx, 0); err != nil {
			log.Warn("pending repair failed", "error", err)
		} else if rep.Processed > 0 {
			log.Info("pending repair done", "processed", rep.Processed, "resolved", rep.Resolved, "failed", rep.Failed)
		}
	}
	rep, err := svc.Sweep(ctx, "")
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn("sweep failed", "error", err)
		}
		return
	}
	log.Info("sweep done", "findings", len(rep.Findings), "repaired", rep.Repaired, "failed", rep.Failed)
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	srv := &apphttp.Server{Engine: a.Router}
	a.Log.Info("Server listening", "addr", a.Cfg.Server.Addr)
	return srv.Run(ctx, a.Cfg.Server.Addr, a.Cfg.Server.ShutdownTimeout.Std())
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.wg.Wait()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	a.Clients.Close()
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("mirror close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
