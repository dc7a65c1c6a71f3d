package app

import (
	"fmt"

	"github.com/yungbote/catalog-backend/internal/clients/redis"
	"github.com/yungbote/catalog-backend/internal/clients/restheart"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/observability"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

type Clients struct {
	Store      *restheart.Client
	Categories catalog.CategoryStore
	Items      catalog.ItemStore
	// RedisLedger is nil unless the ledger backend is redis.
	RedisLedger *redis.Ledger
}

func wireClients(log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	opts := restheart.Options{
		BaseURL:     cfg.Store.BaseURL,
		Database:    cfg.Store.Database,
		Username:    cfg.Store.Username,
		Password:    cfg.Store.Password,
		Timeout:     cfg.Store.Timeout.Std(),
		ReadRetries: cfg.Store.ReadRetries,
		PageSize:    cfg.Store.PageSize,
	}
	if metrics != nil {
		opts.Observer = metrics
	}
	store, err := restheart.New(opts, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init restheart client: %w", err)
	}

	out := Clients{
		Store:      store,
		Categories: restheart.NewCategoryStore(store, cfg.Store.CategoryCollection),
		Items:      restheart.NewItemStore(store, cfg.Store.ItemCollection),
	}

	backend, err := resolveLedgerBackend(cfg.Ledger)
	if err != nil {
		return Clients{}, err
	}
	if backend == LedgerBackendRedis {
		l, err := redis.NewLedger(redis.Options{
			Addr:      cfg.Ledger.Redis.Addr,
			Password:  cfg.Ledger.Redis.Password,
			DB:        cfg.Ledger.Redis.DB,
			KeyPrefix: cfg.Ledger.Redis.KeyPrefix,
		}, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis ledger: %w", err)
		}
		out.RedisLedger = l
	}
	return out, nil
}

func (c Clients) Close() {
	if c.RedisLedger != nil {
		_ = c.RedisLedger.Close()
	}
}
