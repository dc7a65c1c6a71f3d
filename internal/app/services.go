package app

import (
	"fmt"

	"gorm.io/gorm"

	dataagg "github.com/yungbote/catalog-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/observability"
	"github.com/yungbote/catalog-backend/internal/platform/idgen"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
	"github.com/yungbote/catalog-backend/internal/services"
)

type Services struct {
	Ledger     services.Ledger
	Mirror     *services.Mirror
	Categories services.CategoryService
	Items      services.ItemService
	Links      services.LinkService
	Reconcile  services.ReconcileService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, clients Clients, reposet Repos, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	ids := idgen.ObjectID{}
	mirror := services.NewMirror(log, dataagg.NewGormTxRunner(db), reposet.MirrorCategory, reposet.MirrorItem)

	ledger, err := selectLedger(cfg.Ledger, clients, reposet)
	if err != nil {
		return Services{}, err
	}

	agg, err := dataagg.NewAssociationAggregate(dataagg.AssociationDeps{
		BaseDeps: dataagg.BaseDeps{
			Log:   log,
			Hooks: dataagg.NewObservabilityHooks(metrics),
		},
		Categories: clients.Categories,
		Items:      clients.Items,
		IDs:        ids,
		Policy: domainagg.LinkPolicy{
			VerifyWrites:       cfg.Link.VerifyWrites,
			ConditionalUpdates: cfg.Link.ConditionalUpdates,
			ConditionalRetries: cfg.Link.ConditionalRetries,
			StoreTimeout:       cfg.Link.StoreTimeout.Std(),
		},
	})
	if err != nil {
		return Services{}, fmt.Errorf("init association aggregate: %w", err)
	}

	policy, err := reconcilePolicy(cfg.Reconcile)
	if err != nil {
		return Services{}, err
	}

	return Services{
		Ledger:     ledger,
		Mirror:     mirror,
		Categories: services.NewCategoryService(log, clients.Categories, mirror, ids),
		Items:      services.NewItemService(log, clients.Items, mirror, ids),
		Links:      services.NewLinkService(log, agg, ledger, mirror, ids, metrics),
		Reconcile:  services.NewReconcileService(log, clients.Categories, clients.Items, ledger, mirror, policy, metrics),
	}, nil
}

func selectLedger(cfg LedgerConfig, clients Clients, reposet Repos) (services.Ledger, error) {
	backend, err := resolveLedgerBackend(cfg)
	if err != nil {
		return nil, err
	}
	switch backend {
	case LedgerBackendRedis:
		if clients.RedisLedger == nil {
			return nil, fmt.Errorf("redis ledger not initialized")
		}
		return clients.RedisLedger, nil
	case LedgerBackendNone:
		return services.NewNoneLedger(), nil
	default:
		return reposet.Ledger, nil
	}
}

func reconcilePolicy(cfg ReconcileConfig) (services.ReconcilePolicy, error) {
	policy := services.ReconcilePolicy{
		Mode:          services.ReconcileReport,
		Dedupe:        cfg.Dedupe,
		PruneDangling: cfg.PruneDangling,
	}
	if cfg.Mode != "" {
		mode, err := services.ParseReconcileMode(cfg.Mode)
		if err != nil {
			return services.ReconcilePolicy{}, err
		}
		policy.Mode = mode
	}
	return policy, nil
}
