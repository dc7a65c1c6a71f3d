package app

import (
	"context"

	"github.com/gin-gonic/gin"

	apphttp "github.com/yungbote/catalog-backend/internal/http"
	httpH "github.com/yungbote/catalog-backend/internal/http/handlers"
	"github.com/yungbote/catalog-backend/internal/observability"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Category  *httpH.CategoryHandler
	Item      *httpH.ItemHandler
	Link      *httpH.LinkHandler
	Reconcile *httpH.ReconcileHandler
}

func wireHandlers(log *logger.Logger, services Services, checks map[string]httpH.HealthCheck) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(checks),
		Category:  httpH.NewCategoryHandler(log, services.Categories),
		Item:      httpH.NewItemHandler(log, services.Items),
		Link:      httpH.NewLinkHandler(log, services.Links),
		Reconcile: httpH.NewReconcileHandler(log, services.Reconcile),
	}
}

func healthChecks(clients Clients, pingDB func(ctx context.Context) error) map[string]httpH.HealthCheck {
	checks := map[string]httpH.HealthCheck{
		"store":  clients.Store.Ping,
		"mirror": pingDB,
	}
	if clients.RedisLedger != nil {
		checks["ledger"] = clients.RedisLedger.Ping
	}
	return checks
}

func wireRouter(log *logger.Logger, cfg Config, serviceName string, metrics *observability.Metrics, handlers Handlers) *gin.Engine {
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		ServiceName:      serviceName,
		CORSOrigins:      cfg.Server.CORSOrigins,
		HealthHandler:    handlers.Health,
		CategoryHandler:  handlers.Category,
		ItemHandler:      handlers.Item,
		LinkHandler:      handlers.Link,
		ReconcileHandler: handlers.Reconcile,
	})
}
