package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/catalog-backend/internal/http/handlers"
	httpMW "github.com/yungbote/catalog-backend/internal/http/middleware"
	"github.com/yungbote/catalog-backend/internal/observability"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	CategoryHandler  *httpH.CategoryHandler
	ItemHandler      *httpH.ItemHandler
	LinkHandler      *httpH.LinkHandler
	ReconcileHandler *httpH.ReconcileHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Categories
		if cfg.CategoryHandler != nil {
			api.POST("/pro5/category", cfg.CategoryHandler.Create)
			api.GET("/pro5/category", cfg.CategoryHandler.List)
			api.GET("/pro5/category/:id", cfg.CategoryHandler.Get)
			api.PUT("/pro5/category/:id", cfg.CategoryHandler.Update)
			api.DELETE("/pro5/category/:id", cfg.CategoryHandler.Delete)
			api.PATCH("/categories/:id", cfg.CategoryHandler.PartialUpdate)
		}

		// Items
		if cfg.ItemHandler != nil {
			api.POST("/pro5/item", cfg.ItemHandler.Create)
			api.GET("/pro5/item", cfg.ItemHandler.List)
			api.GET("/pro5/item/:id", cfg.ItemHandler.Get)
			api.PUT("/pro5/item/:id", cfg.ItemHandler.Update)
			api.DELETE("/pro5/item/:id", cfg.ItemHandler.Delete)
			api.PATCH("/items/:id", cfg.ItemHandler.PartialUpdate)
		}

		// Links
		if cfg.LinkHandler != nil {
			api.POST("/cat/:catId/item", cfg.LinkHandler.AttachItem)
			api.POST("/pro5/item/:categoryId/category", cfg.LinkHandler.AddItem)
		}

		// Reconciliation
		if cfg.ReconcileHandler != nil {
			api.POST("/reconcile", cfg.ReconcileHandler.Sweep)
			api.GET("/reconcile/pending", cfg.ReconcileHandler.ListPending)
			api.POST("/reconcile/pending", cfg.ReconcileHandler.RepairPending)
		}
	}

	return r
}
