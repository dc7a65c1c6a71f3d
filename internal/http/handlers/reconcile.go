package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/catalog-backend/internal/http/response"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
	"github.com/yungbote/catalog-backend/internal/services"
)

const defaultPendingLimit = 100

type ReconcileHandler struct {
	log       *logger.Logger
	reconcile services.ReconcileService
}

func NewReconcileHandler(log *logger.Logger, reconcile services.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{
		log:       log.With("handler", "ReconcileHandler"),
		reconcile: reconcile,
	}
}

// Sweep handles POST /api/reconcile?mode=report|repair.
func (h *ReconcileHandler) Sweep(c *gin.Context) {
	var mode services.ReconcileMode
	if raw := strings.TrimSpace(c.Query("mode")); raw != "" {
		m, err := services.ParseReconcileMode(raw)
		if err != nil {
			respondBadRequest(c, err)
			return
		}
		mode = m
	}
	rep, err := h.reconcile.Sweep(c.Request.Context(), mode)
	if err != nil {
		respondServiceError(c, h.log, "reconcile.sweep", err)
		return
	}
	response.RespondOK(c, rep)
}

// ListPending handles GET /api/reconcile/pending?limit=n.
func (h *ReconcileHandler) ListPending(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	recs, err := h.reconcile.Pending(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, h.log, "reconcile.pending", err)
		return
	}
	response.RespondOK(c, gin.H{"pending": recs})
}

// RepairPending handles POST /api/reconcile/pending?limit=n.
func (h *ReconcileHandler) RepairPending(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	rep, err := h.reconcile.RepairPending(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, h.log, "reconcile.repair_pending", err)
		return
	}
	response.RespondOK(c, rep)
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return defaultPendingLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err == nil && n < 0 {
		err = fmt.Errorf("limit must not be negative")
	}
	if err != nil {
		respondBadRequest(c, err)
		return 0, false
	}
	return n, true
}
