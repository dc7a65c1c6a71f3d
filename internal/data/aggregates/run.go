package aggregates

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/platform/ctxutil"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

// linkRun tracks one link attempt through
// started -> phase1_done -> linked | partial_link_failure, or started -> failed.
type linkRun struct {
	op         string
	itemID     string
	categoryID string
	state      domainagg.LinkState
	started    time.Time

	hooks Hooks
	log   *logger.Logger
	span  trace.Span
}

func newLinkRun(ctx context.Context, deps BaseDeps, op, itemID, categoryID string) *linkRun {
	deps = deps.withDefaults()
	fields := append([]interface{}{"op", op, "item_id", itemID, "category_id", categoryID}, ctxutil.LogFields(ctx)...)
	r := &linkRun{
		op:         op,
		itemID:     itemID,
		categoryID: categoryID,
		state:      domainagg.LinkStarted,
		started:    time.Now(),
		hooks:      deps.Hooks,
		log:        deps.Log.With(fields...),
		span:       trace.SpanFromContext(ctx),
	}
	r.hooks.ObserveLinkState(op, domainagg.LinkStarted)
	r.span.SetAttributes(
		attribute.String("link.item_id", itemID),
		attribute.String("link.category_id", categoryID),
	)
	r.log.Debug("link started")
	return r
}

func (r *linkRun) transition(to domainagg.LinkState) {
	if !r.state.CanTransition(to) {
		r.log.Error("illegal link transition", "from", r.state, "to", to)
		return
	}
	r.state = to
	r.hooks.ObserveLinkState(r.op, to)
	r.span.AddEvent("link."+string(to), trace.WithAttributes(
		attribute.Int64("link.elapsed_ms", time.Since(r.started).Milliseconds()),
	))
}

func (r *linkRun) phase1Done(side domainagg.Side) {
	r.transition(domainagg.LinkPhase1Done)
	r.log.Debug("link phase 1 committed", "side", side)
}

func (r *linkRun) linked() {
	r.transition(domainagg.LinkLinked)
	r.log.Info("link completed", "duration_ms", time.Since(r.started).Milliseconds())
}

// fail ends a run whose first write did not commit. err is returned as is.
func (r *linkRun) fail(err error) error {
	r.transition(domainagg.LinkFailed)
	r.log.Warn("link failed before any write committed",
		"error", err,
		"ambiguous", domainagg.IsAmbiguous(err),
		"duration_ms", time.Since(r.started).Milliseconds(),
	)
	return err
}

// partial ends a run whose second write failed after the first committed.
func (r *linkRun) partial(committed, inconsistent domainagg.Side, dangling domainagg.Dangling, cause error) error {
	r.transition(domainagg.LinkPartial)
	err := domainagg.NewPartialLinkError(r.op, domainagg.PartialLink{
		Operation:    r.op,
		ItemID:       r.itemID,
		CategoryID:   r.categoryID,
		Committed:    committed,
		Inconsistent: inconsistent,
		Dangling:     dangling,
	}, cause)
	r.log.Error("partial link failure",
		"committed", committed,
		"inconsistent", inconsistent,
		"dangling", dangling,
		"cause", cause,
		"duration_ms", time.Since(r.started).Milliseconds(),
	)
	return err
}

// confirmItemID replaces the provisional item id with the one the store confirmed.
func (r *linkRun) confirmItemID(id string) {
	if id == "" || id == r.itemID {
		return
	}
	r.log.Debug("store confirmed a different item id", "requested", r.itemID, "confirmed", id)
	r.itemID = id
	r.log = r.log.With("item_id", id)
	r.span.SetAttributes(attribute.String("link.item_id", id))
}
