package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/observability"
	"github.com/yungbote/catalog-backend/internal/platform/ctxutil"
	"github.com/yungbote/catalog-backend/internal/platform/idgen"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

// LinkService runs the two link operations and takes care of what follows
// them: mirror sync after a full link, a ledger entry after a partial one.
type LinkService interface {
	AttachItemToCategory(ctx context.Context, categoryID string, item catalog.Item) (catalog.Category, error)
	AddItemToCategory(ctx context.Context, categoryID string, item catalog.Item) (catalog.Item, error)
}

type linkService struct {
	log     *logger.Logger
	agg     domainagg.AssociationAggregate
	ledger  Ledger
	mirror  *Mirror
	ids     idgen.Generator
	metrics *observability.Metrics
	now     func() time.Time
}

func NewLinkService(
	baseLog *logger.Logger,
	agg domainagg.AssociationAggregate,
	ledger Ledger,
	mirror *Mirror,
	ids idgen.Generator,
	metrics *observability.Metrics,
) LinkService {
	if ledger == nil {
		ledger = NewNoneLedger()
	}
	if ids == nil {
		ids = idgen.ObjectID{}
	}
	return &linkService{
		log:     baseLog.With("service", "LinkService"),
		agg:     agg,
		ledger:  ledger,
		mirror:  mirror,
		ids:     ids,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *linkService) AttachItemToCategory(ctx context.Context, categoryID string, item catalog.Item) (catalog.Category, error) {
	if strings.TrimSpace(item.ID) == "" {
		item.ID = s.ids.NewID()
	}
	cat, err := s.agg.AttachItemToCategory(ctx, categoryID, item)
	if err != nil {
		s.recordPartial(ctx, err)
		return catalog.Category{}, err
	}
	s.mirror.Sync(ctx, []catalog.Category{cat}, []catalog.Item{item.WithCategory(cat.ID)})
	return cat, nil
}

func (s *linkService) AddItemToCategory(ctx context.Context, categoryID string, item catalog.Item) (catalog.Item, error) {
	if strings.TrimSpace(item.ID) == "" {
		item.ID = s.ids.NewID()
	}
	out, err := s.agg.AddItemToCategory(ctx, categoryID, item)
	if err != nil {
		s.recordPartial(ctx, err)
		return catalog.Item{}, err
	}
	s.mirror.Sync(ctx, nil, []catalog.Item{out})
	return out, nil
}

// recordPartial never changes the error returned to the caller; a ledger that
// is down only costs the automatic repair of this pair.
func (s *linkService) recordPartial(ctx context.Context, err error) {
	p, ok := domainagg.AsPartialLink(err)
	if !ok {
		return
	}
	now := s.now().UTC()
	rec := domainagg.PartialLinkRecord{
		ID:         PartialLinkRecordID(p),
		Link:       p,
		LastError:  causeMessage(err),
		RecordedAt: now,
		UpdatedAt:  now,
	}
	s.metrics.IncPartialLinkRecorded(p.Operation, string(p.Dangling))
	fields := append(ctxutil.LogFields(ctx),
		"ledger_id", rec.ID,
		"operation", p.Operation,
		"item_id", p.ItemID,
		"category_id", p.CategoryID,
		"dangling", string(p.Dangling),
	)
	if lerr := s.ledger.Record(context.WithoutCancel(ctx), rec); lerr != nil {
		s.log.Error("partial link not recorded", append(fields, "error", lerr)...)
		return
	}
	s.log.Warn("partial link recorded", fields...)
}

func causeMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var ae *domainagg.Error
	if errors.As(err, &ae) && ae.Cause != nil {
		msg = ae.Cause.Error()
	}
	return fmt.Sprintf("%.500s", msg)
}
