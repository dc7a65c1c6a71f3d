package services

import (
	"context"
	"fmt"

	dataagg "github.com/yungbote/catalog-backend/internal/data/aggregates"
	"github.com/yungbote/catalog-backend/internal/data/repos"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

// Mirror keeps the local copies used for existence checks in step with the
// remote store. Mirror writes follow a successful remote write; a failed
// mirror write is logged and never fails the request.
type Mirror struct {
	log        *logger.Logger
	tx         dataagg.TxRunner
	categories repos.MirrorCategoryRepo
	items      repos.MirrorItemRepo
}

func NewMirror(baseLog *logger.Logger, tx dataagg.TxRunner, categories repos.MirrorCategoryRepo, items repos.MirrorItemRepo) *Mirror {
	return &Mirror{
		log:        baseLog.With("service", "Mirror"),
		tx:         tx,
		categories: categories,
		items:      items,
	}
}

// Sync upserts the given documents in one local transaction.
func (m *Mirror) Sync(ctx context.Context, cats []catalog.Category, items []catalog.Item) {
	if m == nil || (len(cats) == 0 && len(items) == 0) {
		return
	}
	err := m.tx.InTx(ctx, func(dbc dbctx.Context) error {
		for _, c := range cats {
			if err := m.categories.Upsert(dbc, c); err != nil {
				return fmt.Errorf("upsert category %s: %w", c.ID, err)
			}
		}
		for _, it := range items {
			if err := m.items.Upsert(dbc, it); err != nil {
				return fmt.Errorf("upsert item %s: %w", it.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		m.log.Warn("mirror sync failed", "error", err, "categories", len(cats), "items", len(items))
	}
}

func (m *Mirror) DeleteCategory(ctx context.Context, id string) {
	if m == nil {
		return
	}
	if err := m.categories.Delete(dbctx.Context{Ctx: ctx}, id); err != nil {
		m.log.Warn("mirror delete failed", "error", err, "category_id", id)
	}
}

func (m *Mirror) DeleteItem(ctx context.Context, id string) {
	if m == nil {
		return
	}
	if err := m.items.Delete(dbctx.Context{Ctx: ctx}, id); err != nil {
		m.log.Warn("mirror delete failed", "error", err, "item_id", id)
	}
}

// CategoryExists reports true without a mirror so callers fall through to the
// remote store.
func (m *Mirror) CategoryExists(ctx context.Context, id string) (bool, error) {
	if m == nil {
		return true, nil
	}
	return m.categories.Exists(dbctx.Context{Ctx: ctx}, id)
}

func (m *Mirror) ItemExists(ctx context.Context, id string) (bool, error) {
	if m == nil {
		return true, nil
	}
	return m.items.Exists(dbctx.Context{Ctx: ctx}, id)
}
