package services_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	dataagg "github.com/yungbote/catalog-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/catalog-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/catalog-backend/internal/data/repos"
	"github.com/yungbote/catalog-backend/internal/data/repos/ledger"
	"github.com/yungbote/catalog-backend/internal/data/repos/mirror"
	repotest "github.com/yungbote/catalog-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-backend/internal/platform/idgen"
	"github.com/yungbote/catalog-backend/internal/services"
)

type env struct {
	cats        *aggtest.MemStore[catalog.Category]
	items       *aggtest.MemStore[catalog.Item]
	mirrorCats  repos.MirrorCategoryRepo
	mirrorItems repos.MirrorItemRepo
	mirror      *services.Mirror
	ledger      *repos.LedgerRepo
	ids         idgen.Generator

	categories services.CategoryService
	itemSvc    services.ItemService
	links      services.LinkService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := repotest.DB(t, &mirror.CategoryRow{}, &mirror.ItemRow{}, &ledger.Row{})
	log := repotest.Logger(t)

	var n int64
	e := &env{
		cats:        aggtest.NewCategoryStore(),
		items:       aggtest.NewItemStore(),
		mirrorCats:  repos.NewMirrorCategoryRepo(db, log),
		mirrorItems: repos.NewMirrorItemRepo(db, log),
		ledger:      repos.NewLedgerRepo(db, log),
		ids: idgen.Func(func() string {
			return fmt.Sprintf("id-%d", atomic.AddInt64(&n, 1))
		}),
	}
	e.mirror = services.NewMirror(log, dataagg.NewGormTxRunner(db), e.mirrorCats, e.mirrorItems)

	agg, err := dataagg.NewAssociationAggregate(dataagg.AssociationDeps{
		BaseDeps:   dataagg.BaseDeps{Log: log},
		Categories: e.cats,
		Items:      e.items,
		IDs:        e.ids,
		Policy:     domainagg.DefaultLinkPolicy(),
	})
	require.NoError(t, err)

	e.categories = services.NewCategoryService(log, e.cats, e.mirror, e.ids)
	e.itemSvc = services.NewItemService(log, e.items, e.mirror, e.ids)
	e.links = services.NewLinkService(log, agg, e.ledger, e.mirror, e.ids, nil)
	return e
}

func (e *env) reconciler(t *testing.T, policy services.ReconcilePolicy) services.ReconcileService {
	t.Helper()
	return services.NewReconcileService(repotest.Logger(t), e.cats, e.items, e.ledger, e.mirror, policy, nil)
}

func (e *env) mirroredCategory(t *testing.T, id string) bool {
	t.Helper()
	ok, err := e.mirrorCats.Exists(dbctx.Context{Ctx: context.Background()}, id)
	require.NoError(t, err)
	return ok
}

func (e *env) mirroredItem(t *testing.T, id string) bool {
	t.Helper()
	ok, err := e.mirrorItems.Exists(dbctx.Context{Ctx: context.Background()}, id)
	require.NoError(t, err)
	return ok
}

func (e *env) pending(t *testing.T) []domainagg.PartialLinkRecord {
	t.Helper()
	recs, err := e.ledger.Pending(context.Background(), 0)
	require.NoError(t, err)
	return recs
}

func requireCode(t *testing.T, err error, code domainagg.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, domainagg.CodeOf(err), "error: %v", err)
}
