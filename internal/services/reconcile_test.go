package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aggtest "github.com/yungbote/catalog-backend/internal/data/aggregates/testutil"
	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/services"
)

func itemRefs(ids ...string) []catalog.Reference {
	out := make([]catalog.Reference, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.MustReference(id, catalog.KindItem))
	}
	return out
}

// seedDrift builds one case of every inconsistency a sweep knows about.
func seedDrift(e *env) {
	e.cats.Put(catalog.Category{ID: "C1", Items: itemRefs("i1", "i2", "i3", "i3")})
	e.cats.Put(catalog.Category{ID: "C2", Items: itemRefs("i4", "i5")})
	e.items.Put(catalog.Item{ID: "i1"}.WithCategory("C1"))
	e.items.Put(catalog.Item{ID: "i3"}.WithCategory("C1"))
	e.items.Put(catalog.Item{ID: "i4"}.WithCategory("C1"))
	e.items.Put(catalog.Item{ID: "i5"})
	e.items.Put(catalog.Item{ID: "i6"}.WithCategory("C9"))
}

type findingKey struct {
	Kind     services.FindingKind
	Reason   string
	Category string
	Item     string
}

func keys(fs []services.Finding) []findingKey {
	out := make([]findingKey, 0, len(fs))
	for _, f := range fs {
		out = append(out, findingKey{f.Kind, f.Reason, f.CategoryID, f.ItemID})
	}
	return out
}

func TestSweep_ReportFindsEveryKindAndWritesNothing(t *testing.T) {
	e := newEnv(t)
	seedDrift(e)
	svc := e.reconciler(t, services.DefaultReconcilePolicy())

	rep, err := svc.Sweep(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, services.ReconcileReport, rep.Mode)
	assert.Equal(t, 2, rep.Categories)
	assert.Equal(t, 5, rep.Items)
	assert.ElementsMatch(t, []findingKey{
		{services.FindingDanglingForward, services.ReasonItemMissing, "C1", "i2"},
		{services.FindingDuplicate, services.ReasonDuplicate, "C1", "i3"},
		{services.FindingDanglingForward, services.ReasonOwnedElsewhere, "C2", "i4"},
		{services.FindingDanglingForward, services.ReasonUnowned, "C2", "i5"},
		{services.FindingDanglingBack, services.ReasonNotListed, "C1", "i4"},
		{services.FindingDanglingBack, services.ReasonCategoryMissing, "C9", "i6"},
	}, keys(rep.Findings))
	assert.Zero(t, rep.Repaired)
	assert.Equal(t, 0, e.cats.Calls(aggtest.OpUpdate))
	assert.Equal(t, 0, e.items.Calls(aggtest.OpUpdate))
}

func TestSweep_RepairRestoresBidirectionalInvariant(t *testing.T) {
	e := newEnv(t)
	seedDrift(e)
	svc := e.reconciler(t, services.ReconcilePolicy{Mode: services.ReconcileRepair, Dedupe: true, PruneDangling: true})

	rep, err := svc.Sweep(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Repaired)
	assert.Zero(t, rep.Failed)

	c1, _ := e.cats.Doc("C1")
	assert.Equal(t, itemRefs("i1", "i3", "i4"), c1.Items)
	c2, _ := e.cats.Doc("C2")
	assert.Equal(t, itemRefs("i5"), c2.Items)
	i5, _ := e.items.Doc("i5")
	assert.True(t, i5.BelongsTo("C2"))
	i6, _ := e.items.Doc("i6")
	assert.Nil(t, i6.Category)
	assert.True(t, e.mirroredCategory(t, "C1"))

	again, err := svc.Sweep(context.Background(), services.ReconcileReport)
	require.NoError(t, err)
	assert.Empty(t, again.Findings)
}

func TestSweep_RepairWithoutPruneLeavesDeletedTargets(t *testing.T) {
	e := newEnv(t)
	seedDrift(e)
	svc := e.reconciler(t, services.ReconcilePolicy{Mode: services.ReconcileReport})

	rep, err := svc.Sweep(context.Background(), services.ReconcileRepair)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Repaired)

	c1, _ := e.cats.Doc("C1")
	assert.Equal(t, itemRefs("i1", "i2", "i3", "i3", "i4"), c1.Items)
	i6, _ := e.items.Doc("i6")
	assert.True(t, i6.BelongsTo("C9"))
}

func TestSweep_LoadFailure(t *testing.T) {
	e := newEnv(t)
	e.items.FailNext(aggtest.OpFindAll, aggtest.Unavailable("item.find_all"))
	_, err := e.reconciler(t, services.DefaultReconcilePolicy()).Sweep(context.Background(), "")
	requireCode(t, err, domainagg.CodeRemoteUnavailable)
}

func TestRepairPending_DropsForwardReferenceOfUncreatedItem(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.cats.Put(catalog.Category{ID: "C1"})
	e.items.FailNext(aggtest.OpCreate, aggtest.Unavailable("item.create"))
	_, err := e.links.AttachItemToCategory(ctx, "C1", catalog.Item{ID: "i1"})
	requireCode(t, err, domainagg.CodePartialLink)
	require.Len(t, e.pending(t), 1)

	rep, err := e.reconciler(t, services.DefaultReconcilePolicy()).RepairPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Resolved)
	assert.Equal(t, services.ActionRemoveReference, rep.Outcomes[0].Action)

	c1, _ := e.cats.Doc("C1")
	assert.False(t, c1.HasItem("i1"))
	assert.Empty(t, e.pending(t))
}

func TestRepairPending_CompletesBackReference(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.cats.Put(catalog.Category{ID: "C1"})
	e.cats.FailNext(aggtest.OpGet, aggtest.Unavailable("category.get"))
	_, err := e.links.AddItemToCategory(ctx, "C1", catalog.Item{ID: "i1"})
	requireCode(t, err, domainagg.CodePartialLink)

	rep, err := e.reconciler(t, services.DefaultReconcilePolicy()).RepairPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rep.Outcomes, 1)
	assert.Equal(t, services.ActionAppendReference, rep.Outcomes[0].Action)
	assert.True(t, rep.Outcomes[0].Resolved)

	c1, _ := e.cats.Doc("C1")
	assert.True(t, c1.HasItem("i1"))
	assert.Empty(t, e.pending(t))
}

func TestRepairPending_FailureStaysPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.cats.Put(catalog.Category{ID: "C1"})
	e.cats.FailNext(aggtest.OpGet, aggtest.Unavailable("category.get"))
	_, err := e.links.AddItemToCategory(ctx, "C1", catalog.Item{ID: "i1"})
	requireCode(t, err, domainagg.CodePartialLink)

	e.cats.FailAlways(aggtest.OpGet, aggtest.Unavailable("category.get"))
	rep, err := e.reconciler(t, services.DefaultReconcilePolicy()).RepairPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)

	recs := e.pending(t)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].Attempts)
	assert.NotEmpty(t, recs[0].LastError)
}

func TestRepairPending_RepeatedPartialKeepsHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.cats.Put(catalog.Category{ID: "C1"})
	e.items.FailAlways(aggtest.OpCreate, aggtest.Unavailable("item.create"))
	item := catalog.Item{ID: "i1", Name: "pen"}

	_, err := e.links.AttachItemToCategory(ctx, "C1", item)
	requireCode(t, err, domainagg.CodePartialLink)
	recs := e.pending(t)
	require.Len(t, recs, 1)
	firstSeen := recs[0].RecordedAt

	e.items.FailAlways(aggtest.OpGet, aggtest.Unavailable("item.get"))
	rep, err := e.reconciler(t, services.DefaultReconcilePolicy()).RepairPending(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Failed)

	_, err = e.links.AttachItemToCategory(ctx, "C1", item)
	requireCode(t, err, domainagg.CodePartialLink)

	recs = e.pending(t)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].Attempts)
	assert.True(t, firstSeen.Equal(recs[0].RecordedAt), "recorded_at moved to %s", recs[0].RecordedAt)
}

func TestParseReconcileMode(t *testing.T) {
	m, err := services.ParseReconcileMode(" Repair ")
	require.NoError(t, err)
	assert.Equal(t, services.ReconcileRepair, m)
	_, err = services.ParseReconcileMode("fix")
	assert.Error(t, err)
}
