package aggregates_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/catalog-backend/internal/data/aggregates"
	"github.com/yungbote/catalog-backend/internal/data/aggregates/testutil"
	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/platform/idgen"
)

const (
	opAttach = "association.attach_item_to_category"
	opAdd    = "association.add_item_to_category"
)

type fixture struct {
	cats  *testutil.MemStore[catalog.Category]
	items *testutil.MemStore[catalog.Item]
	hooks *testutil.HooksRecorder
	agg   domainagg.AssociationAggregate
}

func newFixture(t *testing.T, mutate ...func(*aggregates.AssociationDeps)) *fixture {
	t.Helper()
	f := &fixture{
		cats:  testutil.NewCategoryStore(),
		items: testutil.NewItemStore(),
		hooks: &testutil.HooksRecorder{},
	}
	f.cats.Put(catalog.Category{ID: "C1", Name: "office"})

	var n int64
	deps := aggregates.AssociationDeps{
		BaseDeps:   aggregates.BaseDeps{Hooks: f.hooks},
		Categories: f.cats,
		Items:      f.items,
		IDs: idgen.Func(func() string {
			return "item-" + string(rune('a'+atomic.AddInt64(&n, 1)-1))
		}),
		Policy: domainagg.DefaultLinkPolicy(),
	}
	for _, m := range mutate {
		m(&deps)
	}
	agg, err := aggregates.NewAssociationAggregate(deps)
	require.NoError(t, err)
	f.agg = agg
	return f
}

func pen() catalog.Item {
	return catalog.Item{Name: "pen", Price: catalog.PriceNumber("1.5")}
}

func TestNewAssociationAggregate_RequiresStores(t *testing.T) {
	_, err := aggregates.NewAssociationAggregate(aggregates.AssociationDeps{})
	require.Error(t, err)
}

func TestAttach_PenScenario(t *testing.T) {
	f := newFixture(t)

	cat, err := f.agg.AttachItemToCategory(context.Background(), "C1", pen())
	require.NoError(t, err)
	assert.Equal(t, []catalog.Reference{catalog.MustReference("item-a", catalog.KindItem)}, cat.Items)

	stored, ok := f.items.Doc("item-a")
	require.True(t, ok)
	require.NotNil(t, stored.Category)
	assert.Equal(t, catalog.MustReference("C1", catalog.KindCategory), *stored.Category)
	assert.Equal(t, "pen", stored.Name)

	assert.Equal(t, []domainagg.LinkState{domainagg.LinkStarted, domainagg.LinkPhase1Done, domainagg.LinkLinked}, f.hooks.StatesFor(opAttach))
}

func TestAttach_IsIdempotentForPreassignedID(t *testing.T) {
	f := newFixture(t)
	item := pen()
	item.ID = "fixed-id"

	_, err := f.agg.AttachItemToCategory(context.Background(), "C1", item)
	require.NoError(t, err)
	cat, err := f.agg.AttachItemToCategory(context.Background(), "C1", item)
	require.NoError(t, err)

	assert.Equal(t, 1, cat.CountItem("fixed-id"))
	stored, _ := f.cats.Doc("C1")
	assert.Equal(t, 1, stored.CountItem("fixed-id"))
	assert.Equal(t, 1, f.cats.Calls(testutil.OpUpdate), "second attach must not rewrite the category")
}

func TestAttach_BidirectionalInvariantOnSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.agg.AttachItemToCategory(ctx, "C1", pen())
		require.NoError(t, err)
	}
	cat, _ := f.cats.Doc("C1")
	require.Len(t, cat.Items, 3)
	for _, ref := range cat.Items {
		it, ok := f.items.Doc(ref.TargetID())
		require.True(t, ok, ref.TargetID())
		assert.True(t, it.BelongsTo("C1"))
	}
}

func TestAttach_CategoryNotFoundNeverCreatesItem(t *testing.T) {
	f := newFixture(t)

	_, err := f.agg.AttachItemToCategory(context.Background(), "missing-cat", pen())
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeNotFound))
	assert.Equal(t, 0, f.items.Calls(testutil.OpCreate))
	assert.Equal(t, []domainagg.LinkState{domainagg.LinkStarted, domainagg.LinkFailed}, f.hooks.StatesFor(opAttach))
}

func TestAttach_CategoryWriteFailureCreatesNoItem(t *testing.T) {
	f := newFixture(t)
	f.cats.FailNext(testutil.OpUpdate, testutil.Unavailable("category.update"))

	_, err := f.agg.AttachItemToCategory(context.Background(), "C1", pen())
	assert.True(t, domainagg.IsCode(err, domainagg.CodeRemoteUnavailable))
	_, partial := domainagg.AsPartialLink(err)
	assert.False(t, partial)
	assert.Equal(t, 0, f.items.Calls(testutil.OpCreate))
}

func TestAttach_PhaseOneTimeoutIsAmbiguousAndStops(t *testing.T) {
	f := newFixture(t)
	f.cats.FailNext(testutil.OpUpdate, context.DeadlineExceeded)

	_, err := f.agg.AttachItemToCategory(context.Background(), "C1", pen())
	assert.True(t, domainagg.IsCode(err, domainagg.CodeRemoteUnavailable))
	assert.True(t, domainagg.IsAmbiguous(err))
	assert.Equal(t, 0, f.items.Calls(testutil.OpCreate))
}

func TestAttach_ItemFailureIsPartialLink(t *testing.T) {
	f := newFixture(t)
	f.items.FailNext(testutil.OpCreate, testutil.TimedOut("item.create"))

	_, err := f.agg.AttachItemToCategory(context.Background(), "C1", pen())
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodePartialLink))
	assert.True(t, domainagg.IsAmbiguous(err))

	p, ok := domainagg.AsPartialLink(err)
	require.True(t, ok)
	assert.Equal(t, "item-a", p.ItemID)
	assert.Equal(t, "C1", p.CategoryID)
	assert.Equal(t, domainagg.SideCategory, p.Committed)
	assert.Equal(t, domainagg.SideItem, p.Inconsistent)
	assert.Equal(t, domainagg.DanglingForward, p.Dangling)

	cat, _ := f.cats.Doc("C1")
	assert.True(t, cat.HasItem("item-a"), "the committed side is not rolled back")
	assert.Equal(t, []domainagg.LinkState{domainagg.LinkStarted, domainagg.LinkPhase1Done, domainagg.LinkPartial}, f.hooks.StatesFor(opAttach))

	require.NotEmpty(t, f.hooks.Operations)
	assert.Equal(t, string(domainagg.CodePartialLink), f.hooks.Operations[len(f.hooks.Operations)-1].Status)
}

func TestAttach_ItemOwnedElsewhereIsPartialConflict(t *testing.T) {
	f := newFixture(t)
	f.items.Put(catalog.Item{ID: "taken", Name: "stapler"}.WithCategory("C9"))
	item := pen()
	item.ID = "taken"

	_, err := f.agg.AttachItemToCategory(context.Background(), "C1", item)
	p, ok := domainagg.AsPartialLink(err)
	require.True(t, ok, "category already lists the item, so this is partial: %v", err)
	assert.Equal(t, domainagg.DanglingForward, p.Dangling)

	var cause *domainagg.Error
	require.ErrorAs(t, err, &cause)
	assert.True(t, domainagg.IsCode(cause.Cause, domainagg.CodeConflict))
}

func TestAttach_RetryAfterPartialFailureCompletesLink(t *testing.T) {
	f := newFixture(t)
	item := pen()
	item.ID = "retry-me"
	f.items.FailNext(testutil.OpCreate, testutil.Unavailable("item.create"))

	_, err := f.agg.AttachItemToCategory(context.Background(), "C1", item)
	require.True(t, domainagg.IsCode(err, domainagg.CodePartialLink))

	cat, err := f.agg.AttachItemToCategory(context.Background(), "C1", item)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.CountItem("retry-me"))
	stored, ok := f.items.Doc("retry-me")
	require.True(t, ok)
	assert.True(t, stored.BelongsTo("C1"))
}

func TestAttach_ValidatesCategoryID(t *testing.T) {
	f := newFixture(t)
	_, err := f.agg.AttachItemToCategory(context.Background(), "  ", pen())
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
	assert.Equal(t, 0, f.cats.Calls(testutil.OpGet))
}

func TestAdd_CreatesItemThenLinksCategory(t *testing.T) {
	f := newFixture(t)

	item, err := f.agg.AddItemToCategory(context.Background(), "C1", pen())
	require.NoError(t, err)
	assert.Equal(t, "item-a", item.ID)
	assert.True(t, item.BelongsTo("C1"), "placeholder reference points at the requested category")

	cat, _ := f.cats.Doc("C1")
	assert.True(t, cat.HasItem("item-a"))
	assert.Equal(t, []domainagg.LinkState{domainagg.LinkStarted, domainagg.LinkPhase1Done, domainagg.LinkLinked}, f.hooks.StatesFor(opAdd))
}

func TestAdd_CategoryFailureIsPartialLink(t *testing.T) {
	cases := map[string]func(f *fixture){
		"update fails":       func(f *fixture) { f.cats.FailNext(testutil.OpUpdate, testutil.Unavailable("category.update")) },
		"category not found": func(f *fixture) { _ = f.cats.Delete(context.Background(), "C1") },
	}
	for name, arrange := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			arrange(f)

			_, err := f.agg.AddItemToCategory(context.Background(), "C1", pen())
			require.Error(t, err)
			p, ok := domainagg.AsPartialLink(err)
			require.True(t, ok, "expected partial link, got %v", err)
			assert.Equal(t, domainagg.SideItem, p.Committed)
			assert.Equal(t, domainagg.SideCategory, p.Inconsistent)
			assert.Equal(t, domainagg.DanglingBack, p.Dangling)
			assert.Equal(t, "item-a", p.ItemID)

			stored, ok := f.items.Doc("item-a")
			require.True(t, ok)
			assert.True(t, stored.BelongsTo("C1"))
		})
	}
}

func TestAdd_ItemCreateFailureTouchesNoCategory(t *testing.T) {
	f := newFixture(t)
	f.items.FailNext(testutil.OpCreate, testutil.TimedOut("item.create"))

	_, err := f.agg.AddItemToCategory(context.Background(), "C1", pen())
	assert.True(t, domainagg.IsCode(err, domainagg.CodeRemoteUnavailable))
	assert.True(t, domainagg.IsAmbiguous(err))
	assert.Equal(t, 0, f.cats.Calls(testutil.OpGet))
}

func TestAdd_RetryAfterAmbiguousCreateDoesNotDuplicate(t *testing.T) {
	f := newFixture(t)
	item := pen()
	item.ID = "maybe-created"
	f.items.Put(item.WithCategory("C1"))

	got, err := f.agg.AddItemToCategory(context.Background(), "C1", item)
	require.NoError(t, err)
	assert.Equal(t, "maybe-created", got.ID)
	assert.Equal(t, 1, f.items.Len())
	cat, _ := f.cats.Doc("C1")
	assert.Equal(t, 1, cat.CountItem("maybe-created"))
}

func TestAdd_ConflictWithForeignItemFailsBeforeCategory(t *testing.T) {
	f := newFixture(t)
	f.items.Put(catalog.Item{ID: "taken"}.WithCategory("C9"))
	item := pen()
	item.ID = "taken"

	_, err := f.agg.AddItemToCategory(context.Background(), "C1", item)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeConflict))
	assert.Equal(t, 0, f.cats.Calls(testutil.OpGet))
}

func TestStoreTimeoutBoundsEachCall(t *testing.T) {
	f := newFixture(t, func(d *aggregates.AssociationDeps) {
		d.Policy.StoreTimeout = 20 * time.Millisecond
	})
	f.cats.Before = func(op, id string) {
		if op == testutil.OpGet {
			time.Sleep(60 * time.Millisecond)
		}
	}

	_, err := f.agg.AttachItemToCategory(context.Background(), "C1", pen())
	assert.True(t, domainagg.IsCode(err, domainagg.CodeRemoteUnavailable), "got %v", err)
	assert.Equal(t, 0, f.items.Calls(testutil.OpCreate))
}

// Two attaches read the same category before either writes. Without
// conditional updates the second write replaces the first; verification must
// keep the loser from reporting success.
func TestConcurrentAttach_NoFalseSuccess(t *testing.T) {
	f := newFixture(t, func(d *aggregates.AssociationDeps) {
		d.Categories = testutil.Plain[catalog.Category](d.Categories)
	})

	var gets, updates int32
	bothRead := make(chan struct{})
	bothUpdated := make(chan struct{})
	f.cats.Before = func(op, id string) {
		switch op {
		case testutil.OpGet:
			n := atomic.AddInt32(&gets, 1)
			if n == 2 {
				close(bothRead)
			}
			if n > 2 {
				<-bothUpdated
			}
		case testutil.OpUpdate:
			<-bothRead
		}
	}
	f.cats.After = func(op, id string) {
		if op == testutil.OpUpdate && atomic.AddInt32(&updates, 1) == 2 {
			close(bothUpdated)
		}
	}

	ids := []string{"first", "second"}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			item := pen()
			item.ID = id
			_, errs[i] = f.agg.AttachItemToCategory(context.Background(), "C1", item)
		}(i, id)
	}
	wg.Wait()

	final, _ := f.cats.Doc("C1")
	successes := 0
	for i, err := range errs {
		if err == nil {
			successes++
			assert.True(t, final.HasItem(ids[i]), "%s reported success but its reference was lost", ids[i])
			_, ok := f.items.Doc(ids[i])
			assert.True(t, ok)
			continue
		}
		assert.True(t, domainagg.IsCode(err, domainagg.CodeConflict), "lost write must surface as conflict: %v", err)
		_, ok := f.items.Doc(ids[i])
		assert.False(t, ok, "no item is created for a lost category write")
	}
	assert.Equal(t, 1, successes, "last writer wins drops exactly one of the two appends")
}

func TestConcurrentAttach_ConditionalUpdatesKeepBoth(t *testing.T) {
	f := newFixture(t, func(d *aggregates.AssociationDeps) {
		d.Policy.ConditionalUpdates = true
		d.Policy.ConditionalRetries = 3
	})

	var gets int32
	bothRead := make(chan struct{})
	f.cats.Before = func(op, id string) {
		switch op {
		case testutil.OpGet:
			if atomic.AddInt32(&gets, 1) == 2 {
				close(bothRead)
			}
		case testutil.OpUpdateIfMatch:
			<-bothRead
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"first", "second"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			item := pen()
			item.ID = id
			_, errs[i] = f.agg.AttachItemToCategory(context.Background(), "C1", item)
		}(i, id)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	final, _ := f.cats.Doc("C1")
	assert.True(t, final.HasItem("first"))
	assert.True(t, final.HasItem("second"))
	assert.NotEmpty(t, f.hooks.Retries)
	assert.Equal(t, 0, f.cats.Calls(testutil.OpUpdate))
}

func TestConditionalUpdates_GiveUpAfterRetries(t *testing.T) {
	f := newFixture(t, func(d *aggregates.AssociationDeps) {
		d.Policy.ConditionalUpdates = true
		d.Policy.ConditionalRetries = 1
	})
	f.cats.FailAlways(testutil.OpUpdateIfMatch, domainagg.NewError(domainagg.CodeConflict, "category.update_if_match", "version mismatch", nil))

	_, err := f.agg.AttachItemToCategory(context.Background(), "C1", pen())
	assert.True(t, domainagg.IsCode(err, domainagg.CodeConflict))
	assert.Equal(t, 2, f.cats.Calls(testutil.OpUpdateIfMatch))
	assert.Equal(t, 0, f.items.Calls(testutil.OpCreate))
}

func TestVerifyWritesDisabled_SkipsReadBack(t *testing.T) {
	f := newFixture(t, func(d *aggregates.AssociationDeps) {
		d.Policy.VerifyWrites = false
	})
	_, err := f.agg.AttachItemToCategory(context.Background(), "C1", pen())
	require.NoError(t, err)
	assert.Equal(t, 1, f.cats.Calls(testutil.OpGet))
	assert.Equal(t, 1, f.cats.Calls(testutil.OpUpdate))
}

func TestContract(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, domainagg.AssociationAggregateContract, f.agg.Contract())
}
