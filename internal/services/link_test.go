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

func TestLinkService_AttachSyncsMirror(t *testing.T) {
	e := newEnv(t)
	e.cats.Put(catalog.Category{ID: "C1", Name: "office"})

	cat, err := e.links.AttachItemToCategory(context.Background(), "C1", catalog.Item{Name: "pen", Price: catalog.PriceString("1.5")})
	require.NoError(t, err)
	assert.True(t, cat.HasItem("id-1"))
	assert.True(t, e.mirroredCategory(t, "C1"))
	assert.True(t, e.mirroredItem(t, "id-1"))
	assert.Empty(t, e.pending(t))
}

func TestLinkService_AttachPartialIsRecordedOnce(t *testing.T) {
	e := newEnv(t)
	e.cats.Put(catalog.Category{ID: "C1", Name: "office"})
	e.items.FailAlways(aggtest.OpCreate, aggtest.Unavailable("item.create"))

	item := catalog.Item{ID: "i1", Name: "pen"}
	for i := 0; i < 2; i++ {
		_, err := e.links.AttachItemToCategory(context.Background(), "C1", item)
		requireCode(t, err, domainagg.CodePartialLink)
	}

	recs := e.pending(t)
	require.Len(t, recs, 1)
	assert.Equal(t, services.PartialLinkRecordID(recs[0].Link), recs[0].ID)
	assert.Equal(t, "i1", recs[0].Link.ItemID)
	assert.Equal(t, "C1", recs[0].Link.CategoryID)
	assert.Equal(t, domainagg.DanglingForward, recs[0].Link.Dangling)
	assert.Equal(t, domainagg.SideItem, recs[0].Link.Inconsistent)
	assert.NotEmpty(t, recs[0].LastError)
	assert.False(t, e.mirroredItem(t, "i1"))
}

func TestLinkService_AddPartialRecordsBackReference(t *testing.T) {
	e := newEnv(t)
	_, err := e.links.AddItemToCategory(context.Background(), "missing", catalog.Item{Name: "pen"})
	requireCode(t, err, domainagg.CodePartialLink)

	recs := e.pending(t)
	require.Len(t, recs, 1)
	assert.Equal(t, domainagg.DanglingBack, recs[0].Link.Dangling)
	assert.Equal(t, domainagg.SideCategory, recs[0].Link.Inconsistent)
}

func TestLinkService_AddSuccess(t *testing.T) {
	e := newEnv(t)
	e.cats.Put(catalog.Category{ID: "C1", Name: "office"})

	it, err := e.links.AddItemToCategory(context.Background(), "C1", catalog.Item{Name: "pen"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", it.ID)
	assert.True(t, it.BelongsTo("C1"))
	assert.True(t, e.mirroredItem(t, "id-1"))
}

func TestLinkService_TotalFailureIsNotRecorded(t *testing.T) {
	e := newEnv(t)
	_, err := e.links.AttachItemToCategory(context.Background(), "missing", catalog.Item{Name: "pen"})
	requireCode(t, err, domainagg.CodeNotFound)
	assert.Empty(t, e.pending(t))
	assert.Equal(t, 0, e.items.Len())
}
