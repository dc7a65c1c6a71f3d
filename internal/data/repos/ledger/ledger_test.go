package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/catalog-backend/internal/data/repos/ledger"
	"github.com/yungbote/catalog-backend/internal/data/repos/testutil"
	"github.com/yungbote/catalog-backend/internal/domain/aggregates"
)

func TestRepo_RecordPendingResolve(t *testing.T) {
	db := testutil.DB(t, &ledger.Row{})
	repo := ledger.NewRepo(db, testutil.Logger(t))
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	link := aggregates.PartialLink{
		Operation:    "add_item_to_category",
		ItemID:       "i1",
		CategoryID:   "C1",
		Committed:    aggregates.SideItem,
		Inconsistent: aggregates.SideCategory,
		Dangling:     aggregates.DanglingBack,
	}
	require.NoError(t, repo.Record(ctx, aggregates.PartialLinkRecord{ID: "r2", Link: link, RecordedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Record(ctx, aggregates.PartialLinkRecord{ID: "r1", Link: link, RecordedAt: base}))

	pending, err := repo.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "r1", pending[0].ID)
	assert.Equal(t, link, pending[0].Link)

	require.NoError(t, repo.Record(ctx, aggregates.PartialLinkRecord{
		ID: "r1", Link: link, RecordedAt: base, Attempts: 2, LastError: "still down",
	}))
	pending, err = repo.Pending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Attempts)
	assert.Equal(t, "still down", pending[0].LastError)

	require.NoError(t, repo.Resolve(ctx, "r1"))
	pending, err = repo.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r2", pending[0].ID)
}

func TestRepo_RecordKeepsFirstSeenAndAttempts(t *testing.T) {
	db := testutil.DB(t, &ledger.Row{})
	repo := ledger.NewRepo(db, testutil.Logger(t))
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	link := aggregates.PartialLink{ItemID: "i1", CategoryID: "C1", Dangling: aggregates.DanglingForward}

	require.NoError(t, repo.Record(ctx, aggregates.PartialLinkRecord{ID: "r1", Link: link, RecordedAt: base, Attempts: 3}))
	require.NoError(t, repo.Record(ctx, aggregates.PartialLinkRecord{
		ID: "r1", Link: link, RecordedAt: base.Add(time.Hour), LastError: "again",
	}))

	pending, err := repo.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].Attempts)
	assert.True(t, base.Equal(pending[0].RecordedAt), "recorded_at moved to %s", pending[0].RecordedAt)
	assert.Equal(t, "again", pending[0].LastError)
}

func TestRepo_RecordRequiresID(t *testing.T) {
	db := testutil.DB(t, &ledger.Row{})
	require.Error(t, ledger.NewRepo(db, testutil.Logger(t)).Record(context.Background(), aggregates.PartialLinkRecord{}))
}
