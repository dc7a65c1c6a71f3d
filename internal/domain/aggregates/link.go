package aggregates

import (
	"context"
	"time"

	"github.com/yungbote/catalog-backend/internal/domain/catalog"
)

var AssociationAggregateContract = Contract{
	Name:        "Catalog.AssociationAggregate",
	Consistency: ConsistencyBestEffort,
	ReadPolicy:  ReadPolicyInvariantScoped,
	Notes:       "Maintains item/category back-references across two remote collections with two sequential writes.",
}

// AssociationAggregate links items to categories.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRemoteUnavailable,
// CodePartialLink, CodeInternal.
type AssociationAggregate interface {
	Aggregate

	// AttachItemToCategory updates the category first, then creates the item
	// pointing at it. Returns the updated category.
	AttachItemToCategory(ctx context.Context, categoryID string, item catalog.Item) (catalog.Category, error)

	// AddItemToCategory creates the item first, then appends it to the
	// category. Returns the created item.
	AddItemToCategory(ctx context.Context, categoryID string, item catalog.Item) (catalog.Item, error)
}

// LinkState is the progress of one link run.
type LinkState string

const (
	LinkStarted    LinkState = "started"
	LinkPhase1Done LinkState = "phase1_done"
	LinkLinked     LinkState = "linked"
	LinkPartial    LinkState = "partial_link_failure"
	LinkFailed     LinkState = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s LinkState) Terminal() bool {
	switch s {
	case LinkLinked, LinkPartial, LinkFailed:
		return true
	default:
		return false
	}
}

// CanTransition enforces Started -> Phase1Done -> Linked|Partial and
// Started -> Failed.
func (s LinkState) CanTransition(to LinkState) bool {
	switch s {
	case LinkStarted:
		return to == LinkPhase1Done || to == LinkFailed
	case LinkPhase1Done:
		return to == LinkLinked || to == LinkPartial
	default:
		return false
	}
}

// LinkPolicy tunes how the coordinator writes the category document.
type LinkPolicy struct {
	// VerifyWrites re-reads the category after an update and fails the run
	// when the appended reference did not survive a concurrent write.
	VerifyWrites bool

	// ConditionalUpdates uses version-checked updates when the category store
	// supports them.
	ConditionalUpdates bool
	ConditionalRetries int

	// StoreTimeout bounds each individual store call. Zero leaves the
	// caller's deadline in place.
	StoreTimeout time.Duration
}

func DefaultLinkPolicy() LinkPolicy {
	return LinkPolicy{
		VerifyWrites:       true,
		ConditionalUpdates: false,
		ConditionalRetries: 3,
		StoreTimeout:       5 * time.Second,
	}
}
