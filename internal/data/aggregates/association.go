package aggregates

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/platform/idgen"
)

const (
	opAttach = "association.attach_item_to_category"
	opAdd    = "association.add_item_to_category"
)

type AssociationDeps struct {
	BaseDeps
	Categories catalog.Store[catalog.Category]
	Items      catalog.Store[catalog.Item]
	IDs        idgen.Generator
	Policy     domainagg.LinkPolicy
}

type associationAggregate struct {
	deps AssociationDeps
}

func NewAssociationAggregate(deps AssociationDeps) (domainagg.AssociationAggregate, error) {
	if deps.Categories == nil || deps.Items == nil {
		return nil, fmt.Errorf("association aggregate requires category and item stores")
	}
	deps.BaseDeps = deps.BaseDeps.withDefaults()
	deps.BaseDeps.Log = deps.BaseDeps.Log.With("aggregate", "AssociationAggregate")
	if deps.IDs == nil {
		deps.IDs = idgen.ObjectID{}
	}
	if deps.Policy.ConditionalRetries < 0 {
		deps.Policy.ConditionalRetries = 0
	}
	return &associationAggregate{deps: deps}, nil
}

func (a *associationAggregate) Contract() domainagg.Contract {
	return domainagg.AssociationAggregateContract
}

// AttachItemToCategory writes the category first. A failure there leaves the
// item store untouched; a failure creating the item afterwards leaves the
// category listing an item that does not exist.
func (a *associationAggregate) AttachItemToCategory(ctx context.Context, categoryID string, item catalog.Item) (catalog.Category, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return catalog.Category{}, domainagg.NewError(domainagg.CodeValidation, opAttach, "category id required", nil)
	}
	item.ID = a.assignID(item.ID)

	var out catalog.Category
	err := executeWrite(ctx, a.deps.BaseDeps, opAttach, linkAttrs(item.ID, categoryID), func(ctx context.Context) error {
		run := newLinkRun(ctx, a.deps.BaseDeps, opAttach, item.ID, categoryID)

		cat, err := a.appendToCategory(ctx, categoryID, item.ID)
		if err != nil {
			return run.fail(err)
		}
		run.phase1Done(domainagg.SideCategory)

		if _, err := a.createItem(ctx, item.WithCategory(categoryID), categoryID); err != nil {
			return run.partial(domainagg.SideCategory, domainagg.SideItem, domainagg.DanglingForward, err)
		}
		run.linked()
		out = cat
		return nil
	})
	if err != nil {
		return catalog.Category{}, err
	}
	return out, nil
}

// AddItemToCategory creates the item first, already pointing at the category.
// A failure appending it to the category afterwards, including a missing
// category, leaves a back-reference with no matching entry.
func (a *associationAggregate) AddItemToCategory(ctx context.Context, categoryID string, item catalog.Item) (catalog.Item, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return catalog.Item{}, domainagg.NewError(domainagg.CodeValidation, opAdd, "category id required", nil)
	}
	item.ID = a.assignID(item.ID)
	pending := item.WithCategory(categoryID)

	var out catalog.Item
	err := executeWrite(ctx, a.deps.BaseDeps, opAdd, linkAttrs(item.ID, categoryID), func(ctx context.Context) error {
		run := newLinkRun(ctx, a.deps.BaseDeps, opAdd, item.ID, categoryID)

		res, err := a.createItem(ctx, pending, categoryID)
		if err != nil {
			return run.fail(err)
		}
		itemID := res.ID
		if itemID == "" {
			itemID = pending.ID
		}
		run.confirmItemID(itemID)
		run.phase1Done(domainagg.SideItem)

		if _, err := a.appendToCategory(ctx, categoryID, itemID); err != nil {
			return run.partial(domainagg.SideItem, domainagg.SideCategory, domainagg.DanglingBack, err)
		}
		run.linked()
		out = pending
		out.ID = itemID
		return nil
	})
	if err != nil {
		return catalog.Item{}, err
	}
	return out, nil
}

func (a *associationAggregate) assignID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return a.deps.IDs.NewID()
}

// call bounds a single store call by the policy timeout.
func (a *associationAggregate) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if a.deps.Policy.StoreTimeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, a.deps.Policy.StoreTimeout)
	defer cancel()
	return fn(callCtx)
}

// createItem creates the item. An id collision is accepted when the stored
// item already points at categoryID, so a retried link does not fail.
func (a *associationAggregate) createItem(ctx context.Context, item catalog.Item, categoryID string) (catalog.StoreResult, error) {
	var res catalog.StoreResult
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		res, err = a.deps.Items.Create(ctx, item)
		return err
	})
	if err == nil {
		return res, nil
	}
	err = mapStoreError("item.create", err, true)
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		return catalog.StoreResult{}, err
	}

	var existing catalog.Item
	getErr := a.call(ctx, func(ctx context.Context) error {
		var err error
		existing, err = a.deps.Items.GetByID(ctx, item.ID)
		return err
	})
	if getErr != nil {
		return catalog.StoreResult{}, err
	}
	if !existing.BelongsTo(categoryID) {
		return catalog.StoreResult{}, domainagg.NewError(domainagg.CodeConflict, "item.create",
			fmt.Sprintf("item %s already exists outside category %s", item.ID, categoryID), err)
	}
	a.deps.Log.Info("item already linked to category", "item_id", item.ID, "category_id", categoryID)
	return catalog.StoreResult{ID: item.ID}, nil
}

// appendToCategory adds an item reference to the category unless one with the
// same target id is already there.
func (a *associationAggregate) appendToCategory(ctx context.Context, categoryID, itemID string) (catalog.Category, error) {
	if a.deps.Policy.ConditionalUpdates {
		if vs, ok := a.deps.Categories.(catalog.VersionedStore[catalog.Category]); ok {
			return a.appendConditional(ctx, vs, categoryID, itemID)
		}
	}

	cat, err := a.getCategory(ctx, categoryID)
	if err != nil {
		return catalog.Category{}, err
	}
	next, changed := cat.WithItem(itemID)
	if !changed {
		return cat, nil
	}
	if err := a.call(ctx, func(ctx context.Context) error {
		return a.deps.Categories.Update(ctx, categoryID, next)
	}); err != nil {
		return catalog.Category{}, mapStoreError("category.update", err, true)
	}
	if !a.deps.Policy.VerifyWrites {
		return next, nil
	}

	got, err := a.getCategory(ctx, categoryID)
	if err != nil {
		// the update was acknowledged; an unreadable category is not a lost write
		a.deps.Log.Warn("could not verify category update", "category_id", categoryID, "item_id", itemID, "error", err)
		return next, nil
	}
	if !got.HasItem(itemID) {
		a.deps.Hooks.IncConflict("category.verify")
		return catalog.Category{}, domainagg.NewError(domainagg.CodeConflict, "category.update",
			fmt.Sprintf("reference to item %s was overwritten by a concurrent update of category %s", itemID, categoryID), nil)
	}
	return got, nil
}

func (a *associationAggregate) appendConditional(ctx context.Context, vs catalog.VersionedStore[catalog.Category], categoryID, itemID string) (catalog.Category, error) {
	attempts := a.deps.Policy.ConditionalRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			a.deps.Hooks.IncRetry("category.update_if_match")
		}
		var (
			cat     catalog.Category
			version string
		)
		err := a.call(ctx, func(ctx context.Context) error {
			var err error
			cat, version, err = vs.GetVersioned(ctx, categoryID)
			return err
		})
		if err != nil {
			return catalog.Category{}, mapStoreError("category.get", err, false)
		}
		next, changed := cat.WithItem(itemID)
		if !changed {
			return cat, nil
		}
		err = a.call(ctx, func(ctx context.Context) error {
			return vs.UpdateIfMatch(ctx, categoryID, next, version)
		})
		if err == nil {
			return next, nil
		}
		lastErr = mapStoreError("category.update_if_match", err, true)
		if !domainagg.IsCode(lastErr, domainagg.CodeConflict) {
			return catalog.Category{}, lastErr
		}
	}
	return catalog.Category{}, domainagg.NewError(domainagg.CodeConflict, "category.update_if_match",
		fmt.Sprintf("category %s kept changing after %d attempts", categoryID, attempts), lastErr)
}

func (a *associationAggregate) getCategory(ctx context.Context, categoryID string) (catalog.Category, error) {
	var cat catalog.Category
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		cat, err = a.deps.Categories.GetByID(ctx, categoryID)
		return err
	})
	if err != nil {
		return catalog.Category{}, mapStoreError("category.get", err, false)
	}
	return cat, nil
}

func linkAttrs(itemID, categoryID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("link.item_id", itemID),
		attribute.String("link.category_id", categoryID),
	}
}
