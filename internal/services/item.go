package services

import (
	"context"
	"strings"

	dataagg "github.com/yungbote/catalog-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/platform/idgen"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

type ItemPatch struct {
	ID    string         `json:"_id"`
	Name  *string        `json:"name"`
	Price *catalog.Price `json:"price"`
}

type ItemService interface {
	Create(ctx context.Context, it catalog.Item) (catalog.Item, catalog.StoreResult, error)
	Update(ctx context.Context, id string, it catalog.Item) (catalog.Item, error)
	PartialUpdate(ctx context.Context, id string, patch ItemPatch) (catalog.Item, error)
	Get(ctx context.Context, id string) (catalog.Item, error)
	List(ctx context.Context) ([]catalog.Item, error)
	Delete(ctx context.Context, id string) error
}

type itemService struct {
	log    *logger.Logger
	store  catalog.ItemStore
	mirror *Mirror
	ids    idgen.Generator
}

func NewItemService(baseLog *logger.Logger, store catalog.ItemStore, mirror *Mirror, ids idgen.Generator) ItemService {
	if ids == nil {
		ids = idgen.ObjectID{}
	}
	return &itemService{
		log:    baseLog.With("service", "ItemService"),
		store:  store,
		mirror: mirror,
		ids:    ids,
	}
}

// Create stores the item as given. A category reference in the body is kept
// verbatim; linking goes through LinkService.
func (s *itemService) Create(ctx context.Context, it catalog.Item) (catalog.Item, catalog.StoreResult, error) {
	const op = "item.create"
	it.ID = strings.TrimSpace(it.ID)
	if it.ID == "" {
		it.ID = s.ids.NewID()
	}
	res, err := s.store.Create(ctx, it)
	if err != nil {
		return catalog.Item{}, catalog.StoreResult{}, dataagg.MapError(op, err)
	}
	if res.ID != "" {
		it.ID = res.ID
	}
	s.mirror.Sync(ctx, nil, []catalog.Item{it})
	s.log.Debug("item created", "item_id", it.ID)
	return it, res, nil
}

func (s *itemService) Update(ctx context.Context, id string, it catalog.Item) (catalog.Item, error) {
	const op = "item.update"
	id, err := resolvePathID(op, id, it.ID)
	if err != nil {
		return catalog.Item{}, err
	}
	it.ID = id
	if err := s.store.Update(ctx, id, it); err != nil {
		return catalog.Item{}, dataagg.MapError(op, err)
	}
	s.mirror.Sync(ctx, nil, []catalog.Item{it})
	return it, nil
}

func (s *itemService) PartialUpdate(ctx context.Context, id string, patch ItemPatch) (catalog.Item, error) {
	const op = "item.partial_update"
	if err := checkPatchID(op, id, patch.ID); err != nil {
		return catalog.Item{}, err
	}
	ok, err := s.mirror.ItemExists(ctx, id)
	if err != nil {
		return catalog.Item{}, dataagg.MapError(op, err)
	}
	if !ok {
		return catalog.Item{}, domainagg.NewError(domainagg.CodeValidation, op, ErrKeyIDNotFound, nil)
	}
	cur, err := s.store.GetByID(ctx, id)
	if err != nil {
		return catalog.Item{}, dataagg.MapError(op, err)
	}
	if v := nonEmpty(patch.Name); v != "" {
		cur.Name = v
	}
	if patch.Price != nil && patch.Price.String() != "" {
		cur.Price = *patch.Price
	}
	if err := s.store.Update(ctx, id, cur); err != nil {
		return catalog.Item{}, dataagg.MapError(op, err)
	}
	s.mirror.Sync(ctx, nil, []catalog.Item{cur})
	return cur, nil
}

func (s *itemService) Get(ctx context.Context, id string) (catalog.Item, error) {
	it, err := s.store.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return catalog.Item{}, dataagg.MapError("item.get", err)
	}
	return it, nil
}

func (s *itemService) List(ctx context.Context) ([]catalog.Item, error) {
	out, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, dataagg.MapError("item.list", err)
	}
	if out == nil {
		out = []catalog.Item{}
	}
	return out, nil
}

// Delete does not prune the owning category's list.
func (s *itemService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.store.Delete(ctx, id); err != nil {
		return dataagg.MapError("item.delete", err)
	}
	s.mirror.DeleteItem(ctx, id)
	return nil
}
