package services

import (
	"context"
	"fmt"
	"strings"

	dataagg "github.com/yungbote/catalog-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/platform/idgen"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

// Error keys returned as validation messages; clients match on them.
const (
	ErrKeyIDNull     = "idnull"
	ErrKeyIDInvalid  = "idinvalid"
	ErrKeyIDNotFound = "idnotfound"
)

// CategoryPatch carries the fields a partial update may set. Nil or empty
// fields are left unchanged.
type CategoryPatch struct {
	ID          string  `json:"_id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type CategoryService interface {
	Create(ctx context.Context, c catalog.Category) (catalog.Category, catalog.StoreResult, error)
	Update(ctx context.Context, id string, c catalog.Category) (catalog.Category, error)
	PartialUpdate(ctx context.Context, id string, patch CategoryPatch) (catalog.Category, error)
	Get(ctx context.Context, id string) (catalog.Category, error)
	List(ctx context.Context) ([]catalog.Category, error)
	Delete(ctx context.Context, id string) error
}

type categoryService struct {
	log    *logger.Logger
	store  catalog.CategoryStore
	mirror *Mirror
	ids    idgen.Generator
}

func NewCategoryService(baseLog *logger.Logger, store catalog.CategoryStore, mirror *Mirror, ids idgen.Generator) CategoryService {
	if ids == nil {
		ids = idgen.ObjectID{}
	}
	return &categoryService{
		log:    baseLog.With("service", "CategoryService"),
		store:  store,
		mirror: mirror,
		ids:    ids,
	}
}

func (s *categoryService) Create(ctx context.Context, c catalog.Category) (catalog.Category, catalog.StoreResult, error) {
	const op = "category.create"
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		c.ID = s.ids.NewID()
	}
	res, err := s.store.Create(ctx, c)
	if err != nil {
		return catalog.Category{}, catalog.StoreResult{}, dataagg.MapError(op, err)
	}
	if res.ID != "" {
		c.ID = res.ID
	}
	s.mirror.Sync(ctx, []catalog.Category{c}, nil)
	s.log.Debug("category created", "category_id", c.ID)
	return c, res, nil
}

func (s *categoryService) Update(ctx context.Context, id string, c catalog.Category) (catalog.Category, error) {
	const op = "category.update"
	id, err := resolvePathID(op, id, c.ID)
	if err != nil {
		return catalog.Category{}, err
	}
	c.ID = id
	if err := s.store.Update(ctx, id, c); err != nil {
		return catalog.Category{}, dataagg.MapError(op, err)
	}
	s.mirror.Sync(ctx, []catalog.Category{c}, nil)
	return c, nil
}

func (s *categoryService) PartialUpdate(ctx context.Context, id string, patch CategoryPatch) (catalog.Category, error) {
	const op = "category.partial_update"
	if err := checkPatchID(op, id, patch.ID); err != nil {
		return catalog.Category{}, err
	}
	ok, err := s.mirror.CategoryExists(ctx, id)
	if err != nil {
		return catalog.Category{}, dataagg.MapError(op, err)
	}
	if !ok {
		return catalog.Category{}, domainagg.NewError(domainagg.CodeValidation, op, ErrKeyIDNotFound, nil)
	}
	cur, err := s.store.GetByID(ctx, id)
	if err != nil {
		return catalog.Category{}, dataagg.MapError(op, err)
	}
	if v := nonEmpty(patch.Name); v != "" {
		cur.Name = v
	}
	if v := nonEmpty(patch.Description); v != "" {
		cur.Description = v
	}
	if err := s.store.Update(ctx, id, cur); err != nil {
		return catalog.Category{}, dataagg.MapError(op, err)
	}
	s.mirror.Sync(ctx, []catalog.Category{cur}, nil)
	return cur, nil
}

func (s *categoryService) Get(ctx context.Context, id string) (catalog.Category, error) {
	c, err := s.store.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return catalog.Category{}, dataagg.MapError("category.get", err)
	}
	return c, nil
}

func (s *categoryService) List(ctx context.Context) ([]catalog.Category, error) {
	out, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, dataagg.MapError("category.list", err)
	}
	if out == nil {
		out = []catalog.Category{}
	}
	return out, nil
}

// Delete leaves the items that pointed at the category untouched; a repair
// sweep with prune_dangling clears them.
func (s *categoryService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.store.Delete(ctx, id); err != nil {
		return dataagg.MapError("category.delete", err)
	}
	s.mirror.DeleteCategory(ctx, id)
	return nil
}

// resolvePathID returns the path id, rejecting a body id that disagrees with it.
func resolvePathID(op, pathID, bodyID string) (string, error) {
	pathID = strings.TrimSpace(pathID)
	bodyID = strings.TrimSpace(bodyID)
	if pathID == "" {
		return "", domainagg.NewError(domainagg.CodeValidation, op, ErrKeyIDNull, nil)
	}
	if bodyID != "" && bodyID != pathID {
		return "", domainagg.NewError(domainagg.CodeValidation, op, ErrKeyIDInvalid, fmt.Errorf("body id %q does not match path id %q", bodyID, pathID))
	}
	return pathID, nil
}

func checkPatchID(op, pathID, bodyID string) error {
	if strings.TrimSpace(bodyID) == "" {
		return domainagg.NewError(domainagg.CodeValidation, op, ErrKeyIDNull, nil)
	}
	if strings.TrimSpace(bodyID) != strings.TrimSpace(pathID) {
		return domainagg.NewError(domainagg.CodeValidation, op, ErrKeyIDInvalid, nil)
	}
	return nil
}

func nonEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
