package mirror

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

type ItemRepo interface {
	Upsert(dbc dbctx.Context, it catalog.Item) error
	Get(dbc dbctx.Context, id string) (*catalog.Item, error)
	Exists(dbc dbctx.Context, id string) (bool, error)
	ListByCategory(dbc dbctx.Context, categoryID string) ([]catalog.Item, error)
	Delete(dbc dbctx.Context, id string) error
}

type itemRepo struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewItemRepo(db *gorm.DB, baseLog *logger.Logger) ItemRepo {
	return &itemRepo{db: db, log: baseLog.With("repo", "MirrorItemRepo"), now: time.Now}
}

func (r *itemRepo) Upsert(dbc dbctx.Context, it catalog.Item) error {
	if it.ID == "" {
		return fmt.Errorf("item id required")
	}
	row, err := itemToRow(it, r.now().UTC())
	if err != nil {
		return err
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "price", "category_id", "category", "synced_at"}),
		}).
		Create(&row).Error
}

func (r *itemRepo) Get(dbc dbctx.Context, id string) (*catalog.Item, error) {
	if id == "" {
		return nil, nil
	}
	var row ItemRow
	err := dbc.DB(r.db).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	it, err := row.toItem()
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *itemRepo) Exists(dbc dbctx.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	var n int64
	if err := dbc.DB(r.db).Model(&ItemRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *itemRepo) ListByCategory(dbc dbctx.Context, categoryID string) ([]catalog.Item, error) {
	if categoryID == "" {
		return []catalog.Item{}, nil
	}
	var rows []ItemRow
	if err := dbc.DB(r.db).Where("category_id = ?", categoryID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]catalog.Item, 0, len(rows))
	for _, row := range rows {
		it, err := row.toItem()
		if err != nil {
			r.log.Warn("skipping undecodable mirror row", "item_id", row.ID, "error", err)
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *itemRepo) Delete(dbc dbctx.Context, id string) error {
	if id == "" {
		return nil
	}
	return dbc.DB(r.db).Where("id = ?", id).Delete(&ItemRow{}).Error
}
