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

type CategoryRepo interface {
	Upsert(dbc dbctx.Context, c catalog.Category) error
	Get(dbc dbctx.Context, id string) (*catalog.Category, error)
	Exists(dbc dbctx.Context, id string) (bool, error)
	List(dbc dbctx.Context) ([]catalog.Category, error)
	Delete(dbc dbctx.Context, id string) error
}

type categoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewCategoryRepo(db *gorm.DB, baseLog *logger.Logger) CategoryRepo {
	return &categoryRepo{db: db, log: baseLog.With("repo", "MirrorCategoryRepo"), now: time.Now}
}

func (r *categoryRepo) Upsert(dbc dbctx.Context, c catalog.Category) error {
	if c.ID == "" {
		return fmt.Errorf("category id required")
	}
	row, err := categoryToRow(c, r.now().UTC())
	if err != nil {
		return err
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "items", "synced_at"}),
		}).
		Create(&row).Error
}

// Get returns nil when the category is not mirrored.
func (r *categoryRepo) Get(dbc dbctx.Context, id string) (*catalog.Category, error) {
	if id == "" {
		return nil, nil
	}
	var row CategoryRow
	err := dbc.DB(r.db).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	c, err := row.toCategory()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepo) Exists(dbc dbctx.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	var n int64
	if err := dbc.DB(r.db).Model(&CategoryRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *categoryRepo) List(dbc dbctx.Context) ([]catalog.Category, error) {
	var rows []CategoryRow
	if err := dbc.DB(r.db).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]catalog.Category, 0, len(rows))
	for _, row := range rows {
		c, err := row.toCategory()
		if err != nil {
			r.log.Warn("skipping undecodable mirror row", "category_id", row.ID, "error", err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *categoryRepo) Delete(dbc dbctx.Context, id string) error {
	if id == "" {
		return nil
	}
	return dbc.DB(r.db).Where("id = ?", id).Delete(&CategoryRow{}).Error
}
