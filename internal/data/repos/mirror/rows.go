package mirror

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/catalog-backend/internal/domain/catalog"
)

type CategoryRow struct {
	ID          string         `gorm:"column:id;primaryKey;size:128" json:"_id"`
	Name        string         `gorm:"column:name" json:"name"`
	Description string         `gorm:"column:description" json:"description"`
	Items       datatypes.JSON `gorm:"column:items" json:"item"`
	SyncedAt    time.Time      `gorm:"column:synced_at;index" json:"synced_at"`
}

func (CategoryRow) TableName() string { return "mirror_categories" }

type ItemRow struct {
	ID         string         `gorm:"column:id;primaryKey;size:128" json:"_id"`
	Name       string         `gorm:"column:name" json:"name"`
	Price      string         `gorm:"column:price" json:"price"`
	CategoryID string         `gorm:"column:category_id;size:128;index" json:"category_id"`
	Category   datatypes.JSON `gorm:"column:category" json:"category"`
	SyncedAt   time.Time      `gorm:"column:synced_at;index" json:"synced_at"`
}

func (ItemRow) TableName() string { return "mirror_items" }

func categoryToRow(c catalog.Category, now time.Time) (CategoryRow, error) {
	refs := c.Items
	if refs == nil {
		refs = []catalog.Reference{}
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return CategoryRow{}, fmt.Errorf("encode category %s references: %w", c.ID, err)
	}
	return CategoryRow{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Items:       datatypes.JSON(raw),
		SyncedAt:    now,
	}, nil
}

func (r CategoryRow) toCategory() (catalog.Category, error) {
	c := catalog.Category{ID: r.ID, Name: r.Name, Description: r.Description}
	if len(r.Items) > 0 {
		if err := json.Unmarshal(r.Items, &c.Items); err != nil {
			return catalog.Category{}, fmt.Errorf("decode category %s references: %w", r.ID, err)
		}
	}
	return c, nil
}

// Price holds the JSON token as the store sent it, so quoting survives.
func itemToRow(it catalog.Item, now time.Time) (ItemRow, error) {
	var price string
	if !it.Price.IsZero() {
		raw, err := json.Marshal(it.Price)
		if err != nil {
			return ItemRow{}, fmt.Errorf("encode item %s price: %w", it.ID, err)
		}
		price = string(raw)
	}
	row := ItemRow{
		ID:       it.ID,
		Name:     it.Name,
		Price:    price,
		Category: datatypes.JSON("null"),
		SyncedAt: now,
	}
	if it.Category != nil {
		raw, err := json.Marshal(it.Category)
		if err != nil {
			return ItemRow{}, fmt.Errorf("encode item %s reference: %w", it.ID, err)
		}
		row.Category = datatypes.JSON(raw)
		row.CategoryID = it.Category.TargetID()
	}
	return row, nil
}

func (r ItemRow) toItem() (catalog.Item, error) {
	it := catalog.Item{ID: r.ID, Name: r.Name}
	if r.Price != "" {
		if err := json.Unmarshal([]byte(r.Price), &it.Price); err != nil {
			it.Price = catalog.PriceString(r.Price)
		}
	}
	if len(r.Category) > 0 && string(r.Category) != "null" {
		var ref catalog.Reference
		if err := json.Unmarshal(r.Category, &ref); err != nil {
			return catalog.Item{}, fmt.Errorf("decode item %s reference: %w", r.ID, err)
		}
		it.Category = &ref
	}
	return it, nil
}
