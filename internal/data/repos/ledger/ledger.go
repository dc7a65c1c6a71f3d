// Package ledger stores pending partial links in the mirror database.
package ledger

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

type Row struct {
	ID           string    `gorm:"column:id;primaryKey;size:64"`
	Operation    string    `gorm:"column:operation;size:64"`
	ItemID       string    `gorm:"column:item_id;size:128;index"`
	CategoryID   string    `gorm:"column:category_id;size:128;index"`
	Committed    string    `gorm:"column:committed;size:16"`
	Inconsistent string    `gorm:"column:inconsistent;size:16"`
	Dangling     string    `gorm:"column:dangling;size:16"`
	LastError    string    `gorm:"column:last_error"`
	Attempts     int       `gorm:"column:attempts;not null;default:0"`
	RecordedAt   time.Time `gorm:"column:recorded_at;index"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (Row) TableName() string { return "partial_link_records" }

func rowFromRecord(rec aggregates.PartialLinkRecord) Row {
	return Row{
		ID:           rec.ID,
		Operation:    rec.Link.Operation,
		ItemID:       rec.Link.ItemID,
		CategoryID:   rec.Link.CategoryID,
		Committed:    string(rec.Link.Committed),
		Inconsistent: string(rec.Link.Inconsistent),
		Dangling:     string(rec.Link.Dangling),
		LastError:    rec.LastError,
		Attempts:     rec.Attempts,
		RecordedAt:   rec.RecordedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func (r Row) record() aggregates.PartialLinkRecord {
	return aggregates.PartialLinkRecord{
		ID: r.ID,
		Link: aggregates.PartialLink{
			Operation:    r.Operation,
			ItemID:       r.ItemID,
			CategoryID:   r.CategoryID,
			Committed:    aggregates.Side(r.Committed),
			Inconsistent: aggregates.Side(r.Inconsistent),
			Dangling:     aggregates.Dangling(r.Dangling),
		},
		LastError:  r.LastError,
		Attempts:   r.Attempts,
		RecordedAt: r.RecordedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type Repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) *Repo {
	return &Repo{db: db, log: baseLog.With("repo", "PartialLinkLedgerRepo")}
}

// Record inserts rec. For a known id it refreshes the link and error but keeps
// the first recorded_at, and the attempt count never goes down.
func (r *Repo) Record(ctx context.Context, rec aggregates.PartialLinkRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record id required")
	}
	row := rowFromRecord(rec)
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	if row.RecordedAt.IsZero() {
		row.RecordedAt = row.UpdatedAt
	}
	updates := clause.AssignmentColumns([]string{
		"operation", "committed", "inconsistent", "dangling", "last_error", "updated_at",
	})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "attempts"},
		Value: gorm.Expr("CASE WHEN excluded.attempts > ? THEN excluded.attempts ELSE ? END",
			clause.Column{Table: row.TableName(), Name: "attempts"},
			clause.Column{Table: row.TableName(), Name: "attempts"}),
	})
	dbc := dbctx.Context{Ctx: ctx}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: updates,
		}).
		Create(&row).Error
}

func (r *Repo) Pending(ctx context.Context, limit int) ([]aggregates.PartialLinkRecord, error) {
	q := dbctx.Context{Ctx: ctx}.DB(r.db).Order("recorded_at ASC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Row
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]aggregates.PartialLinkRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

func (r *Repo) Resolve(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return dbctx.Context{Ctx: ctx}.DB(r.db).Where("id = ?", id).Delete(&Row{}).Error
}
