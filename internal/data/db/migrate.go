package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/catalog-backend/internal/data/repos/ledger"
	"github.com/yungbote/catalog-backend/internal/data/repos/mirror"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Local mirror of the remote collections
		&mirror.CategoryRow{},
		&mirror.ItemRow{},

		// Partial links awaiting repair
		&ledger.Row{},
	)
}
