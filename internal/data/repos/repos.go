package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/catalog-backend/internal/data/repos/ledger"
	"github.com/yungbote/catalog-backend/internal/data/repos/mirror"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

type MirrorCategoryRepo = mirror.CategoryRepo
type MirrorItemRepo = mirror.ItemRepo

type LedgerRepo = ledger.Repo

func NewMirrorCategoryRepo(db *gorm.DB, baseLog *logger.Logger) MirrorCategoryRepo {
	return mirror.NewCategoryRepo(db, baseLog)
}
func NewMirrorItemRepo(db *gorm.DB, baseLog *logger.Logger) MirrorItemRepo {
	return mirror.NewItemRepo(db, baseLog)
}

func NewLedgerRepo(db *gorm.DB, baseLog *logger.Logger) *LedgerRepo {
	return ledger.NewRepo(db, baseLog)
}
