package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/catalog-backend/internal/data/repos"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

type Repos struct {
	MirrorCategory repos.MirrorCategoryRepo
	MirrorItem     repos.MirrorItemRepo
	Ledger         *repos.LedgerRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		MirrorCategory: repos.NewMirrorCategoryRepo(db, log),
		MirrorItem:     repos.NewMirrorItemRepo(db, log),
		Ledger:         repos.NewLedgerRepo(db, log),
	}
}
