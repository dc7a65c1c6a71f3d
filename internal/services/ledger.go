package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
)

// Ledger keeps partial-link failures until a repair resolves them.
type Ledger interface {
	Record(ctx context.Context, rec domainagg.PartialLinkRecord) error
	Pending(ctx context.Context, limit int) ([]domainagg.PartialLinkRecord, error)
	Resolve(ctx context.Context, id string) error
}

type noneLedger struct{}

// NewNoneLedger returns a ledger that stores nothing.
func NewNoneLedger() Ledger { return noneLedger{} }

func (noneLedger) Record(context.Context, domainagg.PartialLinkRecord) error { return nil }
func (noneLedger) Pending(context.Context, int) ([]domainagg.PartialLinkRecord, error) {
	return nil, nil
}
func (noneLedger) Resolve(context.Context, string) error { return nil }

var ledgerNamespace = uuid.MustParse("8f1d6c1e-5b0a-4c55-9a7e-2f8e4f3a9b10")

// PartialLinkRecordID is stable per (operation, item, category) so a repeated
// failure on the same pair updates one record instead of adding another.
func PartialLinkRecordID(p domainagg.PartialLink) string {
	key := strings.Join([]string{p.Operation, p.ItemID, p.CategoryID}, "|")
	return uuid.NewSHA1(ledgerNamespace, []byte(key)).String()
}
