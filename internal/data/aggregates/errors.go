package aggregates

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/platform/httpx"
)

// MapError maps infrastructure/domain failures into aggregate error codes.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainagg.Wrap(domainagg.CodeNotFound, op, err)
	case httpx.IsTransportError(err):
		return domainagg.Wrap(domainagg.CodeRemoteUnavailable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return domainagg.Wrap(domainagg.CodeConflict, op, err) // unique_violation
		case "40001", "40P01", "55P03":
			return domainagg.Wrap(domainagg.CodeRemoteUnavailable, op, err) // serialization/deadlock/lock_not_available
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "duplicate key"),
		strings.Contains(msg, "already exists"),
		strings.Contains(msg, "unique constraint"):
		return domainagg.Wrap(domainagg.CodeConflict, op, err)
	case strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "temporar"):
		return domainagg.Wrap(domainagg.CodeRemoteUnavailable, op, err)
	default:
		return domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
}

// mapStoreError normalizes a store failure. A transport failure on a write
// leaves the remote outcome unknown, so it is marked ambiguous.
func mapStoreError(op string, err error, write bool) error {
	mapped := MapError(op, err)
	if mapped == nil || !write {
		return mapped
	}
	var aggErr *domainagg.Error
	if errors.As(mapped, &aggErr) && aggErr.Code == domainagg.CodeRemoteUnavailable && !aggErr.Ambiguous && httpx.IsTransportError(err) {
		cp := *aggErr
		cp.Ambiguous = true
		return &cp
	}
	return mapped
}
