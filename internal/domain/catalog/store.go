package catalog

import "context"

// StoreResult is what a create returns: the identifier the store confirmed and
// the location it reported for the new document.
type StoreResult struct {
	ID       string
	Location string
}

// Store is the CRUD contract of one remote collection. Identifiers are assigned
// by the caller before Create.
type Store[T any] interface {
	Create(ctx context.Context, doc T) (StoreResult, error)
	GetByID(ctx context.Context, id string) (T, error)
	Update(ctx context.Context, id string, doc T) error
	Delete(ctx context.Context, id string) error
	FindAll(ctx context.Context) ([]T, error)
}

// VersionedStore is implemented by stores that expose an opaque version token
// (an ETag) and a conditional update. UpdateIfMatch fails with CodeConflict when
// the document changed since the version was read.
type VersionedStore[T any] interface {
	Store[T]
	GetVersioned(ctx context.Context, id string) (T, string, error)
	UpdateIfMatch(ctx context.Context, id string, doc T, version string) error
}

type CategoryStore = Store[Category]
type ItemStore = Store[Item]
