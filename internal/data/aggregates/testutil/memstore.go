package testutil

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
)

// Store operation names used for call counting, hooks and fault injection.
const (
	OpCreate        = "create"
	OpGet           = "get"
	OpUpdate        = "update"
	OpUpdateIfMatch = "update_if_match"
	OpDelete        = "delete"
	OpFindAll       = "find_all"
)

// MemStore is an in-memory catalog.VersionedStore with last-writer-wins
// updates, per-document versions and fault injection.
type MemStore[T any] struct {
	mu       sync.Mutex
	name     string
	docs     map[string]T
	versions map[string]int
	calls    map[string]int
	failNext map[string][]error
	failAll  map[string]error
	idOf     func(T) string

	// Before runs outside the lock before every call; tests use it to
	// interleave concurrent callers. After runs once the call has applied.
	Before func(op, id string)
	After  func(op, id string)
}

func NewCategoryStore() *MemStore[catalog.Category] {
	return newMemStore("category", func(c catalog.Category) string { return c.ID })
}

func NewItemStore() *MemStore[catalog.Item] {
	return newMemStore("item", func(i catalog.Item) string { return i.ID })
}

func newMemStore[T any](name string, idOf func(T) string) *MemStore[T] {
	return &MemStore[T]{
		name:     name,
		docs:     map[string]T{},
		versions: map[string]int{},
		calls:    map[string]int{},
		failNext: map[string][]error{},
		failAll:  map[string]error{},
		idOf:     idOf,
	}
}

var _ catalog.VersionedStore[catalog.Category] = (*MemStore[catalog.Category])(nil)

// Put seeds a document without counting a call.
func (s *MemStore[T]) Put(doc T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.idOf(doc)
	s.docs[id] = doc
	s.versions[id]++
}

// Doc returns the stored document without counting a call.
func (s *MemStore[T]) Doc(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	return doc, ok
}

func (s *MemStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *MemStore[T]) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// FailNext makes the next call of op return err.
func (s *MemStore[T]) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = append(s.failNext[op], err)
}

// FailAlways makes every call of op return err until cleared with nil.
func (s *MemStore[T]) FailAlways(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failAll, op)
		return
	}
	s.failAll[op] = err
}

func (s *MemStore[T]) begin(op, id string) error {
	if s.Before != nil {
		s.Before(op, id)
	}
	s.mu.Lock()
	s.calls[op]++
	if q := s.failNext[op]; len(q) > 0 {
		s.failNext[op] = q[1:]
		s.mu.Unlock()
		return q[0]
	}
	if err := s.failAll[op]; err != nil {
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemStore[T]) end(op, id string) {
	s.mu.Unlock()
	if s.After != nil {
		s.After(op, id)
	}
}

func (s *MemStore[T]) notFound(op, id string) error {
	return domainagg.NewError(domainagg.CodeNotFound, s.name+"."+op, fmt.Sprintf("%s %s not found", s.name, id), nil)
}

func (s *MemStore[T]) Create(ctx context.Context, doc T) (catalog.StoreResult, error) {
	id := s.idOf(doc)
	if err := s.begin(OpCreate, id); err != nil {
		return catalog.StoreResult{}, err
	}
	defer s.end(OpCreate, id)
	if err := ctx.Err(); err != nil {
		return catalog.StoreResult{}, err
	}
	if id == "" {
		return catalog.StoreResult{}, domainagg.NewError(domainagg.CodeValidation, s.name+".create", "id required", nil)
	}
	if _, ok := s.docs[id]; ok {
		return catalog.StoreResult{}, domainagg.NewError(domainagg.CodeConflict, s.name+".create", fmt.Sprintf("%s %s already exists", s.name, id), nil)
	}
	s.docs[id] = doc
	s.versions[id] = 1
	return catalog.StoreResult{ID: id, Location: "/mem/" + s.name + "/" + id}, nil
}

func (s *MemStore[T]) GetByID(ctx context.Context, id string) (T, error) {
	doc, _, err := s.GetVersioned(ctx, id)
	return doc, err
}

func (s *MemStore[T]) GetVersioned(ctx context.Context, id string) (T, string, error) {
	var zero T
	if err := s.begin(OpGet, id); err != nil {
		return zero, "", err
	}
	defer s.end(OpGet, id)
	if err := ctx.Err(); err != nil {
		return zero, "", err
	}
	doc, ok := s.docs[id]
	if !ok {
		return zero, "", s.notFound("get", id)
	}
	return doc, strconv.Itoa(s.versions[id]), nil
}

func (s *MemStore[T]) Update(ctx context.Context, id string, doc T) error {
	if err := s.begin(OpUpdate, id); err != nil {
		return err
	}
	defer s.end(OpUpdate, id)
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.docs[id]; !ok {
		return s.notFound("update", id)
	}
	s.docs[id] = doc
	s.versions[id]++
	return nil
}

func (s *MemStore[T]) UpdateIfMatch(ctx context.Context, id string, doc T, version string) error {
	if err := s.begin(OpUpdateIfMatch, id); err != nil {
		return err
	}
	defer s.end(OpUpdateIfMatch, id)
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.docs[id]; !ok {
		return s.notFound("update_if_match", id)
	}
	if strconv.Itoa(s.versions[id]) != version {
		return domainagg.NewError(domainagg.CodeConflict, s.name+".update_if_match", "version mismatch", nil)
	}
	s.docs[id] = doc
	s.versions[id]++
	return nil
}

func (s *MemStore[T]) Delete(ctx context.Context, id string) error {
	if err := s.begin(OpDelete, id); err != nil {
		return err
	}
	defer s.end(OpDelete, id)
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.docs[id]; !ok {
		return s.notFound("delete", id)
	}
	delete(s.docs, id)
	delete(s.versions, id)
	return nil
}

func (s *MemStore[T]) FindAll(ctx context.Context) ([]T, error) {
	if err := s.begin(OpFindAll, ""); err != nil {
		return nil, err
	}
	defer s.end(OpFindAll, "")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.docs[id])
	}
	return out, nil
}

// Plain hides the versioned methods so callers see only catalog.Store.
func Plain[T any](s catalog.Store[T]) catalog.Store[T] {
	return plainStore[T]{s}
}

type plainStore[T any] struct {
	catalog.Store[T]
}

// Unavailable is a transport-style failure for fault injection.
func Unavailable(op string) error {
	return domainagg.NewError(domainagg.CodeRemoteUnavailable, op, "store unavailable", nil)
}

// TimedOut is a write whose outcome is unknown.
func TimedOut(op string) error {
	return &domainagg.Error{Code: domainagg.CodeRemoteUnavailable, Op: op, Message: "deadline exceeded", Cause: context.DeadlineExceeded, Ambiguous: true}
}
