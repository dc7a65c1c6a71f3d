package restheart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
)

// Document is what a collection stores: anything that knows its own id.
type Document interface {
	catalog.Category | catalog.Item
}

// Collection is one RESTHeart collection holding documents of type T.
// It implements catalog.VersionedStore[T].
type Collection[T Document] struct {
	client *Client
	name   string
	idOf   func(T) string
}

func NewCategoryStore(c *Client, collection string) *Collection[catalog.Category] {
	if collection == "" {
		collection = "category"
	}
	return &Collection[catalog.Category]{client: c, name: collection, idOf: func(v catalog.Category) string { return v.ID }}
}

func NewItemStore(c *Client, collection string) *Collection[catalog.Item] {
	if collection == "" {
		collection = "item"
	}
	return &Collection[catalog.Item]{client: c, name: collection, idOf: func(v catalog.Item) string { return v.ID }}
}

var _ catalog.VersionedStore[catalog.Category] = (*Collection[catalog.Category])(nil)
var _ catalog.VersionedStore[catalog.Item] = (*Collection[catalog.Item])(nil)

func (s *Collection[T]) op(name string) string { return s.name + "." + name }

// Create inserts doc. The write mode is insert, so an existing id is a
// conflict rather than a silent overwrite.
func (s *Collection[T]) Create(ctx context.Context, doc T) (res catalog.StoreResult, err error) {
	start := time.Now()
	defer func() { s.client.observe(s.name, "create", start, err) }()

	resp, err := s.client.do(ctx, request{
		method: http.MethodPost,
		path:   s.client.collectionPath(s.name),
		query:  url.Values{"wm": {"insert"}},
		body:   doc,
	})
	if err != nil {
		return catalog.StoreResult{}, classify(s.op("create"), err, true)
	}
	id := LastSegment(resp.location)
	if id == "" {
		id = s.idOf(doc)
	}
	if id == "" {
		return catalog.StoreResult{}, aggregates.NewError(aggregates.CodeInternal, s.op("create"), "store returned no location for created document", nil)
	}
	return catalog.StoreResult{ID: id, Location: resp.location}, nil
}

func (s *Collection[T]) GetByID(ctx context.Context, id string) (T, error) {
	doc, _, err := s.GetVersioned(ctx, id)
	return doc, err
}

// GetVersioned returns the document together with its ETag.
func (s *Collection[T]) GetVersioned(ctx context.Context, id string) (doc T, etag string, err error) {
	start := time.Now()
	defer func() { s.client.observe(s.name, "get", start, err) }()

	if id == "" {
		return doc, "", aggregates.NewError(aggregates.CodeValidation, s.op("get"), "id required", nil)
	}
	resp, err := s.client.do(ctx, request{
		method: http.MethodGet,
		path:   s.client.documentPath(s.name, id),
		retry:  true,
	})
	if err != nil {
		return doc, "", classify(s.op("get"), err, false)
	}
	if err := json.Unmarshal(resp.body, &doc); err != nil {
		return doc, "", aggregates.NewError(aggregates.CodeInternal, s.op("get"), fmt.Sprintf("decode %s: %v", id, err), err)
	}
	return doc, resp.header.Get("ETag"), nil
}

// Update replaces an existing document. A missing document is NotFound.
func (s *Collection[T]) Update(ctx context.Context, id string, doc T) error {
	return s.put(ctx, "update", id, doc, "")
}

// UpdateIfMatch replaces the document only if its ETag still equals version.
func (s *Collection[T]) UpdateIfMatch(ctx context.Context, id string, doc T, version string) error {
	if version == "" {
		return aggregates.NewError(aggregates.CodeValidation, s.op("update_if_match"), "version required", nil)
	}
	return s.put(ctx, "update_if_match", id, doc, version)
}

func (s *Collection[T]) put(ctx context.Context, opName, id string, doc T, ifMatch string) (err error) {
	start := time.Now()
	defer func() { s.client.observe(s.name, opName, start, err) }()

	if id == "" {
		return aggregates.NewError(aggregates.CodeValidation, s.op(opName), "id required", nil)
	}
	_, err = s.client.do(ctx, request{
		method:  http.MethodPut,
		path:    s.client.documentPath(s.name, id),
		query:   url.Values{"wm": {"update"}},
		body:    doc,
		ifMatch: ifMatch,
	})
	return classify(s.op(opName), err, true)
}

func (s *Collection[T]) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.client.observe(s.name, "delete", start, err) }()

	if id == "" {
		return aggregates.NewError(aggregates.CodeValidation, s.op("delete"), "id required", nil)
	}
	_, err = s.client.do(ctx, request{
		method: http.MethodDelete,
		path:   s.client.documentPath(s.name, id),
	})
	return classify(s.op("delete"), err, true)
}

// FindAll walks the collection page by page until a short page. Documents
// that do not decode are logged and skipped so one bad record does not hide
// the rest of the collection.
func (s *Collection[T]) FindAll(ctx context.Context) (out []T, err error) {
	start := time.Now()
	defer func() { s.client.observe(s.name, "find_all", start, err) }()

	out = []T{}
	for page := 1; ; page++ {
		resp, err := s.client.do(ctx, request{
			method: http.MethodGet,
			path:   s.client.collectionPath(s.name),
			query: url.Values{
				"page":     {strconv.Itoa(page)},
				"pagesize": {strconv.Itoa(s.client.pageSize)},
			},
			retry: true,
		})
		if err != nil {
			return nil, classify(s.op("find_all"), err, false)
		}
		var raw []json.RawMessage
		if err := json.Unmarshal(resp.body, &raw); err != nil {
			return nil, aggregates.NewError(aggregates.CodeInternal, s.op("find_all"), fmt.Sprintf("decode page %d: %v", page, err), err)
		}
		for i, doc := range raw {
			var v T
			if err := json.Unmarshal(doc, &v); err != nil {
				s.client.log.Warn("skipping undecodable document",
					"collection", s.name, "page", page, "index", i, "id", rawID(doc), "error", err)
				continue
			}
			out = append(out, v)
		}
		if len(raw) < s.client.pageSize {
			return out, nil
		}
	}
}

// rawID pulls _id out of a document that failed to decode, for the log line.
func rawID(doc json.RawMessage) string {
	var head struct {
		ID json.RawMessage `json:"_id"`
	}
	if json.Unmarshal(doc, &head) != nil || len(head.ID) == 0 {
		return ""
	}
	return string(head.ID)
}

func outcomeOf(err error) string {
	if code := aggregates.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}
