package restheart

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
)

func newTestClient(t *testing.T, h http.Handler, mutate ...func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts := Options{
		BaseURL:     srv.URL,
		Database:    "pro5",
		Username:    "admin",
		Password:    "secret",
		Timeout:     2 * time.Second,
		ReadRetries: 2,
		PageSize:    2,
		HTTPClient:  srv.Client(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts, nil)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURLAndDatabase(t *testing.T) {
	_, err := New(Options{Database: "pro5"}, nil)
	require.Error(t, err)
	_, err = New(Options{BaseURL: "http://localhost:8080"}, nil)
	require.Error(t, err)
}

func TestLastSegment(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080/pro5/item/65f0c0ffee0000000000abcd": "65f0c0ffee0000000000abcd",
		"/pro5/item/abc/":          "abc",
		"abc":                      "abc",
		"":                         "",
		"/pro5/item/with%20space":  "with space",
	}
	for in, want := range cases {
		assert.Equal(t, want, LastSegment(in), in)
	}
}

func TestCreate_ReturnsIDFromLocation(t *testing.T) {
	var gotBody catalog.Item
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pro5/item", r.URL.Path)
		assert.Equal(t, "insert", r.URL.Query().Get("wm"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Location", "http://store/pro5/item/"+gotBody.ID)
		w.WriteHeader(http.StatusCreated)
	}))

	store := NewItemStore(c, "")
	item := catalog.Item{ID: "i1", Name: "pen", Price: catalog.PriceNumber("1.5")}.WithCategory("C1")
	res, err := store.Create(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "i1", res.ID)
	assert.Equal(t, "http://store/pro5/item/i1", res.Location)
	assert.True(t, gotBody.BelongsTo("C1"))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status    int
		code      aggregates.ErrorCode
		ambiguous bool
	}{
		{http.StatusNotFound, aggregates.CodeNotFound, false},
		{http.StatusConflict, aggregates.CodeConflict, false},
		{http.StatusPreconditionFailed, aggregates.CodeConflict, false},
		{http.StatusBadRequest, aggregates.CodeValidation, false},
		{http.StatusInternalServerError, aggregates.CodeRemoteUnavailable, true},
		{http.StatusServiceUnavailable, aggregates.CodeRemoteUnavailable, false},
		{http.StatusTooManyRequests, aggregates.CodeRemoteUnavailable, false},
		{http.StatusForbidden, aggregates.CodeInternal, false},
	}
	for _, tc := range cases {
		t.Run(strconv.Itoa(tc.status), func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"http status code":` + strconv.Itoa(tc.status) + `,"message":"nope"}`))
			}))
			err := NewCategoryStore(c, "").Update(context.Background(), "C1", catalog.Category{ID: "C1"})
			require.Error(t, err)
			assert.Equal(t, tc.code, aggregates.CodeOf(err))
			assert.Equal(t, tc.ambiguous, aggregates.IsAmbiguous(err))
		})
	}
}

func TestGet_RetriesTransientFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("ETag", `"v3"`)
		_, _ = w.Write([]byte(`{"_id":"C1","name":"office","item":[{"_id":"i1","_ref":"item"}]}`))
	}))

	cat, etag, err := NewCategoryStore(c, "").GetVersioned(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, `"v3"`, etag)
	assert.True(t, cat.HasItem("i1"))
}

func TestWrites_AreNeverRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := NewItemStore(c, "").Create(context.Background(), catalog.Item{ID: "i1"})
	require.Error(t, err)
	assert.True(t, aggregates.IsCode(err, aggregates.CodeRemoteUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	_, err := NewCategoryStore(c, "").GetByID(context.Background(), "missing")
	assert.True(t, aggregates.IsCode(err, aggregates.CodeNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTimeoutIsAmbiguousForWrites(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewItemStore(c, "").Create(ctx, catalog.Item{ID: "i1"})
	require.Error(t, err)
	assert.True(t, aggregates.IsCode(err, aggregates.CodeRemoteUnavailable))
	assert.True(t, aggregates.IsAmbiguous(err))
}

func TestUpdateIfMatch_SendsETag(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/pro5/category/C1", r.URL.Path)
		if r.Header.Get("If-Match") != `"v1"` {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	store := NewCategoryStore(c, "")
	require.NoError(t, store.UpdateIfMatch(context.Background(), "C1", catalog.Category{ID: "C1"}, `"v1"`))
	err := store.UpdateIfMatch(context.Background(), "C1", catalog.Category{ID: "C1"}, `"v0"`)
	assert.True(t, aggregates.IsCode(err, aggregates.CodeConflict))
	err = store.UpdateIfMatch(context.Background(), "C1", catalog.Category{ID: "C1"}, "")
	assert.True(t, aggregates.IsCode(err, aggregates.CodeValidation))
}

func TestFindAll_Pages(t *testing.T) {
	pages := map[string]string{
		"1": `[{"_id":"a"},{"_id":"b"}]`,
		"2": `[{"_id":"c"},{"_id":"d"}]`,
		"3": `[{"_id":"e"}]`,
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("pagesize"))
		_, _ = w.Write([]byte(pages[r.URL.Query().Get("page")]))
	}))
	items, err := NewItemStore(c, "").FindAll(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
}

func TestFindAll_SkipsUndecodableDocuments(t *testing.T) {
	pages := map[string]string{
		"1": `[{"_id":"a","price":"1.5"},{"_id":"b","price":true}]`,
		"2": `[{"_id":"c","category":{"_id":"C1","_ref":"order"}},{"_id":"d","price":2}]`,
		"3": `[]`,
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pages[r.URL.Query().Get("page")]))
	}))
	items, err := NewItemStore(c, "").FindAll(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"a", "d"}, ids)
}

func TestFindAll_MalformedPageFails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	_, err := NewItemStore(c, "").FindAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, aggregates.CodeInternal, aggregates.CodeOf(err))
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveStoreCall(collection, op, outcome string, dur time.Duration) {
	r.outcomes = append(r.outcomes, collection+"."+op+"="+outcome)
}

func TestObserverSeesEveryCall(t *testing.T) {
	obs := &recordingObserver{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"_id":"C1"}`))
	}), func(o *Options) { o.Observer = obs })

	store := NewCategoryStore(c, "")
	_, _ = store.GetByID(context.Background(), "C1")
	_ = store.Delete(context.Background(), "C1")
	assert.Equal(t, []string{"category.get=ok", "category.delete=not_found"}, obs.outcomes)
}
