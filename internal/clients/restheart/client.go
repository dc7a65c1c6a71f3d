// Package restheart talks to a RESTHeart document store over HTTP and exposes
// each collection as a catalog.Store.
package restheart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yungbote/catalog-backend/internal/platform/httpx"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

// CallObserver receives one observation per store request.
type CallObserver interface {
	ObserveStoreCall(collection, op, outcome string, dur time.Duration)
}

type Options struct {
	BaseURL  string
	Database string

	Username string
	Password string

	Timeout     time.Duration
	ReadRetries int
	PageSize    int

	HTTPClient *http.Client
	Observer   CallObserver
}

type Client struct {
	baseURL  string
	database string

	username string
	password string

	timeout     time.Duration
	readRetries int
	pageSize    int

	httpClient *http.Client
	observer   CallObserver
	log        *logger.Logger
}

func New(opts Options, baseLog *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("restheart: base url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("restheart: parse base url: %w", err)
	}
	database := strings.Trim(strings.TrimSpace(opts.Database), "/")
	if database == "" {
		return nil, errors.New("restheart: database required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := opts.ReadRetries
	if retries < 0 {
		retries = 0
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}

	return &Client{
		baseURL:     baseURL,
		database:    database,
		username:    strings.TrimSpace(opts.Username),
		password:    opts.Password,
		timeout:     timeout,
		readRetries: retries,
		pageSize:    pageSize,
		httpClient:  hc,
		observer:    opts.Observer,
		log:         baseLog.With("client", "restheart", "database", database),
	}, nil
}

// Ping checks that the database answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodGet, path: c.dbPath(), query: url.Values{"pagesize": {"0"}}})
	return classify("restheart.ping", err, false)
}

func (c *Client) dbPath() string { return "/" + url.PathEscape(c.database) }

func (c *Client) collectionPath(collection string) string {
	return path.Join(c.dbPath(), url.PathEscape(collection))
}

func (c *Client) documentPath(collection, id string) string {
	return path.Join(c.collectionPath(collection), url.PathEscape(id))
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	ifMatch string
	retry   bool
}

type response struct {
	status   int
	header   http.Header
	body     []byte
	location string
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// do sends one request. Only requests flagged retry are re-sent, and only on
// transport failures or retryable statuses.
func (c *Client) do(ctx context.Context, r request) (response, error) {
	var buf bytes.Buffer
	if r.body != nil {
		if err := json.NewEncoder(&buf).Encode(r.body); err != nil {
			return response{}, err
		}
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	attempts := 1
	if r.retry {
		attempts += c.readRetries
	}

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx2.Err() != nil {
			if lastErr != nil {
				return response{}, lastErr
			}
			return response{}, ctx2.Err()
		}

		req, err := http.NewRequestWithContext(ctx2, r.method, target, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return response{}, err
		}
		c.setHeaders(req, r.body != nil)
		if r.ifMatch != "" {
			req.Header.Set("If-Match", r.ifMatch)
		}

		resp, err := c.httpClient.Do(req)
		var httpResp *http.Response
		if err != nil {
			lastErr = err
		} else {
			httpResp = resp
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
			_ = resp.Body.Close()
			if readErr != nil {
				return response{}, readErr
			}
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return response{
					status:   resp.StatusCode,
					header:   resp.Header,
					body:     raw,
					location: resp.Header.Get("Location"),
				}, nil
			}
			lastErr = parseHTTPError(resp.StatusCode, raw)
		}

		if attempt+1 >= attempts || !httpx.IsRetryableError(lastErr) {
			break
		}
		wait := httpx.JitterSleep(httpx.RetryAfterDuration(httpResp, backoff, 2*time.Second))
		c.log.Debug("retrying store read", "path", r.path, "attempt", attempt+1, "wait", wait.String(), "error", lastErr)
		select {
		case <-ctx2.Done():
			return response{}, lastErr
		case <-time.After(wait):
		}
		backoff *= 2
	}
	return response{}, lastErr
}

func (c *Client) observe(collection, op string, start time.Time, err error) {
	if c.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
	}
	c.observer.ObserveStoreCall(collection, op, outcome, time.Since(start))
}

// LastSegment returns the final path element of a Location value, which is
// the identifier of the created document.
func LastSegment(location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return ""
	}
	if u, err := url.Parse(location); err == nil && u.Path != "" {
		location = u.Path
	}
	location = strings.TrimRight(location, "/")
	if i := strings.LastIndex(location, "/"); i >= 0 {
		location = location[i+1:]
	}
	if unescaped, err := url.PathUnescape(location); err == nil {
		return unescaped
	}
	return location
}
