package restheart

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/platform/httpx"
)

// HTTPError is a non-2xx answer from the document store.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if msg == "" {
		msg = "http error"
	}
	return fmt.Sprintf("http error: status=%d message=%s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

// RESTHeart reports failures as {"http status code":..,"message":..}.
func parseHTTPError(status int, raw []byte) error {
	body := strings.TrimSpace(string(raw))
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && strings.TrimSpace(env.Message) != "" {
		return &HTTPError{StatusCode: status, Message: strings.TrimSpace(env.Message), Body: body}
	}
	return &HTTPError{StatusCode: status, Body: body}
}

// classify turns a transport or status failure into the store contract's
// aggregate codes. write marks calls whose effect may already be applied.
func classify(op string, err error, write bool) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*aggregates.Error); ok {
		return err
	}
	if herr, ok := err.(*HTTPError); ok {
		switch {
		case herr.StatusCode == http.StatusNotFound:
			return aggregates.NewError(aggregates.CodeNotFound, op, herr.Error(), err)
		case herr.StatusCode == http.StatusConflict || herr.StatusCode == http.StatusPreconditionFailed:
			return aggregates.NewError(aggregates.CodeConflict, op, herr.Error(), err)
		case httpx.IsRetryableHTTPStatus(herr.StatusCode):
			return &aggregates.Error{
				Code:      aggregates.CodeRemoteUnavailable,
				Op:        op,
				Message:   herr.Error(),
				Cause:     err,
				Ambiguous: write && herr.StatusCode != http.StatusTooManyRequests && herr.StatusCode != http.StatusServiceUnavailable,
			}
		case herr.StatusCode == http.StatusBadRequest || herr.StatusCode == http.StatusUnprocessableEntity:
			return aggregates.NewError(aggregates.CodeValidation, op, herr.Error(), err)
		default:
			return aggregates.NewError(aggregates.CodeInternal, op, herr.Error(), err)
		}
	}
	if httpx.IsTransportError(err) {
		return &aggregates.Error{
			Code:      aggregates.CodeRemoteUnavailable,
			Op:        op,
			Message:   err.Error(),
			Cause:     err,
			Ambiguous: write,
		}
	}
	return aggregates.Wrap(aggregates.CodeInternal, op, err)
}
