package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes aggregate failure semantics across domains.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeConflict           ErrorCode = "conflict"
	CodeRemoteUnavailable  ErrorCode = "remote_unavailable"
	CodePartialLink        ErrorCode = "partial_link_failure"
	CodeInvariantViolation ErrorCode = "invariant_violation"
	CodeInternal           ErrorCode = "internal"
)

// Side names one of the two stores taking part in a link.
type Side string

const (
	SideCategory Side = "category"
	SideItem     Side = "item"
)

// Dangling names which reference was left without its counterpart.
type Dangling string

const (
	// DanglingForward: the category lists an item that does not point back.
	DanglingForward Dangling = "forward"
	// DanglingBack: the item points at a category that does not list it.
	DanglingBack Dangling = "back"
)

// PartialLink describes a link whose first write committed and whose second
// did not. It is enough to repair exactly the affected pair.
type PartialLink struct {
	Operation    string   `json:"operation"`
	ItemID       string   `json:"item_id"`
	CategoryID   string   `json:"category_id"`
	Committed    Side     `json:"committed"`
	Inconsistent Side     `json:"inconsistent"`
	Dangling     Dangling `json:"dangling"`
}

// Error is the canonical aggregate error wrapper.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error

	// Ambiguous is set when the remote outcome of a write is unknown (timeout
	// or transport failure after the request may have been applied).
	Ambiguous bool
	Partial   *PartialLink
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an aggregate error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with aggregate error semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// NewPartialLinkError reports a half-applied link. The cause is the error of
// the failed second write.
func NewPartialLinkError(op string, p PartialLink, cause error) error {
	msg := fmt.Sprintf("item %s / category %s: %s committed, %s not updated",
		p.ItemID, p.CategoryID, p.Committed, p.Inconsistent)
	if p.Operation == "" {
		p.Operation = op
	}
	return &Error{
		Code:      CodePartialLink,
		Op:        strings.TrimSpace(op),
		Message:   msg,
		Cause:     cause,
		Ambiguous: IsAmbiguous(cause),
		Partial:   &p,
	}
}

// IsCode checks whether err (or wrapped err) carries the given aggregate code.
func IsCode(err error, code ErrorCode) bool {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return false
	}
	return aggErr.Code == code
}

// CodeOf extracts the aggregate error code when available.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}

// IsAmbiguous reports whether err marks a write with an unknown outcome.
func IsAmbiguous(err error) bool {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return false
	}
	return aggErr.Ambiguous
}

// AsPartialLink returns the partial-link details carried by err, if any.
func AsPartialLink(err error) (PartialLink, bool) {
	var aggErr *Error
	if !errors.As(err, &aggErr) || aggErr.Partial == nil {
		return PartialLink{}, false
	}
	return *aggErr.Partial, true
}
