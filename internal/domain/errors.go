package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrNotFound = errors.New("not found")

// ErrorKind groups errors by how the HTTP layer reports them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindAssetUnavailable
	KindUpstream
	KindConflict
	KindUnauthorized
	KindUnavailable
)

// Error is a typed error carrying a machine-readable code. Key is set for
// asset-unavailable errors and names the missing storage key.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Key     string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAssetUnavailable:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: "unauthorized", Message: message}
}

func Unavailable(code, message string) *Error {
	return &Error{Kind: KindUnavailable, Code: code, Message: message}
}

var ErrEmptyCart = Validation("empty_cart", "cart has no items")

func UnknownMaterial(m string) *Error {
	return Validation("unknown_material", fmt.Sprintf("unknown material %q", m))
}

func InvalidVariantID(id string) *Error {
	return Validation("invalid_variant_id", fmt.Sprintf("malformed variant id %q", id))
}

// AssetUnavailable reports a confirmed-missing original. The message is safe to
// show customers; Key is for operators.
func AssetUnavailable(key string) *Error {
	return &Error{
		Kind:    KindAssetUnavailable,
		Code:    "asset_unavailable",
		Message: "This item is temporarily unavailable. Please try again later.",
		Key:     key,
	}
}

// Upstream wraps a provider failure. The provider message is kept in Message.
func Upstream(provider string, err error) *Error {
	msg := provider + " request failed"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: KindUpstream, Code: provider + "_error", Message: msg, Err: err}
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
