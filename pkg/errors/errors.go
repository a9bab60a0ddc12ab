package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeLimitExceeded         Code = "LIMIT_EXCEEDED"
	CodeProductUnavailable    Code = "PRODUCT_UNAVAILABLE"
	CodeInsufficientStock     Code = "INSUFFICIENT_STOCK"
	CodeNoCommonPaymentMethod Code = "NO_COMMON_PAYMENT_METHOD"
	CodeShippingFailed        Code = "SHIPPING_CALCULATION_FAILED"
	CodeSubmissionFailed      Code = "SUBMISSION_FAILED"
	CodePersistence           Code = "PERSISTENCE_FAILURE"
	CodePriceChanged          Code = "PRICE_CHANGED"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func meta(status int, retryable bool, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retryable, PublicMessage: public, DetailsAllowed: details}
}

// Retryable codes are the ones a buyer can resolve by trying again later;
// everything else needs the cart or request changed first.
var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, false, "validation failed", true),
	CodeUnauthorized:  meta(http.StatusUnauthorized, false, "identity required", false),
	CodeNotFound:      meta(http.StatusNotFound, false, "resource not found", false),
	CodeConflict:      meta(http.StatusConflict, false, "conflict detected", true),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, false, "state transition disallowed", true),
	CodeIdempotency:   meta(http.StatusConflict, false, "idempotency key reused", true),
	CodeInternal:      meta(http.StatusInternalServerError, true, "internal server error", false),
	CodeDependency:    meta(http.StatusServiceUnavailable, true, "dependency unavailable", true),

	CodeLimitExceeded:         meta(http.StatusUnprocessableEntity, false, "purchase limit exceeded", true),
	CodeProductUnavailable:    meta(http.StatusUnprocessableEntity, false, "product no longer available", true),
	CodeInsufficientStock:     meta(http.StatusUnprocessableEntity, false, "not enough stock", true),
	CodeNoCommonPaymentMethod: meta(http.StatusUnprocessableEntity, false, "no payment method accepted by every item", true),
	CodeShippingFailed:        meta(http.StatusBadGateway, true, "shipping cost could not be calculated", true),
	CodeSubmissionFailed:      meta(http.StatusConflict, true, "order could not be placed", true),
	CodePersistence:           meta(http.StatusServiceUnavailable, true, "cart could not be saved", false),
	CodePriceChanged:          meta(http.StatusConflict, false, "price changed", true),
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

// Retryable reports whether callers should offer a retry affordance.
func (e *Error) Retryable() bool {
	return MetadataFor(e.Code()).Retryable
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}
