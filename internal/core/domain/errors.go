package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies failures that cross a port boundary.
type ErrorKind string

const (
	KindTimeout         ErrorKind = "TimeoutError"
	KindTransport       ErrorKind = "TransportError"
	KindInvalidResponse ErrorKind = "InvalidResponseError"
	KindInvalidInput    ErrorKind = "InvalidInputError"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// AppError is the single user-visible error shape of the pipeline.
type AppError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int           // upstream HTTP status, InvalidResponseError only
	Timeout    time.Duration // configured timeout, TimeoutError only
	Err        error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewTimeoutError reports a call that exceeded its deadline.
func NewTimeoutError(timeout time.Duration, cause error) *AppError {
	return &AppError{Kind: KindTimeout, Message: "Request timed out", Timeout: timeout, Err: cause}
}

// NewTransportError reports a network-level failure.
func NewTransportError(cause error) *AppError {
	msg := "Unknown transport error"
	if cause != nil {
		msg = cause.Error()
	}
	return &AppError{Kind: KindTransport, Message: msg, Err: cause}
}

// NewInvalidResponseError reports an unusable upstream answer. statusCode is 0
// when the failure is not tied to an HTTP status.
func NewInvalidResponseError(msg string, statusCode int) *AppError {
	return &AppError{Kind: KindInvalidResponse, Message: msg, StatusCode: statusCode}
}

// NewInvalidInputError reports bad caller input or geometry.
func NewInvalidInputError(msg string) *AppError {
	return &AppError{Kind: KindInvalidInput, Message: msg}
}

// KindOf returns the kind of the first AppError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsTransient reports whether err is worth retrying: timeouts, transport
// failures and upstream rate limiting (HTTP 429).
func IsTransient(err error) bool {
	var ae *AppError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Kind {
	case KindTimeout, KindTransport:
		return true
	case KindInvalidResponse:
		return ae.StatusCode == 429
	}
	return false
}

// AggregateInvalidResponse folds several failures into one InvalidResponseError
// whose message joins the individual messages with "; ".
func AggregateInvalidResponse(errs []error) *AppError {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			continue
		}
		msgs = append(msgs, err.Error())
	}
	if len(msgs) == 0 {
		msgs = append(msgs, "Unknown error")
	}
	return NewInvalidResponseError(strings.Join(msgs, "; "), 0)
}

// GeoPointError is raised by coordinate validation.
type GeoPointError struct {
	Message string
}

func (e *GeoPointError) Error() string { return e.Message }

// AddressError is raised by address validation.
type AddressError struct {
	Message string
}

func (e *AddressError) Error() string { return e.Message }

// FromDomainError maps validation errors to InvalidInputError. Errors that
// already are AppErrors pass through unchanged.
func FromDomainError(err error) error {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	var gpe *GeoPointError
	if errors.As(err, &gpe) {
		return NewInvalidInputError(gpe.Message)
	}
	var adr *AddressError
	if errors.As(err, &adr) {
		return NewInvalidInputError(adr.Message)
	}
	return &AppError{Kind: KindInvalidInput, Message: "Unknown domain error", Err: err}
}

// ParseAddress trims and validates a free-text street address.
func ParseAddress(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", &AddressError{Message: "Address cannot be empty"}
	}
	if len(trimmed) > 500 {
		return "", &AddressError{Message: fmt.Sprintf("Address too long (max 500 characters, got %d)", len(trimmed))}
	}
	return trimmed, nil
}
