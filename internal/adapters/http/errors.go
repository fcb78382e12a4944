package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status     int    `json:"status"`
	Code       string `json:"code"`           // bad_request, not_found, upstream_error, timeout, internal_error
	Kind       string `json:"kind,omitempty"` // pipeline error kind, e.g. TimeoutError
	Message    string `json:"message"`
	StatusCode int    `json:"upstream_status,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	return writeError(c, APIError{Status: status, Code: code, Message: message})
}

func writeError(c *fiber.Ctx, body APIError) error {
	body.RequestID, _ = c.Locals("requestid").(string)
	return c.Status(body.Status).JSON(body)
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// StatusFor maps a pipeline error to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	if errors.Is(err, domain.ErrNotFound) {
		return fiber.StatusNotFound, "not_found"
	}
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		return fiber.StatusBadRequest, "bad_request"
	case domain.KindInvalidResponse, domain.KindTransport:
		return fiber.StatusBadGateway, "upstream_error"
	case domain.KindTimeout:
		return fiber.StatusGatewayTimeout, "timeout"
	}
	return fiber.StatusInternalServerError, "internal_error"
}

// errFrom writes err using the kind-to-status mapping. Internal errors are
// logged and their details withheld.
func errFrom(c *fiber.Ctx, err error) error {
	status, code := StatusFor(err)
	body := APIError{Status: status, Code: code, Message: err.Error()}

	var ae *domain.AppError
	if errors.As(err, &ae) {
		body.Kind = string(ae.Kind)
		body.StatusCode = ae.StatusCode
	}
	if status == fiber.StatusInternalServerError {
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		body.Message = "internal error"
	}
	return writeError(c, body)
}
