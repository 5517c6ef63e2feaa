package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/ridepass/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, conflict, internal_error, ...
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
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

// errForbidden returns a 403 error.
func errForbidden(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusForbidden, "forbidden", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusConflict, "conflict", msg)
}

// errUpstream returns a 502 error for a failed backing-store call.
func errUpstream(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadGateway, "upstream_error", msg)
}

// mapError translates a domain error into the matching HTTP response.
func mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return errConflict(c, err.Error())
	case errors.Is(err, domain.ErrAccessDenied):
		return errForbidden(c, err.Error())
	case errors.Is(err, domain.ErrInvalidCoordinate):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrFetchFailed), errors.Is(err, domain.ErrWriteFailed):
		LoggerFromCtx(c.UserContext()).Error("backing store call failed", "error", err)
		return errUpstream(c, err.Error())
	default:
		LoggerFromCtx(c.UserContext()).Error("unhandled error", "error", err)
		return errInternal(c, err.Error())
	}
}
