package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// AppError carries the error taxonomy over the controller boundary:
// validation failures never reach the network layer of the review provider,
// remote failures leave prior state intact and are retryable by the user.
type AppError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError is a local pre-flight rejection (empty instructions,
// too-short description, wrong capability count).
func NewValidationError(message string) *AppError {
	return &AppError{Status: fiber.StatusUnprocessableEntity, Code: "VALIDATION_ERROR", Message: message}
}

// NewRemoteCallError reports an upstream generation failure. State is
// unchanged; the caller may retry with the same input.
func NewRemoteCallError(code, message string, cause error) *AppError {
	return &AppError{Status: fiber.StatusBadGateway, Code: code, Message: message, Err: cause}
}

// NewConflictError guards duplicate submission of an in-flight improvement.
func NewConflictError(message string) *AppError {
	return &AppError{Status: fiber.StatusConflict, Code: "IMPROVE_IN_FLIGHT", Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Status: fiber.StatusNotFound, Code: "NOT_FOUND", Message: message}
}

func NewBadRequestError(message string) *AppError {
	return &AppError{Status: fiber.StatusBadRequest, Code: "BAD_REQUEST", Message: message}
}

// ErrorHandlerMiddleware converts errors returned by controllers into the
// JSON error envelope. Unknown errors become opaque 500s.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var appErr *AppError
		if errors.As(err, &appErr) {
			return ctx.Status(appErr.Status).JSON(ErrorResponse{
				Success: false,
				Code:    appErr.Code,
				Message: appErr.Message,
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse{
				Success: false,
				Code:    "HTTP_ERROR",
				Message: fiberErr.Message,
			})
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		})
	}
}
