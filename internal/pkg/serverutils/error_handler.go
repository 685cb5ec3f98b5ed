package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware renders errors returned by downstream handlers as
// JSON. Unknown errors become a generic 500 so internals never leak.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, message := classify(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

// ErrorHandler is the fiber.Config hook for errors that escape middleware.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code, message := classify(err)
	return ctx.Status(code).JSON(ErrorResponse(code, message))
}

func classify(err error) (int, string) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return fiber.StatusBadRequest, verr.Error()
	}
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return ferr.Code, ferr.Message
	}
	return fiber.StatusInternalServerError, "Internal server error"
}
