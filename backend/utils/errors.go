package utils

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// AppError carries the HTTP status a handler should answer with.
type AppError struct {
	Status int
	Code   string
	Err    error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(status int, code string, err error) *AppError {
	return &AppError{Status: status, Code: code, Err: err}
}

func ErrBadRequest(err error) *AppError {
	return NewAppError(fiber.StatusBadRequest, "bad_request", err)
}

func ErrUnauthorized(err error) *AppError {
	return NewAppError(fiber.StatusUnauthorized, "unauthorized", err)
}

func ErrForbidden(err error) *AppError {
	return NewAppError(fiber.StatusForbidden, "forbidden", err)
}

func ErrNotFound(err error) *AppError {
	return NewAppError(fiber.StatusNotFound, "not_found", err)
}

func ErrInternal(err error) *AppError {
	return NewAppError(fiber.StatusInternalServerError, "internal", err)
}
