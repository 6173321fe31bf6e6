package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrProductNotFound     = fmt.Errorf("product %w", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrWorldInfoNotFound   = fmt.Errorf("world info %w", ErrNotFound)
	ErrDuplicateCode       = errors.New("product code already exists")
	ErrHasStock            = errors.New("product still has stock")
	ErrDuplicateContent    = errors.New("stock content already exists")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == pqUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pqCode(err) == pqForeignKeyViolation
}
