// Package repository is the only code that talks to the database. Lookups
// that find nothing return (nil, nil); storage failures come back as
// INTERNAL_ERROR AppErrors.
package repository

import (
	"errors"
	"strings"

	"microblog/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, pgUniqueViolation)
}

// isForeignKeyError reports a write that referenced a row which no longer exists.
func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

// wrapErr passes AppErrors through and wraps everything else as internal.
// A foreign key violation means a referenced row was deleted after the
// existence checks ran, so it is reported as NOT_FOUND.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if isForeignKeyError(err) {
		return &models.AppError{Code: models.CodeNotFound, Message: "Referenced record not found"}
	}
	return models.NewInternalError(err)
}
