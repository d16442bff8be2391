package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgreSQL SQLSTATE codes the repositories translate.
const (
	pgUniqueViolation      = "23505"
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
)

// TranslateError maps driver errors onto the failure taxonomy. Errors that
// already belong to the taxonomy pass through untouched.
func TranslateError(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(entity, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperror.IntegrityConflict(entity+":"+pgErr.ConstraintName, err)
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return apperror.Concurrency(entity, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.Concurrency(entity, err)
	}
	return fmt.Errorf("%s: %w", entity, err)
}

// q returns the transaction when present, the pool otherwise.
func q(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// forUpdate adds SELECT ... FOR UPDATE.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// firstOrNil returns (nil, nil) when no row matches.
func firstOrNil[T any](db *gorm.DB, entity string) (*T, error) {
	var out T
	err := db.First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, TranslateError(err, entity, "")
	}
	return &out, nil
}
