package service

import (
	"context"
	"fmt"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"

	"gorm.io/gorm"
)

// Transactor runs fn inside a single database transaction. A nil error
// from fn commits; anything else rolls back.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTransactor struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewTransactor bounds every row-lock wait with SET LOCAL lock_timeout so a
// blocked writer fails with ConcurrencyConflict instead of hanging.
func NewTransactor(db *gorm.DB, lockTimeout time.Duration) Transactor {
	return &gormTransactor{db: db, lockTimeout: lockTimeout}
}

func (t *gormTransactor) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if t.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(tx)
	})
	return repository.TranslateError(err, "transaccion", "")
}

// withinTx joins the caller's transaction when there is one.
func withinTx(ctx context.Context, txr Transactor, tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return txr.Transaction(ctx, fn)
}
