package repository

import (
	"context"
	"errors"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SecuencialRepository is the only writer of sri_secuenciales.
type SecuencialRepository interface {
	// Reserve must run inside the transaction that persists the invoice
	// using the number: a rollback releases the reservation.
	Reserve(ctx context.Context, tx *gorm.DB, establecimiento, puntoEmision, tipoDocumento string) (int64, error)
	// Actual reads the last reserved number without locking.
	Actual(ctx context.Context, establecimiento, puntoEmision, tipoDocumento string) (int64, error)
}

type secuencialRepo struct{ db *gorm.DB }

func NewSecuencialRepository(db *gorm.DB) SecuencialRepository { return &secuencialRepo{db: db} }

func (r *secuencialRepo) Reserve(ctx context.Context, tx *gorm.DB, establecimiento, puntoEmision, tipoDocumento string) (int64, error) {
	if tx == nil {
		return 0, errors.New("secuencial: Reserve requires a transaction")
	}
	db := tx.WithContext(ctx)

	// Lazily create the counter; concurrent creators collapse on the unique triple.
	seed := model.SRISecuencial{
		Establecimiento: establecimiento,
		PuntoEmision:    puntoEmision,
		TipoDocumento:   tipoDocumento,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, TranslateError(err, "sri_secuencial", establecimiento+"-"+puntoEmision)
	}

	var row model.SRISecuencial
	err := forUpdate(db).
		Where("establecimiento = ? AND punto_emision = ? AND tipo_documento = ?", establecimiento, puntoEmision, tipoDocumento).
		First(&row).Error
	if err != nil {
		return 0, TranslateError(err, "sri_secuencial", establecimiento+"-"+puntoEmision)
	}

	row.Actual++
	if err := db.Model(&row).Update("actual", row.Actual).Error; err != nil {
		return 0, TranslateError(err, "sri_secuencial", row.ID)
	}
	return row.Actual, nil
}

func (r *secuencialRepo) Actual(ctx context.Context, establecimiento, puntoEmision, tipoDocumento string) (int64, error) {
	var row model.SRISecuencial
	err := r.db.WithContext(ctx).
		Where("establecimiento = ? AND punto_emision = ? AND tipo_documento = ?", establecimiento, puntoEmision, tipoDocumento).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return row.Actual, TranslateError(err, "sri_secuencial", establecimiento+"-"+puntoEmision)
}
