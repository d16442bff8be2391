package repository

import (
	"context"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovimientoStockFilter defines filters for listing stock movements.
type MovimientoStockFilter struct {
	ProductoID *uuid.UUID
	Tipo       string
	Page       int
	Limit      int
}

type MovimientoStockRepository interface {
	Create(ctx context.Context, tx *gorm.DB, m *model.MovimientoStock) error
	List(ctx context.Context, filter MovimientoStockFilter) ([]model.MovimientoStock, int64, error)
}

type movimientoStockRepo struct{ db *gorm.DB }

func NewMovimientoStockRepository(db *gorm.DB) MovimientoStockRepository {
	return &movimientoStockRepo{db: db}
}

func (r *movimientoStockRepo) Create(ctx context.Context, tx *gorm.DB, m *model.MovimientoStock) error {
	return TranslateError(q(ctx, r.db, tx).Create(m).Error, "movimiento_stock", m.ProductoID)
}

func (r *movimientoStockRepo) List(ctx context.Context, filter MovimientoStockFilter) ([]model.MovimientoStock, int64, error) {
	db := r.db.WithContext(ctx).Model(&model.MovimientoStock{})
	if filter.ProductoID != nil {
		db = db.Where("producto_id = ?", *filter.ProductoID)
	}
	if filter.Tipo != "" {
		db = db.Where("tipo = ?", filter.Tipo)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, TranslateError(err, "movimiento_stock", "")
	}
	page, limit := paginate(filter.Page, filter.Limit)

	var movimientos []model.MovimientoStock
	err := db.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&movimientos).Error
	return movimientos, total, TranslateError(err, "movimiento_stock", "")
}
