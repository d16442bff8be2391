package repository

import (
	"context"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TotalPorMetodo is one row of the daily closure.
type TotalPorMetodo struct {
	Metodo   string          `json:"metodo"`
	Total    decimal.Decimal `json:"total"`
	Cantidad int             `json:"cantidad"`
}

type PagoRepository interface {
	// Create persists the header with its tender lines.
	Create(ctx context.Context, tx *gorm.DB, p *model.Pago) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Pago, error)
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Pago, error)
	Update(ctx context.Context, tx *gorm.DB, p *model.Pago) error
	// Delete removes an unvalidated payment and its tender lines.
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	CreateAplicaciones(ctx context.Context, tx *gorm.DB, apps []model.PagoAplicacion) error
	// SumAplicadoCuenta is the total ever applied to a receivable.
	SumAplicadoCuenta(ctx context.Context, tx *gorm.DB, cuentaID uuid.UUID) (decimal.Decimal, error)
	// PendienteFactura returns the unvalidated transfer reported for an invoice, or (nil, nil).
	PendienteFactura(ctx context.Context, tx *gorm.DB, facturaID uuid.UUID) (*model.Pago, error)
	ResumenPorMetodo(ctx context.Context, from, to time.Time) ([]TotalPorMetodo, error)
	ListValidados(ctx context.Context, from, to time.Time) ([]model.Pago, error)
	ListBySocio(ctx context.Context, socioID uuid.UUID) ([]model.Pago, error)
	ListPorValidar(ctx context.Context) ([]model.Pago, error)
}

type pagoRepo struct{ db *gorm.DB }

func NewPagoRepository(db *gorm.DB) PagoRepository { return &pagoRepo{db: db} }

func (r *pagoRepo) Create(ctx context.Context, tx *gorm.DB, p *model.Pago) error {
	return TranslateError(q(ctx, r.db, tx).Omit("Aplicaciones").Create(p).Error, "pago", p.NumeroRecibo)
}

func (r *pagoRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Pago, error) {
	var p model.Pago
	err := q(ctx, r.db, tx).Preload("Detalles").Preload("Aplicaciones").First(&p, "id = ?", id).Error
	return &p, TranslateError(err, "pago", id)
}

func (r *pagoRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Pago, error) {
	var p model.Pago
	err := forUpdate(q(ctx, r.db, tx)).First(&p, "id = ?", id).Error
	if err != nil {
		return &p, TranslateError(err, "pago", id)
	}
	err = q(ctx, r.db, tx).Where("pago_id = ?", id).Find(&p.Detalles).Error
	return &p, TranslateError(err, "pago", id)
}

func (r *pagoRepo) Update(ctx context.Context, tx *gorm.DB, p *model.Pago) error {
	return TranslateError(q(ctx, r.db, tx).Omit("Detalles", "Aplicaciones").Save(p).Error, "pago", p.ID)
}

func (r *pagoRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	db := q(ctx, r.db, tx)
	if err := db.Where("pago_id = ?", id).Delete(&model.DetallePago{}).Error; err != nil {
		return TranslateError(err, "pago", id)
	}
	res := db.Where("id = ? AND validado = false", id).Delete(&model.Pago{})
	if res.Error == nil && res.RowsAffected == 0 {
		return TranslateError(gorm.ErrRecordNotFound, "pago", id)
	}
	return TranslateError(res.Error, "pago", id)
}

func (r *pagoRepo) CreateAplicaciones(ctx context.Context, tx *gorm.DB, apps []model.PagoAplicacion) error {
	if len(apps) == 0 {
		return nil
	}
	return TranslateError(q(ctx, r.db, tx).Create(&apps).Error, "pago_aplicacion", apps[0].PagoID)
}

func (r *pagoRepo) SumAplicadoCuenta(ctx context.Context, tx *gorm.DB, cuentaID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q(ctx, r.db, tx).Model(&model.PagoAplicacion{}).
		Select("COALESCE(SUM(monto), 0)").
		Where("cuenta_por_cobrar_id = ?", cuentaID).
		Scan(&total).Error
	return total, TranslateError(err, "pago_aplicacion", cuentaID)
}

func (r *pagoRepo) PendienteFactura(ctx context.Context, tx *gorm.DB, facturaID uuid.UUID) (*model.Pago, error) {
	return firstOrNil[model.Pago](q(ctx, r.db, tx).Where("factura_id = ? AND validado = false", facturaID), "pago")
}

func (r *pagoRepo) ResumenPorMetodo(ctx context.Context, from, to time.Time) ([]TotalPorMetodo, error) {
	var rows []TotalPorMetodo
	err := r.db.WithContext(ctx).
		Table("detalles_pago d").
		Select("d.metodo AS metodo, COALESCE(SUM(d.monto), 0) AS total, COUNT(DISTINCT d.pago_id) AS cantidad").
		Joins("JOIN pagos p ON p.id = d.pago_id").
		Where("p.validado = true AND p.fecha_pago >= ? AND p.fecha_pago < ?", from, to).
		Group("d.metodo").
		Order("d.metodo").
		Scan(&rows).Error
	return rows, TranslateError(err, "pago", "")
}

func (r *pagoRepo) ListValidados(ctx context.Context, from, to time.Time) ([]model.Pago, error) {
	var out []model.Pago
	err := r.db.WithContext(ctx).Preload("Detalles").
		Where("validado = true AND fecha_pago >= ? AND fecha_pago < ?", from, to).
		Order("fecha_pago ASC").Find(&out).Error
	return out, TranslateError(err, "pago", "")
}

func (r *pagoRepo) ListBySocio(ctx context.Context, socioID uuid.UUID) ([]model.Pago, error) {
	var out []model.Pago
	err := r.db.WithContext(ctx).Preload("Detalles").Preload("Aplicaciones").
		Where("socio_id = ?", socioID).Order("fecha_pago DESC").Find(&out).Error
	return out, TranslateError(err, "pago", socioID)
}

func (r *pagoRepo) ListPorValidar(ctx context.Context) ([]model.Pago, error) {
	var out []model.Pago
	err := r.db.WithContext(ctx).Preload("Detalles").
		Where("validado = false").Order("fecha_pago ASC").Find(&out).Error
	return out, TranslateError(err, "pago", "")
}
