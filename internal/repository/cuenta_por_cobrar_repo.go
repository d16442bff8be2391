package repository

import (
	"context"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ResumenDeuda aggregates the open receivables of one socio.
type ResumenDeuda struct {
	SocioID         uuid.UUID       `json:"socio_id"`
	Total           decimal.Decimal `json:"total"`
	Vencido         decimal.Decimal `json:"vencido"`
	Cuentas         int             `json:"cuentas"`
	CuentasVencidas int             `json:"cuentas_vencidas"`
}

// CuentaPorCobrarFilter narrows ledger listings.
type CuentaPorCobrarFilter struct {
	SocioID *uuid.UUID
	Estado  string
	Page    int
	Limit   int
}

// CuentaPorCobrarRepository is written only by the ledger service.
type CuentaPorCobrarRepository interface {
	Create(ctx context.Context, tx *gorm.DB, c *model.CuentaPorCobrar) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CuentaPorCobrar, error)
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CuentaPorCobrar, error)
	// FindByOrigen returns (nil, nil) when the idempotency key is unused.
	FindByOrigen(ctx context.Context, tx *gorm.DB, socioID uuid.UUID, origen string) (*model.CuentaPorCobrar, error)
	// LockPendientesBySocio locks the payable receivables of a socio in FIFO
	// order: fecha_emision, created_at, id.
	LockPendientesBySocio(ctx context.Context, tx *gorm.DB, socioID uuid.UUID) ([]model.CuentaPorCobrar, error)
	ListPendientesBySocio(ctx context.Context, tx *gorm.DB, socioID uuid.UUID) ([]model.CuentaPorCobrar, error)
	LockByFactura(ctx context.Context, tx *gorm.DB, facturaID uuid.UUID) ([]model.CuentaPorCobrar, error)
	ListByFactura(ctx context.Context, tx *gorm.DB, facturaID uuid.UUID) ([]model.CuentaPorCobrar, error)
	Update(ctx context.Context, tx *gorm.DB, c *model.CuentaPorCobrar) error
	ResumenDeuda(ctx context.Context, tx *gorm.DB, socioID uuid.UUID, at time.Time) (ResumenDeuda, error)
	List(ctx context.Context, filter CuentaPorCobrarFilter) ([]model.CuentaPorCobrar, int64, error)
}

type cuentaPorCobrarRepo struct{ db *gorm.DB }

func NewCuentaPorCobrarRepository(db *gorm.DB) CuentaPorCobrarRepository {
	return &cuentaPorCobrarRepo{db: db}
}

func (r *cuentaPorCobrarRepo) Create(ctx context.Context, tx *gorm.DB, c *model.CuentaPorCobrar) error {
	return TranslateError(q(ctx, r.db, tx).Create(c).Error, "cuenta_por_cobrar", c.OrigenReferencia)
}

func (r *cuentaPorCobrarRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CuentaPorCobrar, error) {
	var c model.CuentaPorCobrar
	err := q(ctx, r.db, tx).First(&c, "id = ?", id).Error
	return &c, TranslateError(err, "cuenta_por_cobrar", id)
}

func (r *cuentaPorCobrarRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CuentaPorCobrar, error) {
	var c model.CuentaPorCobrar
	err := forUpdate(q(ctx, r.db, tx)).First(&c, "id = ?", id).Error
	return &c, TranslateError(err, "cuenta_por_cobrar", id)
}

func (r *cuentaPorCobrarRepo) FindByOrigen(ctx context.Context, tx *gorm.DB, socioID uuid.UUID, origen string) (*model.CuentaPorCobrar, error) {
	return firstOrNil[model.CuentaPorCobrar](
		q(ctx, r.db, tx).Where("socio_id = ? AND origen_referencia = ?", socioID, origen), "cuenta_por_cobrar")
}

func (r *cuentaPorCobrarRepo) pendientes(db *gorm.DB, socioID uuid.UUID) *gorm.DB {
	return db.Where("socio_id = ? AND saldo_pendiente > 0 AND estado IN ?", socioID, model.EstadosCxCImputables).
		Order("fecha_emision ASC, created_at ASC, id ASC")
}

func (r *cuentaPorCobrarRepo) LockPendientesBySocio(ctx context.Context, tx *gorm.DB, socioID uuid.UUID) ([]model.CuentaPorCobrar, error) {
	var out []model.CuentaPorCobrar
	err := r.pendientes(forUpdate(q(ctx, r.db, tx)), socioID).Find(&out).Error
	return out, TranslateError(err, "cuenta_por_cobrar", socioID)
}

func (r *cuentaPorCobrarRepo) ListPendientesBySocio(ctx context.Context, tx *gorm.DB, socioID uuid.UUID) ([]model.CuentaPorCobrar, error) {
	var out []model.CuentaPorCobrar
	err := r.pendientes(q(ctx, r.db, tx), socioID).Find(&out).Error
	return out, TranslateError(err, "cuenta_por_cobrar", socioID)
}

func (r *cuentaPorCobrarRepo) LockByFactura(ctx context.Context, tx *gorm.DB, facturaID uuid.UUID) ([]model.CuentaPorCobrar, error) {
	var out []model.CuentaPorCobrar
	err := forUpdate(q(ctx, r.db, tx)).Where("factura_id = ?", facturaID).
		Order("fecha_emision ASC, created_at ASC, id ASC").Find(&out).Error
	return out, TranslateError(err, "cuenta_por_cobrar", facturaID)
}

func (r *cuentaPorCobrarRepo) ListByFactura(ctx context.Context, tx *gorm.DB, facturaID uuid.UUID) ([]model.CuentaPorCobrar, error) {
	var out []model.CuentaPorCobrar
	err := q(ctx, r.db, tx).Where("factura_id = ?", facturaID).
		Order("fecha_emision ASC, created_at ASC, id ASC").Find(&out).Error
	return out, TranslateError(err, "cuenta_por_cobrar", facturaID)
}

func (r *cuentaPorCobrarRepo) Update(ctx context.Context, tx *gorm.DB, c *model.CuentaPorCobrar) error {
	return TranslateError(q(ctx, r.db, tx).Save(c).Error, "cuenta_por_cobrar", c.ID)
}

func (r *cuentaPorCobrarRepo) ResumenDeuda(ctx context.Context, tx *gorm.DB, socioID uuid.UUID, at time.Time) (ResumenDeuda, error) {
	var row struct {
		Total           decimal.Decimal
		Vencido         decimal.Decimal
		Cuentas         int
		CuentasVencidas int
	}
	err := q(ctx, r.db, tx).Model(&model.CuentaPorCobrar{}).
		Select(`COALESCE(SUM(saldo_pendiente), 0) AS total,
			COALESCE(SUM(saldo_pendiente) FILTER (WHERE fecha_vencimiento < ?), 0) AS vencido,
			COUNT(*) AS cuentas,
			COUNT(*) FILTER (WHERE fecha_vencimiento < ?) AS cuentas_vencidas`, at, at).
		Where("socio_id = ? AND saldo_pendiente > 0 AND estado IN ?", socioID, model.EstadosCxCAbiertos).
		Scan(&row).Error
	if err != nil {
		return ResumenDeuda{}, TranslateError(err, "cuenta_por_cobrar", socioID)
	}
	return ResumenDeuda{
		SocioID:         socioID,
		Total:           row.Total,
		Vencido:         row.Vencido,
		Cuentas:         row.Cuentas,
		CuentasVencidas: row.CuentasVencidas,
	}, nil
}

func (r *cuentaPorCobrarRepo) List(ctx context.Context, filter CuentaPorCobrarFilter) ([]model.CuentaPorCobrar, int64, error) {
	db := r.db.WithContext(ctx).Model(&model.CuentaPorCobrar{})
	if filter.SocioID != nil {
		db = db.Where("socio_id = ?", *filter.SocioID)
	}
	if filter.Estado != "" {
		db = db.Where("estado = ?", filter.Estado)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, TranslateError(err, "cuenta_por_cobrar", "")
	}
	page, limit := paginate(filter.Page, filter.Limit)
	var out []model.CuentaPorCobrar
	err := db.Order("fecha_emision DESC, created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&out).Error
	return out, total, TranslateError(err, "cuenta_por_cobrar", "")
}
