package repository

import (
	"context"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FacturaFilter narrows invoice listings.
type FacturaFilter struct {
	SocioID     *uuid.UUID
	Estado      string
	EstadoSRI   string
	PeriodoAnio int
	PeriodoMes  int
	Page        int
	Limit       int
}

type FacturaRepository interface {
	// Create persists the invoice and its lines.
	Create(ctx context.Context, tx *gorm.DB, f *model.Factura) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Factura, error)
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Factura, error)
	FindByClave(ctx context.Context, tx *gorm.DB, clave string) (*model.Factura, error)
	// FindByLectura and FindByServicioPeriodo return (nil, nil) on a miss.
	FindByLectura(ctx context.Context, tx *gorm.DB, lecturaID uuid.UUID) (*model.Factura, error)
	FindByServicioPeriodo(ctx context.Context, tx *gorm.DB, servicioID uuid.UUID, anio, mes int) (*model.Factura, error)
	UpdateEstado(ctx context.Context, tx *gorm.DB, id uuid.UUID, estado string) error
	// UpdateFiscal writes the fiscal and reconciler columns. It refuses to
	// touch an invoice the SRI already authorized.
	UpdateFiscal(ctx context.Context, tx *gorm.DB, f *model.Factura) error
	// ListPendientesSRI returns invoices whose fiscal outcome is still open
	// and whose next retry is due.
	ListPendientesSRI(ctx context.Context, now time.Time, limit int) ([]model.Factura, error)
	List(ctx context.Context, filter FacturaFilter) ([]model.Factura, int64, error)
}

type facturaRepo struct{ db *gorm.DB }

func NewFacturaRepository(db *gorm.DB) FacturaRepository { return &facturaRepo{db: db} }

// fiscalColumns are the only columns UpdateFiscal writes.
var fiscalColumns = []string{
	"fecha_emision", "secuencial", "clave_acceso", "clave_quemada", "estado_sri", "mensajes_sri",
	"xml_firmado", "xml_autorizado", "numero_autorizacion", "fecha_autorizacion",
	"reenvio_realizado", "retry_count", "next_retry_at", "last_error", "updated_at",
}

// Estados SRI the reconciler still has to drive to a terminal state.
var estadosSRIAbiertos = []string{model.SRIEnvioEnCurso, model.SRIRecibida, model.SRIEnProceso, model.SRINoEncontrado, model.SRIRechazado}

func (r *facturaRepo) Create(ctx context.Context, tx *gorm.DB, f *model.Factura) error {
	return TranslateError(q(ctx, r.db, tx).Create(f).Error, "factura", f.ClaveAcceso)
}

func (r *facturaRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Factura, error) {
	var f model.Factura
	err := q(ctx, r.db, tx).Preload("Detalles", func(db *gorm.DB) *gorm.DB {
		return db.Order("orden ASC")
	}).First(&f, "id = ?", id).Error
	return &f, TranslateError(err, "factura", id)
}

func (r *facturaRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Factura, error) {
	var f model.Factura
	err := forUpdate(q(ctx, r.db, tx)).First(&f, "id = ?", id).Error
	return &f, TranslateError(err, "factura", id)
}

func (r *facturaRepo) FindByClave(ctx context.Context, tx *gorm.DB, clave string) (*model.Factura, error) {
	var f model.Factura
	err := q(ctx, r.db, tx).Preload("Detalles").Where("clave_acceso = ?", clave).First(&f).Error
	return &f, TranslateError(err, "factura", clave)
}

func (r *facturaRepo) FindByLectura(ctx context.Context, tx *gorm.DB, lecturaID uuid.UUID) (*model.Factura, error) {
	return firstOrNil[model.Factura](q(ctx, r.db, tx).Where("lectura_id = ?", lecturaID), "factura")
}

func (r *facturaRepo) FindByServicioPeriodo(ctx context.Context, tx *gorm.DB, servicioID uuid.UUID, anio, mes int) (*model.Factura, error) {
	return firstOrNil[model.Factura](q(ctx, r.db, tx).
		Where("servicio_id = ? AND periodo_anio = ? AND periodo_mes = ? AND estado <> ?",
			servicioID, anio, mes, model.FacturaAnulada), "factura")
}

func (r *facturaRepo) UpdateEstado(ctx context.Context, tx *gorm.DB, id uuid.UUID, estado string) error {
	res := q(ctx, r.db, tx).Model(&model.Factura{}).Where("id = ?", id).Update("estado", estado)
	if res.Error == nil && res.RowsAffected == 0 {
		return TranslateError(gorm.ErrRecordNotFound, "factura", id)
	}
	return TranslateError(res.Error, "factura", id)
}

func (r *facturaRepo) UpdateFiscal(ctx context.Context, tx *gorm.DB, f *model.Factura) error {
	f.UpdatedAt = time.Now()
	res := q(ctx, r.db, tx).Model(&model.Factura{}).
		Where("id = ? AND estado_sri IS DISTINCT FROM ?", f.ID, model.SRIAutorizado).
		Select(fiscalColumns).
		Updates(f)
	if res.Error != nil {
		return TranslateError(res.Error, "factura", f.ID)
	}
	if res.RowsAffected == 0 {
		return apperror.BusinessRule(apperror.RuleInvoiceAlreadyAuthorized, "la factura ya fue autorizada por el SRI")
	}
	return nil
}

func (r *facturaRepo) ListPendientesSRI(ctx context.Context, now time.Time, limit int) ([]model.Factura, error) {
	var out []model.Factura
	err := r.db.WithContext(ctx).
		Where("clave_quemada = false AND estado <> ?", model.FacturaAnulada).
		Where("(estado_sri IS NULL OR estado_sri IN ?)", estadosSRIAbiertos).
		Where("next_retry_at IS NOT NULL AND next_retry_at <= ?", now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, TranslateError(err, "factura", "")
}

func (r *facturaRepo) List(ctx context.Context, filter FacturaFilter) ([]model.Factura, int64, error) {
	db := r.db.WithContext(ctx).Model(&model.Factura{})
	if filter.SocioID != nil {
		db = db.Where("socio_id = ?", *filter.SocioID)
	}
	if filter.Estado != "" {
		db = db.Where("estado = ?", filter.Estado)
	}
	if filter.EstadoSRI != "" {
		db = db.Where("estado_sri = ?", filter.EstadoSRI)
	}
	if filter.PeriodoAnio > 0 {
		db = db.Where("periodo_anio = ?", filter.PeriodoAnio)
	}
	if filter.PeriodoMes > 0 {
		db = db.Where("periodo_mes = ?", filter.PeriodoMes)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, TranslateError(err, "factura", "")
	}
	page, limit := paginate(filter.Page, filter.Limit)
	var out []model.Factura
	err := db.Order("fecha_emision DESC, secuencial DESC").Offset((page - 1) * limit).Limit(limit).Find(&out).Error
	return out, total, TranslateError(err, "factura", "")
}
