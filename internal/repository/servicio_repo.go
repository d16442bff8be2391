package repository

import (
	"context"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ServicioRepository covers water contracts and their work orders.
type ServicioRepository interface {
	Create(ctx context.Context, tx *gorm.DB, s *model.Servicio) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Servicio, error)
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Servicio, error)
	FindActivoByTerreno(ctx context.Context, tx *gorm.DB, terrenoID uuid.UUID) (*model.Servicio, error)
	Update(ctx context.Context, tx *gorm.DB, s *model.Servicio) error
	ListActivosPorTipo(ctx context.Context, tx *gorm.DB, tipo string) ([]model.Servicio, error)
	ListBySocio(ctx context.Context, tx *gorm.DB, socioID uuid.UUID) ([]model.Servicio, error)
	ListActivos(ctx context.Context, tx *gorm.DB) ([]model.Servicio, error)

	CreateOrden(ctx context.Context, tx *gorm.DB, o *model.OrdenTrabajo) error
	FindOrden(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.OrdenTrabajo, error)
	LockOrden(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.OrdenTrabajo, error)
	// FindOrdenAbierta returns (nil, nil) when no PENDIENTE/EN_PROCESO order of tipo exists.
	FindOrdenAbierta(ctx context.Context, tx *gorm.DB, servicioID uuid.UUID, tipo string) (*model.OrdenTrabajo, error)
	UpdateOrden(ctx context.Context, tx *gorm.DB, o *model.OrdenTrabajo) error
	ListOrdenes(ctx context.Context, estado, tipo string) ([]model.OrdenTrabajo, error)
}

type servicioRepo struct{ db *gorm.DB }

func NewServicioRepository(db *gorm.DB) ServicioRepository { return &servicioRepo{db: db} }

func (r *servicioRepo) Create(ctx context.Context, tx *gorm.DB, s *model.Servicio) error {
	return TranslateError(q(ctx, r.db, tx).Create(s).Error, "servicio", s.TerrenoID)
}

func (r *servicioRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Servicio, error) {
	var s model.Servicio
	err := q(ctx, r.db, tx).First(&s, "id = ?", id).Error
	return &s, TranslateError(err, "servicio", id)
}

func (r *servicioRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Servicio, error) {
	var s model.Servicio
	err := forUpdate(q(ctx, r.db, tx)).First(&s, "id = ?", id).Error
	return &s, TranslateError(err, "servicio", id)
}

func (r *servicioRepo) FindActivoByTerreno(ctx context.Context, tx *gorm.DB, terrenoID uuid.UUID) (*model.Servicio, error) {
	return firstOrNil[model.Servicio](q(ctx, r.db, tx).Where("terreno_id = ? AND activo = true", terrenoID), "servicio")
}

func (r *servicioRepo) Update(ctx context.Context, tx *gorm.DB, s *model.Servicio) error {
	return TranslateError(q(ctx, r.db, tx).Save(s).Error, "servicio", s.ID)
}

func (r *servicioRepo) ListActivosPorTipo(ctx context.Context, tx *gorm.DB, tipo string) ([]model.Servicio, error) {
	var out []model.Servicio
	err := q(ctx, r.db, tx).Where("activo = true AND tipo = ?", tipo).Order("created_at").Find(&out).Error
	return out, TranslateError(err, "servicio", "")
}

func (r *servicioRepo) ListBySocio(ctx context.Context, tx *gorm.DB, socioID uuid.UUID) ([]model.Servicio, error) {
	var out []model.Servicio
	err := q(ctx, r.db, tx).Where("socio_id = ?", socioID).Order("created_at").Find(&out).Error
	return out, TranslateError(err, "servicio", "")
}

func (r *servicioRepo) ListActivos(ctx context.Context, tx *gorm.DB) ([]model.Servicio, error) {
	var out []model.Servicio
	err := q(ctx, r.db, tx).Where("activo = true").Order("socio_id, created_at").Find(&out).Error
	return out, TranslateError(err, "servicio", "")
}

func (r *servicioRepo) CreateOrden(ctx context.Context, tx *gorm.DB, o *model.OrdenTrabajo) error {
	return TranslateError(q(ctx, r.db, tx).Create(o).Error, "orden_trabajo", o.ServicioID)
}

func (r *servicioRepo) FindOrden(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.OrdenTrabajo, error) {
	var o model.OrdenTrabajo
	err := q(ctx, r.db, tx).First(&o, "id = ?", id).Error
	return &o, TranslateError(err, "orden_trabajo", id)
}

func (r *servicioRepo) LockOrden(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.OrdenTrabajo, error) {
	var o model.OrdenTrabajo
	err := forUpdate(q(ctx, r.db, tx)).First(&o, "id = ?", id).Error
	return &o, TranslateError(err, "orden_trabajo", id)
}

func (r *servicioRepo) FindOrdenAbierta(ctx context.Context, tx *gorm.DB, servicioID uuid.UUID, tipo string) (*model.OrdenTrabajo, error) {
	return firstOrNil[model.OrdenTrabajo](q(ctx, r.db, tx).
		Where("servicio_id = ? AND tipo = ? AND estado IN ?", servicioID, tipo,
			[]string{model.OrdenPendiente, model.OrdenEnProceso}), "orden_trabajo")
}

func (r *servicioRepo) UpdateOrden(ctx context.Context, tx *gorm.DB, o *model.OrdenTrabajo) error {
	return TranslateError(q(ctx, r.db, tx).Save(o).Error, "orden_trabajo", o.ID)
}

func (r *servicioRepo) ListOrdenes(ctx context.Context, estado, tipo string) ([]model.OrdenTrabajo, error) {
	var out []model.OrdenTrabajo
	db := r.db.WithContext(ctx)
	if estado != "" {
		db = db.Where("estado = ?", estado)
	}
	if tipo != "" {
		db = db.Where("tipo = ?", tipo)
	}
	err := db.Order("created_at DESC").Find(&out).Error
	return out, TranslateError(err, "orden_trabajo", "")
}
