package repository

import (
	"context"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventoRepository covers events, their attendance rows and justification requests.
type EventoRepository interface {
	Create(ctx context.Context, tx *gorm.DB, e *model.Evento) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Evento, error)
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Evento, error)
	Update(ctx context.Context, tx *gorm.DB, e *model.Evento) error
	List(ctx context.Context, estado string) ([]model.Evento, error)

	CreateAsistencias(ctx context.Context, tx *gorm.DB, as []model.Asistencia) error
	FindAsistencia(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Asistencia, error)
	LockAsistencia(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Asistencia, error)
	LockAsistenciasByEvento(ctx context.Context, tx *gorm.DB, eventoID uuid.UUID) ([]model.Asistencia, error)
	ListAsistencias(ctx context.Context, tx *gorm.DB, eventoID uuid.UUID) ([]model.Asistencia, error)
	UpdateAsistencia(ctx context.Context, tx *gorm.DB, a *model.Asistencia) error

	CreateJustificacion(ctx context.Context, tx *gorm.DB, s *model.SolicitudJustificacion) error
	LockJustificacion(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.SolicitudJustificacion, error)
	// FindJustificacionByAsistencia returns (nil, nil) when none was filed.
	FindJustificacionByAsistencia(ctx context.Context, tx *gorm.DB, asistenciaID uuid.UUID) (*model.SolicitudJustificacion, error)
	UpdateJustificacion(ctx context.Context, tx *gorm.DB, s *model.SolicitudJustificacion) error
	ListJustificaciones(ctx context.Context, estado string) ([]model.SolicitudJustificacion, error)
}

type eventoRepo struct{ db *gorm.DB }

func NewEventoRepository(db *gorm.DB) EventoRepository { return &eventoRepo{db: db} }

func (r *eventoRepo) Create(ctx context.Context, tx *gorm.DB, e *model.Evento) error {
	return TranslateError(q(ctx, r.db, tx).Create(e).Error, "evento", e.Nombre)
}

func (r *eventoRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Evento, error) {
	var e model.Evento
	err := q(ctx, r.db, tx).First(&e, "id = ?", id).Error
	return &e, TranslateError(err, "evento", id)
}

func (r *eventoRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Evento, error) {
	var e model.Evento
	err := forUpdate(q(ctx, r.db, tx)).First(&e, "id = ?", id).Error
	return &e, TranslateError(err, "evento", id)
}

func (r *eventoRepo) Update(ctx context.Context, tx *gorm.DB, e *model.Evento) error {
	return TranslateError(q(ctx, r.db, tx).Save(e).Error, "evento", e.ID)
}

func (r *eventoRepo) List(ctx context.Context, estado string) ([]model.Evento, error) {
	var out []model.Evento
	db := r.db.WithContext(ctx)
	if estado != "" {
		db = db.Where("estado = ?", estado)
	}
	err := db.Order("fecha DESC").Find(&out).Error
	return out, TranslateError(err, "evento", "")
}

func (r *eventoRepo) CreateAsistencias(ctx context.Context, tx *gorm.DB, as []model.Asistencia) error {
	if len(as) == 0 {
		return nil
	}
	return TranslateError(q(ctx, r.db, tx).CreateInBatches(&as, 200).Error, "asistencia", as[0].EventoID)
}

func (r *eventoRepo) FindAsistencia(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Asistencia, error) {
	var a model.Asistencia
	err := q(ctx, r.db, tx).First(&a, "id = ?", id).Error
	return &a, TranslateError(err, "asistencia", id)
}

func (r *eventoRepo) LockAsistencia(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Asistencia, error) {
	var a model.Asistencia
	err := forUpdate(q(ctx, r.db, tx)).First(&a, "id = ?", id).Error
	return &a, TranslateError(err, "asistencia", id)
}

func (r *eventoRepo) LockAsistenciasByEvento(ctx context.Context, tx *gorm.DB, eventoID uuid.UUID) ([]model.Asistencia, error) {
	var out []model.Asistencia
	err := forUpdate(q(ctx, r.db, tx)).Where("evento_id = ?", eventoID).Order("socio_id").Find(&out).Error
	return out, TranslateError(err, "asistencia", eventoID)
}

func (r *eventoRepo) ListAsistencias(ctx context.Context, tx *gorm.DB, eventoID uuid.UUID) ([]model.Asistencia, error) {
	var out []model.Asistencia
	err := q(ctx, r.db, tx).Where("evento_id = ?", eventoID).Order("socio_id").Find(&out).Error
	return out, TranslateError(err, "asistencia", eventoID)
}

func (r *eventoRepo) UpdateAsistencia(ctx context.Context, tx *gorm.DB, a *model.Asistencia) error {
	return TranslateError(q(ctx, r.db, tx).Save(a).Error, "asistencia", a.ID)
}

func (r *eventoRepo) CreateJustificacion(ctx context.Context, tx *gorm.DB, s *model.SolicitudJustificacion) error {
	return TranslateError(q(ctx, r.db, tx).Create(s).Error, "solicitud_justificacion", s.AsistenciaID)
}

func (r *eventoRepo) LockJustificacion(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.SolicitudJustificacion, error) {
	var s model.SolicitudJustificacion
	err := forUpdate(q(ctx, r.db, tx)).First(&s, "id = ?", id).Error
	return &s, TranslateError(err, "solicitud_justificacion", id)
}

func (r *eventoRepo) FindJustificacionByAsistencia(ctx context.Context, tx *gorm.DB, asistenciaID uuid.UUID) (*model.SolicitudJustificacion, error) {
	return firstOrNil[model.SolicitudJustificacion](
		q(ctx, r.db, tx).Where("asistencia_id = ?", asistenciaID), "solicitud_justificacion")
}

func (r *eventoRepo) UpdateJustificacion(ctx context.Context, tx *gorm.DB, s *model.SolicitudJustificacion) error {
	return TranslateError(q(ctx, r.db, tx).Save(s).Error, "solicitud_justificacion", s.ID)
}

func (r *eventoRepo) ListJustificaciones(ctx context.Context, estado string) ([]model.SolicitudJustificacion, error) {
	var out []model.SolicitudJustificacion
	db := r.db.WithContext(ctx)
	if estado != "" {
		db = db.Where("estado = ?", estado)
	}
	err := db.Order("created_at ASC").Find(&out).Error
	return out, TranslateError(err, "solicitud_justificacion", "")
}
