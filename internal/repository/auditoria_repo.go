package repository

import (
	"context"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditoriaRepository is append-only.
type AuditoriaRepository interface {
	Create(ctx context.Context, tx *gorm.DB, a *model.Auditoria) error
	ListByEntidad(ctx context.Context, entidad string, id uuid.UUID) ([]model.Auditoria, error)
}

type auditoriaRepo struct{ db *gorm.DB }

func NewAuditoriaRepository(db *gorm.DB) AuditoriaRepository { return &auditoriaRepo{db: db} }

func (r *auditoriaRepo) Create(ctx context.Context, tx *gorm.DB, a *model.Auditoria) error {
	return TranslateError(q(ctx, r.db, tx).Create(a).Error, "auditoria", a.EntidadID)
}

func (r *auditoriaRepo) ListByEntidad(ctx context.Context, entidad string, id uuid.UUID) ([]model.Auditoria, error) {
	var out []model.Auditoria
	err := r.db.WithContext(ctx).Where("entidad = ? AND entidad_id = ?", entidad, id).
		Order("created_at ASC").Find(&out).Error
	return out, TranslateError(err, "auditoria", id)
}
