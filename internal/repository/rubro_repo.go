package repository

import (
	"context"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RubroRepository interface {
	Create(ctx context.Context, r *model.CatalogoRubro) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CatalogoRubro, error)
	// FindPorTipo returns the first active rubro of tipo, or (nil, nil).
	FindPorTipo(ctx context.Context, tx *gorm.DB, tipo string) (*model.CatalogoRubro, error)
	Update(ctx context.Context, r *model.CatalogoRubro) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, soloActivos bool) ([]model.CatalogoRubro, error)
}

type rubroRepo struct{ db *gorm.DB }

func NewRubroRepository(db *gorm.DB) RubroRepository { return &rubroRepo{db: db} }

func (r *rubroRepo) Create(ctx context.Context, rb *model.CatalogoRubro) error {
	return TranslateError(r.db.WithContext(ctx).Create(rb).Error, "rubro", rb.Codigo)
}

func (r *rubroRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CatalogoRubro, error) {
	var rb model.CatalogoRubro
	// Unscoped: receivables may reference a retired rubro.
	err := q(ctx, r.db, tx).Unscoped().First(&rb, "id = ?", id).Error
	return &rb, TranslateError(err, "rubro", id)
}

func (r *rubroRepo) FindPorTipo(ctx context.Context, tx *gorm.DB, tipo string) (*model.CatalogoRubro, error) {
	return firstOrNil[model.CatalogoRubro](
		q(ctx, r.db, tx).Where("tipo = ? AND activo = true", tipo).Order("created_at"), "rubro")
}

func (r *rubroRepo) Update(ctx context.Context, rb *model.CatalogoRubro) error {
	return TranslateError(r.db.WithContext(ctx).Save(rb).Error, "rubro", rb.ID)
}

func (r *rubroRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.CatalogoRubro{}, "id = ?", id)
	if res.Error == nil && res.RowsAffected == 0 {
		return TranslateError(gorm.ErrRecordNotFound, "rubro", id)
	}
	return TranslateError(res.Error, "rubro", id)
}

func (r *rubroRepo) List(ctx context.Context, soloActivos bool) ([]model.CatalogoRubro, error) {
	var out []model.CatalogoRubro
	db := r.db.WithContext(ctx)
	if soloActivos {
		db = db.Where("activo = true")
	}
	err := db.Order("tipo, codigo").Find(&out).Error
	return out, TranslateError(err, "rubro", "")
}
