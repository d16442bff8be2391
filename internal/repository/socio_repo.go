package repository

import (
	"context"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SocioFilter narrows socio listings.
type SocioFilter struct {
	BarrioID *uuid.UUID
	Texto    string
	Activo   *bool
	Page     int
	Limit    int
}

// SocioRepository also owns barrios and terrenos, which are only ever read
// together with their socio.
type SocioRepository interface {
	Create(ctx context.Context, tx *gorm.DB, s *model.Socio) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Socio, error)
	FindByIdentificacion(ctx context.Context, identificacion string) (*model.Socio, error)
	// FindByUsuario returns (nil, nil) when the account belongs to staff.
	FindByUsuario(ctx context.Context, usuarioID uuid.UUID) (*model.Socio, error)
	// LockByID takes the socio row lock that serializes all ledger writes.
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Socio, error)
	Update(ctx context.Context, tx *gorm.DB, s *model.Socio) error
	ListActivos(ctx context.Context, tx *gorm.DB, barrioID *uuid.UUID) ([]model.Socio, error)
	ListByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]model.Socio, error)
	List(ctx context.Context, filter SocioFilter) ([]model.Socio, int64, error)

	CreateBarrio(ctx context.Context, b *model.Barrio) error
	FindBarrio(ctx context.Context, id uuid.UUID) (*model.Barrio, error)
	ListBarrios(ctx context.Context) ([]model.Barrio, error)
	DeleteBarrio(ctx context.Context, id uuid.UUID) error

	CreateTerreno(ctx context.Context, tx *gorm.DB, t *model.Terreno) error
	FindTerreno(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Terreno, error)
	UpdateTerreno(ctx context.Context, tx *gorm.DB, t *model.Terreno) error
	ListTerrenos(ctx context.Context, socioID uuid.UUID) ([]model.Terreno, error)
}

type socioRepo struct{ db *gorm.DB }

func NewSocioRepository(db *gorm.DB) SocioRepository { return &socioRepo{db: db} }

func (r *socioRepo) Create(ctx context.Context, tx *gorm.DB, s *model.Socio) error {
	return TranslateError(q(ctx, r.db, tx).Create(s).Error, "socio", s.Identificacion)
}

func (r *socioRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Socio, error) {
	var s model.Socio
	err := q(ctx, r.db, tx).First(&s, "id = ?", id).Error
	return &s, TranslateError(err, "socio", id)
}

func (r *socioRepo) FindByIdentificacion(ctx context.Context, identificacion string) (*model.Socio, error) {
	var s model.Socio
	err := r.db.WithContext(ctx).Where("identificacion = ?", identificacion).First(&s).Error
	return &s, TranslateError(err, "socio", identificacion)
}

func (r *socioRepo) FindByUsuario(ctx context.Context, usuarioID uuid.UUID) (*model.Socio, error) {
	return firstOrNil[model.Socio](r.db.WithContext(ctx).Where("usuario_id = ?", usuarioID), "socio")
}

func (r *socioRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Socio, error) {
	var s model.Socio
	err := forUpdate(q(ctx, r.db, tx)).First(&s, "id = ?", id).Error
	return &s, TranslateError(err, "socio", id)
}

func (r *socioRepo) Update(ctx context.Context, tx *gorm.DB, s *model.Socio) error {
	return TranslateError(q(ctx, r.db, tx).Save(s).Error, "socio", s.ID)
}

func (r *socioRepo) ListActivos(ctx context.Context, tx *gorm.DB, barrioID *uuid.UUID) ([]model.Socio, error) {
	var out []model.Socio
	db := q(ctx, r.db, tx).Where("activo = true")
	if barrioID != nil {
		db = db.Where("barrio_id = ?", *barrioID)
	}
	err := db.Order("apellidos, nombres").Find(&out).Error
	return out, TranslateError(err, "socio", "")
}

func (r *socioRepo) ListByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]model.Socio, error) {
	var out []model.Socio
	err := q(ctx, r.db, tx).Where("id IN ?", ids).Find(&out).Error
	return out, TranslateError(err, "socio", "")
}

func (r *socioRepo) List(ctx context.Context, filter SocioFilter) ([]model.Socio, int64, error) {
	db := r.db.WithContext(ctx).Model(&model.Socio{})
	if filter.BarrioID != nil {
		db = db.Where("barrio_id = ?", *filter.BarrioID)
	}
	if filter.Activo != nil {
		db = db.Where("activo = ?", *filter.Activo)
	}
	if filter.Texto != "" {
		like := "%" + filter.Texto + "%"
		db = db.Where("identificacion ILIKE ? OR nombres ILIKE ? OR apellidos ILIKE ?", like, like, like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, TranslateError(err, "socio", "")
	}
	page, limit := paginate(filter.Page, filter.Limit)
	var out []model.Socio
	err := db.Order("apellidos, nombres").Offset((page - 1) * limit).Limit(limit).Find(&out).Error
	return out, total, TranslateError(err, "socio", "")
}

func (r *socioRepo) CreateBarrio(ctx context.Context, b *model.Barrio) error {
	return TranslateError(r.db.WithContext(ctx).Create(b).Error, "barrio", b.Nombre)
}

func (r *socioRepo) FindBarrio(ctx context.Context, id uuid.UUID) (*model.Barrio, error) {
	var b model.Barrio
	err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error
	return &b, TranslateError(err, "barrio", id)
}

func (r *socioRepo) ListBarrios(ctx context.Context) ([]model.Barrio, error) {
	var out []model.Barrio
	err := r.db.WithContext(ctx).Order("nombre").Find(&out).Error
	return out, TranslateError(err, "barrio", "")
}

func (r *socioRepo) DeleteBarrio(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.Barrio{}, "id = ?", id)
	if res.Error == nil && res.RowsAffected == 0 {
		return TranslateError(gorm.ErrRecordNotFound, "barrio", id)
	}
	return TranslateError(res.Error, "barrio", id)
}

func (r *socioRepo) CreateTerreno(ctx context.Context, tx *gorm.DB, t *model.Terreno) error {
	return TranslateError(q(ctx, r.db, tx).Create(t).Error, "terreno", t.Direccion)
}

func (r *socioRepo) FindTerreno(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Terreno, error) {
	var t model.Terreno
	err := q(ctx, r.db, tx).First(&t, "id = ?", id).Error
	return &t, TranslateError(err, "terreno", id)
}

func (r *socioRepo) UpdateTerreno(ctx context.Context, tx *gorm.DB, t *model.Terreno) error {
	return TranslateError(q(ctx, r.db, tx).Save(t).Error, "terreno", t.ID)
}

func (r *socioRepo) ListTerrenos(ctx context.Context, socioID uuid.UUID) ([]model.Terreno, error) {
	var out []model.Terreno
	err := r.db.WithContext(ctx).Where("socio_id = ?", socioID).Order("created_at").Find(&out).Error
	return out, TranslateError(err, "terreno", "")
}

func paginate(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return page, limit
}
