package repository

import (
	"context"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MedidorRepository covers meters and their append-only readings.
type MedidorRepository interface {
	Create(ctx context.Context, tx *gorm.DB, m *model.Medidor) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Medidor, error)
	FindByCodigo(ctx context.Context, tx *gorm.DB, codigo string) (*model.Medidor, error)
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Medidor, error)
	// FindActivoByTerreno returns (nil, nil) when the terreno has no active meter.
	FindActivoByTerreno(ctx context.Context, tx *gorm.DB, terrenoID uuid.UUID) (*model.Medidor, error)
	Update(ctx context.Context, tx *gorm.DB, m *model.Medidor) error
	List(ctx context.Context, estado string) ([]model.Medidor, error)

	CreateLectura(ctx context.Context, tx *gorm.DB, l *model.Lectura) error
	FindLectura(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Lectura, error)
	LockLectura(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Lectura, error)
	// UltimaLectura returns (nil, nil) for a meter without readings.
	UltimaLectura(ctx context.Context, tx *gorm.DB, medidorID uuid.UUID) (*model.Lectura, error)
	MarcarFacturada(ctx context.Context, tx *gorm.DB, lecturaID uuid.UUID) error
	ListLecturas(ctx context.Context, medidorID uuid.UUID) ([]model.Lectura, error)
}

type medidorRepo struct{ db *gorm.DB }

func NewMedidorRepository(db *gorm.DB) MedidorRepository { return &medidorRepo{db: db} }

func (r *medidorRepo) Create(ctx context.Context, tx *gorm.DB, m *model.Medidor) error {
	return TranslateError(q(ctx, r.db, tx).Create(m).Error, "medidor", m.Codigo)
}

func (r *medidorRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Medidor, error) {
	var m model.Medidor
	err := q(ctx, r.db, tx).First(&m, "id = ?", id).Error
	return &m, TranslateError(err, "medidor", id)
}

func (r *medidorRepo) FindByCodigo(ctx context.Context, tx *gorm.DB, codigo string) (*model.Medidor, error) {
	return firstOrNil[model.Medidor](q(ctx, r.db, tx).Where("codigo = ?", codigo), "medidor")
}

func (r *medidorRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Medidor, error) {
	var m model.Medidor
	err := forUpdate(q(ctx, r.db, tx)).First(&m, "id = ?", id).Error
	return &m, TranslateError(err, "medidor", id)
}

func (r *medidorRepo) FindActivoByTerreno(ctx context.Context, tx *gorm.DB, terrenoID uuid.UUID) (*model.Medidor, error) {
	return firstOrNil[model.Medidor](
		q(ctx, r.db, tx).Where("terreno_id = ? AND estado = ?", terrenoID, model.MedidorActivo), "medidor")
}

func (r *medidorRepo) Update(ctx context.Context, tx *gorm.DB, m *model.Medidor) error {
	return TranslateError(q(ctx, r.db, tx).Save(m).Error, "medidor", m.ID)
}

func (r *medidorRepo) List(ctx context.Context, estado string) ([]model.Medidor, error) {
	var out []model.Medidor
	db := r.db.WithContext(ctx)
	if estado != "" {
		db = db.Where("estado = ?", estado)
	}
	err := db.Order("codigo").Find(&out).Error
	return out, TranslateError(err, "medidor", "")
}

func (r *medidorRepo) CreateLectura(ctx context.Context, tx *gorm.DB, l *model.Lectura) error {
	return TranslateError(q(ctx, r.db, tx).Create(l).Error, "lectura", l.MedidorID)
}

func (r *medidorRepo) FindLectura(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Lectura, error) {
	var l model.Lectura
	err := q(ctx, r.db, tx).First(&l, "id = ?", id).Error
	return &l, TranslateError(err, "lectura", id)
}

func (r *medidorRepo) LockLectura(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Lectura, error) {
	var l model.Lectura
	err := forUpdate(q(ctx, r.db, tx)).First(&l, "id = ?", id).Error
	return &l, TranslateError(err, "lectura", id)
}

func (r *medidorRepo) UltimaLectura(ctx context.Context, tx *gorm.DB, medidorID uuid.UUID) (*model.Lectura, error) {
	return firstOrNil[model.Lectura](
		q(ctx, r.db, tx).Where("medidor_id = ?", medidorID).Order("fecha DESC, created_at DESC"), "lectura")
}

func (r *medidorRepo) MarcarFacturada(ctx context.Context, tx *gorm.DB, lecturaID uuid.UUID) error {
	res := q(ctx, r.db, tx).Model(&model.Lectura{}).
		Where("id = ? AND facturada = false", lecturaID).
		Update("facturada", true)
	if res.Error != nil {
		return TranslateError(res.Error, "lectura", lecturaID)
	}
	if res.RowsAffected == 0 {
		return TranslateError(gorm.ErrRecordNotFound, "lectura", lecturaID)
	}
	return nil
}

func (r *medidorRepo) ListLecturas(ctx context.Context, medidorID uuid.UUID) ([]model.Lectura, error) {
	var out []model.Lectura
	err := r.db.WithContext(ctx).Where("medidor_id = ?", medidorID).Order("fecha DESC").Find(&out).Error
	return out, TranslateError(err, "lectura", "")
}
