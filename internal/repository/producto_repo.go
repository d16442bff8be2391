package repository

import (
	"context"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductoFilter narrows material listings.
type ProductoFilter struct {
	Nombre string
	// Activo: "false" = inactivos, "all" = todos, otherwise activos.
	Activo string
	Page   int
	Limit  int
}

// ProductoRepository covers the material inventory sold at the counter.
type ProductoRepository interface {
	Create(ctx context.Context, p *model.ProductoMaterial) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.ProductoMaterial, error)
	FindBySKU(ctx context.Context, sku string) (*model.ProductoMaterial, error)
	// LockByID takes the stock row lock held for the whole sale.
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.ProductoMaterial, error)
	List(ctx context.Context, filter ProductoFilter) ([]model.ProductoMaterial, int64, error)
	Update(ctx context.Context, p *model.ProductoMaterial) error
	SetActivo(ctx context.Context, id uuid.UUID, activo bool) error
	// UpdateStock sets stock_actual to an absolute value computed under lock.
	UpdateStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, stock int) error
	ListBajoStock(ctx context.Context) ([]model.ProductoMaterial, error)
}

type productoRepo struct{ db *gorm.DB }

func NewProductoRepository(db *gorm.DB) ProductoRepository { return &productoRepo{db: db} }

func (r *productoRepo) Create(ctx context.Context, p *model.ProductoMaterial) error {
	return TranslateError(r.db.WithContext(ctx).Create(p).Error, "producto", p.SKU)
}

func (r *productoRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.ProductoMaterial, error) {
	var p model.ProductoMaterial
	err := q(ctx, r.db, tx).First(&p, "id = ?", id).Error
	return &p, TranslateError(err, "producto", id)
}

func (r *productoRepo) FindBySKU(ctx context.Context, sku string) (*model.ProductoMaterial, error) {
	var p model.ProductoMaterial
	err := r.db.WithContext(ctx).Where("sku = ? AND activo = true", sku).First(&p).Error
	return &p, TranslateError(err, "producto", sku)
}

func (r *productoRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.ProductoMaterial, error) {
	var p model.ProductoMaterial
	err := forUpdate(q(ctx, r.db, tx)).First(&p, "id = ?", id).Error
	return &p, TranslateError(err, "producto", id)
}

func (r *productoRepo) List(ctx context.Context, filter ProductoFilter) ([]model.ProductoMaterial, int64, error) {
	var productos []model.ProductoMaterial
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ProductoMaterial{})
	switch filter.Activo {
	case "false":
		db = db.Where("activo = false")
	case "all":
	default:
		db = db.Where("activo = true")
	}
	if filter.Nombre != "" {
		db = db.Where("nombre ILIKE ? OR sku ILIKE ?", "%"+filter.Nombre+"%", "%"+filter.Nombre+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, TranslateError(err, "producto", "")
	}
	page, limit := paginate(filter.Page, filter.Limit)
	err := db.Order("nombre ASC").Limit(limit).Offset((page - 1) * limit).Find(&productos).Error
	return productos, total, TranslateError(err, "producto", "")
}

func (r *productoRepo) Update(ctx context.Context, p *model.ProductoMaterial) error {
	return TranslateError(r.db.WithContext(ctx).Save(p).Error, "producto", p.ID)
}

func (r *productoRepo) SetActivo(ctx context.Context, id uuid.UUID, activo bool) error {
	res := r.db.WithContext(ctx).Model(&model.ProductoMaterial{}).Where("id = ?", id).Update("activo", activo)
	if res.Error == nil && res.RowsAffected == 0 {
		return TranslateError(gorm.ErrRecordNotFound, "producto", id)
	}
	return TranslateError(res.Error, "producto", id)
}

func (r *productoRepo) UpdateStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, stock int) error {
	err := q(ctx, r.db, tx).Model(&model.ProductoMaterial{}).Where("id = ?", id).Update("stock_actual", stock).Error
	return TranslateError(err, "producto", id)
}

func (r *productoRepo) ListBajoStock(ctx context.Context) ([]model.ProductoMaterial, error) {
	var out []model.ProductoMaterial
	err := r.db.WithContext(ctx).Where("activo = true AND stock_actual <= stock_minimo").Order("nombre").Find(&out).Error
	return out, TranslateError(err, "producto", "")
}
