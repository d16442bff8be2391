package repository

import (
	"context"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UsuarioRepository interface {
	Create(ctx context.Context, tx *gorm.DB, u *model.Usuario) error
	// FindByUsername matches username or email and only returns active accounts.
	FindByUsername(ctx context.Context, username string) (*model.Usuario, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Usuario, error)
	List(ctx context.Context, incluirInactivos bool) ([]model.Usuario, error)
	Update(ctx context.Context, u *model.Usuario) error
	SetActivo(ctx context.Context, tx *gorm.DB, id uuid.UUID, activo bool) error
}

type usuarioRepo struct{ db *gorm.DB }

func NewUsuarioRepository(db *gorm.DB) UsuarioRepository { return &usuarioRepo{db: db} }

func (r *usuarioRepo) Create(ctx context.Context, tx *gorm.DB, u *model.Usuario) error {
	return TranslateError(q(ctx, r.db, tx).Create(u).Error, "usuario", u.Username)
}

func (r *usuarioRepo) FindByUsername(ctx context.Context, username string) (*model.Usuario, error) {
	var u model.Usuario
	err := r.db.WithContext(ctx).
		Where("(username = ? OR LOWER(email) = LOWER(?)) AND activo = true", username, username).
		First(&u).Error
	return &u, TranslateError(err, "usuario", username)
}

func (r *usuarioRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Usuario, error) {
	var u model.Usuario
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	return &u, TranslateError(err, "usuario", id)
}

func (r *usuarioRepo) List(ctx context.Context, incluirInactivos bool) ([]model.Usuario, error) {
	var users []model.Usuario
	db := r.db.WithContext(ctx)
	if !incluirInactivos {
		db = db.Where("activo = true")
	}
	err := db.Order("username").Find(&users).Error
	return users, TranslateError(err, "usuario", "")
}

func (r *usuarioRepo) Update(ctx context.Context, u *model.Usuario) error {
	return TranslateError(r.db.WithContext(ctx).Save(u).Error, "usuario", u.ID)
}

func (r *usuarioRepo) SetActivo(ctx context.Context, tx *gorm.DB, id uuid.UUID, activo bool) error {
	res := q(ctx, r.db, tx).Model(&model.Usuario{}).Where("id = ?", id).Update("activo", activo)
	if res.Error == nil && res.RowsAffected == 0 {
		return TranslateError(gorm.ErrRecordNotFound, "usuario", id)
	}
	return TranslateError(res.Error, "usuario", id)
}
