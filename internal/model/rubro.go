package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RubroAgua           = "AGUA"
	RubroAlcantarillado = "ALCANTARILLADO"
	RubroReconexion     = "RECONEXION"
	RubroMulta          = "MULTA"
	RubroMaterial       = "MATERIAL"
	RubroOtro           = "OTRO"
)

// TipoRubroValido reports whether s is a known rubro kind.
func TipoRubroValido(s string) bool {
	switch s {
	case RubroAgua, RubroAlcantarillado, RubroReconexion, RubroMulta, RubroMaterial, RubroOtro:
		return true
	}
	return false
}

// CatalogoRubro is a billable concept. Soft deleted: receivables keep
// pointing at retired rubros.
type CatalogoRubro struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Codigo        string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_rubros_codigo,where:deleted_at IS NULL" json:"codigo"`
	Nombre        string          `gorm:"not null" json:"nombre"`
	Tipo          string          `gorm:"type:varchar(20);not null;index" json:"tipo"`
	ValorUnitario decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0" json:"valor_unitario"`
	AplicaIVA     bool            `gorm:"not null;default:false" json:"aplica_iva"`
	Activo        bool            `gorm:"not null;default:true" json:"activo"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName keeps the Spanish plural.
func (CatalogoRubro) TableName() string { return "catalogo_rubros" }
