package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductoMaterial is a stock item sold at the counter (pipes, fittings, meters).
type ProductoMaterial struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SKU            string          `gorm:"type:varchar(40);uniqueIndex;not null" json:"sku"`
	Nombre         string          `gorm:"index;not null" json:"nombre"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"precio_unitario"`
	StockActual    int             `gorm:"not null;default:0" json:"stock_actual"`
	StockMinimo    int             `gorm:"not null;default:0" json:"stock_minimo"`
	AplicaIVA      bool            `gorm:"not null;default:true" json:"aplica_iva"`
	Activo         bool            `gorm:"not null;default:true" json:"activo"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName keeps the Spanish plural.
func (ProductoMaterial) TableName() string { return "productos_material" }
