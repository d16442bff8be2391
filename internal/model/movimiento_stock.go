package model

import (
	"time"

	"github.com/google/uuid"
)

// MovimientoStock registra cada cambio de stock de un material.
// Tipo: "venta" | "ajuste_manual" | "ingreso"
type MovimientoStock struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProductoID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"producto_id"`
	Tipo          string     `gorm:"not null" json:"tipo"`
	Cantidad      int        `gorm:"not null" json:"cantidad"` // positive = entrada, negative = salida
	StockAnterior int        `gorm:"not null" json:"stock_anterior"`
	StockNuevo    int        `gorm:"not null" json:"stock_nuevo"`
	Motivo        string     `json:"motivo"`
	ReferenciaID  *uuid.UUID `gorm:"type:uuid" json:"referencia_id,omitempty"` // factura_id for sales
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName overrides GORM's default pluralization.
func (MovimientoStock) TableName() string { return "movimientos_stock" }
