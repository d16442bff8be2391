package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearProductoRequest struct {
	SKU            string          `json:"sku"             validate:"required,min=2,max=40"`
	Nombre         string          `json:"nombre"          validate:"required,min=2,max=120"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario" validate:"required,gt=0"`
	StockInicial   int             `json:"stock_inicial"   validate:"min=0"`
	StockMinimo    int             `json:"stock_minimo"    validate:"min=0"`
	AplicaIVA      bool            `json:"aplica_iva"`
}

type ActualizarProductoRequest struct {
	Nombre         *string          `json:"nombre"          validate:"omitempty,min=2,max=120"`
	PrecioUnitario *decimal.Decimal `json:"precio_unitario"`
	StockMinimo    *int             `json:"stock_minimo"    validate:"omitempty,min=0"`
	AplicaIVA      *bool            `json:"aplica_iva"`
}

type AjustarStockRequest struct {
	Delta  int    `json:"delta"  validate:"required,ne=0"`
	Tipo   string `json:"tipo"   validate:"required,oneof=ingreso ajuste_manual"`
	Motivo string `json:"motivo" validate:"required,min=3,max=255"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductoFilter struct {
	Paginacion
	Nombre string `form:"nombre"`
	Activo string `form:"activo" validate:"omitempty,oneof=true false all"`
}

type MovimientoFilter struct {
	Paginacion
	ProductoID string `form:"producto_id" validate:"omitempty,uuid"`
	Tipo       string `form:"tipo"`
}
