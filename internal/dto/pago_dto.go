package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LineaPagoRequest struct {
	Metodo     string          `json:"metodo"     validate:"required,oneof=EFECTIVO TRANSFERENCIA CHEQUE"`
	Monto      decimal.Decimal `json:"monto"      validate:"required,gt=0"`
	Referencia *string         `json:"referencia" validate:"omitempty,max=100"`
	Banco      *string         `json:"banco"      validate:"omitempty,max=80"`
}

type PagoCajaRequest struct {
	SocioID     uuid.UUID          `json:"socio_id"    validate:"required"`
	FacturaID   *uuid.UUID         `json:"factura_id"`
	Lineas      []LineaPagoRequest `json:"lineas"      validate:"required,min=1,dive"`
	Observacion *string            `json:"observacion" validate:"omitempty,max=255"`
}

// ReporteTransferenciaForm is bound from multipart/form-data; the voucher
// image travels in the "evidencia" file field.
type ReporteTransferenciaForm struct {
	SocioID    string `form:"socio_id"   validate:"required,uuid"`
	FacturaID  string `form:"factura_id" validate:"required,uuid"`
	Monto      string `form:"monto"      validate:"required,numeric"`
	Referencia string `form:"referencia" validate:"required,max=100"`
	Banco      string `form:"banco"      validate:"max=80"`
}

type CierreQuery struct {
	Desde string `form:"desde" validate:"omitempty,datetime=2006-01-02"`
	Hasta string `form:"hasta" validate:"omitempty,datetime=2006-01-02"`
}
