package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EmitirLecturaRequest struct {
	LecturaID        uuid.UUID `json:"lectura_id"        validate:"required"`
	FechaEmision     string    `json:"fecha_emision"     validate:"omitempty,datetime=2006-01-02"`
	FechaVencimiento string    `json:"fecha_vencimiento" validate:"omitempty,datetime=2006-01-02"`
}

type EmitirTarifaFijaRequest struct {
	ServicioID uuid.UUID        `json:"servicio_id" validate:"required"`
	Anio       int              `json:"anio"        validate:"required,min=2000,max=2100"`
	Mes        int              `json:"mes"         validate:"required,min=1,max=12"`
	Monto      *decimal.Decimal `json:"monto"`
}

type EmitirLoteRequest struct {
	Anio int `json:"anio" validate:"required,min=2000,max=2100"`
	Mes  int `json:"mes"  validate:"required,min=1,max=12"`
}

type EmitirCuentasRequest struct {
	SocioID   uuid.UUID   `json:"socio_id"   validate:"required"`
	CuentaIDs []uuid.UUID `json:"cuenta_ids" validate:"required,min=1"`
}

type FacturaFilter struct {
	Paginacion
	SocioID     string `form:"socio_id"   validate:"omitempty,uuid"`
	Estado      string `form:"estado"     validate:"omitempty,oneof=PENDIENTE POR_VALIDAR PAGADA ANULADA"`
	EstadoSRI   string `form:"estado_sri"`
	PeriodoAnio int    `form:"anio"`
	PeriodoMes  int    `form:"mes"        validate:"omitempty,min=1,max=12"`
}

type CuentaFilter struct {
	Paginacion
	SocioID string `form:"socio_id" validate:"omitempty,uuid"`
	Estado  string `form:"estado"`
}
