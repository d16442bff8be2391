package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CuentaAccesoRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Password string `json:"password" validate:"required,min=8"`
}

type CrearSocioRequest struct {
	Identificacion string               `json:"identificacion" validate:"required,numeric,len=10|len=13"`
	Nombres        string               `json:"nombres"        validate:"required,max=120"`
	Apellidos      string               `json:"apellidos"      validate:"required,max=120"`
	Email          *string              `json:"email"          validate:"omitempty,email"`
	Telefono       *string              `json:"telefono"       validate:"omitempty,max=20"`
	Direccion      string               `json:"direccion"      validate:"required,max=255"`
	BarrioID       *uuid.UUID           `json:"barrio_id"`
	Cuenta         *CuentaAccesoRequest `json:"cuenta"`
}

type ActualizarSocioRequest struct {
	Nombres   *string    `json:"nombres"   validate:"omitempty,max=120"`
	Apellidos *string    `json:"apellidos" validate:"omitempty,max=120"`
	Email     *string    `json:"email"     validate:"omitempty,email"`
	Telefono  *string    `json:"telefono"  validate:"omitempty,max=20"`
	Direccion *string    `json:"direccion" validate:"omitempty,max=255"`
	BarrioID  *uuid.UUID `json:"barrio_id"`
}

type SocioFilter struct {
	Paginacion
	BarrioID string `form:"barrio_id" validate:"omitempty,uuid"`
	Texto    string `form:"q"`
	Activo   string `form:"activo"    validate:"omitempty,oneof=true false"`
}

type CrearTerrenoRequest struct {
	BarrioID  uuid.UUID `json:"barrio_id" validate:"required"`
	Direccion string    `json:"direccion" validate:"required,max=255"`
}

type ContratarServicioRequest struct {
	TerrenoID    uuid.UUID        `json:"terreno_id"    validate:"required"`
	Tipo         string           `json:"tipo"          validate:"required,oneof=MEDIDO FIJO"`
	TarifaFija   *decimal.Decimal `json:"tarifa_fija"`
	BaseM3       *decimal.Decimal `json:"base_m3"`
	PrecioBase   *decimal.Decimal `json:"precio_base"`
	PrecioExceso *decimal.Decimal `json:"precio_exceso"`
}
