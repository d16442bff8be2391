package dto

import "github.com/google/uuid"

type CrearOrdenRequest struct {
	ServicioID uuid.UUID `json:"servicio_id" validate:"required"`
	Tipo       string    `json:"tipo"        validate:"required,oneof=CORTE RECONEXION INSPECCION INSTALACION"`
	Motivo     string    `json:"motivo"      validate:"required,max=500"`
}

type IniciarOrdenRequest struct {
	AsignadoA *uuid.UUID `json:"asignado_a"`
}

type ForzarEstadoRequest struct {
	Estado string `json:"estado" validate:"required,oneof=ACTIVO SUSPENDIDO PENDIENTE_RECONEXION"`
	Motivo string `json:"motivo" validate:"required,min=3,max=500"`
}

type OrdenFilter struct {
	Estado string `form:"estado"`
	Tipo   string `form:"tipo"`
}
