package dto

import "github.com/google/uuid"

type ItemVentaRequest struct {
	ProductoID uuid.UUID `json:"producto_id" validate:"required"`
	Cantidad   int       `json:"cantidad"    validate:"required,min=1"`
}

type VentaRequest struct {
	SocioID    uuid.UUID          `json:"socio_id"   validate:"required"`
	Items      []ItemVentaRequest `json:"items"      validate:"required,min=1,dive"`
	Metodo     string             `json:"metodo"     validate:"required,oneof=EFECTIVO TRANSFERENCIA CHEQUE"`
	Referencia *string            `json:"referencia" validate:"omitempty,max=100"`
}
