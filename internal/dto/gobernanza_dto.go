package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CrearEventoRequest struct {
	Nombre     string          `json:"nombre"      validate:"required,max=150"`
	Tipo       string          `json:"tipo"        validate:"required,oneof=MINGA ASAMBLEA APORTE"`
	Fecha      string          `json:"fecha"       validate:"required,datetime=2006-01-02"`
	ValorMulta decimal.Decimal `json:"valor_multa" validate:"min=0"`
	Alcance    string          `json:"alcance"     validate:"required,oneof=TODOS BARRIO MANUAL"`
	BarrioID   *uuid.UUID      `json:"barrio_id"`
	SocioIDs   []uuid.UUID     `json:"socio_ids"`
}

type AsistenciaItem struct {
	SocioID     uuid.UUID `json:"socio_id"    validate:"required"`
	Estado      string    `json:"estado"      validate:"required,oneof=ASISTIO FALTA ATRASO"`
	Observacion *string   `json:"observacion" validate:"omitempty,max=255"`
}

type RegistrarAsistenciaRequest struct {
	Registros []AsistenciaItem `json:"registros" validate:"required,min=1,dive"`
}

// JustificacionForm is multipart; the optional proof file is "evidencia".
type JustificacionForm struct {
	AsistenciaID string `form:"asistencia_id" validate:"required,uuid"`
	Motivo       string `form:"motivo"        validate:"required,max=150"`
	Descripcion  string `form:"descripcion"   validate:"max=1000"`
}

type ResolverJustificacionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	Nota     string `json:"nota"     validate:"max=500"`
}
