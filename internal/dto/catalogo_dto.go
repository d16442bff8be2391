package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Rubros / Barrios ────────────────────────────────────────────────────────

type CrearRubroRequest struct {
	Codigo        string          `json:"codigo"         validate:"required,max=30"`
	Nombre        string          `json:"nombre"         validate:"required,max=120"`
	Tipo          string          `json:"tipo"           validate:"required,oneof=AGUA ALCANTARILLADO RECONEXION MULTA MATERIAL OTRO"`
	ValorUnitario decimal.Decimal `json:"valor_unitario" validate:"min=0"`
	AplicaIVA     bool            `json:"aplica_iva"`
}

type ActualizarRubroRequest struct {
	Nombre        *string          `json:"nombre"         validate:"omitempty,max=120"`
	ValorUnitario *decimal.Decimal `json:"valor_unitario"`
	AplicaIVA     *bool            `json:"aplica_iva"`
	Activo        *bool            `json:"activo"`
}

type CrearBarrioRequest struct {
	Nombre      string  `json:"nombre"      validate:"required,max=120"`
	Descripcion *string `json:"descripcion" validate:"omitempty,max=255"`
}

// ─── Medidores / Lecturas ────────────────────────────────────────────────────

type RegistrarMedidorRequest struct {
	Codigo         string          `json:"codigo"          validate:"required,max=50"`
	Marca          *string         `json:"marca"           validate:"omitempty,max=80"`
	LecturaInicial decimal.Decimal `json:"lectura_inicial" validate:"min=0"`
}

type InstalarMedidorRequest struct {
	TerrenoID uuid.UUID `json:"terreno_id" validate:"required"`
	Fecha     string    `json:"fecha"      validate:"omitempty,datetime=2006-01-02"`
}

type ReemplazarMedidorRequest struct {
	MedidorAnteriorID uuid.UUID               `json:"medidor_anterior_id" validate:"required"`
	LecturaFinal      decimal.Decimal         `json:"lectura_final"       validate:"min=0"`
	EstadoAnterior    string                  `json:"estado_anterior"     validate:"required,oneof=INACTIVO DANADO ROBADO MANTENIMIENTO"`
	Nuevo             RegistrarMedidorRequest `json:"nuevo"               validate:"required"`
	Fecha             string                  `json:"fecha"               validate:"omitempty,datetime=2006-01-02"`
}

type CambiarEstadoMedidorRequest struct {
	Estado string `json:"estado" validate:"required,oneof=INACTIVO DANADO ROBADO MANTENIMIENTO"`
	Motivo string `json:"motivo" validate:"required,min=3,max=500"`
}

type RegistrarLecturaRequest struct {
	MedidorID   uuid.UUID       `json:"medidor_id"  validate:"required"`
	Fecha       string          `json:"fecha"       validate:"required,datetime=2006-01-02"`
	Valor       decimal.Decimal `json:"valor"       validate:"min=0"`
	Observacion *string         `json:"observacion" validate:"omitempty,max=255"`
}
