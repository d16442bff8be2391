package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	ServicioMedido = "MEDIDO"
	ServicioFijo   = "FIJO"

	ServicioActivo              = "ACTIVO"
	ServicioSuspendido          = "SUSPENDIDO"
	ServicioPendienteReconexion = "PENDIENTE_RECONEXION"
)

// Servicio is the water contract of a terreno. Tariff fields override the
// configured defaults when set. Activo is the contract flag; one active
// contract per terreno (idx_servicios_terreno_activo).
type Servicio struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SocioID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"socio_id"`
	TerrenoID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"terreno_id"`
	MedidorID    *uuid.UUID       `gorm:"type:uuid;index" json:"medidor_id,omitempty"`
	Tipo         string           `gorm:"type:varchar(10);not null" json:"tipo"`
	TarifaFija   *decimal.Decimal `gorm:"type:decimal(12,2)" json:"tarifa_fija,omitempty"`
	BaseM3       *decimal.Decimal `gorm:"type:decimal(12,2)" json:"base_m3,omitempty"`
	PrecioBase   *decimal.Decimal `gorm:"type:decimal(12,4)" json:"precio_base,omitempty"`
	PrecioExceso *decimal.Decimal `gorm:"type:decimal(12,4)" json:"precio_exceso,omitempty"`
	Estado       string           `gorm:"type:varchar(25);not null;default:'ACTIVO'" json:"estado"`
	Activo       bool             `gorm:"not null;default:true" json:"activo"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

const (
	OrdenCorte       = "CORTE"
	OrdenReconexion  = "RECONEXION"
	OrdenInspeccion  = "INSPECCION"
	OrdenInstalacion = "INSTALACION"

	OrdenPendiente  = "PENDIENTE"
	OrdenEnProceso  = "EN_PROCESO"
	OrdenCompletada = "COMPLETADA"
	OrdenCancelada  = "CANCELADA"
)

// OrdenTrabajo is a field task on a servicio.
type OrdenTrabajo struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ServicioID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"servicio_id"`
	Tipo            string         `gorm:"type:varchar(15);not null" json:"tipo"`
	Estado          string         `gorm:"type:varchar(15);not null;default:'PENDIENTE'" json:"estado"`
	Motivo          string         `json:"motivo"`
	Nota            *string        `json:"nota,omitempty"`
	Evidencias      datatypes.JSON `gorm:"type:jsonb" json:"evidencias,omitempty"`
	AsignadoA       *uuid.UUID     `gorm:"type:uuid" json:"asignado_a,omitempty"`
	FechaCompletada *time.Time     `json:"fecha_completada,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName keeps the Spanish plural.
func (OrdenTrabajo) TableName() string { return "ordenes_trabajo" }

// Abierta reports whether the order can still be worked on.
func (o *OrdenTrabajo) Abierta() bool {
	return o.Estado == OrdenPendiente || o.Estado == OrdenEnProceso
}
