package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventoMinga    = "MINGA"
	EventoAsamblea = "ASAMBLEA"
	EventoAporte   = "APORTE"

	EventoBorrador   = "BORRADOR"
	EventoProgramado = "PROGRAMADO"
	EventoRealizado  = "REALIZADO"
	EventoCancelado  = "CANCELADO"
)

// Evento is a minga or assembly with mandatory attendance.
type Evento struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Nombre     string          `gorm:"not null" json:"nombre"`
	Tipo       string          `gorm:"type:varchar(10);not null" json:"tipo"`
	Fecha      time.Time       `gorm:"not null" json:"fecha"`
	ValorMulta decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"valor_multa"`
	Estado     string          `gorm:"type:varchar(12);not null;default:'PROGRAMADO'" json:"estado"`
	Alcance    string          `gorm:"type:varchar(10);not null" json:"alcance"`
	BarrioID   *uuid.UUID      `gorm:"type:uuid" json:"barrio_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

const (
	AsistenciaAsistio     = "ASISTIO"
	AsistenciaFalta       = "FALTA"
	AsistenciaAtraso      = "ATRASO"
	AsistenciaJustificado = "JUSTIFICADO"
)

// Asistencia is unique per (evento, socio).
type Asistencia struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	EventoID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_asistencia_evento_socio,priority:1" json:"evento_id"`
	SocioID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_asistencia_evento_socio,priority:2" json:"socio_id"`
	Estado            string     `gorm:"type:varchar(12);not null;default:'FALTA'" json:"estado"`
	Observacion       *string    `json:"observacion,omitempty"`
	CuentaPorCobrarID *uuid.UUID `gorm:"type:uuid" json:"cuenta_por_cobrar_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName keeps the Spanish plural.
func (Asistencia) TableName() string { return "asistencias" }

const (
	JustificacionPendiente = "PENDIENTE"
	JustificacionAprobada  = "APROBADA"
	JustificacionRechazada = "RECHAZADA"
)

// SolicitudJustificacion is the single justification request of an asistencia.
type SolicitudJustificacion struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AsistenciaID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"asistencia_id"`
	Motivo            string     `gorm:"not null" json:"motivo"`
	Descripcion       string     `json:"descripcion"`
	EvidenciaPath     *string    `json:"-"`
	Estado            string     `gorm:"type:varchar(10);not null;default:'PENDIENTE'" json:"estado"`
	NotaAdministrador *string    `json:"nota_administrador,omitempty"`
	ResueltoPor       *uuid.UUID `gorm:"type:uuid" json:"resuelto_por,omitempty"`
	FechaResolucion   *time.Time `json:"fecha_resolucion,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName keeps the Spanish plural.
func (SolicitudJustificacion) TableName() string { return "solicitudes_justificacion" }
