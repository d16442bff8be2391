package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados de medidor.
const (
	MedidorActivo        = "ACTIVO"
	MedidorInactivo      = "INACTIVO"
	MedidorDanado        = "DANADO"
	MedidorRobado        = "ROBADO"
	MedidorMantenimiento = "MANTENIMIENTO"
)

// EstadoMedidorValido reports whether s is a known meter state.
func EstadoMedidorValido(s string) bool {
	switch s {
	case MedidorActivo, MedidorInactivo, MedidorDanado, MedidorRobado, MedidorMantenimiento:
		return true
	}
	return false
}

// Medidor is a physical water meter. At most one ACTIVO meter per terreno
// (partial unique index idx_medidores_terreno_activo).
type Medidor struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Codigo           string          `gorm:"type:varchar(40);uniqueIndex;not null" json:"codigo"`
	Marca            *string         `json:"marca,omitempty"`
	TerrenoID        *uuid.UUID      `gorm:"type:uuid;index" json:"terreno_id,omitempty"`
	LecturaInicial   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"lectura_inicial"`
	Estado           string          `gorm:"type:varchar(20);not null;default:'ACTIVO'" json:"estado"`
	FechaInstalacion *time.Time      `json:"fecha_instalacion,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName keeps the Spanish plural.
func (Medidor) TableName() string { return "medidores" }

// Lectura is an append-only reading snapshot. Rows are never updated except
// for the facturada flag, flipped once by invoice emission.
type Lectura struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	MedidorID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_lecturas_medidor_fecha,priority:1" json:"medidor_id"`
	Fecha           time.Time       `gorm:"type:date;not null;index:idx_lecturas_medidor_fecha,priority:2" json:"fecha"`
	Valor           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"valor"`
	LecturaAnterior decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"lectura_anterior"`
	ConsumoDelMes   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"consumo_del_mes"`
	Facturada       bool            `gorm:"not null;default:false" json:"facturada"`
	EsFinal         bool            `gorm:"not null;default:false" json:"es_final"`
	Observacion     *string         `json:"observacion,omitempty"`
	RegistradoPor   *uuid.UUID      `gorm:"type:uuid" json:"registrado_por,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
