package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Auditoria is an append-only trail of administrative actions
// (voids, overrides, justification decisions).
type Auditoria struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Entidad   string         `gorm:"type:varchar(40);not null;index:idx_auditoria_entidad,priority:1" json:"entidad"`
	EntidadID uuid.UUID      `gorm:"type:uuid;not null;index:idx_auditoria_entidad,priority:2" json:"entidad_id"`
	Accion    string         `gorm:"type:varchar(40);not null" json:"accion"`
	UsuarioID *uuid.UUID     `gorm:"type:uuid" json:"usuario_id,omitempty"`
	Motivo    string         `json:"motivo"`
	Detalle   datatypes.JSON `gorm:"type:jsonb" json:"detalle,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName keeps the Spanish plural.
func (Auditoria) TableName() string { return "auditorias" }
