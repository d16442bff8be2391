package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Socio is a member of the water board.
// TipoIdentificacion: "CEDULA" | "RUC"
type Socio struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Identificacion     string     `gorm:"type:varchar(13);uniqueIndex;not null" json:"identificacion"`
	TipoIdentificacion string     `gorm:"type:varchar(10);not null" json:"tipo_identificacion"`
	Nombres            string     `gorm:"not null" json:"nombres"`
	Apellidos          string     `gorm:"not null" json:"apellidos"`
	Email              *string    `json:"email,omitempty"`
	Telefono           *string    `json:"telefono,omitempty"`
	Direccion          string     `json:"direccion"`
	BarrioID           *uuid.UUID `gorm:"type:uuid;index" json:"barrio_id,omitempty"`
	UsuarioID          *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"usuario_id,omitempty"`
	Activo             bool       `gorm:"not null;default:true" json:"activo"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Barrio *Barrio `gorm:"foreignKey:BarrioID" json:"-"`
}

const (
	IdentificacionCedula = "CEDULA"
	IdentificacionRUC    = "RUC"
)

// NombreCompleto is "APELLIDOS NOMBRES", the order used on fiscal documents.
func (s *Socio) NombreCompleto() string { return s.Apellidos + " " + s.Nombres }

// Barrio is a named area of the community. Soft deleted so that historic
// socios and terrenos keep resolving.
type Barrio struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Nombre      string         `gorm:"not null;uniqueIndex:idx_barrios_nombre,where:deleted_at IS NULL" json:"nombre"`
	Descripcion *string        `json:"descripcion,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Terreno is a property that may hold one water connection.
type Terreno struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SocioID          uuid.UUID `gorm:"type:uuid;not null;index" json:"socio_id"`
	BarrioID         uuid.UUID `gorm:"type:uuid;not null;index" json:"barrio_id"`
	Direccion        string    `gorm:"not null" json:"direccion"`
	EsCometidaActiva bool      `gorm:"not null;default:false" json:"es_cometida_activa"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Socio  *Socio  `gorm:"foreignKey:SocioID" json:"-"`
	Barrio *Barrio `gorm:"foreignKey:BarrioID" json:"-"`
}
