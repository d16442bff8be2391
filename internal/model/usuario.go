package model

import (
	"time"

	"github.com/google/uuid"
)

// Usuario stores system users with role-based access.
// Rol: "administrador" | "tesorero" | "operador" | "socio"
type Usuario struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        *string
	PasswordHash string `gorm:"not null"`
	Rol          string `gorm:"type:varchar(20);not null"`
	Activo       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Roles.
const (
	RolAdministrador = "administrador"
	RolTesorero      = "tesorero"
	RolOperador      = "operador"
	RolSocio         = "socio"
)

// RolValido reports whether r is a known role.
func RolValido(r string) bool {
	switch r {
	case RolAdministrador, RolTesorero, RolOperador, RolSocio:
		return true
	}
	return false
}
