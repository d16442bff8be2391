package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Metodos de pago.
const (
	MetodoEfectivo      = "EFECTIVO"
	MetodoTransferencia = "TRANSFERENCIA"
	MetodoCheque        = "CHEQUE"
)

// MetodoPagoValido reports whether m is a known tender method.
func MetodoPagoValido(m string) bool {
	switch m {
	case MetodoEfectivo, MetodoTransferencia, MetodoCheque:
		return true
	}
	return false
}

// Pago is a receipt. Counter payments are born validated; reported
// transfers wait for treasurer validation.
type Pago struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SocioID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"socio_id"`
	FacturaID     *uuid.UUID      `gorm:"type:uuid;index" json:"factura_id,omitempty"`
	NumeroRecibo  string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"numero_recibo"`
	MontoTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"monto_total"`
	Validado      bool            `gorm:"not null;default:false;index" json:"validado"`
	Observacion   *string         `json:"observacion,omitempty"`
	RegistradoPor *uuid.UUID      `gorm:"type:uuid" json:"registrado_por,omitempty"`
	FechaPago     time.Time       `gorm:"not null;index" json:"fecha_pago"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Detalles     []DetallePago    `gorm:"foreignKey:PagoID" json:"detalles,omitempty"`
	Aplicaciones []PagoAplicacion `gorm:"foreignKey:PagoID" json:"aplicaciones,omitempty"`
}

// DetallePago is one tender line of a Pago.
type DetallePago struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PagoID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"pago_id"`
	Metodo        string          `gorm:"type:varchar(15);not null" json:"metodo"`
	Monto         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"monto"`
	Referencia    *string         `json:"referencia,omitempty"`
	Banco         *string         `json:"banco,omitempty"`
	EvidenciaPath *string         `json:"-"`
}

// TableName keeps the Spanish plural.
func (DetallePago) TableName() string { return "detalles_pago" }

// PagoAplicacion records how much of a Pago went to one receivable.
type PagoAplicacion struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PagoID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"pago_id"`
	CuentaPorCobrarID uuid.UUID       `gorm:"type:uuid;not null;index" json:"cuenta_por_cobrar_id"`
	Monto             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"monto"`
	CreatedAt         time.Time       `json:"created_at"`
}

// TableName keeps the Spanish plural.
func (PagoAplicacion) TableName() string { return "pago_aplicaciones" }
