package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados de cuenta por cobrar.
const (
	CxCPendiente       = "PENDIENTE"
	CxCEnJustificacion = "EN_JUSTIFICACION"
	CxCFacturada       = "FACTURADA"
	CxCPagoParcial     = "PAGO_PARCIAL"
	CxCPagada          = "PAGADA"
	CxCAnulada         = "ANULADA"
)

// EstadosCxCAbiertos are the states that still count as debt.
var EstadosCxCAbiertos = []string{CxCPendiente, CxCEnJustificacion, CxCFacturada, CxCPagoParcial}

// EstadosCxCImputables can receive payments. Fines under review cannot.
var EstadosCxCImputables = []string{CxCPendiente, CxCFacturada, CxCPagoParcial}

// CuentaPorCobrar is one ledger obligation. SaldoPendiente stays within
// [0, MontoInicial]. (SocioID, OrigenReferencia) is unique and is the
// idempotency key of CreateObligation.
type CuentaPorCobrar struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SocioID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cxc_socio_origen,priority:1" json:"socio_id"`
	FacturaID        *uuid.UUID      `gorm:"type:uuid;index" json:"factura_id,omitempty"`
	RubroID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"rubro_id"`
	MontoInicial     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"monto_inicial"`
	SaldoPendiente   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"saldo_pendiente"`
	FechaEmision     time.Time       `gorm:"type:date;not null" json:"fecha_emision"`
	FechaVencimiento time.Time       `gorm:"type:date;not null" json:"fecha_vencimiento"`
	Estado           string          `gorm:"type:varchar(20);not null;default:'PENDIENTE'" json:"estado"`
	OrigenReferencia string          `gorm:"type:varchar(120);not null;uniqueIndex:idx_cxc_socio_origen,priority:2" json:"origen_referencia"`
	MotivoAnulacion  *string         `json:"motivo_anulacion,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName keeps the Spanish plural.
func (CuentaPorCobrar) TableName() string { return "cuentas_por_cobrar" }

// Abierta reports whether the obligation still carries debt.
func (c *CuentaPorCobrar) Abierta() bool {
	switch c.Estado {
	case CxCPendiente, CxCEnJustificacion, CxCFacturada, CxCPagoParcial:
		return true
	}
	return false
}

// Vencida reports whether the obligation is open and past due at t.
func (c *CuentaPorCobrar) Vencida(t time.Time) bool {
	return c.Abierta() && c.SaldoPendiente.IsPositive() && c.FechaVencimiento.Before(t)
}

// Aplicar deducts amount and moves the state forward. The caller guarantees
// 0 < amount <= SaldoPendiente.
func (c *CuentaPorCobrar) Aplicar(amount decimal.Decimal) {
	c.SaldoPendiente = c.SaldoPendiente.Sub(amount)
	if c.SaldoPendiente.IsZero() {
		c.Estado = CxCPagada
	} else {
		c.Estado = CxCPagoParcial
	}
}
