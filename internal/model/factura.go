package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Estados comerciales de factura.
const (
	FacturaPendiente  = "PENDIENTE"
	FacturaPorValidar = "POR_VALIDAR"
	FacturaPagada     = "PAGADA"
	FacturaAnulada    = "ANULADA"
)

// Estados SRI. EnvioEnCurso marks a submission whose outcome is unknown;
// the reconciler drives it to a terminal state.
const (
	SRIEnvioEnCurso = "ENVIO_EN_CURSO"
	SRIRecibida     = "RECIBIDA"
	SRIAutorizado   = "AUTORIZADO"
	SRIRechazado    = "RECHAZADO"
	SRIEnProceso    = "EN_PROCESO"
	SRINoEncontrado = "NO_ENCONTRADO"
)

// Origen de la factura.
const (
	OrigenLectura    = "LECTURA"
	OrigenTarifaFija = "TARIFA_FIJA"
	OrigenVenta      = "VENTA"
	OrigenCuentas    = "CUENTAS"
)

// Factura is the fiscal document. ClaveAcceso is persisted before the
// first submission so a crash can be recovered by consulting the SRI.
// Once EstadoSRI is AUTORIZADO every fiscal column is frozen.
type Factura struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SocioID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"socio_id"`
	ServicioID       *uuid.UUID      `gorm:"type:uuid;index" json:"servicio_id,omitempty"`
	MedidorID        *uuid.UUID      `gorm:"type:uuid" json:"medidor_id,omitempty"`
	LecturaID        *uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"lectura_id,omitempty"`
	Origen           string          `gorm:"type:varchar(15);not null" json:"origen"`
	PeriodoAnio      int             `json:"periodo_anio"`
	PeriodoMes       int             `json:"periodo_mes"`
	FechaEmision     time.Time       `gorm:"type:date;not null" json:"fecha_emision"`
	FechaVencimiento time.Time       `gorm:"type:date;not null" json:"fecha_vencimiento"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Impuestos        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"impuestos"`
	Total            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Estado           string          `gorm:"type:varchar(15);not null;default:'PENDIENTE'" json:"estado"`

	// Fiscal fields
	Ambiente           int            `gorm:"not null" json:"ambiente"`
	TipoEmision        int            `gorm:"not null;default:1" json:"tipo_emision"`
	Establecimiento    string         `gorm:"type:varchar(3);not null" json:"establecimiento"`
	PuntoEmision       string         `gorm:"type:varchar(3);not null" json:"punto_emision"`
	Secuencial         int64          `gorm:"not null" json:"secuencial"`
	ClaveAcceso        string         `gorm:"type:varchar(49);uniqueIndex;not null" json:"clave_acceso"`
	ClaveQuemada       bool           `gorm:"not null;default:false" json:"clave_quemada"`
	EstadoSRI          *string        `gorm:"type:varchar(20);column:estado_sri;index" json:"estado_sri,omitempty"`
	MensajesSRI        datatypes.JSON `gorm:"type:jsonb;column:mensajes_sri" json:"mensajes_sri,omitempty"`
	XMLFirmado         *string        `gorm:"type:text;column:xml_firmado" json:"-"`
	XMLAutorizado      *string        `gorm:"type:text;column:xml_autorizado" json:"-"`
	NumeroAutorizacion *string        `json:"numero_autorizacion,omitempty"`
	FechaAutorizacion  *time.Time     `json:"fecha_autorizacion,omitempty"`
	ReenvioRealizado   bool           `gorm:"not null;default:false" json:"-"`

	// Reconciler bookkeeping
	RetryCount  int        `gorm:"not null;default:0" json:"retry_count"`
	NextRetryAt *time.Time `gorm:"column:next_retry_at" json:"next_retry_at,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Detalles []DetalleFactura `gorm:"foreignKey:FacturaID" json:"detalles,omitempty"`
}

// NumeroFactura renders 001-001-000000601.
func (f *Factura) NumeroFactura() string {
	return f.Establecimiento + "-" + f.PuntoEmision + "-" + padSecuencial(f.Secuencial)
}

// Autorizada reports whether the SRI authorized the document.
func (f *Factura) Autorizada() bool {
	return f.EstadoSRI != nil && *f.EstadoSRI == SRIAutorizado
}

// EnviadaAlSRI reports whether the SRI may already hold the document,
// in which case cancelling is no longer possible.
func (f *Factura) EnviadaAlSRI() bool {
	if f.EstadoSRI == nil {
		return false
	}
	switch *f.EstadoSRI {
	case SRIRecibida, SRIEnProceso, SRIAutorizado:
		return true
	}
	return false
}

// SetEstadoSRI is a small helper for the pointer column.
func (f *Factura) SetEstadoSRI(s string) { f.EstadoSRI = &s }

func padSecuencial(n int64) string {
	b := []byte("000000000")
	for i := len(b) - 1; i >= 0 && n > 0; i-- {
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b)
}

// DetalleFactura is an ordered invoice line.
type DetalleFactura struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	FacturaID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"factura_id"`
	Orden          int             `gorm:"not null" json:"orden"`
	Codigo         string          `gorm:"type:varchar(25);not null" json:"codigo"`
	Concepto       string          `gorm:"not null" json:"concepto"`
	RubroID        *uuid.UUID      `gorm:"type:uuid" json:"rubro_id,omitempty"`
	ProductoID     *uuid.UUID      `gorm:"type:uuid" json:"producto_id,omitempty"`
	Cantidad       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"cantidad"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"precio_unitario"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	AplicaIVA      bool            `gorm:"not null;default:false" json:"aplica_iva"`
	ValorIVA       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"valor_iva"`
}

// TableName keeps the Spanish plural.
func (DetalleFactura) TableName() string { return "detalles_factura" }

// SRISecuencial is the per (establecimiento, punto, tipo) counter. Written
// only through SecuencialRepository.Reserve.
type SRISecuencial struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Establecimiento string    `gorm:"type:varchar(3);not null;uniqueIndex:idx_secuencial_triple,priority:1"`
	PuntoEmision    string    `gorm:"type:varchar(3);not null;uniqueIndex:idx_secuencial_triple,priority:2"`
	TipoDocumento   string    `gorm:"type:varchar(2);not null;uniqueIndex:idx_secuencial_triple,priority:3"`
	Actual          int64     `gorm:"not null;default:0"`
	UpdatedAt       time.Time
}

// TableName keeps the Spanish plural.
func (SRISecuencial) TableName() string { return "sri_secuenciales" }

// EstadoSRIValor returns the SRI state or "" when the invoice was never submitted.
func (f *Factura) EstadoSRIValor() string {
	if f.EstadoSRI == nil {
		return ""
	}
	return *f.EstadoSRI
}
