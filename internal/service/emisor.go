package service

import (
	"context"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/sri"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ParametrosFacturacion is the fiscal and tariff configuration injected at
// process start.
type ParametrosFacturacion struct {
	Ambiente        int
	Establecimiento string
	PuntoEmision    string
	TipoDocumento   string
	RUC             string
	TasaIVA         decimal.Decimal
	Tarifa          Tarifa
	TarifaFija      decimal.Decimal
	DiasVencimiento int
	// LoteParalelismo bounds the number of services billed at once by EmitBatch.
	LoteParalelismo int
}

// reconciliacionInicial is how long a fresh invoice waits for the queue
// before the reconciler picks it up on its own.
const reconciliacionInicial = 2 * time.Minute

// EmisorFacturas reserves the sequential, builds the access key and
// persists an invoice together with its receivable. It is shared by the
// invoice and POS services so there is a single emission path.
type EmisorFacturas struct {
	secuenciales repository.SecuencialRepository
	facturas     repository.FacturaRepository
	ledger       LedgerService
	fiscal       FiscalAdapter
	params       ParametrosFacturacion
	clock        Clock
}

func NewEmisorFacturas(
	secuenciales repository.SecuencialRepository,
	facturas repository.FacturaRepository,
	ledger LedgerService,
	fiscal FiscalAdapter,
	params ParametrosFacturacion,
	clock Clock,
) *EmisorFacturas {
	if params.TipoDocumento == "" {
		params.TipoDocumento = sri.DocFactura
	}
	return &EmisorFacturas{
		secuenciales: secuenciales, facturas: facturas, ledger: ledger,
		fiscal: fiscal, params: params, clock: clock,
	}
}

// borradorFactura is an invoice before numbering. A zero ID is generated.
type borradorFactura struct {
	ID               uuid.UUID
	SocioID          uuid.UUID
	ServicioID       *uuid.UUID
	MedidorID        *uuid.UUID
	LecturaID        *uuid.UUID
	Origen           string
	Anio, Mes        int
	FechaEmision     time.Time
	FechaVencimiento time.Time
	Lineas           []model.DetalleFactura
	// RubroID and OrigenCuenta describe the receivable born with the
	// invoice. An empty OrigenCuenta means the caller links existing ones.
	RubroID      uuid.UUID
	OrigenCuenta string
}

func (e *EmisorFacturas) emitir(ctx context.Context, tx *gorm.DB, b borradorFactura) (*model.Factura, error) {
	if len(b.Lineas) == 0 {
		return nil, apperror.Validation("detalles", "la factura no tiene detalles")
	}
	tot := Totalizar(b.Lineas, e.params.TasaIVA)
	if !tot.Total.IsPositive() {
		return nil, apperror.Validation("total", "debe ser mayor que cero")
	}
	if b.FechaEmision.IsZero() {
		b.FechaEmision = e.clock.now()
	}
	if b.FechaVencimiento.IsZero() {
		b.FechaVencimiento = b.FechaEmision.AddDate(0, 0, e.params.DiasVencimiento)
	}

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	f := &model.Factura{
		ID:               b.ID,
		SocioID:          b.SocioID,
		ServicioID:       b.ServicioID,
		MedidorID:        b.MedidorID,
		LecturaID:        b.LecturaID,
		Origen:           b.Origen,
		PeriodoAnio:      b.Anio,
		PeriodoMes:       b.Mes,
		FechaEmision:     b.FechaEmision,
		FechaVencimiento: b.FechaVencimiento,
		Subtotal:         tot.Subtotal,
		Impuestos:        tot.Impuestos,
		Total:            tot.Total,
		Estado:           model.FacturaPendiente,
		Ambiente:         e.params.Ambiente,
		TipoEmision:      sri.EmisionNormal,
		Establecimiento:  e.params.Establecimiento,
		PuntoEmision:     e.params.PuntoEmision,
	}
	for i := range b.Lineas {
		b.Lineas[i].ID = uuid.New()
		b.Lineas[i].FacturaID = f.ID
	}
	f.Detalles = b.Lineas

	// Reserve last: the counter row lock is held until commit.
	if err := e.numerar(ctx, tx, f); err != nil {
		return nil, err
	}
	next := e.clock.now().Add(reconciliacionInicial)
	f.NextRetryAt = &next

	if err := e.facturas.Create(ctx, tx, f); err != nil {
		return nil, err
	}
	if b.OrigenCuenta != "" {
		_, err := e.ledger.CreateObligation(ctx, tx, NuevaObligacion{
			SocioID:          b.SocioID,
			RubroID:          b.RubroID,
			Monto:            f.Total,
			FechaEmision:     f.FechaEmision,
			FechaVencimiento: f.FechaVencimiento,
			Origen:           b.OrigenCuenta,
			FacturaID:        &f.ID,
			Estado:           model.CxCFacturada,
		})
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// numerar reserves the next sequential and derives the access key from it.
func (e *EmisorFacturas) numerar(ctx context.Context, tx *gorm.DB, f *model.Factura) error {
	sec, err := e.secuenciales.Reserve(ctx, tx, e.params.Establecimiento, e.params.PuntoEmision, e.params.TipoDocumento)
	if err != nil {
		return err
	}
	clave, err := e.fiscal.GenerateAccessKey(sri.ParametrosClave{
		FechaEmision:    f.FechaEmision,
		TipoDocumento:   e.params.TipoDocumento,
		RUC:             e.params.RUC,
		Ambiente:        e.params.Ambiente,
		Establecimiento: e.params.Establecimiento,
		PuntoEmision:    e.params.PuntoEmision,
		Secuencial:      sec,
		TipoEmision:     sri.EmisionNormal,
	})
	if err != nil {
		return apperror.Validation("clave_acceso", err.Error())
	}
	f.Secuencial = sec
	f.ClaveAcceso = clave
	return nil
}
