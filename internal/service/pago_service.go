package service

import (
	"context"
	"fmt"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/report"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LineaPago is one tender line.
type LineaPago struct {
	Metodo     string
	Monto      decimal.Decimal
	Referencia *string
	Banco      *string
}

// PagoCaja is a counter payment. Bound to an invoice it must settle it
// exactly; without one it is an advance imputed FIFO over the socio's debt.
type PagoCaja struct {
	SocioID     uuid.UUID
	FacturaID   *uuid.UUID
	Lineas      []LineaPago
	UsuarioID   *uuid.UUID
	Observacion *string
}

// ReporteTransferencia is a transfer declared by the socio, pending review.
type ReporteTransferencia struct {
	SocioID    uuid.UUID
	FacturaID  uuid.UUID
	Monto      decimal.Decimal
	Referencia string
	Banco      *string
	Evidencia  *Evidencia
	UsuarioID  *uuid.UUID
}

// Decisions of ValidateTransfer.
const (
	DecisionAprobar  = "APPROVE"
	DecisionRechazar = "REJECT"
)

// CierreCaja aggregates validated payments in [Desde, Hasta).
type CierreCaja struct {
	Desde     time.Time                   `json:"desde"`
	Hasta     time.Time                   `json:"hasta"`
	Total     decimal.Decimal             `json:"total"`
	Cantidad  int                         `json:"cantidad"`
	PorMetodo []repository.TotalPorMetodo `json:"por_metodo"`
}

// BalanceObserver is notified after a socio's debt went down.
type BalanceObserver interface {
	OnBalanceChanged(ctx context.Context, socioID uuid.UUID) error
}

type PagoService interface {
	RecordAtCounter(ctx context.Context, in PagoCaja) (*model.Pago, error)
	ReportTransfer(ctx context.Context, in ReporteTransferencia) (*model.Pago, error)
	ValidateTransfer(ctx context.Context, pagoID uuid.UUID, decision, motivo string, usuarioID *uuid.UUID) (*model.Pago, error)
	DailyClosure(ctx context.Context, from, to time.Time) (*CierreCaja, error)
	ExportDailyClosure(ctx context.Context, from, to time.Time) ([]byte, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Pago, error)
	ListBySocio(ctx context.Context, socioID uuid.UUID) ([]model.Pago, error)
	ListPorValidar(ctx context.Context) ([]model.Pago, error)
}

type pagoService struct {
	tx        Transactor
	pagos     repository.PagoRepository
	facturas  repository.FacturaRepository
	cuentas   repository.CuentaPorCobrarRepository
	socios    repository.SocioRepository
	auditoria repository.AuditoriaRepository
	ledger    LedgerService
	evidencia EvidenceStorage
	recibos   ReceiptNumberer
	observer  BalanceObserver
	clock     Clock
}

func NewPagoService(
	tx Transactor,
	pagos repository.PagoRepository,
	facturas repository.FacturaRepository,
	cuentas repository.CuentaPorCobrarRepository,
	socios repository.SocioRepository,
	auditoria repository.AuditoriaRepository,
	ledger LedgerService,
	evidencia EvidenceStorage,
	recibos ReceiptNumberer,
	observer BalanceObserver,
	clock Clock,
) PagoService {
	return &pagoService{
		tx: tx, pagos: pagos, facturas: facturas, cuentas: cuentas, socios: socios,
		auditoria: auditoria, ledger: ledger, evidencia: evidencia, recibos: recibos,
		observer: observer, clock: clock,
	}
}

// ── Counter ──────────────────────────────────────────────────────────────────

func (s *pagoService) RecordAtCounter(ctx context.Context, in PagoCaja) (*model.Pago, error) {
	total, err := sumarLineas(in.Lineas)
	if err != nil {
		return nil, err
	}

	var pago *model.Pago
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		socio, err := s.socios.LockByID(ctx, tx, in.SocioID)
		if err != nil {
			return err
		}
		if in.FacturaID != nil {
			f, err := s.facturaCobrable(ctx, tx, socio.ID, *in.FacturaID)
			if err != nil {
				return err
			}
			pendiente, err := s.saldoFactura(ctx, tx, f.ID)
			if err != nil {
				return err
			}
			if !total.Equal(pendiente) {
				return apperror.BusinessRule(apperror.RulePaymentAmountMismatch,
					fmt.Sprintf("la factura %s tiene saldo %s y se recibieron %s", f.NumeroFactura(), pendiente.StringFixed(2), total.StringFixed(2)))
			}
		}

		pago = s.nuevoPago(in.SocioID, in.FacturaID, total, in.UsuarioID, in.Observacion, true)
		for _, l := range in.Lineas {
			pago.Detalles = append(pago.Detalles, model.DetallePago{
				ID: uuid.New(), PagoID: pago.ID, Metodo: l.Metodo, Monto: l.Monto.Round(2),
				Referencia: l.Referencia, Banco: l.Banco,
			})
		}
		if err := s.pagos.Create(ctx, tx, pago); err != nil {
			return err
		}
		var apps []model.PagoAplicacion
		if in.FacturaID != nil {
			apps, err = s.ledger.ApplyPaymentToInvoice(ctx, tx, in.SocioID, *in.FacturaID, total, pago.ID)
		} else {
			apps, err = s.ledger.ApplyPayment(ctx, tx, in.SocioID, total, pago.ID)
		}
		pago.Aplicaciones = apps
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("pago_id", pago.ID.String()).
		Str("recibo", pago.NumeroRecibo).
		Str("monto", pago.MontoTotal.StringFixed(2)).
		Msg("pago: registrado en caja")
	s.notificarSaldo(ctx, pago.SocioID)
	return pago, nil
}

// ── Transfers ────────────────────────────────────────────────────────────────

func (s *pagoService) ReportTransfer(ctx context.Context, in ReporteTransferencia) (*model.Pago, error) {
	if !in.Monto.IsPositive() {
		return nil, apperror.Validation("monto", "debe ser mayor que cero")
	}
	if in.Referencia == "" {
		return nil, apperror.Validation("referencia", "requerida")
	}

	// The file is written before the transaction and removed if it fails.
	var evidenciaPath *string
	if in.Evidencia != nil && s.evidencia != nil {
		rel, err := s.evidencia.Save(ctx, "transferencias", in.Evidencia.Filename, in.Evidencia.Content)
		if err != nil {
			return nil, apperror.Validation("evidencia", err.Error())
		}
		evidenciaPath = &rel
	}

	var pago *model.Pago
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.socios.LockByID(ctx, tx, in.SocioID); err != nil {
			return err
		}
		f, err := s.facturaCobrable(ctx, tx, in.SocioID, in.FacturaID)
		if err != nil {
			return err
		}
		pendiente, err := s.saldoFactura(ctx, tx, f.ID)
		if err != nil {
			return err
		}
		monto := in.Monto.Round(2)
		if monto.GreaterThan(pendiente) {
			return apperror.BusinessRule(apperror.RuleOverpaymentRejected,
				fmt.Sprintf("la factura %s tiene saldo %s", f.NumeroFactura(), pendiente.StringFixed(2)))
		}

		ref := in.Referencia
		pago = s.nuevoPago(in.SocioID, &f.ID, monto, in.UsuarioID, nil, false)
		pago.Detalles = []model.DetallePago{{
			ID: uuid.New(), PagoID: pago.ID, Metodo: model.MetodoTransferencia, Monto: monto,
			Referencia: &ref, Banco: in.Banco, EvidenciaPath: evidenciaPath,
		}}
		if err := s.pagos.Create(ctx, tx, pago); err != nil {
			return err
		}
		return s.facturas.UpdateEstado(ctx, tx, f.ID, model.FacturaPorValidar)
	})
	if err != nil {
		s.borrarEvidencia(ctx, evidenciaPath)
		return nil, err
	}
	log.Info().
		Str("pago_id", pago.ID.String()).
		Str("factura_id", in.FacturaID.String()).
		Str("monto", pago.MontoTotal.StringFixed(2)).
		Msg("pago: transferencia reportada")
	return pago, nil
}

func (s *pagoService) ValidateTransfer(ctx context.Context, pagoID uuid.UUID, decision, motivo string, usuarioID *uuid.UUID) (*model.Pago, error) {
	if decision != DecisionAprobar && decision != DecisionRechazar {
		return nil, apperror.Validation("decision", "debe ser APPROVE o REJECT")
	}
	if decision == DecisionRechazar && motivo == "" {
		return nil, apperror.Validation("motivo", "requerido al rechazar")
	}

	var pago *model.Pago
	var evidencias []*string
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		p, err := s.pagos.FindByID(ctx, tx, pagoID)
		if err != nil {
			return err
		}
		if _, err := s.socios.LockByID(ctx, tx, p.SocioID); err != nil {
			return err
		}
		if p, err = s.pagos.LockByID(ctx, tx, pagoID); err != nil {
			return err
		}
		if p.Validado {
			return apperror.BusinessRule(apperror.RulePaymentAlreadyValidated, "recibo "+p.NumeroRecibo)
		}
		for _, d := range p.Detalles {
			evidencias = append(evidencias, d.EvidenciaPath)
		}
		pago = p

		if decision == DecisionRechazar {
			if err := s.pagos.Delete(ctx, tx, p.ID); err != nil {
				return err
			}
			if err := s.liberarFactura(ctx, tx, p.FacturaID); err != nil {
				return err
			}
			return registrarAuditoria(ctx, tx, s.auditoria, "pago", p.ID, "RECHAZAR_TRANSFERENCIA", usuarioID, motivo,
				map[string]any{"recibo": p.NumeroRecibo, "monto": p.MontoTotal.StringFixed(2)})
		}

		p.Validado = true
		p.FechaPago = s.clock.now()
		if err := s.pagos.Update(ctx, tx, p); err != nil {
			return err
		}
		if p.FacturaID != nil {
			p.Aplicaciones, err = s.ledger.ApplyPaymentToInvoice(ctx, tx, p.SocioID, *p.FacturaID, p.MontoTotal, p.ID)
		} else {
			p.Aplicaciones, err = s.ledger.ApplyPayment(ctx, tx, p.SocioID, p.MontoTotal, p.ID)
		}
		if err != nil {
			return err
		}
		// A partial transfer leaves the invoice open for the rest.
		if err := s.liberarFactura(ctx, tx, p.FacturaID); err != nil {
			return err
		}
		return registrarAuditoria(ctx, tx, s.auditoria, "pago", p.ID, "VALIDAR_TRANSFERENCIA", usuarioID, motivo,
			map[string]any{"recibo": p.NumeroRecibo, "monto": p.MontoTotal.StringFixed(2)})
	})
	if err != nil {
		return nil, err
	}
	for _, e := range evidencias {
		s.borrarEvidencia(ctx, e)
	}
	log.Info().
		Str("pago_id", pago.ID.String()).
		Str("decision", decision).
		Msg("pago: transferencia revisada")
	if decision == DecisionAprobar {
		s.notificarSaldo(ctx, pago.SocioID)
	}
	return pago, nil
}

// ── Closure ──────────────────────────────────────────────────────────────────

func (s *pagoService) DailyClosure(ctx context.Context, from, to time.Time) (*CierreCaja, error) {
	if !to.After(from) {
		return nil, apperror.Validation("hasta", "debe ser posterior a desde")
	}
	porMetodo, err := s.pagos.ResumenPorMetodo(ctx, from, to)
	if err != nil {
		return nil, err
	}
	pagos, err := s.pagos.ListValidados(ctx, from, to)
	if err != nil {
		return nil, err
	}
	c := &CierreCaja{Desde: from, Hasta: to, Total: decimal.Zero, Cantidad: len(pagos), PorMetodo: porMetodo}
	for _, p := range pagos {
		c.Total = c.Total.Add(p.MontoTotal)
	}
	return c, nil
}

func (s *pagoService) ExportDailyClosure(ctx context.Context, from, to time.Time) ([]byte, error) {
	c, err := s.DailyClosure(ctx, from, to)
	if err != nil {
		return nil, err
	}
	pagos, err := s.pagos.ListValidados(ctx, from, to)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(pagos))
	for _, p := range pagos {
		ids = append(ids, p.SocioID)
	}
	socios, err := s.socios.ListByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	nombres := make(map[uuid.UUID]string, len(socios))
	for i := range socios {
		nombres[socios[i].ID] = socios[i].NombreCompleto()
	}

	in := report.CierreDiario{Desde: c.Desde, Hasta: c.Hasta, Total: c.Total, Cantidad: c.Cantidad}
	for _, m := range c.PorMetodo {
		in.PorMetodo = append(in.PorMetodo, report.FilaMetodo{Metodo: m.Metodo, Total: m.Total, Cantidad: m.Cantidad})
	}
	for _, p := range pagos {
		fila := report.FilaPago{Recibo: p.NumeroRecibo, Fecha: p.FechaPago, Socio: nombres[p.SocioID], Monto: p.MontoTotal}
		for _, d := range p.Detalles {
			fila.Metodos = append(fila.Metodos, d.Metodo)
		}
		in.Pagos = append(in.Pagos, fila)
	}
	return report.CierreXLSX(in)
}

func (s *pagoService) Get(ctx context.Context, id uuid.UUID) (*model.Pago, error) {
	return s.pagos.FindByID(ctx, nil, id)
}

func (s *pagoService) ListBySocio(ctx context.Context, socioID uuid.UUID) ([]model.Pago, error) {
	return s.pagos.ListBySocio(ctx, socioID)
}

func (s *pagoService) ListPorValidar(ctx context.Context) ([]model.Pago, error) {
	return s.pagos.ListPorValidar(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func sumarLineas(lineas []LineaPago) (decimal.Decimal, error) {
	if len(lineas) == 0 {
		return decimal.Zero, apperror.Validation("lineas", "el pago no tiene líneas")
	}
	total := decimal.Zero
	for i, l := range lineas {
		if !model.MetodoPagoValido(l.Metodo) {
			return decimal.Zero, apperror.Validation(fmt.Sprintf("lineas[%d].metodo", i), "método desconocido")
		}
		if !l.Monto.IsPositive() {
			return decimal.Zero, apperror.Validation(fmt.Sprintf("lineas[%d].monto", i), "debe ser mayor que cero")
		}
		total = total.Add(l.Monto.Round(2))
	}
	return total, nil
}

func (s *pagoService) nuevoPago(socioID uuid.UUID, facturaID *uuid.UUID, total decimal.Decimal, usuarioID *uuid.UUID, obs *string, validado bool) *model.Pago {
	return &model.Pago{
		ID:            uuid.New(),
		SocioID:       socioID,
		FacturaID:     facturaID,
		NumeroRecibo:  s.recibos.Next(),
		MontoTotal:    total,
		Validado:      validado,
		Observacion:   obs,
		RegistradoPor: usuarioID,
		FechaPago:     s.clock.now(),
	}
}

// facturaCobrable locks the invoice and checks it can take a payment.
func (s *pagoService) facturaCobrable(ctx context.Context, tx *gorm.DB, socioID, facturaID uuid.UUID) (*model.Factura, error) {
	f, err := s.facturas.LockByID(ctx, tx, facturaID)
	if err != nil {
		return nil, err
	}
	if f.SocioID != socioID {
		return nil, apperror.Validation("factura_id", "la factura pertenece a otro socio")
	}
	switch f.Estado {
	case model.FacturaPorValidar:
		return nil, apperror.BusinessRule(apperror.RuleTransferPending, f.NumeroFactura())
	case model.FacturaPagada:
		return nil, apperror.BusinessRule(apperror.RuleInvoiceAlreadyPaid, f.NumeroFactura())
	case model.FacturaAnulada:
		return nil, apperror.BusinessRule(apperror.RuleInvoiceVoided, f.NumeroFactura())
	}
	return f, nil
}

// saldoFactura is the outstanding balance of the receivables born with an invoice.
func (s *pagoService) saldoFactura(ctx context.Context, tx *gorm.DB, facturaID uuid.UUID) (decimal.Decimal, error) {
	cuentas, err := s.cuentas.ListByFactura(ctx, tx, facturaID)
	if err != nil {
		return decimal.Zero, err
	}
	saldo := decimal.Zero
	for _, c := range cuentas {
		if c.Estado == model.CxCFacturada || c.Estado == model.CxCPagoParcial || c.Estado == model.CxCPendiente {
			saldo = saldo.Add(c.SaldoPendiente)
		}
	}
	if !saldo.IsPositive() {
		return decimal.Zero, apperror.BusinessRule(apperror.RuleInvoiceNotPayable, "la factura no tiene saldo")
	}
	return saldo, nil
}

// liberarFactura returns an invoice held by a transfer to PENDIENTE.
func (s *pagoService) liberarFactura(ctx context.Context, tx *gorm.DB, facturaID *uuid.UUID) error {
	if facturaID == nil {
		return nil
	}
	f, err := s.facturas.LockByID(ctx, tx, *facturaID)
	if err != nil {
		return err
	}
	if f.Estado != model.FacturaPorValidar {
		return nil
	}
	return s.facturas.UpdateEstado(ctx, tx, f.ID, model.FacturaPendiente)
}

func (s *pagoService) borrarEvidencia(ctx context.Context, rel *string) {
	if rel == nil || s.evidencia == nil {
		return
	}
	if err := s.evidencia.Delete(ctx, *rel); err != nil {
		log.Warn().Err(err).Str("path", *rel).Msg("pago: no se pudo borrar la evidencia")
	}
}

// notificarSaldo runs after commit; a failure here never undoes the payment.
func (s *pagoService) notificarSaldo(ctx context.Context, socioID uuid.UUID) {
	if s.observer == nil {
		return
	}
	if err := s.observer.OnBalanceChanged(ctx, socioID); err != nil {
		log.Error().Err(err).Str("socio_id", socioID.String()).Msg("pago: no se pudo reevaluar el servicio")
	}
}
