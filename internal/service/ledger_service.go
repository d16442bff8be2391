package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NuevaObligacion is the input of CreateObligation. Estado defaults to
// PENDIENTE; invoice emission passes FACTURADA together with FacturaID.
type NuevaObligacion struct {
	SocioID          uuid.UUID
	RubroID          uuid.UUID
	Monto            decimal.Decimal
	FechaEmision     time.Time
	FechaVencimiento time.Time
	Origen           string
	FacturaID        *uuid.UUID
	Estado           string
}

// LedgerService is the only writer of receivable balances. Every method
// taking a tx joins it when non-nil and opens its own transaction otherwise.
type LedgerService interface {
	CreateObligation(ctx context.Context, tx *gorm.DB, in NuevaObligacion) (*model.CuentaPorCobrar, error)
	ListPendingBySocio(ctx context.Context, socioID uuid.UUID) ([]model.CuentaPorCobrar, error)
	ApplyPayment(ctx context.Context, tx *gorm.DB, socioID uuid.UUID, monto decimal.Decimal, pagoID uuid.UUID) ([]model.PagoAplicacion, error)
	ApplyPaymentToInvoice(ctx context.Context, tx *gorm.DB, socioID, facturaID uuid.UUID, monto decimal.Decimal, pagoID uuid.UUID) ([]model.PagoAplicacion, error)
	VoidObligation(ctx context.Context, tx *gorm.DB, id uuid.UUID, motivo string, usuarioID *uuid.UUID) (*model.CuentaPorCobrar, error)
	RevertVoid(ctx context.Context, id uuid.UUID, motivo string, usuarioID *uuid.UUID) (*model.CuentaPorCobrar, error)
	HoldForJustification(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	ReleaseJustification(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	DebtSummary(ctx context.Context, tx *gorm.DB, socioID uuid.UUID) (repository.ResumenDeuda, error)
	List(ctx context.Context, filter repository.CuentaPorCobrarFilter) ([]model.CuentaPorCobrar, int64, error)
}

type ledgerService struct {
	tx        Transactor
	socios    repository.SocioRepository
	cuentas   repository.CuentaPorCobrarRepository
	rubros    repository.RubroRepository
	pagos     repository.PagoRepository
	facturas  repository.FacturaRepository
	auditoria repository.AuditoriaRepository
	clock     Clock
}

func NewLedgerService(
	tx Transactor,
	socios repository.SocioRepository,
	cuentas repository.CuentaPorCobrarRepository,
	rubros repository.RubroRepository,
	pagos repository.PagoRepository,
	facturas repository.FacturaRepository,
	auditoria repository.AuditoriaRepository,
	clock Clock,
) LedgerService {
	return &ledgerService{
		tx: tx, socios: socios, cuentas: cuentas, rubros: rubros,
		pagos: pagos, facturas: facturas, auditoria: auditoria, clock: clock,
	}
}

// ── CreateObligation ─────────────────────────────────────────────────────────

func (s *ledgerService) CreateObligation(ctx context.Context, tx *gorm.DB, in NuevaObligacion) (*model.CuentaPorCobrar, error) {
	if !in.Monto.IsPositive() {
		return nil, apperror.Validation("monto", "debe ser mayor que cero")
	}
	if in.Origen == "" {
		return nil, apperror.Validation("origen_referencia", "requerido")
	}
	if in.Estado == "" {
		in.Estado = model.CxCPendiente
	}
	if in.FechaEmision.IsZero() {
		in.FechaEmision = s.clock.now()
	}
	if in.FechaVencimiento.IsZero() {
		in.FechaVencimiento = in.FechaEmision
	}

	var cuenta *model.CuentaPorCobrar
	err := withinTx(ctx, s.tx, tx, func(tx *gorm.DB) error {
		if _, err := s.socios.LockByID(ctx, tx, in.SocioID); err != nil {
			return err
		}
		rubro, err := s.rubros.FindByID(ctx, tx, in.RubroID)
		if err != nil {
			return err
		}
		if !rubro.Activo || rubro.DeletedAt.Valid {
			return apperror.BusinessRule(apperror.RuleInactiveEntity, "rubro "+rubro.Codigo+" inactivo")
		}
		existente, err := s.cuentas.FindByOrigen(ctx, tx, in.SocioID, in.Origen)
		if err != nil {
			return err
		}
		if existente != nil {
			return apperror.Duplicate(existente, in.Origen)
		}

		cuenta = &model.CuentaPorCobrar{
			ID:               uuid.New(),
			SocioID:          in.SocioID,
			FacturaID:        in.FacturaID,
			RubroID:          in.RubroID,
			MontoInicial:     in.Monto.Round(2),
			SaldoPendiente:   in.Monto.Round(2),
			FechaEmision:     in.FechaEmision,
			FechaVencimiento: in.FechaVencimiento,
			Estado:           in.Estado,
			OrigenReferencia: in.Origen,
		}
		return s.cuentas.Create(ctx, tx, cuenta)
	})

	// A concurrent writer won the unique index. Outside our own transaction
	// the winning row is visible; inside the caller's it is not, so the
	// conflict propagates and the caller retries.
	if tx == nil && apperror.IsKind(err, apperror.KindIntegrityConflict) {
		existente, findErr := s.cuentas.FindByOrigen(ctx, nil, in.SocioID, in.Origen)
		if findErr == nil && existente != nil {
			return nil, apperror.Duplicate(existente, in.Origen)
		}
	}
	if err != nil {
		return nil, err
	}
	return cuenta, nil
}

func (s *ledgerService) ListPendingBySocio(ctx context.Context, socioID uuid.UUID) ([]model.CuentaPorCobrar, error) {
	return s.cuentas.ListPendientesBySocio(ctx, nil, socioID)
}

// ── Payment application ──────────────────────────────────────────────────────

// asignacion is one step of an imputation plan.
type asignacion struct {
	cuenta *model.CuentaPorCobrar
	monto  decimal.Decimal
}

// planFIFO walks the receivables in the given order and returns the plan
// together with whatever part of monto found no debt.
func planFIFO(cuentas []model.CuentaPorCobrar, monto decimal.Decimal) ([]asignacion, decimal.Decimal) {
	restante := monto
	plan := make([]asignacion, 0, len(cuentas))
	for i := range cuentas {
		if !restante.IsPositive() {
			break
		}
		c := &cuentas[i]
		if !c.SaldoPendiente.IsPositive() {
			continue
		}
		aplicado := decimal.Min(c.SaldoPendiente, restante)
		plan = append(plan, asignacion{cuenta: c, monto: aplicado})
		restante = restante.Sub(aplicado)
	}
	return plan, restante
}

func (s *ledgerService) ApplyPayment(ctx context.Context, tx *gorm.DB, socioID uuid.UUID, monto decimal.Decimal, pagoID uuid.UUID) ([]model.PagoAplicacion, error) {
	return s.aplicar(ctx, tx, socioID, nil, monto, pagoID)
}

func (s *ledgerService) ApplyPaymentToInvoice(ctx context.Context, tx *gorm.DB, socioID, facturaID uuid.UUID, monto decimal.Decimal, pagoID uuid.UUID) ([]model.PagoAplicacion, error) {
	return s.aplicar(ctx, tx, socioID, &facturaID, monto, pagoID)
}

func (s *ledgerService) aplicar(ctx context.Context, tx *gorm.DB, socioID uuid.UUID, facturaID *uuid.UUID, monto decimal.Decimal, pagoID uuid.UUID) ([]model.PagoAplicacion, error) {
	if !monto.IsPositive() {
		return nil, apperror.Validation("monto", "debe ser mayor que cero")
	}
	var apps []model.PagoAplicacion
	err := withinTx(ctx, s.tx, tx, func(tx *gorm.DB) error {
		if _, err := s.socios.LockByID(ctx, tx, socioID); err != nil {
			return err
		}
		cuentas, err := s.cuentasEnOrden(ctx, tx, socioID, facturaID)
		if err != nil {
			return err
		}

		// The whole plan is decided before the first write.
		plan, restante := planFIFO(cuentas, monto)
		if restante.IsPositive() {
			return apperror.BusinessRule(apperror.RuleOverpaymentRejected,
				fmt.Sprintf("el pago excede la deuda en %s", restante.StringFixed(2)))
		}

		apps = make([]model.PagoAplicacion, 0, len(plan))
		saldadas := map[uuid.UUID]bool{}
		for _, a := range plan {
			a.cuenta.Aplicar(a.monto)
			if err := s.cuentas.Update(ctx, tx, a.cuenta); err != nil {
				return err
			}
			apps = append(apps, model.PagoAplicacion{
				ID:                uuid.New(),
				PagoID:            pagoID,
				CuentaPorCobrarID: a.cuenta.ID,
				Monto:             a.monto,
			})
			if a.cuenta.Estado == model.CxCPagada && a.cuenta.FacturaID != nil {
				saldadas[*a.cuenta.FacturaID] = true
			}
		}
		if err := s.pagos.CreateAplicaciones(ctx, tx, apps); err != nil {
			return err
		}
		for id := range saldadas {
			if err := s.liquidarFactura(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("socio_id", socioID.String()).
		Str("pago_id", pagoID.String()).
		Str("monto", monto.StringFixed(2)).
		Int("cuentas", len(apps)).
		Msg("ledger: pago imputado")
	return apps, nil
}

// cuentasEnOrden locks the payable receivables. When facturaID is set its
// receivables go first and the rest of the socio's debt follows in FIFO order.
func (s *ledgerService) cuentasEnOrden(ctx context.Context, tx *gorm.DB, socioID uuid.UUID, facturaID *uuid.UUID) ([]model.CuentaPorCobrar, error) {
	pendientes, err := s.cuentas.LockPendientesBySocio(ctx, tx, socioID)
	if err != nil || facturaID == nil {
		return pendientes, err
	}
	primero := make([]model.CuentaPorCobrar, 0, len(pendientes))
	resto := make([]model.CuentaPorCobrar, 0, len(pendientes))
	for _, c := range pendientes {
		if c.FacturaID != nil && *c.FacturaID == *facturaID {
			primero = append(primero, c)
		} else {
			resto = append(resto, c)
		}
	}
	return append(primero, resto...), nil
}

// liquidarFactura marks the invoice PAGADA once none of its receivables
// carries a balance.
func (s *ledgerService) liquidarFactura(ctx context.Context, tx *gorm.DB, facturaID uuid.UUID) error {
	f, err := s.facturas.LockByID(ctx, tx, facturaID)
	if err != nil {
		return err
	}
	if f.Estado == model.FacturaPagada || f.Estado == model.FacturaAnulada {
		return nil
	}
	cuentas, err := s.cuentas.ListByFactura(ctx, tx, facturaID)
	if err != nil {
		return err
	}
	for _, c := range cuentas {
		if c.Abierta() && c.SaldoPendiente.IsPositive() {
			return nil
		}
	}
	return s.facturas.UpdateEstado(ctx, tx, facturaID, model.FacturaPagada)
}

// ── Void / revert ────────────────────────────────────────────────────────────

func (s *ledgerService) VoidObligation(ctx context.Context, tx *gorm.DB, id uuid.UUID, motivo string, usuarioID *uuid.UUID) (*model.CuentaPorCobrar, error) {
	if motivo == "" {
		return nil, apperror.Validation("motivo", "requerido")
	}
	var cuenta *model.CuentaPorCobrar
	err := withinTx(ctx, s.tx, tx, func(tx *gorm.DB) error {
		c, err := s.lockConSocio(ctx, tx, id)
		if err != nil {
			return err
		}
		switch c.Estado {
		case model.CxCPagada:
			return apperror.BusinessRule(apperror.RuleObligationAlreadyPaid, "cuenta "+id.String())
		case model.CxCAnulada:
			return apperror.BusinessRule(apperror.RuleObligationAlreadyVoid, "cuenta "+id.String())
		}
		saldoAnterior := c.SaldoPendiente
		c.Estado = model.CxCAnulada
		c.SaldoPendiente = decimal.Zero
		c.MotivoAnulacion = &motivo
		if err := s.cuentas.Update(ctx, tx, c); err != nil {
			return err
		}
		cuenta = c
		return registrarAuditoria(ctx, tx, s.auditoria, "cuenta_por_cobrar", c.ID, "ANULAR", usuarioID, motivo,
			map[string]any{"saldo_anterior": saldoAnterior.StringFixed(2), "origen": c.OrigenReferencia})
	})
	return cuenta, err
}

func (s *ledgerService) RevertVoid(ctx context.Context, id uuid.UUID, motivo string, usuarioID *uuid.UUID) (*model.CuentaPorCobrar, error) {
	if motivo == "" {
		return nil, apperror.Validation("motivo", "requerido")
	}
	var cuenta *model.CuentaPorCobrar
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		c, err := s.lockConSocio(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.Estado != model.CxCAnulada {
			return apperror.BusinessRule(apperror.RuleObligationNotVoid, "cuenta "+id.String())
		}
		aplicado, err := s.pagos.SumAplicadoCuenta(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		c.SaldoPendiente = c.MontoInicial.Sub(aplicado)
		switch {
		case !c.SaldoPendiente.IsPositive():
			c.SaldoPendiente = decimal.Zero
			c.Estado = model.CxCPagada
		case aplicado.IsPositive():
			c.Estado = model.CxCPagoParcial
		case c.FacturaID != nil:
			c.Estado = model.CxCFacturada
		default:
			c.Estado = model.CxCPendiente
		}
		c.MotivoAnulacion = nil
		if err := s.cuentas.Update(ctx, tx, c); err != nil {
			return err
		}
		cuenta = c
		return registrarAuditoria(ctx, tx, s.auditoria, "cuenta_por_cobrar", c.ID, "REVERTIR_ANULACION", usuarioID, motivo,
			map[string]any{"saldo_restaurado": c.SaldoPendiente.StringFixed(2), "estado": c.Estado})
	})
	return cuenta, err
}

// ── Justification hold ───────────────────────────────────────────────────────

// HoldForJustification parks an untouched fine while a justification is
// reviewed. Payments skip parked receivables.
func (s *ledgerService) HoldForJustification(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return withinTx(ctx, s.tx, tx, func(tx *gorm.DB) error {
		c, err := s.lockConSocio(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.Estado != model.CxCPendiente {
			return nil
		}
		c.Estado = model.CxCEnJustificacion
		return s.cuentas.Update(ctx, tx, c)
	})
}

func (s *ledgerService) ReleaseJustification(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return withinTx(ctx, s.tx, tx, func(tx *gorm.DB) error {
		c, err := s.lockConSocio(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.Estado != model.CxCEnJustificacion {
			return nil
		}
		c.Estado = model.CxCPendiente
		return s.cuentas.Update(ctx, tx, c)
	})
}

// lockConSocio takes the socio lock before the receivable lock, the same
// order ApplyPayment uses.
func (s *ledgerService) lockConSocio(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CuentaPorCobrar, error) {
	c, err := s.cuentas.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.socios.LockByID(ctx, tx, c.SocioID); err != nil {
		return nil, err
	}
	return s.cuentas.LockByID(ctx, tx, id)
}

func (s *ledgerService) DebtSummary(ctx context.Context, tx *gorm.DB, socioID uuid.UUID) (repository.ResumenDeuda, error) {
	return s.cuentas.ResumenDeuda(ctx, tx, socioID, s.clock.now())
}

func (s *ledgerService) List(ctx context.Context, filter repository.CuentaPorCobrarFilter) ([]model.CuentaPorCobrar, int64, error) {
	return s.cuentas.List(ctx, filter)
}

// registrarAuditoria appends one audit row in the caller's transaction.
func registrarAuditoria(ctx context.Context, tx *gorm.DB, repo repository.AuditoriaRepository,
	entidad string, id uuid.UUID, accion string, usuarioID *uuid.UUID, motivo string, detalle map[string]any) error {
	var raw datatypes.JSON
	if detalle != nil {
		b, err := json.Marshal(detalle)
		if err != nil {
			return fmt.Errorf("auditoria: %w", err)
		}
		raw = datatypes.JSON(b)
	}
	return repo.Create(ctx, tx, &model.Auditoria{
		ID:        uuid.New(),
		Entidad:   entidad,
		EntidadID: id,
		Accion:    accion,
		UsuarioID: usuarioID,
		Motivo:    motivo,
		Detalle:   raw,
	})
}
