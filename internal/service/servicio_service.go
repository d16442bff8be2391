package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ParametrosCorte configures the suspension workflow.
type ParametrosCorte struct {
	// UmbralVencidas is the number of overdue receivables that triggers a cut.
	UmbralVencidas int
	// ValorCargo is the reconnection fee charged when a cut is queued. Zero disables it.
	ValorCargo      decimal.Decimal
	DiasVencimiento int
}

type ResultadoCortes struct {
	Evaluados     int      `json:"evaluados"`
	OrdenesCorte  int      `json:"ordenes_corte"`
	Cargos        int      `json:"cargos"`
	Reconexiones  int      `json:"reconexiones"`
	Errores       int      `json:"errores"`
	DetalleErrors []string `json:"detalle_errores,omitempty"`
}

type ServicioService interface {
	ProcessCutsBatch(ctx context.Context) (*ResultadoCortes, error)
	OnBalanceChanged(ctx context.Context, socioID uuid.UUID) error
	CreateWorkOrder(ctx context.Context, servicioID uuid.UUID, tipo, motivo string) (*model.OrdenTrabajo, error)
	StartWorkOrder(ctx context.Context, ordenID uuid.UUID, asignadoA *uuid.UUID) (*model.OrdenTrabajo, error)
	CompleteWorkOrder(ctx context.Context, ordenID uuid.UUID, evidencias []Evidencia, nota string) (*model.OrdenTrabajo, error)
	CancelWorkOrder(ctx context.Context, ordenID uuid.UUID, motivo string, usuarioID *uuid.UUID) (*model.OrdenTrabajo, error)
	AdminOverride(ctx context.Context, servicioID uuid.UUID, estado, motivo string, usuarioID *uuid.UUID) (*model.Servicio, error)
	ListOrdenes(ctx context.Context, estado, tipo string) ([]model.OrdenTrabajo, error)
}

type servicioService struct {
	tx        Transactor
	servicios repository.ServicioRepository
	socios    repository.SocioRepository
	rubros    repository.RubroRepository
	auditoria repository.AuditoriaRepository
	ledger    LedgerService
	evidencia EvidenceStorage
	params    ParametrosCorte
	clock     Clock
}

func NewServicioService(
	tx Transactor,
	servicios repository.ServicioRepository,
	socios repository.SocioRepository,
	rubros repository.RubroRepository,
	auditoria repository.AuditoriaRepository,
	ledger LedgerService,
	evidencia EvidenceStorage,
	params ParametrosCorte,
	clock Clock,
) ServicioService {
	if params.UmbralVencidas < 1 {
		params.UmbralVencidas = 2
	}
	if params.DiasVencimiento < 1 {
		params.DiasVencimiento = 30
	}
	return &servicioService{
		tx: tx, servicios: servicios, socios: socios, rubros: rubros, auditoria: auditoria,
		ledger: ledger, evidencia: evidencia, params: params, clock: clock,
	}
}

// ── Batch ────────────────────────────────────────────────────────────────────

// ProcessCutsBatch queues a CORTE order for every active service whose socio
// reached the overdue threshold, and reconnects suspended services whose
// debt is already settled. Each service runs in its own transaction.
func (s *servicioService) ProcessCutsBatch(ctx context.Context) (*ResultadoCortes, error) {
	servicios, err := s.servicios.ListActivos(ctx, nil)
	if err != nil {
		return nil, err
	}
	res := &ResultadoCortes{}
	for i := range servicios {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Evaluados++
		sv := servicios[i]
		var err error
		switch sv.Estado {
		case model.ServicioActivo:
			var orden, cargo bool
			orden, cargo, err = s.evaluarCorte(ctx, sv.ID)
			if orden {
				res.OrdenesCorte++
			}
			if cargo {
				res.Cargos++
			}
		case model.ServicioSuspendido:
			var reconectado bool
			reconectado, err = s.evaluarReconexion(ctx, sv.ID)
			if reconectado {
				res.Reconexiones++
			}
		}
		if err != nil {
			res.Errores++
			res.DetalleErrors = append(res.DetalleErrors, fmt.Sprintf("%s: %v", sv.ID, err))
			log.Error().Err(err).Str("servicio_id", sv.ID.String()).Msg("cortes: servicio no procesado")
		}
	}
	log.Info().
		Int("evaluados", res.Evaluados).
		Int("ordenes_corte", res.OrdenesCorte).
		Int("reconexiones", res.Reconexiones).
		Int("errores", res.Errores).
		Msg("cortes: lote procesado")
	return res, nil
}

// evaluarCorte reports whether a new CORTE order and a fee were created.
func (s *servicioService) evaluarCorte(ctx context.Context, servicioID uuid.UUID) (orden, cargo bool, err error) {
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		sv, err := s.servicios.LockByID(ctx, tx, servicioID)
		if err != nil {
			return err
		}
		if !sv.Activo || sv.Estado != model.ServicioActivo {
			return nil
		}
		resumen, err := s.ledger.DebtSummary(ctx, tx, sv.SocioID)
		if err != nil {
			return err
		}
		if resumen.CuentasVencidas < s.params.UmbralVencidas {
			return nil
		}
		existente, err := s.servicios.FindOrdenAbierta(ctx, tx, sv.ID, model.OrdenCorte)
		if err != nil || existente != nil {
			return err
		}
		o, err := s.nuevaOrden(ctx, tx, sv.ID, model.OrdenCorte,
			fmt.Sprintf("%d obligaciones vencidas por %s", resumen.CuentasVencidas, resumen.Vencido.StringFixed(2)))
		if err != nil {
			return err
		}
		orden = true
		if !s.params.ValorCargo.IsPositive() {
			return nil
		}
		rubro, err := s.rubros.FindPorTipo(ctx, tx, model.RubroReconexion)
		if err != nil {
			return err
		}
		if rubro == nil {
			return apperror.BusinessRule(apperror.RuleMissingCatalogItem, "no hay rubro activo de tipo "+model.RubroReconexion)
		}
		hoy := s.clock.now()
		_, err = s.ledger.CreateObligation(ctx, tx, NuevaObligacion{
			SocioID:          sv.SocioID,
			RubroID:          rubro.ID,
			Monto:            s.params.ValorCargo,
			FechaEmision:     hoy,
			FechaVencimiento: hoy.AddDate(0, 0, s.params.DiasVencimiento),
			Origen:           "CARGO_CORTE_" + o.ID.String(),
		})
		cargo = err == nil
		return err
	})
	if err != nil {
		return false, false, err
	}
	return orden, cargo, nil
}

// evaluarReconexion moves a suspended service without debt to
// PENDIENTE_RECONEXION and queues the RECONEXION order.
func (s *servicioService) evaluarReconexion(ctx context.Context, servicioID uuid.UUID) (bool, error) {
	cambio := false
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		sv, err := s.servicios.LockByID(ctx, tx, servicioID)
		if err != nil {
			return err
		}
		cambio, err = s.reevaluar(ctx, tx, sv)
		return err
	})
	return cambio, err
}

// ── Balance observer ─────────────────────────────────────────────────────────

func (s *servicioService) OnBalanceChanged(ctx context.Context, socioID uuid.UUID) error {
	servicios, err := s.servicios.ListBySocio(ctx, nil, socioID)
	if err != nil {
		return err
	}
	for i := range servicios {
		if !servicios[i].Activo {
			continue
		}
		id := servicios[i].ID
		err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
			sv, err := s.servicios.LockByID(ctx, tx, id)
			if err != nil {
				return err
			}
			_, err = s.reevaluar(ctx, tx, sv)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// reevaluar applies the balance driven transitions to a locked servicio.
// The debt summary is read in the same transaction as the servicio lock.
func (s *servicioService) reevaluar(ctx context.Context, tx *gorm.DB, sv *model.Servicio) (bool, error) {
	resumen, err := s.ledger.DebtSummary(ctx, tx, sv.SocioID)
	if err != nil {
		return false, err
	}
	switch sv.Estado {
	case model.ServicioSuspendido:
		if resumen.Total.IsPositive() {
			return false, nil
		}
		sv.Estado = model.ServicioPendienteReconexion
		if err := s.servicios.Update(ctx, tx, sv); err != nil {
			return false, err
		}
		if err := s.asegurarOrden(ctx, tx, sv.ID, model.OrdenReconexion, "deuda saldada"); err != nil {
			return false, err
		}
		log.Info().Str("servicio_id", sv.ID.String()).Msg("servicio: pendiente de reconexión")
		return true, nil

	case model.ServicioPendienteReconexion:
		return false, s.asegurarOrden(ctx, tx, sv.ID, model.OrdenReconexion, "deuda saldada")

	case model.ServicioActivo:
		if resumen.CuentasVencidas >= s.params.UmbralVencidas {
			return false, nil
		}
		o, err := s.servicios.FindOrdenAbierta(ctx, tx, sv.ID, model.OrdenCorte)
		if err != nil || o == nil || o.Estado != model.OrdenPendiente {
			return false, err
		}
		o.Estado = model.OrdenCancelada
		nota := "deuda regularizada antes del corte"
		o.Nota = &nota
		if err := s.servicios.UpdateOrden(ctx, tx, o); err != nil {
			return false, err
		}
		log.Info().Str("orden_id", o.ID.String()).Msg("servicio: orden de corte cancelada")
		return true, nil
	}
	return false, nil
}

// ── Work orders ──────────────────────────────────────────────────────────────

func (s *servicioService) CreateWorkOrder(ctx context.Context, servicioID uuid.UUID, tipo, motivo string) (*model.OrdenTrabajo, error) {
	switch tipo {
	case model.OrdenCorte, model.OrdenReconexion, model.OrdenInspeccion, model.OrdenInstalacion:
	default:
		return nil, apperror.Validation("tipo", "tipo de orden desconocido")
	}
	var o *model.OrdenTrabajo
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.servicios.LockByID(ctx, tx, servicioID); err != nil {
			return err
		}
		existente, err := s.servicios.FindOrdenAbierta(ctx, tx, servicioID, tipo)
		if err != nil {
			return err
		}
		if existente != nil {
			o = existente
			return nil
		}
		o, err = s.nuevaOrden(ctx, tx, servicioID, tipo, motivo)
		return err
	})
	return o, err
}

func (s *servicioService) StartWorkOrder(ctx context.Context, ordenID uuid.UUID, asignadoA *uuid.UUID) (*model.OrdenTrabajo, error) {
	var o *model.OrdenTrabajo
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		o, err = s.servicios.LockOrden(ctx, tx, ordenID)
		if err != nil {
			return err
		}
		if o.Estado != model.OrdenPendiente {
			return apperror.BusinessRule(apperror.RuleWorkOrderClosed, "la orden no está pendiente")
		}
		o.Estado = model.OrdenEnProceso
		o.AsignadoA = asignadoA
		return s.servicios.UpdateOrden(ctx, tx, o)
	})
	return o, err
}

// CompleteWorkOrder finalizes the order and the servicio transition it
// implies in one transaction. Evidence files are stored first and removed
// again if the transaction fails.
func (s *servicioService) CompleteWorkOrder(ctx context.Context, ordenID uuid.UUID, evidencias []Evidencia, nota string) (*model.OrdenTrabajo, error) {
	rutas := make([]string, 0, len(evidencias))
	for _, e := range evidencias {
		if s.evidencia == nil {
			break
		}
		rel, err := s.evidencia.Save(ctx, "ordenes/"+ordenID.String(), e.Filename, e.Content)
		if err != nil {
			s.borrarEvidencias(ctx, rutas)
			return nil, apperror.Validation("evidencia", err.Error())
		}
		rutas = append(rutas, rel)
	}

	var o *model.OrdenTrabajo
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		o, err = s.servicios.FindOrden(ctx, tx, ordenID)
		if err != nil {
			return err
		}
		sv, err := s.servicios.LockByID(ctx, tx, o.ServicioID)
		if err != nil {
			return err
		}
		if o, err = s.servicios.LockOrden(ctx, tx, ordenID); err != nil {
			return err
		}
		if !o.Abierta() {
			return apperror.BusinessRule(apperror.RuleWorkOrderClosed, "orden "+o.ID.String())
		}

		switch o.Tipo {
		case model.OrdenCorte:
			if sv.Estado != model.ServicioActivo {
				return apperror.BusinessRule(apperror.RuleIllegalServiceTransition, sv.Estado+" → "+model.ServicioSuspendido)
			}
			resumen, err := s.ledger.DebtSummary(ctx, tx, sv.SocioID)
			if err != nil {
				return err
			}
			if resumen.CuentasVencidas == 0 {
				return apperror.BusinessRule(apperror.RuleCutOnActiveWithoutDebt, "el socio no tiene deuda vencida")
			}
			sv.Estado = model.ServicioSuspendido
			if err := s.cometida(ctx, tx, sv.TerrenoID, false); err != nil {
				return err
			}
		case model.OrdenReconexion:
			if sv.Estado != model.ServicioPendienteReconexion {
				return apperror.BusinessRule(apperror.RuleIllegalServiceTransition, sv.Estado+" → "+model.ServicioActivo)
			}
			sv.Estado = model.ServicioActivo
			if err := s.cometida(ctx, tx, sv.TerrenoID, true); err != nil {
				return err
			}
		case model.OrdenInstalacion:
			if err := s.cometida(ctx, tx, sv.TerrenoID, true); err != nil {
				return err
			}
		}
		if err := s.servicios.Update(ctx, tx, sv); err != nil {
			return err
		}

		ahora := s.clock.now()
		o.Estado = model.OrdenCompletada
		o.FechaCompletada = &ahora
		if nota != "" {
			o.Nota = &nota
		}
		if len(rutas) > 0 {
			raw, err := json.Marshal(rutas)
			if err != nil {
				return err
			}
			o.Evidencias = datatypes.JSON(raw)
		}
		return s.servicios.UpdateOrden(ctx, tx, o)
	})
	if err != nil {
		s.borrarEvidencias(ctx, rutas)
		return nil, err
	}
	log.Info().
		Str("orden_id", o.ID.String()).
		Str("tipo", o.Tipo).
		Str("servicio_id", o.ServicioID.String()).
		Msg("servicio: orden completada")
	return o, nil
}

func (s *servicioService) CancelWorkOrder(ctx context.Context, ordenID uuid.UUID, motivo string, usuarioID *uuid.UUID) (*model.OrdenTrabajo, error) {
	if motivo == "" {
		return nil, apperror.Validation("motivo", "requerido")
	}
	var o *model.OrdenTrabajo
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		o, err = s.servicios.LockOrden(ctx, tx, ordenID)
		if err != nil {
			return err
		}
		if !o.Abierta() {
			return apperror.BusinessRule(apperror.RuleWorkOrderClosed, "orden "+o.ID.String())
		}
		o.Estado = model.OrdenCancelada
		o.Nota = &motivo
		if err := s.servicios.UpdateOrden(ctx, tx, o); err != nil {
			return err
		}
		return registrarAuditoria(ctx, tx, s.auditoria, "orden_trabajo", o.ID, "CANCELAR", usuarioID, motivo,
			map[string]any{"tipo": o.Tipo, "servicio_id": o.ServicioID})
	})
	return o, err
}

// AdminOverride forces any state. Open orders that contradict the new
// state are cancelled with it.
func (s *servicioService) AdminOverride(ctx context.Context, servicioID uuid.UUID, estado, motivo string, usuarioID *uuid.UUID) (*model.Servicio, error) {
	switch estado {
	case model.ServicioActivo, model.ServicioSuspendido, model.ServicioPendienteReconexion:
	default:
		return nil, apperror.Validation("estado", "estado de servicio desconocido")
	}
	if motivo == "" {
		return nil, apperror.Validation("motivo", "requerido")
	}
	var sv *model.Servicio
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		sv, err = s.servicios.LockByID(ctx, tx, servicioID)
		if err != nil {
			return err
		}
		anterior := sv.Estado
		sv.Estado = estado
		if err := s.servicios.Update(ctx, tx, sv); err != nil {
			return err
		}
		if err := s.cometida(ctx, tx, sv.TerrenoID, estado != model.ServicioSuspendido); err != nil {
			return err
		}
		for _, tipo := range []string{model.OrdenCorte, model.OrdenReconexion} {
			o, err := s.servicios.FindOrdenAbierta(ctx, tx, sv.ID, tipo)
			if err != nil {
				return err
			}
			if o == nil {
				continue
			}
			o.Estado = model.OrdenCancelada
			nota := "cambio administrativo: " + motivo
			o.Nota = &nota
			if err := s.servicios.UpdateOrden(ctx, tx, o); err != nil {
				return err
			}
		}
		return registrarAuditoria(ctx, tx, s.auditoria, "servicio", sv.ID, "CAMBIO_ESTADO", usuarioID, motivo,
			map[string]any{"desde": anterior, "hasta": estado})
	})
	return sv, err
}

func (s *servicioService) ListOrdenes(ctx context.Context, estado, tipo string) ([]model.OrdenTrabajo, error) {
	return s.servicios.ListOrdenes(ctx, estado, tipo)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *servicioService) nuevaOrden(ctx context.Context, tx *gorm.DB, servicioID uuid.UUID, tipo, motivo string) (*model.OrdenTrabajo, error) {
	o := &model.OrdenTrabajo{
		ID:         uuid.New(),
		ServicioID: servicioID,
		Tipo:       tipo,
		Estado:     model.OrdenPendiente,
		Motivo:     motivo,
	}
	if err := s.servicios.CreateOrden(ctx, tx, o); err != nil {
		return nil, err
	}
	log.Info().Str("orden_id", o.ID.String()).Str("tipo", tipo).Str("servicio_id", servicioID.String()).Msg("servicio: orden creada")
	return o, nil
}

func (s *servicioService) asegurarOrden(ctx context.Context, tx *gorm.DB, servicioID uuid.UUID, tipo, motivo string) error {
	o, err := s.servicios.FindOrdenAbierta(ctx, tx, servicioID, tipo)
	if err != nil || o != nil {
		return err
	}
	_, err = s.nuevaOrden(ctx, tx, servicioID, tipo, motivo)
	return err
}

func (s *servicioService) cometida(ctx context.Context, tx *gorm.DB, terrenoID uuid.UUID, activa bool) error {
	t, err := s.socios.FindTerreno(ctx, tx, terrenoID)
	if err != nil {
		return err
	}
	if t.EsCometidaActiva == activa {
		return nil
	}
	t.EsCometidaActiva = activa
	return s.socios.UpdateTerreno(ctx, tx, t)
}

func (s *servicioService) borrarEvidencias(ctx context.Context, rutas []string) {
	for _, r := range rutas {
		if err := s.evidencia.Delete(ctx, r); err != nil {
			log.Warn().Err(err).Str("path", r).Msg("servicio: no se pudo borrar la evidencia")
		}
	}
}
