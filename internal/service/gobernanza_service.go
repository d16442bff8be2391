package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Event scopes.
const (
	AlcanceTodos  = "TODOS"
	AlcanceBarrio = "BARRIO"
	AlcanceManual = "MANUAL"
)

// diasVencimientoMulta is the due period of attendance fines.
const diasVencimientoMulta = 30

type NuevoEvento struct {
	Nombre     string
	Tipo       string
	Fecha      time.Time
	ValorMulta decimal.Decimal
	Alcance    string
	BarrioID   *uuid.UUID
	SocioIDs   []uuid.UUID
}

type RegistroAsistencia struct {
	SocioID     uuid.UUID
	Estado      string
	Observacion *string
}

type NuevaJustificacion struct {
	AsistenciaID uuid.UUID
	Motivo       string
	Descripcion  string
	Evidencia    *Evidencia
	// SocioID, when set, must own the attendance record.
	SocioID *uuid.UUID
}

// Decisions of ResolveJustification.
const (
	JustificacionAprobar  = "APPROVE"
	JustificacionRechazar = "REJECT"
)

type ResultadoMultas struct {
	EventoID  uuid.UUID       `json:"evento_id"`
	Generadas int             `json:"generadas"`
	Total     decimal.Decimal `json:"total"`
}

type GobernanzaService interface {
	CreateEvent(ctx context.Context, in NuevoEvento) (*model.Evento, error)
	RegisterAttendance(ctx context.Context, eventoID uuid.UUID, registros []RegistroAsistencia) ([]model.Asistencia, error)
	ProcessFinesBatch(ctx context.Context, eventoID uuid.UUID) (*ResultadoMultas, error)
	SubmitJustification(ctx context.Context, in NuevaJustificacion) (*model.SolicitudJustificacion, error)
	ResolveJustification(ctx context.Context, solicitudID uuid.UUID, decision, nota string, usuarioID *uuid.UUID) (*model.SolicitudJustificacion, error)
	CancelEvent(ctx context.Context, eventoID uuid.UUID, motivo string, usuarioID *uuid.UUID) (*model.Evento, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Evento, []model.Asistencia, error)
	ListEvents(ctx context.Context, estado string) ([]model.Evento, error)
	ListJustifications(ctx context.Context, estado string) ([]model.SolicitudJustificacion, error)
}

type gobernanzaService struct {
	tx        Transactor
	eventos   repository.EventoRepository
	socios    repository.SocioRepository
	rubros    repository.RubroRepository
	cuentas   repository.CuentaPorCobrarRepository
	auditoria repository.AuditoriaRepository
	ledger    LedgerService
	evidencia EvidenceStorage
	cola      Encolador
	clock     Clock
}

func NewGobernanzaService(
	tx Transactor,
	eventos repository.EventoRepository,
	socios repository.SocioRepository,
	rubros repository.RubroRepository,
	cuentas repository.CuentaPorCobrarRepository,
	auditoria repository.AuditoriaRepository,
	ledger LedgerService,
	evidencia EvidenceStorage,
	cola Encolador,
	clock Clock,
) GobernanzaService {
	if cola == nil {
		cola = noopEncolador{}
	}
	return &gobernanzaService{
		tx: tx, eventos: eventos, socios: socios, rubros: rubros, cuentas: cuentas,
		auditoria: auditoria, ledger: ledger, evidencia: evidencia, cola: cola, clock: clock,
	}
}

// ── Events ───────────────────────────────────────────────────────────────────

// CreateEvent materializes one FALTA asistencia per convened socio.
func (s *gobernanzaService) CreateEvent(ctx context.Context, in NuevoEvento) (*model.Evento, error) {
	switch in.Tipo {
	case model.EventoMinga, model.EventoAsamblea, model.EventoAporte:
	default:
		return nil, apperror.Validation("tipo", "tipo de evento desconocido")
	}
	if in.Nombre == "" {
		return nil, apperror.Validation("nombre", "requerido")
	}
	if in.ValorMulta.IsNegative() {
		return nil, apperror.Validation("valor_multa", "no puede ser negativo")
	}

	var e *model.Evento
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		socios, err := s.convocados(ctx, tx, in)
		if err != nil {
			return err
		}
		if len(socios) == 0 {
			return apperror.Validation("alcance", "el evento no convoca a ningún socio")
		}
		e = &model.Evento{
			ID:         uuid.New(),
			Nombre:     in.Nombre,
			Tipo:       in.Tipo,
			Fecha:      in.Fecha,
			ValorMulta: in.ValorMulta.Round(2),
			Estado:     model.EventoProgramado,
			Alcance:    in.Alcance,
			BarrioID:   in.BarrioID,
		}
		if err := s.eventos.Create(ctx, tx, e); err != nil {
			return err
		}
		asistencias := make([]model.Asistencia, 0, len(socios))
		for _, so := range socios {
			asistencias = append(asistencias, model.Asistencia{
				ID: uuid.New(), EventoID: e.ID, SocioID: so.ID, Estado: model.AsistenciaFalta,
			})
		}
		return s.eventos.CreateAsistencias(ctx, tx, asistencias)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("evento_id", e.ID.String()).Str("alcance", e.Alcance).Msg("gobernanza: evento creado")
	return e, nil
}

func (s *gobernanzaService) convocados(ctx context.Context, tx *gorm.DB, in NuevoEvento) ([]model.Socio, error) {
	switch in.Alcance {
	case AlcanceTodos:
		return s.socios.ListActivos(ctx, tx, nil)
	case AlcanceBarrio:
		if in.BarrioID == nil {
			return nil, apperror.Validation("barrio_id", "requerido para alcance BARRIO")
		}
		return s.socios.ListActivos(ctx, tx, in.BarrioID)
	case AlcanceManual:
		ids := unicos(in.SocioIDs)
		socios, err := s.socios.ListByIDs(ctx, tx, ids)
		if err != nil {
			return nil, err
		}
		if len(socios) != len(ids) {
			return nil, apperror.Validation("socio_ids", "hay socios inexistentes en la lista")
		}
		return socios, nil
	}
	return nil, apperror.Validation("alcance", "debe ser TODOS, BARRIO o MANUAL")
}

// RegisterAttendance is idempotent. Asistencias that already carry a fine
// or were justified cannot change.
func (s *gobernanzaService) RegisterAttendance(ctx context.Context, eventoID uuid.UUID, registros []RegistroAsistencia) ([]model.Asistencia, error) {
	var out []model.Asistencia
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		e, err := s.eventos.LockByID(ctx, tx, eventoID)
		if err != nil {
			return err
		}
		if e.Estado == model.EventoCancelado {
			return apperror.BusinessRule(apperror.RuleEventClosed, e.Nombre)
		}
		asistencias, err := s.eventos.LockAsistenciasByEvento(ctx, tx, eventoID)
		if err != nil {
			return err
		}
		porSocio := make(map[uuid.UUID]*model.Asistencia, len(asistencias))
		for i := range asistencias {
			porSocio[asistencias[i].SocioID] = &asistencias[i]
		}
		for _, r := range registros {
			switch r.Estado {
			case model.AsistenciaAsistio, model.AsistenciaFalta, model.AsistenciaAtraso:
			default:
				return apperror.Validation("estado", "estado de asistencia no registrable: "+r.Estado)
			}
			a, ok := porSocio[r.SocioID]
			if !ok {
				return apperror.NotFound("asistencia", "socio "+r.SocioID.String())
			}
			if a.Estado == r.Estado && r.Observacion == nil {
				continue
			}
			if a.CuentaPorCobrarID != nil || a.Estado == model.AsistenciaJustificado {
				if a.Estado == r.Estado {
					continue
				}
				return apperror.BusinessRule(apperror.RuleAttendanceLocked, "socio "+r.SocioID.String())
			}
			a.Estado = r.Estado
			if r.Observacion != nil {
				a.Observacion = r.Observacion
			}
			if err := s.eventos.UpdateAsistencia(ctx, tx, a); err != nil {
				return err
			}
		}
		out = asistencias
		return nil
	})
	return out, err
}

// ProcessFinesBatch fines every FALTA without an approved justification.
// The origin reference makes it idempotent per (evento, socio).
func (s *gobernanzaService) ProcessFinesBatch(ctx context.Context, eventoID uuid.UUID) (*ResultadoMultas, error) {
	res := &ResultadoMultas{EventoID: eventoID, Total: decimal.Zero}
	var nuevas []uuid.UUID
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		e, err := s.eventos.LockByID(ctx, tx, eventoID)
		if err != nil {
			return err
		}
		if e.Estado == model.EventoCancelado {
			return apperror.BusinessRule(apperror.RuleEventClosed, e.Nombre)
		}
		if e.ValorMulta.IsPositive() {
			if err := s.multar(ctx, tx, e, res, &nuevas); err != nil {
				return err
			}
		}
		if e.Estado != model.EventoRealizado {
			e.Estado = model.EventoRealizado
			return s.eventos.Update(ctx, tx, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range nuevas {
		if err := s.cola.EnqueueFineEmail(ctx, id); err != nil {
			log.Warn().Err(err).Str("cuenta_id", id.String()).Msg("gobernanza: no se pudo encolar la notificación")
		}
	}
	log.Info().
		Str("evento_id", eventoID.String()).
		Int("generadas", res.Generadas).
		Str("total", res.Total.StringFixed(2)).
		Msg("gobernanza: multas procesadas")
	return res, nil
}

func (s *gobernanzaService) multar(ctx context.Context, tx *gorm.DB, e *model.Evento, res *ResultadoMultas, nuevas *[]uuid.UUID) error {
	rubro, err := s.rubros.FindPorTipo(ctx, tx, model.RubroMulta)
	if err != nil {
		return err
	}
	if rubro == nil {
		return apperror.BusinessRule(apperror.RuleMissingCatalogItem, "no hay rubro activo de tipo "+model.RubroMulta)
	}
	asistencias, err := s.eventos.LockAsistenciasByEvento(ctx, tx, e.ID)
	if err != nil {
		return err
	}
	hoy := s.clock.now()
	for i := range asistencias {
		a := &asistencias[i]
		if a.Estado != model.AsistenciaFalta {
			continue
		}
		sol, err := s.eventos.FindJustificacionByAsistencia(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		if sol != nil && sol.Estado == model.JustificacionAprobada {
			continue
		}
		cuenta, err := s.ledger.CreateObligation(ctx, tx, NuevaObligacion{
			SocioID:          a.SocioID,
			RubroID:          rubro.ID,
			Monto:            e.ValorMulta,
			FechaEmision:     hoy,
			FechaVencimiento: hoy.AddDate(0, 0, diasVencimientoMulta),
			Origen:           origenMulta(e.ID, a.SocioID),
		})
		if apperror.IsRule(err, apperror.RuleDuplicateObligation) {
			dup, _ := apperror.As(err)
			if previa, ok := dup.Existing.(*model.CuentaPorCobrar); ok && a.CuentaPorCobrarID == nil {
				a.CuentaPorCobrarID = &previa.ID
				if err := s.eventos.UpdateAsistencia(ctx, tx, a); err != nil {
					return err
				}
			}
			continue
		}
		if err != nil {
			return err
		}
		a.CuentaPorCobrarID = &cuenta.ID
		if err := s.eventos.UpdateAsistencia(ctx, tx, a); err != nil {
			return err
		}
		if sol != nil && sol.Estado == model.JustificacionPendiente {
			if err := s.ledger.HoldForJustification(ctx, tx, cuenta.ID); err != nil {
				return err
			}
		}
		res.Generadas++
		res.Total = res.Total.Add(cuenta.MontoInicial)
		*nuevas = append(*nuevas, cuenta.ID)
	}
	return nil
}

func (s *gobernanzaService) CancelEvent(ctx context.Context, eventoID uuid.UUID, motivo string, usuarioID *uuid.UUID) (*model.Evento, error) {
	if motivo == "" {
		return nil, apperror.Validation("motivo", "requerido")
	}
	var e *model.Evento
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		e, err = s.eventos.LockByID(ctx, tx, eventoID)
		if err != nil {
			return err
		}
		if e.Estado == model.EventoRealizado || e.Estado == model.EventoCancelado {
			return apperror.BusinessRule(apperror.RuleEventClosed, e.Nombre)
		}
		e.Estado = model.EventoCancelado
		if err := s.eventos.Update(ctx, tx, e); err != nil {
			return err
		}
		return registrarAuditoria(ctx, tx, s.auditoria, "evento", e.ID, "CANCELAR", usuarioID, motivo, nil)
	})
	return e, err
}

// ── Justifications ───────────────────────────────────────────────────────────

func (s *gobernanzaService) SubmitJustification(ctx context.Context, in NuevaJustificacion) (*model.SolicitudJustificacion, error) {
	if in.Motivo == "" {
		return nil, apperror.Validation("motivo", "requerido")
	}
	var evidenciaPath *string
	if in.Evidencia != nil && s.evidencia != nil {
		rel, err := s.evidencia.Save(ctx, "justificaciones", in.Evidencia.Filename, in.Evidencia.Content)
		if err != nil {
			return nil, apperror.Validation("evidencia", err.Error())
		}
		evidenciaPath = &rel
	}

	var sol *model.SolicitudJustificacion
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		a, err := s.eventos.LockAsistencia(ctx, tx, in.AsistenciaID)
		if err != nil {
			return err
		}
		if in.SocioID != nil && a.SocioID != *in.SocioID {
			return apperror.NotFound("asistencia", in.AsistenciaID)
		}
		if a.Estado != model.AsistenciaFalta && a.Estado != model.AsistenciaAtraso {
			return apperror.BusinessRule(apperror.RuleJustificationNotAllowed, "asistencia en estado "+a.Estado)
		}
		existente, err := s.eventos.FindJustificacionByAsistencia(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		if existente != nil {
			return apperror.BusinessRule(apperror.RuleJustificationExists, "solicitud "+existente.ID.String())
		}
		sol = &model.SolicitudJustificacion{
			ID:            uuid.New(),
			AsistenciaID:  a.ID,
			Motivo:        in.Motivo,
			Descripcion:   in.Descripcion,
			EvidenciaPath: evidenciaPath,
			Estado:        model.JustificacionPendiente,
		}
		if err := s.eventos.CreateJustificacion(ctx, tx, sol); err != nil {
			return err
		}
		// The fine cannot be paid while the request is reviewed.
		if a.CuentaPorCobrarID != nil {
			return s.ledger.HoldForJustification(ctx, tx, *a.CuentaPorCobrarID)
		}
		return nil
	})
	if err != nil {
		if evidenciaPath != nil {
			_ = s.evidencia.Delete(ctx, *evidenciaPath)
		}
		return nil, err
	}
	return sol, nil
}

func (s *gobernanzaService) ResolveJustification(ctx context.Context, solicitudID uuid.UUID, decision, nota string, usuarioID *uuid.UUID) (*model.SolicitudJustificacion, error) {
	if decision != JustificacionAprobar && decision != JustificacionRechazar {
		return nil, apperror.Validation("decision", "debe ser APPROVE o REJECT")
	}
	var sol *model.SolicitudJustificacion
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		sol, err = s.eventos.LockJustificacion(ctx, tx, solicitudID)
		if err != nil {
			return err
		}
		if sol.Estado != model.JustificacionPendiente {
			return apperror.BusinessRule(apperror.RuleJustificationResolved, "solicitud "+sol.ID.String())
		}
		a, err := s.eventos.LockAsistencia(ctx, tx, sol.AsistenciaID)
		if err != nil {
			return err
		}

		ahora := s.clock.now()
		sol.ResueltoPor = usuarioID
		sol.FechaResolucion = &ahora
		if nota != "" {
			sol.NotaAdministrador = &nota
		}

		if decision == JustificacionRechazar {
			sol.Estado = model.JustificacionRechazada
			if a.CuentaPorCobrarID != nil {
				if err := s.ledger.ReleaseJustification(ctx, tx, *a.CuentaPorCobrarID); err != nil {
					return err
				}
			}
			return s.eventos.UpdateJustificacion(ctx, tx, sol)
		}

		if a.CuentaPorCobrarID != nil {
			multa, err := s.cuentas.FindByID(ctx, tx, *a.CuentaPorCobrarID)
			if err != nil {
				return err
			}
			switch multa.Estado {
			case model.CxCPagada, model.CxCPagoParcial:
				return apperror.BusinessRule(apperror.RuleJustificationOnPaidFine, "multa "+multa.ID.String())
			case model.CxCAnulada:
			default:
				if _, err := s.ledger.VoidObligation(ctx, tx, multa.ID, "Justificación aprobada: "+sol.Motivo, usuarioID); err != nil {
					return err
				}
			}
		}
		sol.Estado = model.JustificacionAprobada
		a.Estado = model.AsistenciaJustificado
		if err := s.eventos.UpdateAsistencia(ctx, tx, a); err != nil {
			return err
		}
		if err := s.eventos.UpdateJustificacion(ctx, tx, sol); err != nil {
			return err
		}
		return registrarAuditoria(ctx, tx, s.auditoria, "solicitud_justificacion", sol.ID, "APROBAR", usuarioID, nota,
			map[string]any{"asistencia_id": a.ID, "socio_id": a.SocioID})
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("solicitud_id", sol.ID.String()).Str("estado", sol.Estado).Msg("gobernanza: justificación resuelta")
	return sol, nil
}

func (s *gobernanzaService) GetEvent(ctx context.Context, id uuid.UUID) (*model.Evento, []model.Asistencia, error) {
	e, err := s.eventos.FindByID(ctx, nil, id)
	if err != nil {
		return nil, nil, err
	}
	as, err := s.eventos.ListAsistencias(ctx, nil, id)
	return e, as, err
}

func (s *gobernanzaService) ListEvents(ctx context.Context, estado string) ([]model.Evento, error) {
	return s.eventos.List(ctx, estado)
}

func (s *gobernanzaService) ListJustifications(ctx context.Context, estado string) ([]model.SolicitudJustificacion, error) {
	return s.eventos.ListJustificaciones(ctx, estado)
}

func unicos(ids []uuid.UUID) []uuid.UUID {
	vistos := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !vistos[id] {
			vistos[id] = true
			out = append(out, id)
		}
	}
	return out
}

const prefijoMulta = "MULTA_EVENTO_"

// origenMulta is the ledger origin of a fine: one per event and socio.
func origenMulta(eventoID, socioID uuid.UUID) string {
	return fmt.Sprintf("%s%s_SOCIO_%s", prefijoMulta, eventoID, socioID)
}

// EventoDeMulta recovers the event id from a fine's origin reference.
func EventoDeMulta(origen string) (uuid.UUID, bool) {
	resto, ok := strings.CutPrefix(origen, prefijoMulta)
	if !ok {
		return uuid.Nil, false
	}
	id, _, _ := strings.Cut(resto, "_SOCIO_")
	eventoID, err := uuid.Parse(id)
	return eventoID, err == nil
}
