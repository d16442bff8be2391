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

type NuevoRubro struct {
	Codigo        string
	Nombre        string
	Tipo          string
	ValorUnitario decimal.Decimal
	AplicaIVA     bool
}

type ActualizacionRubro struct {
	Nombre        *string
	ValorUnitario *decimal.Decimal
	AplicaIVA     *bool
	Activo        *bool
}

type NuevoMedidor struct {
	Codigo         string
	Marca          *string
	LecturaInicial decimal.Decimal
}

type Reemplazo struct {
	MedidorAnteriorID uuid.UUID
	LecturaFinal      decimal.Decimal
	EstadoAnterior    string
	Nuevo             NuevoMedidor
	Fecha             time.Time
	UsuarioID         *uuid.UUID
}

type NuevaLectura struct {
	MedidorID     uuid.UUID
	Fecha         time.Time
	Valor         decimal.Decimal
	Observacion   *string
	RegistradoPor *uuid.UUID
}

// CatalogoService owns rubros, barrios, meters and the reading stream.
type CatalogoService interface {
	CrearRubro(ctx context.Context, in NuevoRubro) (*model.CatalogoRubro, error)
	ActualizarRubro(ctx context.Context, id uuid.UUID, in ActualizacionRubro) (*model.CatalogoRubro, error)
	EliminarRubro(ctx context.Context, id uuid.UUID) error
	ListarRubros(ctx context.Context, soloActivos bool) ([]model.CatalogoRubro, error)

	CrearBarrio(ctx context.Context, nombre string, descripcion *string) (*model.Barrio, error)
	ListarBarrios(ctx context.Context) ([]model.Barrio, error)
	EliminarBarrio(ctx context.Context, id uuid.UUID) error

	RegistrarMedidor(ctx context.Context, in NuevoMedidor) (*model.Medidor, error)
	InstalarMedidor(ctx context.Context, medidorID, terrenoID uuid.UUID, fecha time.Time) (*model.Medidor, error)
	ReemplazarMedidor(ctx context.Context, terrenoID uuid.UUID, in Reemplazo) (*model.Medidor, error)
	CambiarEstadoMedidor(ctx context.Context, id uuid.UUID, estado, motivo string, usuarioID *uuid.UUID) (*model.Medidor, error)
	ObtenerMedidor(ctx context.Context, id uuid.UUID) (*model.Medidor, error)
	ListarMedidores(ctx context.Context, estado string) ([]model.Medidor, error)

	RegistrarLectura(ctx context.Context, in NuevaLectura) (*model.Lectura, error)
	ListarLecturas(ctx context.Context, medidorID uuid.UUID) ([]model.Lectura, error)
}

type catalogoService struct {
	tx        Transactor
	rubros    repository.RubroRepository
	socios    repository.SocioRepository
	medidores repository.MedidorRepository
	servicios repository.ServicioRepository
	auditoria repository.AuditoriaRepository
	clock     Clock
}

func NewCatalogoService(
	tx Transactor,
	rubros repository.RubroRepository,
	socios repository.SocioRepository,
	medidores repository.MedidorRepository,
	servicios repository.ServicioRepository,
	auditoria repository.AuditoriaRepository,
	clock Clock,
) CatalogoService {
	return &catalogoService{
		tx: tx, rubros: rubros, socios: socios, medidores: medidores,
		servicios: servicios, auditoria: auditoria, clock: clock,
	}
}

// ── Rubros ───────────────────────────────────────────────────────────────────

func (s *catalogoService) CrearRubro(ctx context.Context, in NuevoRubro) (*model.CatalogoRubro, error) {
	in.Codigo = strings.ToUpper(strings.TrimSpace(in.Codigo))
	if in.Codigo == "" || strings.TrimSpace(in.Nombre) == "" {
		return nil, apperror.Validation("codigo", "codigo y nombre son requeridos")
	}
	if !model.TipoRubroValido(in.Tipo) {
		return nil, apperror.Validation("tipo", "tipo de rubro desconocido")
	}
	if in.ValorUnitario.IsNegative() {
		return nil, apperror.Validation("valor_unitario", "no puede ser negativo")
	}
	r := &model.CatalogoRubro{
		ID:            uuid.New(),
		Codigo:        in.Codigo,
		Nombre:        strings.TrimSpace(in.Nombre),
		Tipo:          in.Tipo,
		ValorUnitario: in.ValorUnitario.Round(4),
		AplicaIVA:     in.AplicaIVA,
		Activo:        true,
	}
	if err := s.rubros.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *catalogoService) ActualizarRubro(ctx context.Context, id uuid.UUID, in ActualizacionRubro) (*model.CatalogoRubro, error) {
	r, err := s.rubros.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if r.DeletedAt.Valid {
		return nil, apperror.NotFound("rubro", id)
	}
	if in.Nombre != nil {
		r.Nombre = strings.TrimSpace(*in.Nombre)
	}
	if in.ValorUnitario != nil {
		if in.ValorUnitario.IsNegative() {
			return nil, apperror.Validation("valor_unitario", "no puede ser negativo")
		}
		r.ValorUnitario = in.ValorUnitario.Round(4)
	}
	if in.AplicaIVA != nil {
		r.AplicaIVA = *in.AplicaIVA
	}
	if in.Activo != nil {
		r.Activo = *in.Activo
	}
	if err := s.rubros.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// EliminarRubro soft deletes; receivables that reference the rubro keep resolving.
func (s *catalogoService) EliminarRubro(ctx context.Context, id uuid.UUID) error {
	return s.rubros.SoftDelete(ctx, id)
}

func (s *catalogoService) ListarRubros(ctx context.Context, soloActivos bool) ([]model.CatalogoRubro, error) {
	return s.rubros.List(ctx, soloActivos)
}

// ── Barrios ──────────────────────────────────────────────────────────────────

func (s *catalogoService) CrearBarrio(ctx context.Context, nombre string, descripcion *string) (*model.Barrio, error) {
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return nil, apperror.Validation("nombre", "requerido")
	}
	b := &model.Barrio{ID: uuid.New(), Nombre: nombre, Descripcion: descripcion}
	if err := s.socios.CreateBarrio(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *catalogoService) ListarBarrios(ctx context.Context) ([]model.Barrio, error) {
	return s.socios.ListBarrios(ctx)
}

func (s *catalogoService) EliminarBarrio(ctx context.Context, id uuid.UUID) error {
	return s.socios.DeleteBarrio(ctx, id)
}

// ── Medidores ────────────────────────────────────────────────────────────────

func (s *catalogoService) RegistrarMedidor(ctx context.Context, in NuevoMedidor) (*model.Medidor, error) {
	var m *model.Medidor
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		m, err = s.nuevoMedidor(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// nuevoMedidor stores an unassigned INACTIVO meter.
func (s *catalogoService) nuevoMedidor(ctx context.Context, tx *gorm.DB, in NuevoMedidor) (*model.Medidor, error) {
	codigo := strings.ToUpper(strings.TrimSpace(in.Codigo))
	if codigo == "" {
		return nil, apperror.Validation("codigo", "requerido")
	}
	if in.LecturaInicial.IsNegative() {
		return nil, apperror.Validation("lectura_inicial", "no puede ser negativa")
	}
	previo, err := s.medidores.FindByCodigo(ctx, tx, codigo)
	if err != nil {
		return nil, err
	}
	if previo != nil {
		return nil, apperror.BusinessRule(apperror.RuleDuplicateMeterCode, codigo)
	}
	m := &model.Medidor{
		ID:             uuid.New(),
		Codigo:         codigo,
		Marca:          in.Marca,
		LecturaInicial: in.LecturaInicial,
		Estado:         model.MedidorInactivo,
	}
	if err := s.medidores.Create(ctx, tx, m); err != nil {
		// Two registrations racing past the lookup.
		if apperror.IsKind(err, apperror.KindIntegrityConflict) {
			return nil, apperror.BusinessRule(apperror.RuleDuplicateMeterCode, codigo)
		}
		return nil, err
	}
	return m, nil
}

func (s *catalogoService) InstalarMedidor(ctx context.Context, medidorID, terrenoID uuid.UUID, fecha time.Time) (*model.Medidor, error) {
	var m *model.Medidor
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		m, err = s.medidores.LockByID(ctx, tx, medidorID)
		if err != nil {
			return err
		}
		if m.Estado == model.MedidorActivo || m.TerrenoID != nil {
			return apperror.BusinessRule(apperror.RuleIllegalServiceTransition, "el medidor "+m.Codigo+" ya está instalado")
		}
		return s.instalar(ctx, tx, m, terrenoID, fecha)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("medidor", m.Codigo).Str("terreno_id", terrenoID.String()).Msg("catalogo: medidor instalado")
	return m, nil
}

// instalar activates m on the terreno and links it to the terreno's MEDIDO
// contract when there is one.
func (s *catalogoService) instalar(ctx context.Context, tx *gorm.DB, m *model.Medidor, terrenoID uuid.UUID, fecha time.Time) error {
	if _, err := s.socios.FindTerreno(ctx, tx, terrenoID); err != nil {
		return err
	}
	activo, err := s.medidores.FindActivoByTerreno(ctx, tx, terrenoID)
	if err != nil {
		return err
	}
	if activo != nil {
		return apperror.BusinessRule(apperror.RuleTerrenoHasActiveMeter, activo.Codigo)
	}
	if fecha.IsZero() {
		fecha = s.clock.now()
	}
	m.TerrenoID = &terrenoID
	m.Estado = model.MedidorActivo
	m.FechaInstalacion = &fecha
	if err := s.medidores.Update(ctx, tx, m); err != nil {
		if apperror.IsKind(err, apperror.KindIntegrityConflict) {
			return apperror.BusinessRule(apperror.RuleTerrenoHasActiveMeter, terrenoID.String())
		}
		return err
	}

	sv, err := s.servicios.FindActivoByTerreno(ctx, tx, terrenoID)
	if err != nil {
		return err
	}
	if sv != nil && sv.Tipo == model.ServicioMedido {
		sv.MedidorID = &m.ID
		return s.servicios.Update(ctx, tx, sv)
	}
	return nil
}

// ReemplazarMedidor closes the old stream with a final reading and installs
// a freshly registered meter in its place, all in one transaction.
func (s *catalogoService) ReemplazarMedidor(ctx context.Context, terrenoID uuid.UUID, in Reemplazo) (*model.Medidor, error) {
	if in.EstadoAnterior == "" {
		in.EstadoAnterior = model.MedidorInactivo
	}
	if in.EstadoAnterior == model.MedidorActivo || !model.EstadoMedidorValido(in.EstadoAnterior) {
		return nil, apperror.Validation("estado_anterior", "estado inválido para un medidor retirado")
	}
	fecha := in.Fecha
	if fecha.IsZero() {
		fecha = s.clock.now()
	}

	var nuevo *model.Medidor
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		viejo, err := s.medidores.LockByID(ctx, tx, in.MedidorAnteriorID)
		if err != nil {
			return err
		}
		if viejo.Estado != model.MedidorActivo || viejo.TerrenoID == nil || *viejo.TerrenoID != terrenoID {
			return apperror.BusinessRule(apperror.RuleMeterNotActive, "el medidor "+viejo.Codigo+" no está activo en el terreno")
		}

		final, err := s.siguienteLectura(ctx, tx, viejo, fecha, in.LecturaFinal)
		if err != nil {
			return err
		}
		final.EsFinal = true
		final.RegistradoPor = in.UsuarioID
		obs := "lectura final por reemplazo"
		final.Observacion = &obs
		if err := s.medidores.CreateLectura(ctx, tx, final); err != nil {
			return err
		}

		viejo.Estado = in.EstadoAnterior
		if err := s.medidores.Update(ctx, tx, viejo); err != nil {
			return err
		}

		nuevo, err = s.nuevoMedidor(ctx, tx, in.Nuevo)
		if err != nil {
			return err
		}
		if err := s.instalar(ctx, tx, nuevo, terrenoID, fecha); err != nil {
			return err
		}
		return registrarAuditoria(ctx, tx, s.auditoria, "medidor", viejo.ID, "REEMPLAZO", in.UsuarioID,
			"reemplazado por "+nuevo.Codigo, map[string]any{
				"lectura_final": final.Valor.String(),
				"nuevo_medidor": nuevo.ID.String(),
				"estado":        viejo.Estado,
			})
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("anterior", in.MedidorAnteriorID.String()).Str("nuevo", nuevo.Codigo).Msg("catalogo: medidor reemplazado")
	return nuevo, nil
}

// CambiarEstadoMedidor moves a meter between states. Leaving ACTIVO unlinks
// it from its terreno and contract; reactivation goes through InstalarMedidor.
func (s *catalogoService) CambiarEstadoMedidor(ctx context.Context, id uuid.UUID, estado, motivo string, usuarioID *uuid.UUID) (*model.Medidor, error) {
	if !model.EstadoMedidorValido(estado) {
		return nil, apperror.Validation("estado", "estado de medidor desconocido")
	}
	if estado == model.MedidorActivo {
		return nil, apperror.Validation("estado", "use la instalación para activar un medidor")
	}
	var m *model.Medidor
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		m, err = s.medidores.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		anterior := m.Estado
		if anterior == estado {
			return nil
		}
		if anterior == model.MedidorActivo && m.TerrenoID != nil {
			sv, err := s.servicios.FindActivoByTerreno(ctx, tx, *m.TerrenoID)
			if err != nil {
				return err
			}
			if sv != nil && sv.MedidorID != nil && *sv.MedidorID == m.ID {
				sv.MedidorID = nil
				if err := s.servicios.Update(ctx, tx, sv); err != nil {
					return err
				}
			}
			m.TerrenoID = nil
		}
		m.Estado = estado
		if err := s.medidores.Update(ctx, tx, m); err != nil {
			return err
		}
		return registrarAuditoria(ctx, tx, s.auditoria, "medidor", m.ID, "CAMBIO_ESTADO", usuarioID, motivo,
			map[string]any{"anterior": anterior, "nuevo": estado})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *catalogoService) ObtenerMedidor(ctx context.Context, id uuid.UUID) (*model.Medidor, error) {
	return s.medidores.FindByID(ctx, nil, id)
}

func (s *catalogoService) ListarMedidores(ctx context.Context, estado string) ([]model.Medidor, error) {
	if estado != "" && !model.EstadoMedidorValido(estado) {
		return nil, apperror.Validation("estado", "estado de medidor desconocido")
	}
	return s.medidores.List(ctx, estado)
}

// ── Lecturas ─────────────────────────────────────────────────────────────────

func (s *catalogoService) RegistrarLectura(ctx context.Context, in NuevaLectura) (*model.Lectura, error) {
	if in.Fecha.IsZero() {
		in.Fecha = s.clock.now()
	}
	var l *model.Lectura
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		m, err := s.medidores.LockByID(ctx, tx, in.MedidorID)
		if err != nil {
			return err
		}
		if m.Estado != model.MedidorActivo {
			return apperror.BusinessRule(apperror.RuleMeterNotActive, m.Codigo+" está "+m.Estado)
		}
		l, err = s.siguienteLectura(ctx, tx, m, in.Fecha, in.Valor)
		if err != nil {
			return err
		}
		l.Observacion = in.Observacion
		l.RegistradoPor = in.RegistradoPor
		return s.medidores.CreateLectura(ctx, tx, l)
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("medidor_id", l.MedidorID.String()).
		Str("valor", l.Valor.String()).
		Str("consumo", l.ConsumoDelMes.String()).
		Msg("catalogo: lectura registrada")
	return l, nil
}

// siguienteLectura builds the next snapshot of m's stream. The caller holds
// the meter lock, so the last reading cannot move underneath it.
func (s *catalogoService) siguienteLectura(ctx context.Context, tx *gorm.DB, m *model.Medidor, fecha time.Time, valor decimal.Decimal) (*model.Lectura, error) {
	if valor.IsNegative() {
		return nil, apperror.Validation("valor", "no puede ser negativo")
	}
	anterior := m.LecturaInicial
	ultima, err := s.medidores.UltimaLectura(ctx, tx, m.ID)
	if err != nil {
		return nil, err
	}
	if ultima != nil {
		if ultima.EsFinal {
			return nil, apperror.BusinessRule(apperror.RuleMeterNotActive, m.Codigo+" ya tiene lectura final")
		}
		if !fecha.After(ultima.Fecha) {
			return nil, apperror.BusinessRule(apperror.RuleReadingOutOfOrder,
				fmt.Sprintf("la fecha debe ser posterior a %s", ultima.Fecha.Format("2006-01-02")))
		}
		anterior = ultima.Valor
	}
	if valor.LessThan(anterior) {
		return nil, apperror.BusinessRule(apperror.RuleReadingOutOfOrder,
			fmt.Sprintf("valor %s menor que la lectura anterior %s", valor, anterior))
	}
	return &model.Lectura{
		ID:              uuid.New(),
		MedidorID:       m.ID,
		Fecha:           fecha,
		Valor:           valor,
		LecturaAnterior: anterior,
		ConsumoDelMes:   valor.Sub(anterior),
	}, nil
}

func (s *catalogoService) ListarLecturas(ctx context.Context, medidorID uuid.UUID) ([]model.Lectura, error) {
	return s.medidores.ListLecturas(ctx, medidorID)
}
