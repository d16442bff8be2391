package service

import (
	"context"
	"strings"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/dto"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/sri"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CuentaAcceso asks for a login account bound to the new socio.
type CuentaAcceso struct {
	Username string
	Password string
}

type NuevoSocio struct {
	Identificacion string
	Nombres        string
	Apellidos      string
	Email          *string
	Telefono       *string
	Direccion      string
	BarrioID       *uuid.UUID
	Cuenta         *CuentaAcceso
}

type ActualizacionSocio struct {
	Nombres   *string
	Apellidos *string
	Email     *string
	Telefono  *string
	Direccion *string
	BarrioID  *uuid.UUID
}

type NuevoServicio struct {
	TerrenoID    uuid.UUID
	Tipo         string
	TarifaFija   *decimal.Decimal
	BaseM3       *decimal.Decimal
	PrecioBase   *decimal.Decimal
	PrecioExceso *decimal.Decimal
}

// EstadoCuenta is the balance view of one socio.
type EstadoCuenta struct {
	Socio      *model.Socio            `json:"socio"`
	Resumen    repository.ResumenDeuda `json:"resumen"`
	Pendientes []model.CuentaPorCobrar `json:"pendientes"`
	Servicios  []model.Servicio        `json:"servicios"`
}

// SocioService manages the padrón: socios, their terrenos and water contracts.
type SocioService interface {
	Crear(ctx context.Context, in NuevoSocio) (*model.Socio, error)
	Actualizar(ctx context.Context, id uuid.UUID, in ActualizacionSocio) (*model.Socio, error)
	Desactivar(ctx context.Context, id uuid.UUID, motivo string, usuarioID *uuid.UUID) error
	Reactivar(ctx context.Context, id uuid.UUID, usuarioID *uuid.UUID) error
	Obtener(ctx context.Context, id uuid.UUID) (*model.Socio, error)
	Listar(ctx context.Context, filter repository.SocioFilter) ([]model.Socio, int64, error)

	CrearTerreno(ctx context.Context, socioID, barrioID uuid.UUID, direccion string) (*model.Terreno, error)
	ListarTerrenos(ctx context.Context, socioID uuid.UUID) ([]model.Terreno, error)

	ContratarServicio(ctx context.Context, in NuevoServicio) (*model.Servicio, error)
	DarDeBajaServicio(ctx context.Context, servicioID uuid.UUID, motivo string, usuarioID *uuid.UUID) error
	ListarServicios(ctx context.Context, socioID uuid.UUID) ([]model.Servicio, error)

	EstadoCuenta(ctx context.Context, socioID uuid.UUID) (*EstadoCuenta, error)
}

type socioService struct {
	tx        Transactor
	socios    repository.SocioRepository
	servicios repository.ServicioRepository
	medidores repository.MedidorRepository
	auditoria repository.AuditoriaRepository
	ledger    LedgerService
	auth      AuthService
}

func NewSocioService(
	tx Transactor,
	socios repository.SocioRepository,
	servicios repository.ServicioRepository,
	medidores repository.MedidorRepository,
	auditoria repository.AuditoriaRepository,
	ledger LedgerService,
	auth AuthService,
) SocioService {
	return &socioService{
		tx: tx, socios: socios, servicios: servicios, medidores: medidores,
		auditoria: auditoria, ledger: ledger, auth: auth,
	}
}

// ── Socios ───────────────────────────────────────────────────────────────────

func (s *socioService) Crear(ctx context.Context, in NuevoSocio) (*model.Socio, error) {
	in.Identificacion = strings.TrimSpace(in.Identificacion)
	tipo, err := sri.ValidarIdentificacion(in.Identificacion)
	if err != nil {
		return nil, apperror.Validation("identificacion", err.Error())
	}
	if strings.TrimSpace(in.Nombres) == "" || strings.TrimSpace(in.Apellidos) == "" {
		return nil, apperror.Validation("nombres", "nombres y apellidos son requeridos")
	}
	if previo, err := s.socios.FindByIdentificacion(ctx, in.Identificacion); err == nil {
		return nil, apperror.BusinessRule(apperror.RuleDuplicateIdentification, previo.Identificacion)
	} else if !apperror.IsKind(err, apperror.KindNotFound) {
		return nil, err
	}

	socio := &model.Socio{
		ID:                 uuid.New(),
		Identificacion:     in.Identificacion,
		TipoIdentificacion: model.IdentificacionCedula,
		Nombres:            strings.TrimSpace(in.Nombres),
		Apellidos:          strings.TrimSpace(in.Apellidos),
		Email:              in.Email,
		Telefono:           in.Telefono,
		Direccion:          in.Direccion,
		BarrioID:           in.BarrioID,
		Activo:             true,
	}
	if tipo == sri.IdentificacionRUC {
		socio.TipoIdentificacion = model.IdentificacionRUC
	}
	if in.BarrioID != nil {
		if _, err := s.socios.FindBarrio(ctx, *in.BarrioID); err != nil {
			return nil, err
		}
	}

	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		if in.Cuenta != nil {
			u, err := s.auth.CreateUser(ctx, tx, dto.CrearUsuarioRequest{
				Username: in.Cuenta.Username,
				Password: in.Cuenta.Password,
				Email:    in.Email,
				Rol:      model.RolSocio,
			})
			if err != nil {
				return err
			}
			socio.UsuarioID = &u.ID
		}
		if err := s.socios.Create(ctx, tx, socio); err != nil {
			if apperror.IsKind(err, apperror.KindIntegrityConflict) {
				return apperror.BusinessRule(apperror.RuleDuplicateIdentification, socio.Identificacion)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("socio_id", socio.ID.String()).Bool("cuenta", socio.UsuarioID != nil).Msg("padron: socio creado")
	return socio, nil
}

func (s *socioService) Actualizar(ctx context.Context, id uuid.UUID, in ActualizacionSocio) (*model.Socio, error) {
	var socio *model.Socio
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		socio, err = s.socios.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if in.Nombres != nil {
			socio.Nombres = strings.TrimSpace(*in.Nombres)
		}
		if in.Apellidos != nil {
			socio.Apellidos = strings.TrimSpace(*in.Apellidos)
		}
		if in.Email != nil {
			socio.Email = in.Email
		}
		if in.Telefono != nil {
			socio.Telefono = in.Telefono
		}
		if in.Direccion != nil {
			socio.Direccion = *in.Direccion
		}
		if in.BarrioID != nil {
			if _, err := s.socios.FindBarrio(ctx, *in.BarrioID); err != nil {
				return err
			}
			socio.BarrioID = in.BarrioID
		}
		return s.socios.Update(ctx, tx, socio)
	})
	if err != nil {
		return nil, err
	}
	return socio, nil
}

// Desactivar retires a socio and disables its login. Debt stays on the books.
func (s *socioService) Desactivar(ctx context.Context, id uuid.UUID, motivo string, usuarioID *uuid.UUID) error {
	return s.setActivo(ctx, id, false, motivo, usuarioID)
}

func (s *socioService) Reactivar(ctx context.Context, id uuid.UUID, usuarioID *uuid.UUID) error {
	return s.setActivo(ctx, id, true, "reactivación", usuarioID)
}

func (s *socioService) setActivo(ctx context.Context, id uuid.UUID, activo bool, motivo string, usuarioID *uuid.UUID) error {
	return s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		socio, err := s.socios.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if socio.Activo == activo {
			return nil
		}
		socio.Activo = activo
		if err := s.socios.Update(ctx, tx, socio); err != nil {
			return err
		}
		if socio.UsuarioID != nil {
			if activo {
				err = s.auth.Activate(ctx, tx, *socio.UsuarioID)
			} else {
				err = s.auth.Deactivate(ctx, tx, *socio.UsuarioID)
			}
			if err != nil {
				return err
			}
		}
		accion := "DESACTIVAR"
		if activo {
			accion = "REACTIVAR"
		}
		return registrarAuditoria(ctx, tx, s.auditoria, "socio", socio.ID, accion, usuarioID, motivo, nil)
	})
}

func (s *socioService) Obtener(ctx context.Context, id uuid.UUID) (*model.Socio, error) {
	return s.socios.FindByID(ctx, nil, id)
}

func (s *socioService) Listar(ctx context.Context, filter repository.SocioFilter) ([]model.Socio, int64, error) {
	return s.socios.List(ctx, filter)
}

// ── Terrenos ─────────────────────────────────────────────────────────────────

func (s *socioService) CrearTerreno(ctx context.Context, socioID, barrioID uuid.UUID, direccion string) (*model.Terreno, error) {
	if strings.TrimSpace(direccion) == "" {
		return nil, apperror.Validation("direccion", "requerida")
	}
	if _, err := s.socios.FindBarrio(ctx, barrioID); err != nil {
		return nil, err
	}
	t := &model.Terreno{
		ID:        uuid.New(),
		SocioID:   socioID,
		BarrioID:  barrioID,
		Direccion: strings.TrimSpace(direccion),
	}
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		socio, err := s.socios.FindByID(ctx, tx, socioID)
		if err != nil {
			return err
		}
		if !socio.Activo {
			return apperror.BusinessRule(apperror.RuleInactiveEntity, "socio "+socio.Identificacion)
		}
		return s.socios.CreateTerreno(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *socioService) ListarTerrenos(ctx context.Context, socioID uuid.UUID) ([]model.Terreno, error) {
	return s.socios.ListTerrenos(ctx, socioID)
}

// ── Servicios ────────────────────────────────────────────────────────────────

// ContratarServicio opens the water contract of a terreno. A MEDIDO contract
// picks up the terreno's active meter when one is installed.
func (s *socioService) ContratarServicio(ctx context.Context, in NuevoServicio) (*model.Servicio, error) {
	if in.Tipo != model.ServicioMedido && in.Tipo != model.ServicioFijo {
		return nil, apperror.Validation("tipo", "debe ser MEDIDO o FIJO")
	}
	for campo, v := range map[string]*decimal.Decimal{
		"tarifa_fija": in.TarifaFija, "base_m3": in.BaseM3,
		"precio_base": in.PrecioBase, "precio_exceso": in.PrecioExceso,
	} {
		if v != nil && v.IsNegative() {
			return nil, apperror.Validation(campo, "no puede ser negativo")
		}
	}

	var sv *model.Servicio
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		t, err := s.socios.FindTerreno(ctx, tx, in.TerrenoID)
		if err != nil {
			return err
		}
		socio, err := s.socios.LockByID(ctx, tx, t.SocioID)
		if err != nil {
			return err
		}
		if !socio.Activo {
			return apperror.BusinessRule(apperror.RuleInactiveEntity, "socio "+socio.Identificacion)
		}
		previo, err := s.servicios.FindActivoByTerreno(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if previo != nil {
			return apperror.BusinessRule(apperror.RuleTerrenoHasActiveService, t.Direccion)
		}

		sv = &model.Servicio{
			ID:           uuid.New(),
			SocioID:      t.SocioID,
			TerrenoID:    t.ID,
			Tipo:         in.Tipo,
			TarifaFija:   in.TarifaFija,
			BaseM3:       in.BaseM3,
			PrecioBase:   in.PrecioBase,
			PrecioExceso: in.PrecioExceso,
			Estado:       model.ServicioActivo,
			Activo:       true,
		}
		if in.Tipo == model.ServicioMedido {
			m, err := s.medidores.FindActivoByTerreno(ctx, tx, t.ID)
			if err != nil {
				return err
			}
			if m != nil {
				sv.MedidorID = &m.ID
			}
		}
		if err := s.servicios.Create(ctx, tx, sv); err != nil {
			if apperror.IsKind(err, apperror.KindIntegrityConflict) {
				return apperror.BusinessRule(apperror.RuleTerrenoHasActiveService, t.Direccion)
			}
			return err
		}
		t.EsCometidaActiva = true
		return s.socios.UpdateTerreno(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("servicio_id", sv.ID.String()).Str("tipo", sv.Tipo).Msg("padron: servicio contratado")
	return sv, nil
}

// DarDeBajaServicio ends the contract. Billed history and debt are kept.
func (s *socioService) DarDeBajaServicio(ctx context.Context, servicioID uuid.UUID, motivo string, usuarioID *uuid.UUID) error {
	if strings.TrimSpace(motivo) == "" {
		return apperror.Validation("motivo", "requerido")
	}
	return s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		sv, err := s.servicios.LockByID(ctx, tx, servicioID)
		if err != nil {
			return err
		}
		if !sv.Activo {
			return apperror.BusinessRule(apperror.RuleInactiveEntity, "servicio ya dado de baja")
		}
		sv.Activo = false
		if err := s.servicios.Update(ctx, tx, sv); err != nil {
			return err
		}
		t, err := s.socios.FindTerreno(ctx, tx, sv.TerrenoID)
		if err != nil {
			return err
		}
		t.EsCometidaActiva = false
		if err := s.socios.UpdateTerreno(ctx, tx, t); err != nil {
			return err
		}
		return registrarAuditoria(ctx, tx, s.auditoria, "servicio", sv.ID, "BAJA", usuarioID, motivo, nil)
	})
}

func (s *socioService) ListarServicios(ctx context.Context, socioID uuid.UUID) ([]model.Servicio, error) {
	return s.servicios.ListBySocio(ctx, nil, socioID)
}

// ── Estado de cuenta ─────────────────────────────────────────────────────────

func (s *socioService) EstadoCuenta(ctx context.Context, socioID uuid.UUID) (*EstadoCuenta, error) {
	socio, err := s.socios.FindByID(ctx, nil, socioID)
	if err != nil {
		return nil, err
	}
	resumen, err := s.ledger.DebtSummary(ctx, nil, socioID)
	if err != nil {
		return nil, err
	}
	pendientes, err := s.ledger.ListPendingBySocio(ctx, socioID)
	if err != nil {
		return nil, err
	}
	servicios, err := s.servicios.ListBySocio(ctx, nil, socioID)
	if err != nil {
		return nil, err
	}
	return &EstadoCuenta{Socio: socio, Resumen: resumen, Pendientes: pendientes, Servicios: servicios}, nil
}
