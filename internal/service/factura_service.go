package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/sri"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EmisionLectura is the input of EmitFromReading. Zero dates fall back to
// today and today + the configured due days; a nil Tarifa uses the
// servicio contract over the configured defaults.
type EmisionLectura struct {
	LecturaID        uuid.UUID
	FechaEmision     time.Time
	FechaVencimiento time.Time
	Tarifa           *Tarifa
}

// Resultados of EmitBatch per servicio.
const (
	LoteCreada  = "created"
	LoteOmitida = "skipped"
	LoteError   = "error"
)

type ItemLote struct {
	ServicioID uuid.UUID  `json:"servicio_id"`
	Resultado  string     `json:"resultado"`
	FacturaID  *uuid.UUID `json:"factura_id,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type ResultadoLote struct {
	Anio     int        `json:"anio"`
	Mes      int        `json:"mes"`
	Creadas  int        `json:"creadas"`
	Omitidas int        `json:"omitidas"`
	Errores  int        `json:"errores"`
	Items    []ItemLote `json:"items"`
}

type FacturaService interface {
	EmitFromReading(ctx context.Context, in EmisionLectura) (*model.Factura, error)
	// EmitFlatRate returns the existing invoice with created=false when the
	// period was already billed. A nil monto uses the contract or default rate.
	EmitFlatRate(ctx context.Context, servicioID uuid.UUID, anio, mes int, monto *decimal.Decimal) (f *model.Factura, created bool, err error)
	EmitBatch(ctx context.Context, anio, mes int) (*ResultadoLote, error)
	EmitFromReceivables(ctx context.Context, socioID uuid.UUID, cuentaIDs []uuid.UUID) (*model.Factura, error)
	SubmitToAuthority(ctx context.Context, id uuid.UUID) (*model.Factura, error)
	ConsultAuthorization(ctx context.Context, claveAcceso string) (*model.Factura, error)
	// Reconcile drives one open invoice a step towards a terminal fiscal state.
	Reconcile(ctx context.Context, id uuid.UUID) (*model.Factura, error)
	Reissue(ctx context.Context, id uuid.UUID, usuarioID *uuid.UUID) (*model.Factura, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Void(ctx context.Context, id uuid.UUID, motivo string, usuarioID *uuid.UUID) (*model.Factura, error)
	RenderPDF(ctx context.Context, id uuid.UUID) ([]byte, *model.Factura, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Factura, error)
	List(ctx context.Context, filter repository.FacturaFilter) ([]model.Factura, int64, error)
}

type facturaService struct {
	tx           Transactor
	emisor       *EmisorFacturas
	facturas     repository.FacturaRepository
	cuentas      repository.CuentaPorCobrarRepository
	medidores    repository.MedidorRepository
	servicios    repository.ServicioRepository
	socios       repository.SocioRepository
	rubros       repository.RubroRepository
	auditoria    repository.AuditoriaRepository
	ledger       LedgerService
	fiscal       FiscalAdapter
	cola         Encolador
	renderer     InvoiceRenderer
	clasificador *sri.Clasificador
	clock        Clock
}

func NewFacturaService(
	tx Transactor,
	emisor *EmisorFacturas,
	facturas repository.FacturaRepository,
	cuentas repository.CuentaPorCobrarRepository,
	medidores repository.MedidorRepository,
	servicios repository.ServicioRepository,
	socios repository.SocioRepository,
	rubros repository.RubroRepository,
	auditoria repository.AuditoriaRepository,
	ledger LedgerService,
	fiscal FiscalAdapter,
	cola Encolador,
	renderer InvoiceRenderer,
	clasificador *sri.Clasificador,
	clock Clock,
) FacturaService {
	if cola == nil {
		cola = noopEncolador{}
	}
	if clasificador == nil {
		clasificador = sri.NewClasificador(sri.DefaultCodigosRecuperables)
	}
	return &facturaService{
		tx: tx, emisor: emisor, facturas: facturas, cuentas: cuentas,
		medidores: medidores, servicios: servicios, socios: socios, rubros: rubros,
		auditoria: auditoria, ledger: ledger, fiscal: fiscal, cola: cola,
		renderer: renderer, clasificador: clasificador, clock: clock,
	}
}

// ── Emission ─────────────────────────────────────────────────────────────────

func (s *facturaService) EmitFromReading(ctx context.Context, in EmisionLectura) (*model.Factura, error) {
	var f *model.Factura
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		lectura, err := s.medidores.LockLectura(ctx, tx, in.LecturaID)
		if err != nil {
			return err
		}
		if lectura.Facturada {
			return apperror.BusinessRule(apperror.RuleReadingAlreadyBilled, "lectura "+lectura.ID.String())
		}
		medidor, err := s.medidores.FindByID(ctx, tx, lectura.MedidorID)
		if err != nil {
			return err
		}
		if medidor.TerrenoID == nil {
			return apperror.Validation("medidor", "el medidor no está instalado en un terreno")
		}
		servicio, err := s.servicios.FindActivoByTerreno(ctx, tx, *medidor.TerrenoID)
		if err != nil {
			return err
		}
		if servicio == nil {
			return apperror.NotFound("servicio", "terreno "+medidor.TerrenoID.String())
		}
		if servicio.Tipo != model.ServicioMedido {
			return apperror.BusinessRule(apperror.RuleServiceTypeMismatch, "el servicio no es medido")
		}
		rubro, err := s.rubroRequerido(ctx, tx, model.RubroAgua)
		if err != nil {
			return err
		}

		tarifa := TarifaDe(s.emisor.params.Tarifa, servicio)
		if in.Tarifa != nil {
			tarifa = *in.Tarifa
		}
		emision := in.FechaEmision
		if emision.IsZero() {
			emision = s.clock.now()
		}
		f, err = s.emisor.emitir(ctx, tx, borradorFactura{
			SocioID:          servicio.SocioID,
			ServicioID:       &servicio.ID,
			MedidorID:        &medidor.ID,
			LecturaID:        &lectura.ID,
			Origen:           model.OrigenLectura,
			Anio:             lectura.Fecha.Year(),
			Mes:              int(lectura.Fecha.Month()),
			FechaEmision:     emision,
			FechaVencimiento: in.FechaVencimiento,
			Lineas:           LineasConsumo(lectura.ConsumoDelMes, tarifa, rubro.AplicaIVA),
			RubroID:          rubro.ID,
			OrigenCuenta:     "FACTURA_LECTURA_" + lectura.ID.String(),
		})
		if err != nil {
			return err
		}
		return s.medidores.MarcarFacturada(ctx, tx, lectura.ID)
	})
	if err != nil {
		return nil, err
	}
	s.encolarEnvio(ctx, f.ID)
	log.Info().
		Str("factura_id", f.ID.String()).
		Int64("secuencial", f.Secuencial).
		Str("total", f.Total.StringFixed(2)).
		Msg("factura: emitida desde lectura")
	return f, nil
}

func (s *facturaService) EmitFlatRate(ctx context.Context, servicioID uuid.UUID, anio, mes int, monto *decimal.Decimal) (*model.Factura, bool, error) {
	if mes < 1 || mes > 12 || anio < 2000 {
		return nil, false, apperror.Validation("periodo", fmt.Sprintf("%04d-%02d", anio, mes))
	}
	if existente, err := s.facturas.FindByServicioPeriodo(ctx, nil, servicioID, anio, mes); err != nil || existente != nil {
		return existente, false, err
	}

	var f *model.Factura
	creada := false
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		servicio, err := s.servicios.LockByID(ctx, tx, servicioID)
		if err != nil {
			return err
		}
		if servicio.Tipo != model.ServicioFijo {
			return apperror.BusinessRule(apperror.RuleServiceTypeMismatch, "el servicio no es de tarifa fija")
		}
		if !servicio.Activo {
			return apperror.BusinessRule(apperror.RuleInactiveEntity, "servicio "+servicioID.String())
		}
		// Re-check under the servicio lock: a concurrent batch may have won.
		existente, err := s.facturas.FindByServicioPeriodo(ctx, tx, servicioID, anio, mes)
		if err != nil {
			return err
		}
		if existente != nil {
			f = existente
			return nil
		}
		rubro, err := s.rubroRequerido(ctx, tx, model.RubroAgua)
		if err != nil {
			return err
		}
		valor := s.emisor.params.TarifaFija
		if servicio.TarifaFija != nil {
			valor = *servicio.TarifaFija
		}
		if monto != nil {
			valor = *monto
		}
		periodo := fmt.Sprintf("%04d-%02d", anio, mes)
		f, err = s.emisor.emitir(ctx, tx, borradorFactura{
			SocioID:      servicio.SocioID,
			ServicioID:   &servicio.ID,
			MedidorID:    servicio.MedidorID,
			Origen:       model.OrigenTarifaFija,
			Anio:         anio,
			Mes:          mes,
			Lineas:       []model.DetalleFactura{nuevaLinea(CodigoAguaFija, "Tarifa fija "+periodo, decimal.NewFromInt(1), valor, rubro.AplicaIVA)},
			RubroID:      rubro.ID,
			OrigenCuenta: fmt.Sprintf("FACTURA_FIJA_%s_%04d_%02d", servicio.ID, anio, mes),
		})
		creada = err == nil
		return err
	})
	if apperror.IsKind(err, apperror.KindIntegrityConflict) || apperror.IsRule(err, apperror.RuleDuplicateObligation) {
		existente, findErr := s.facturas.FindByServicioPeriodo(ctx, nil, servicioID, anio, mes)
		if findErr == nil && existente != nil {
			return existente, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}
	return f, creada, nil
}

// EmitBatch bills every active flat-rate service. Each service is its own
// transaction; one failure never rolls back the others.
func (s *facturaService) EmitBatch(ctx context.Context, anio, mes int) (*ResultadoLote, error) {
	servicios, err := s.servicios.ListActivosPorTipo(ctx, nil, model.ServicioFijo)
	if err != nil {
		return nil, err
	}
	items := make([]ItemLote, len(servicios))
	paralelo := s.emisor.params.LoteParalelismo
	if paralelo < 1 {
		paralelo = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(paralelo)
	for i := range servicios {
		i := i
		g.Go(func() error {
			item := ItemLote{ServicioID: servicios[i].ID}
			f, creada, err := s.EmitFlatRate(gctx, servicios[i].ID, anio, mes, nil)
			switch {
			case err != nil:
				item.Resultado = LoteError
				item.Error = err.Error()
			case creada:
				item.Resultado = LoteCreada
				item.FacturaID = &f.ID
			default:
				item.Resultado = LoteOmitida
				item.FacturaID = &f.ID
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	res := &ResultadoLote{Anio: anio, Mes: mes, Items: items}
	for _, it := range items {
		switch it.Resultado {
		case LoteCreada:
			res.Creadas++
			s.encolarEnvio(ctx, *it.FacturaID)
		case LoteOmitida:
			res.Omitidas++
		default:
			res.Errores++
		}
	}
	log.Info().
		Int("anio", anio).Int("mes", mes).
		Int("creadas", res.Creadas).Int("omitidas", res.Omitidas).Int("errores", res.Errores).
		Msg("factura: lote de tarifa fija procesado")
	return res, nil
}

// EmitFromReceivables materializes pending receivables of one socio into a
// single invoice. VAT on taxable rubros becomes an extra receivable so the
// ledger always adds up to the invoice total.
func (s *facturaService) EmitFromReceivables(ctx context.Context, socioID uuid.UUID, cuentaIDs []uuid.UUID) (*model.Factura, error) {
	if len(cuentaIDs) == 0 {
		return nil, apperror.Validation("cuentas", "seleccione al menos una cuenta")
	}
	var f *model.Factura
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.socios.LockByID(ctx, tx, socioID); err != nil {
			return err
		}
		cuentas := make([]*model.CuentaPorCobrar, 0, len(cuentaIDs))
		lineas := make([]model.DetalleFactura, 0, len(cuentaIDs))
		var rubroIVA *model.CatalogoRubro
		vistos := map[uuid.UUID]bool{}
		for _, id := range cuentaIDs {
			if vistos[id] {
				continue
			}
			vistos[id] = true
			c, err := s.cuentas.LockByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if c.SocioID != socioID {
				return apperror.Validation("cuentas", "la cuenta "+id.String()+" pertenece a otro socio")
			}
			if c.Estado != model.CxCPendiente || c.FacturaID != nil {
				return apperror.BusinessRule(apperror.RuleInvoiceNotPayable, "la cuenta "+id.String()+" no está pendiente")
			}
			rubro, err := s.rubros.FindByID(ctx, tx, c.RubroID)
			if err != nil {
				return err
			}
			linea := nuevaLinea(rubro.Codigo, rubro.Nombre, decimal.NewFromInt(1), c.SaldoPendiente, rubro.AplicaIVA)
			linea.RubroID = &rubro.ID
			lineas = append(lineas, linea)
			cuentas = append(cuentas, c)
			if rubro.AplicaIVA && rubroIVA == nil {
				rubroIVA = rubro
			}
		}

		var err error
		f, err = s.emisor.emitir(ctx, tx, borradorFactura{
			SocioID: socioID,
			Origen:  model.OrigenCuentas,
			Anio:    s.clock.now().Year(),
			Mes:     int(s.clock.now().Month()),
			Lineas:  lineas,
		})
		if err != nil {
			return err
		}
		for _, c := range cuentas {
			c.FacturaID = &f.ID
			c.Estado = model.CxCFacturada
			if err := s.cuentas.Update(ctx, tx, c); err != nil {
				return err
			}
		}
		if f.Impuestos.IsPositive() {
			_, err = s.ledger.CreateObligation(ctx, tx, NuevaObligacion{
				SocioID:          socioID,
				RubroID:          rubroIVA.ID,
				Monto:            f.Impuestos,
				FechaEmision:     f.FechaEmision,
				FechaVencimiento: f.FechaVencimiento,
				Origen:           "IVA_FACTURA_" + f.ID.String(),
				FacturaID:        &f.ID,
				Estado:           model.CxCFacturada,
			})
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.encolarEnvio(ctx, f.ID)
	return f, nil
}

// ── SRI protocol ─────────────────────────────────────────────────────────────

func (s *facturaService) SubmitToAuthority(ctx context.Context, id uuid.UUID) (*model.Factura, error) {
	var f *model.Factura
	consultar := false
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		f, err = s.facturas.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.enviable(f); err != nil {
			return err
		}
		// Once the SRI acknowledged the document it can only be consulted.
		if f.EstadoSRI != nil && (*f.EstadoSRI == model.SRIRecibida || *f.EstadoSRI == model.SRIEnProceso) {
			consultar = true
			return nil
		}
		return s.marcarEnvioEnCurso(ctx, tx, f)
	})
	if err != nil {
		return nil, err
	}
	if consultar {
		return s.consultar(ctx, f)
	}
	return s.enviar(ctx, f)
}

func (s *facturaService) enviable(f *model.Factura) error {
	switch {
	case f.Autorizada():
		return apperror.BusinessRule(apperror.RuleInvoiceAlreadyAuthorized, f.NumeroFactura())
	case f.ClaveQuemada:
		return apperror.BusinessRule(apperror.RuleInvoiceKeyBurned, "reemita la factura "+f.NumeroFactura())
	case f.Estado == model.FacturaAnulada:
		return apperror.BusinessRule(apperror.RuleInvoiceVoided, f.NumeroFactura())
	}
	return nil
}

// marcarEnvioEnCurso commits SUBMISSION_IN_FLIGHT before the network call so
// a crash leaves a row the reconciler can consult by access key.
func (s *facturaService) marcarEnvioEnCurso(ctx context.Context, tx *gorm.DB, f *model.Factura) error {
	f.SetEstadoSRI(model.SRIEnvioEnCurso)
	next := s.clock.now().Add(backoffSRI(f.RetryCount))
	f.NextRetryAt = &next
	return s.facturas.UpdateFiscal(ctx, tx, f)
}

func (s *facturaService) enviar(ctx context.Context, f *model.Factura) (*model.Factura, error) {
	socio, err := s.socios.FindByID(ctx, nil, f.SocioID)
	if err != nil {
		return nil, err
	}
	res, envErr := s.fiscal.SignAndSubmit(ctx, f, socio)
	if res.XMLFirmado != "" {
		xml := res.XMLFirmado
		f.XMLFirmado = &xml
	}
	if envErr != nil || res.Estado == sri.EnvioErrorRed {
		if envErr == nil {
			envErr = errors.New("sri: error de red")
		}
		return f, s.reprogramar(ctx, f, envErr)
	}
	f.MensajesSRI = mensajesJSON(res.Mensajes)

	if res.Estado == sri.EnvioRecibida || sri.YaRecibida(res.Mensajes) {
		f.SetEstadoSRI(model.SRIRecibida)
		f.LastError = nil
		next := s.clock.now().Add(backoffSRI(0))
		f.NextRetryAt = &next
		if err := s.facturas.UpdateFiscal(ctx, nil, f); err != nil {
			return nil, err
		}
		log.Info().Str("clave", f.ClaveAcceso).Msg("sri: comprobante recibido")
		// Authorization usually follows within seconds; the reconciler
		// covers the case where it does not.
		out, err := s.consultar(ctx, f)
		if apperror.IsKind(err, apperror.KindFiscalUnavailable) {
			return out, nil
		}
		return out, err
	}
	return f, s.rechazar(ctx, f, res.Mensajes)
}

func (s *facturaService) ConsultAuthorization(ctx context.Context, claveAcceso string) (*model.Factura, error) {
	f, err := s.facturas.FindByClave(ctx, nil, claveAcceso)
	if err != nil {
		return nil, err
	}
	if f.Autorizada() {
		return f, nil
	}
	return s.consultar(ctx, f)
}

func (s *facturaService) consultar(ctx context.Context, f *model.Factura) (*model.Factura, error) {
	res, err := s.fiscal.ConsultAuthorization(ctx, f.ClaveAcceso)
	if err != nil {
		return f, s.reprogramar(ctx, f, err)
	}

	switch res.Estado {
	case sri.AutorizacionAutorizado:
		return s.autorizar(ctx, f, res)

	case sri.AutorizacionRechazada:
		return f, s.rechazar(ctx, f, res.Mensajes)

	case sri.AutorizacionNoEncontrado:
		previo := ""
		if f.EstadoSRI != nil {
			previo = *f.EstadoSRI
		}
		// In flight: the document never reached the SRI, submit it.
		if previo == model.SRIEnvioEnCurso || previo == "" {
			return s.reenviar(ctx, f)
		}
		// Acknowledged but unknown to the authorization service: one resubmission.
		if !f.ReenvioRealizado {
			f.ReenvioRealizado = true
			return s.reenviar(ctx, f)
		}
		f.SetEstadoSRI(model.SRINoEncontrado)
		f.MensajesSRI = mensajesJSON(res.Mensajes)
		f.RetryCount++
		next := s.clock.now().Add(backoffSRI(f.RetryCount))
		f.NextRetryAt = &next
		return f, s.facturas.UpdateFiscal(ctx, nil, f)

	default:
		f.SetEstadoSRI(model.SRIEnProceso)
		f.MensajesSRI = mensajesJSON(res.Mensajes)
		f.RetryCount++
		next := s.clock.now().Add(backoffSRI(f.RetryCount))
		f.NextRetryAt = &next
		return f, s.facturas.UpdateFiscal(ctx, nil, f)
	}
}

func (s *facturaService) reenviar(ctx context.Context, f *model.Factura) (*model.Factura, error) {
	if err := s.marcarEnvioEnCurso(ctx, nil, f); err != nil {
		return nil, err
	}
	return s.enviar(ctx, f)
}

func (s *facturaService) autorizar(ctx context.Context, f *model.Factura, res sri.ResultadoAutorizacion) (*model.Factura, error) {
	f.SetEstadoSRI(model.SRIAutorizado)
	f.MensajesSRI = mensajesJSON(res.Mensajes)
	if res.XMLAutorizado != "" {
		xml := res.XMLAutorizado
		f.XMLAutorizado = &xml
	}
	if res.NumeroAutorizacion != "" {
		num := res.NumeroAutorizacion
		f.NumeroAutorizacion = &num
	} else {
		num := f.ClaveAcceso
		f.NumeroAutorizacion = &num
	}
	fecha := s.clock.now()
	if res.FechaAutorizacion != nil {
		fecha = *res.FechaAutorizacion
	}
	f.FechaAutorizacion = &fecha
	f.NextRetryAt = nil
	f.LastError = nil

	if err := s.facturas.UpdateFiscal(ctx, nil, f); err != nil {
		// Another worker stored the authorization first.
		if apperror.IsRule(err, apperror.RuleInvoiceAlreadyAuthorized) {
			return s.facturas.FindByID(ctx, nil, f.ID)
		}
		return nil, err
	}
	log.Info().Str("clave", f.ClaveAcceso).Str("factura_id", f.ID.String()).Msg("sri: comprobante autorizado")
	if err := s.cola.EnqueueInvoiceEmail(ctx, f.ID); err != nil {
		log.Warn().Err(err).Str("factura_id", f.ID.String()).Msg("factura: no se pudo encolar el correo")
	}
	return f, nil
}

// rechazar classifies the SRI messages. A recoverable rejection keeps the
// access key and is retried later; any other burns it.
func (s *facturaService) rechazar(ctx context.Context, f *model.Factura, mensajes []sri.Mensaje) error {
	f.SetEstadoSRI(model.SRIRechazado)
	f.MensajesSRI = mensajesJSON(mensajes)
	textos := sri.Textos(mensajes)
	if len(textos) > 0 {
		ultimo := textos[len(textos)-1]
		f.LastError = &ultimo
	}
	if s.clasificador.EsRecuperable(mensajes) {
		f.RetryCount++
		next := s.clock.now().Add(backoffSRI(f.RetryCount))
		f.NextRetryAt = &next
	} else {
		f.ClaveQuemada = true
		f.NextRetryAt = nil
	}
	if err := s.facturas.UpdateFiscal(ctx, nil, f); err != nil {
		return err
	}
	log.Warn().
		Str("clave", f.ClaveAcceso).
		Bool("clave_quemada", f.ClaveQuemada).
		Strs("mensajes", textos).
		Msg("sri: comprobante rechazado")
	return apperror.FiscalRejection(textos)
}

// reprogramar records a transport failure and leaves the invoice in its
// current state for the reconciler.
func (s *facturaService) reprogramar(ctx context.Context, f *model.Factura, cause error) error {
	f.RetryCount++
	msg := cause.Error()
	f.LastError = &msg
	next := s.clock.now().Add(backoffSRI(f.RetryCount))
	f.NextRetryAt = &next
	if err := s.facturas.UpdateFiscal(ctx, nil, f); err != nil {
		log.Error().Err(err).Str("factura_id", f.ID.String()).Msg("factura: no se pudo reprogramar")
	}
	return apperror.FiscalUnavailable(cause)
}

func (s *facturaService) Reconcile(ctx context.Context, id uuid.UUID) (*model.Factura, error) {
	f, err := s.facturas.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := s.enviable(f); err != nil {
		return f, err
	}
	if f.EstadoSRI == nil || *f.EstadoSRI == model.SRIRechazado {
		return s.SubmitToAuthority(ctx, id)
	}
	return s.consultar(ctx, f)
}

// Reissue gives a burned invoice a new sequential and access key dated
// today. The burned number stays as a gap in the sequence.
func (s *facturaService) Reissue(ctx context.Context, id uuid.UUID, usuarioID *uuid.UUID) (*model.Factura, error) {
	var f *model.Factura
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		f, err = s.facturas.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if f.Estado == model.FacturaAnulada {
			return apperror.BusinessRule(apperror.RuleInvoiceVoided, f.NumeroFactura())
		}
		if !f.ClaveQuemada {
			return apperror.BusinessRule(apperror.RuleInvoiceKeyNotBurned, f.NumeroFactura())
		}
		anterior := f.ClaveAcceso
		f.FechaEmision = s.clock.now()
		if err := s.emisor.numerar(ctx, tx, f); err != nil {
			return err
		}
		f.ClaveQuemada = false
		f.EstadoSRI = nil
		f.MensajesSRI = nil
		f.XMLFirmado = nil
		f.ReenvioRealizado = false
		f.RetryCount = 0
		f.LastError = nil
		next := s.clock.now().Add(reconciliacionInicial)
		f.NextRetryAt = &next
		if err := s.facturas.UpdateFiscal(ctx, tx, f); err != nil {
			return err
		}
		return registrarAuditoria(ctx, tx, s.auditoria, "factura", f.ID, "REEMITIR", usuarioID, "clave quemada",
			map[string]any{"clave_anterior": anterior, "clave_nueva": f.ClaveAcceso})
	})
	if err != nil {
		return nil, err
	}
	s.encolarEnvio(ctx, f.ID)
	return f, nil
}

// ── Commercial state ─────────────────────────────────────────────────────────

func (s *facturaService) MarkPaid(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return withinTx(ctx, s.tx, tx, func(tx *gorm.DB) error {
		f, err := s.facturas.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		switch f.Estado {
		case model.FacturaPagada:
			return nil
		case model.FacturaAnulada:
			return apperror.BusinessRule(apperror.RuleInvoiceVoided, f.NumeroFactura())
		}
		cuentas, err := s.cuentas.ListByFactura(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, c := range cuentas {
			if c.Abierta() && c.SaldoPendiente.IsPositive() {
				return apperror.BusinessRule(apperror.RuleInvoiceNotPayable, "la factura tiene saldo pendiente")
			}
		}
		return s.facturas.UpdateEstado(ctx, tx, id, model.FacturaPagada)
	})
}

// Void cancels an invoice the SRI never acknowledged and voids its open
// receivables. Authorized documents need a credit note instead.
func (s *facturaService) Void(ctx context.Context, id uuid.UUID, motivo string, usuarioID *uuid.UUID) (*model.Factura, error) {
	if motivo == "" {
		return nil, apperror.Validation("motivo", "requerido")
	}
	var f *model.Factura
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		f, err = s.facturas.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := s.socios.LockByID(ctx, tx, f.SocioID); err != nil {
			return err
		}
		if f, err = s.facturas.LockByID(ctx, tx, id); err != nil {
			return err
		}
		switch {
		case f.Estado == model.FacturaAnulada:
			return apperror.BusinessRule(apperror.RuleInvoiceVoided, f.NumeroFactura())
		case f.Estado == model.FacturaPagada:
			return apperror.BusinessRule(apperror.RuleInvoiceAlreadyPaid, f.NumeroFactura())
		case f.Estado == model.FacturaPorValidar:
			return apperror.BusinessRule(apperror.RuleTransferPending, f.NumeroFactura())
		case f.EnviadaAlSRI():
			return apperror.BusinessRule(apperror.RuleInvoiceAlreadyAuthorized, "el SRI ya recibió "+f.NumeroFactura())
		}
		cuentas, err := s.cuentas.ListByFactura(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, c := range cuentas {
			if c.Estado == model.CxCPagoParcial {
				return apperror.BusinessRule(apperror.RuleInvoiceAlreadyPaid, "la factura tiene abonos registrados")
			}
		}
		for _, c := range cuentas {
			if !c.Abierta() {
				continue
			}
			if _, err := s.ledger.VoidObligation(ctx, tx, c.ID, "Anulación factura "+f.NumeroFactura()+": "+motivo, usuarioID); err != nil {
				return err
			}
		}
		if err := s.facturas.UpdateEstado(ctx, tx, id, model.FacturaAnulada); err != nil {
			return err
		}
		f.Estado = model.FacturaAnulada
		return registrarAuditoria(ctx, tx, s.auditoria, "factura", f.ID, "ANULAR", usuarioID, motivo,
			map[string]any{"numero": f.NumeroFactura(), "total": f.Total.StringFixed(2)})
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *facturaService) RenderPDF(ctx context.Context, id uuid.UUID) ([]byte, *model.Factura, error) {
	f, err := s.facturas.FindByID(ctx, nil, id)
	if err != nil {
		return nil, nil, err
	}
	socio, err := s.socios.FindByID(ctx, nil, f.SocioID)
	if err != nil {
		return nil, nil, err
	}
	pdf, err := s.renderer.RenderInvoice(f, socio)
	if err != nil {
		return nil, nil, fmt.Errorf("ride %s: %w", f.NumeroFactura(), err)
	}
	return pdf, f, nil
}

func (s *facturaService) Get(ctx context.Context, id uuid.UUID) (*model.Factura, error) {
	return s.facturas.FindByID(ctx, nil, id)
}

func (s *facturaService) List(ctx context.Context, filter repository.FacturaFilter) ([]model.Factura, int64, error) {
	return s.facturas.List(ctx, filter)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *facturaService) rubroRequerido(ctx context.Context, tx *gorm.DB, tipo string) (*model.CatalogoRubro, error) {
	r, err := s.rubros.FindPorTipo(ctx, tx, tipo)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperror.BusinessRule(apperror.RuleMissingCatalogItem, "no hay rubro activo de tipo "+tipo)
	}
	return r, nil
}

func (s *facturaService) encolarEnvio(ctx context.Context, id uuid.UUID) {
	if err := s.cola.EnqueueSubmission(ctx, id); err != nil {
		log.Warn().Err(err).Str("factura_id", id.String()).Msg("factura: no se pudo encolar el envío al SRI")
	}
}

func mensajesJSON(ms []sri.Mensaje) datatypes.JSON {
	if len(ms) == 0 {
		return nil
	}
	b, err := json.Marshal(ms)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// backoffSRI doubles from one minute and caps at six hours.
func backoffSRI(intento int) time.Duration {
	if intento > 9 {
		intento = 9
	}
	d := time.Minute << uint(intento)
	if d > 6*time.Hour {
		d = 6 * time.Hour
	}
	return d
}
