package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/config"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/sri"

	"github.com/shopspring/decimal"
)

// ErrSinCertificado is returned when no signing material was configured.
// It wraps ErrSRIUnavailable so the invoice stays in flight instead of
// being rejected.
var ErrSinCertificado = fmt.Errorf("%w: certificado de firma no configurado", ErrSRIUnavailable)

// SRIAdapter turns persisted invoices into signed documents and drives the
// two SRI web services through a circuit breaker. Each caller that needs
// isolation (request path, reconciler) builds its own adapter.
type SRIAdapter struct {
	client         *SRIClient
	firmador       *sri.Firmador
	cb             *CircuitBreaker
	emisor         sri.Emisor
	tarifaIVA      decimal.Decimal
	codigoNumerico string
}

// NewSRIAdapter builds an adapter with its own circuit breaker. firmador may
// be nil in development; submissions then fail as unavailable.
func NewSRIAdapter(cfg *config.Config, client *SRIClient, firmador *sri.Firmador, name string) *SRIAdapter {
	cbCfg := DefaultCBConfig(name)
	cbCfg.IsFailure = func(err error) bool { return errors.Is(err, ErrSRIUnavailable) }
	return &SRIAdapter{
		client:   client,
		firmador: firmador,
		cb:       NewCircuitBreaker(cbCfg),
		emisor: sri.Emisor{
			RUC:             cfg.SRIRUC,
			RazonSocial:     cfg.SRIRazonSocial,
			NombreComercial: cfg.SRIRazonSocial,
			DireccionMatriz: cfg.SRIDireccionMatriz,
		},
		tarifaIVA:      cfg.IVATarifa,
		codigoNumerico: cfg.SRICodigoNumerico,
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (a *SRIAdapter) Breaker() *CircuitBreaker { return a.cb }

// GenerateAccessKey is deterministic over its parameters.
func (a *SRIAdapter) GenerateAccessKey(p sri.ParametrosClave) (string, error) {
	if p.CodigoNumerico == "" {
		p.CodigoNumerico = a.codigoNumerico
	}
	return sri.GenerarClaveAcceso(p)
}

// SignAndSubmit renders, signs and sends f. A transport failure returns
// EnvioErrorRed together with an error wrapping ErrSRIUnavailable.
func (a *SRIAdapter) SignAndSubmit(ctx context.Context, f *model.Factura, socio *model.Socio) (sri.ResultadoEnvio, error) {
	if a.firmador == nil {
		return sri.ResultadoEnvio{Estado: sri.EnvioErrorRed}, ErrSinCertificado
	}
	doc, err := sri.ConstruirFacturaXML(a.datosFactura(f, socio))
	if err != nil {
		return sri.ResultadoEnvio{}, err
	}
	firmado, err := a.firmador.Firmar(doc)
	if err != nil {
		return sri.ResultadoEnvio{}, fmt.Errorf("sri: firmar %s: %w", f.ClaveAcceso, err)
	}

	var res sri.ResultadoEnvio
	err = a.cb.Execute(func() error {
		var callErr error
		res, callErr = a.client.Enviar(ctx, firmado)
		return callErr
	})
	if errors.Is(err, ErrCircuitOpen) {
		return sri.ResultadoEnvio{Estado: sri.EnvioErrorRed, XMLFirmado: string(firmado)},
			fmt.Errorf("%w: %v", ErrSRIUnavailable, err)
	}
	res.XMLFirmado = string(firmado)
	return res, err
}

// ConsultAuthorization polls the authorization service by access key.
func (a *SRIAdapter) ConsultAuthorization(ctx context.Context, claveAcceso string) (sri.ResultadoAutorizacion, error) {
	var res sri.ResultadoAutorizacion
	err := a.cb.Execute(func() error {
		var callErr error
		res, callErr = a.client.Consultar(ctx, claveAcceso)
		return callErr
	})
	if errors.Is(err, ErrCircuitOpen) {
		return res, fmt.Errorf("%w: %v", ErrSRIUnavailable, err)
	}
	return res, err
}

func (a *SRIAdapter) datosFactura(f *model.Factura, socio *model.Socio) sri.DatosFactura {
	comprador := sri.Comprador{
		Tipo:           sri.ConsumidorFinal,
		Identificacion: sri.ConsumidorFinalID,
		RazonSocial:    "CONSUMIDOR FINAL",
	}
	if socio != nil {
		if tipo, err := sri.ValidarIdentificacion(socio.Identificacion); err == nil {
			comprador = sri.Comprador{
				Tipo:           tipo,
				Identificacion: socio.Identificacion,
				RazonSocial:    strings.ToUpper(socio.NombreCompleto()),
				Direccion:      socio.Direccion,
			}
			if socio.Email != nil {
				comprador.Email = *socio.Email
			}
		}
	}

	lineas := make([]sri.LineaFactura, len(f.Detalles))
	for i, d := range f.Detalles {
		lineas[i] = sri.LineaFactura{
			Codigo:         d.Codigo,
			Descripcion:    d.Concepto,
			Cantidad:       d.Cantidad,
			PrecioUnitario: d.PrecioUnitario,
			Subtotal:       d.Subtotal,
			AplicaIVA:      d.AplicaIVA,
			ValorIVA:       d.ValorIVA,
		}
	}

	return sri.DatosFactura{
		Emisor:          a.emisor,
		Comprador:       comprador,
		Ambiente:        f.Ambiente,
		TipoEmision:     f.TipoEmision,
		ClaveAcceso:     f.ClaveAcceso,
		Establecimiento: f.Establecimiento,
		PuntoEmision:    f.PuntoEmision,
		Secuencial:      f.Secuencial,
		FechaEmision:    f.FechaEmision,
		Subtotal:        f.Subtotal,
		Impuestos:       f.Impuestos,
		Total:           f.Total,
		TarifaIVA:       a.tarifaIVA,
		FormaPago:       sri.FormaPagoSinSistemaFinanciero,
		Lineas:          lineas,
	}
}
