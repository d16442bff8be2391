package worker

// email_worker.go
// Sends the authorized invoice and fine notices to socios via SMTP.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Notificador is the mail transport; infra.Mailer implements it.
type Notificador interface {
	Configured() bool
	SendInvoiceNotification(to, nombre, numeroFactura string, xmlAutorizado, ride []byte) error
	SendFineNotification(to, nombre, evento string, monto decimal.Decimal, vence time.Time) error
}

type EmailWorker struct {
	mailer   Notificador
	facturas service.FacturaService
	socios   repository.SocioRepository
	cuentas  repository.CuentaPorCobrarRepository
	eventos  repository.EventoRepository
}

func NewEmailWorker(
	mailer Notificador,
	facturas service.FacturaService,
	socios repository.SocioRepository,
	cuentas repository.CuentaPorCobrarRepository,
	eventos repository.EventoRepository,
) *EmailWorker {
	return &EmailWorker{mailer: mailer, facturas: facturas, socios: socios, cuentas: cuentas, eventos: eventos}
}

// Factura handles JobEmailFactura.
func (w *EmailWorker) Factura(ctx context.Context, payload json.RawMessage) error {
	id, err := parseID(payload)
	if err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return nil
	}
	if !w.mailer.Configured() {
		return nil
	}
	ride, f, err := w.facturas.RenderPDF(ctx, id)
	if err != nil {
		return err
	}
	socio, err := w.socios.FindByID(ctx, nil, f.SocioID)
	if err != nil {
		return err
	}
	if socio.Email == nil || *socio.Email == "" {
		log.Debug().Str("socio_id", socio.ID.String()).Msg("email_worker: socio sin email, se omite")
		return nil
	}
	var xml []byte
	if f.XMLAutorizado != nil {
		xml = []byte(*f.XMLAutorizado)
	}
	if err := w.mailer.SendInvoiceNotification(*socio.Email, socio.NombreCompleto(), f.NumeroFactura(), xml, ride); err != nil {
		return err
	}
	log.Info().Str("to", *socio.Email).Str("factura", f.NumeroFactura()).Msg("email_worker: factura enviada")
	return nil
}

// Multa handles JobEmailMulta.
func (w *EmailWorker) Multa(ctx context.Context, payload json.RawMessage) error {
	id, err := parseID(payload)
	if err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return nil
	}
	if !w.mailer.Configured() {
		return nil
	}
	c, err := w.cuentas.FindByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if c.Estado == model.CxCAnulada || c.Estado == model.CxCPagada {
		return nil
	}
	socio, err := w.socios.FindByID(ctx, nil, c.SocioID)
	if err != nil {
		return err
	}
	if socio.Email == nil || *socio.Email == "" {
		return nil
	}
	evento := "evento comunitario"
	if eventoID, ok := service.EventoDeMulta(c.OrigenReferencia); ok {
		if e, err := w.eventos.FindByID(ctx, nil, eventoID); err == nil {
			evento = e.Nombre
		}
	}
	if err := w.mailer.SendFineNotification(*socio.Email, socio.NombreCompleto(), evento, c.MontoInicial, c.FechaVencimiento); err != nil {
		return err
	}
	log.Info().Str("to", *socio.Email).Str("cuenta_id", c.ID.String()).Msg("email_worker: multa notificada")
	return nil
}
