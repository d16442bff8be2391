package worker

// facturacion_worker.go
// Submits freshly emitted invoices to the SRI. Transport failures are not
// retried here: the service already scheduled next_retry_at and the
// reconciler owns the invoice from then on.

import (
	"context"
	"encoding/json"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/rs/zerolog/log"
)

// EnvioSRIHandler returns the handler for JobEnvioSRI.
func EnvioSRIHandler(facturas service.FacturaService) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		id, err := parseID(payload)
		if err != nil {
			log.Error().Err(err).Msg("facturacion_worker: invalid payload")
			return nil
		}
		f, err := facturas.SubmitToAuthority(ctx, id)
		switch apperror.KindOf(err) {
		case 0:
			if err != nil {
				return err
			}
			log.Info().Str("factura_id", id.String()).Str("estado_sri", f.EstadoSRIValor()).Msg("facturacion_worker: enviada")
			return nil
		case apperror.KindConcurrency:
			return err
		case apperror.KindFiscalUnavailable:
			log.Warn().Err(err).Str("factura_id", id.String()).Msg("facturacion_worker: SRI no disponible, queda para el reconciliador")
		case apperror.KindFiscalRejection:
			log.Warn().Err(err).Str("factura_id", id.String()).Msg("facturacion_worker: rechazada")
		default:
			log.Info().Err(err).Str("factura_id", id.String()).Msg("facturacion_worker: envío omitido")
		}
		return nil
	}
}
