package worker

// reconciler.go
// Background goroutine that drives invoices with an unknown or open SRI
// outcome (ENVIO_EN_CURSO, RECIBIDA, EN_PROCESO, NO_ENCONTRADO or never
// sent) to a terminal state. It owns its own adapter and circuit breaker so
// an SRI outage seen here never trips the request path, and vice versa.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/infra"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/rs/zerolog/log"
)

const (
	reconcileTickInterval = 30 * time.Second
	reconcileBatchSize    = 20
)

// ReconcilerConfig holds all dependencies for the reconciler goroutine.
type ReconcilerConfig struct {
	Facturas   repository.FacturaRepository
	Servicio   service.FacturaService
	CB         *infra.CircuitBreaker
	DLQ        *DLQ
	MaxRetries int
	Now        func() time.Time
}

type Reconciler struct {
	cfg ReconcilerConfig
}

func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}
	return &Reconciler{cfg: cfg}
}

// Start ticks every 30s until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reconcileTickInterval)
		defer ticker.Stop()

		log.Info().Msg("reconciler: started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reconciler: shutting down")
				return
			case <-ticker.C:
				r.Tick(ctx)
			}
		}
	}()
}

// Tick runs one reconciliation pass and returns how many invoices it touched.
func (r *Reconciler) Tick(ctx context.Context) int {
	// If CB is open, skip entirely: don't hammer a downed SRI
	if r.cfg.CB != nil && r.cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("reconciler: circuit breaker is open, skipping tick")
		return 0
	}

	pendientes, err := r.cfg.Facturas.ListPendientesSRI(ctx, r.cfg.Now(), reconcileBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("reconciler: failed to query pending invoices")
		return 0
	}
	if len(pendientes) == 0 {
		return 0
	}
	log.Info().Int("count", len(pendientes)).Msg("reconciler: processing pending invoices")

	procesadas := 0
	for i := range pendientes {
		f := &pendientes[i]
		// Check CB state before each call, it may have tripped mid-batch
		if r.cfg.CB != nil && r.cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("reconciler: circuit breaker opened mid-batch, stopping")
			break
		}
		if f.RetryCount >= r.cfg.MaxRetries {
			r.abandonar(ctx, f)
			procesadas++
			continue
		}

		res, err := r.cfg.Servicio.Reconcile(ctx, f.ID)
		procesadas++
		switch {
		case err == nil:
			log.Info().
				Str("factura_id", f.ID.String()).
				Str("estado_sri", res.EstadoSRIValor()).
				Msg("reconciler: invoice advanced")
		case apperror.IsKind(err, apperror.KindFiscalUnavailable):
			log.Warn().Err(err).Str("factura_id", f.ID.String()).Int("retry_count", f.RetryCount+1).
				Msg("reconciler: SRI unavailable, rescheduled")
		case apperror.IsKind(err, apperror.KindFiscalRejection):
			log.Warn().Err(err).Str("factura_id", f.ID.String()).Msg("reconciler: rejected")
		default:
			log.Error().Err(err).Str("factura_id", f.ID.String()).Msg("reconciler: reconcile failed")
		}
	}
	return procesadas
}

// abandonar stops automatic retries and leaves the invoice for an operator.
func (r *Reconciler) abandonar(ctx context.Context, f *model.Factura) {
	log.Error().
		Str("factura_id", f.ID.String()).
		Str("clave_acceso", f.ClaveAcceso).
		Int("retries", f.RetryCount).
		Msg("reconciler: max retries exceeded, moving to DLQ")

	payload, _ := json.Marshal(IDPayload{ID: f.ID.String()})
	motivo := fmt.Sprintf("max retries (%d) exceeded", r.cfg.MaxRetries)
	if f.LastError != nil {
		motivo += ": " + *f.LastError
	}
	if r.cfg.DLQ != nil {
		r.cfg.DLQ.Push(ctx, QueueSRI, JobEnvioSRI, payload, motivo, f.RetryCount)
	}
	f.NextRetryAt = nil
	if err := r.cfg.Facturas.UpdateFiscal(ctx, nil, f); err != nil {
		log.Error().Err(err).Str("factura_id", f.ID.String()).Msg("reconciler: could not park invoice")
	}
}
