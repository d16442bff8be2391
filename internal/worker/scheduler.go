package worker

import (
	"context"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const batchTimeout = 30 * time.Minute

// SchedulerConfig wires the periodic batches. An empty spec disables its job.
type SchedulerConfig struct {
	EmisionSpec string
	CortesSpec  string
	Facturas    service.FacturaService
	Servicios   service.ServicioService
	Now         func() time.Time
}

// StartScheduler registers the monthly emission and the cut evaluation on a
// cron that skips a run while the previous one is still going. The returned
// cron is stopped by the caller on shutdown.
func StartScheduler(cfg SchedulerConfig) (*cron.Cron, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	if cfg.EmisionSpec != "" {
		if _, err := c.AddFunc(cfg.EmisionSpec, func() { emisionMensual(cfg) }); err != nil {
			return nil, err
		}
	}
	if cfg.CortesSpec != "" {
		if _, err := c.AddFunc(cfg.CortesSpec, func() { evaluarCortes(cfg) }); err != nil {
			return nil, err
		}
	}
	c.Start()
	log.Info().Str("emision", cfg.EmisionSpec).Str("cortes", cfg.CortesSpec).Msg("scheduler: started")
	return c, nil
}

// emisionMensual bills the month that just closed.
func emisionMensual(cfg SchedulerConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	anio, mes := periodoAnterior(cfg.Now())
	res, err := cfg.Facturas.EmitBatch(ctx, anio, mes)
	if err != nil {
		log.Error().Err(err).Int("anio", anio).Int("mes", mes).Msg("scheduler: emisión mensual falló")
		return
	}
	log.Info().
		Int("anio", anio).Int("mes", mes).
		Int("creadas", res.Creadas).Int("omitidas", res.Omitidas).Int("errores", res.Errores).
		Msg("scheduler: emisión mensual")
}

func evaluarCortes(cfg SchedulerConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	res, err := cfg.Servicios.ProcessCutsBatch(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduler: evaluación de cortes falló")
		return
	}
	log.Info().
		Int("evaluados", res.Evaluados).
		Int("ordenes_corte", res.OrdenesCorte).
		Int("reconexiones", res.Reconexiones).
		Int("errores", res.Errores).
		Msg("scheduler: cortes evaluados")
}

func periodoAnterior(now time.Time) (int, int) {
	inicio := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	prev := inicio.AddDate(0, 0, -1)
	return prev.Year(), int(prev.Month())
}
