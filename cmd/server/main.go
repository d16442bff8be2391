package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/config"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/infra"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/router"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/sri"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in prod
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	var firmador *sri.Firmador
	if cfg.SRICertPath != "" {
		firmador, err = sri.CargarFirmadorPKCS12(cfg.SRICertPath, cfg.SRICertPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load signing certificate")
		}
		log.Info().Time("vence", firmador.Vencimiento()).Msg("signing certificate loaded")
	} else {
		log.Warn().Msg("SRI_CERT_PATH not set: invoices will stay pending until a certificate is configured")
	}
	sriClient := infra.NewSRIClient(cfg.SRIRecepcionURL, cfg.SRIAutorizacionURL)

	// Request path and reconciler each get their own adapter, hence their own breaker.
	apiFiscal := infra.NewSRIAdapter(cfg, sriClient, firmador, "sri-api")
	recFiscal := infra.NewSRIAdapter(cfg, sriClient, firmador, "sri-reconciler")

	dispatcher := worker.NewDispatcher(rdb)
	dlq := worker.NewDLQ(rdb)
	repos := router.NewRepos(db)

	svcs, err := router.NewServices(cfg, db, rdb, repos, router.Deps{Fiscal: apiFiscal, Cola: dispatcher})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build services")
	}
	recSvcs, err := router.NewServices(cfg, db, rdb, repos, router.Deps{Fiscal: recFiscal, Cola: dispatcher})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build reconciler services")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Async jobs: SRI submission and e-mail notices.
	mailer := infra.NewMailer(cfg)
	emails := worker.NewEmailWorker(mailer, svcs.Facturas, repos.Socios, repos.Cuentas, repos.Eventos)
	pool := worker.NewPool(rdb, dlq)
	pool.Handle(worker.JobEnvioSRI, worker.EnvioSRIHandler(svcs.Facturas))
	pool.Handle(worker.JobEmailFactura, emails.Factura)
	pool.Handle(worker.JobEmailMulta, emails.Multa)
	pool.Start(ctx, cfg.WorkerPoolSize)

	worker.NewReconciler(worker.ReconcilerConfig{
		Facturas:   repos.Facturas,
		Servicio:   recSvcs.Facturas,
		CB:         recFiscal.Breaker(),
		DLQ:        dlq,
		MaxRetries: cfg.SRIMaxReintentos,
	}).Start(ctx)

	scheduler, err := worker.StartScheduler(worker.SchedulerConfig{
		EmisionSpec: cfg.CronEmisionMensual,
		CortesSpec:  cfg.CronCortes,
		Facturas:    svcs.Facturas,
		Servicios:   svcs.Servicios,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid cron spec")
	}

	r := router.New(cfg, db, rdb, svcs, router.Health{
		Breaker: apiFiscal.Breaker(),
		DLQ:     dlq,
		Queues:  []string{worker.QueueSRI, worker.QueueEmail},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("junta de agua API listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	<-scheduler.Stop().Done()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
