package infra

import (
	"fmt"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the pgx-backed GORM pool, migrates every model and
// applies the idempotent patches AutoMigrate cannot express.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Models lists every persisted entity in dependency order.
func Models() []any {
	return []any{
		&model.Usuario{},
		&model.Barrio{},
		&model.Socio{},
		&model.Terreno{},
		&model.Medidor{},
		&model.Lectura{},
		&model.Servicio{},
		&model.OrdenTrabajo{},
		&model.CatalogoRubro{},
		&model.SRISecuencial{},
		&model.Factura{},
		&model.DetalleFactura{},
		&model.CuentaPorCobrar{},
		&model.Pago{},
		&model.DetallePago{},
		&model.PagoAplicacion{},
		&model.Evento{},
		&model.Asistencia{},
		&model.SolicitudJustificacion{},
		&model.ProductoMaterial{},
		&model.MovimientoStock{},
		&model.Auditoria{},
	}
}

// RunMigrations is shared by the server boot and the integration tests.
func RunMigrations(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return fmt.Errorf("pgcrypto: %w", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches creates the partial indexes and CHECK constraints the
// ledger relies on. Every statement is idempotent.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"one active meter per terreno", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_medidores_terreno_activo
    ON medidores (terreno_id) WHERE estado = 'ACTIVO' AND terreno_id IS NOT NULL`},
		{"one active service per terreno", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_servicios_terreno_activo
    ON servicios (terreno_id) WHERE activo`},
		{"FIFO partial index", `
CREATE INDEX IF NOT EXISTS idx_cxc_fifo
    ON cuentas_por_cobrar (socio_id, fecha_emision, created_at, id) WHERE saldo_pendiente > 0`},
		{"reconciler partial index", `
CREATE INDEX IF NOT EXISTS idx_facturas_pending_sri
    ON facturas (next_retry_at) WHERE next_retry_at IS NOT NULL AND clave_quemada = false`},
		{"one open flat-rate invoice per service and period", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_facturas_servicio_periodo
    ON facturas (servicio_id, periodo_anio, periodo_mes)
    WHERE origen = 'TARIFA_FIJA' AND estado <> 'ANULADA'`},
		{"saldo within bounds", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_cxc_saldo') THEN
    ALTER TABLE cuentas_por_cobrar
      ADD CONSTRAINT chk_cxc_saldo CHECK (saldo_pendiente >= 0 AND saldo_pendiente <= monto_inicial);
  END IF;
END $$`},
		{"reading never below previous", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_lecturas_valor') THEN
    ALTER TABLE lecturas ADD CONSTRAINT chk_lecturas_valor CHECK (valor >= lectura_anterior);
  END IF;
END $$`},
		{"stock never negative", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_productos_stock') THEN
    ALTER TABLE productos_material ADD CONSTRAINT chk_productos_stock CHECK (stock_actual >= 0);
  END IF;
END $$`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
