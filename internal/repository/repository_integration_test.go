//go:build integration

package repository_test

// Repository tests against a real Postgres started with testcontainers.
// Run with: go test -tags integration ./internal/repository/... -v

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/infra"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("junta_test"),
		tcPostgres.WithUsername("junta"),
		tcPostgres.WithPassword("junta"),
		testcontainers.WithWaitStrategy(tcPostgres.BasicWaitStrategies()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// NewDatabase already migrates; running again checks the patches are idempotent.
	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))
	return db
}

func seedSocio(t *testing.T, db *gorm.DB, identificacion string) model.Socio {
	t.Helper()
	s := model.Socio{
		ID: uuid.New(), Identificacion: identificacion, TipoIdentificacion: model.IdentificacionCedula,
		Nombres: "Rosa", Apellidos: "Guamán", Activo: true,
	}
	require.NoError(t, repository.NewSocioRepository(db).Create(context.Background(), nil, &s))
	return s
}

func seedRubro(t *testing.T, db *gorm.DB) model.CatalogoRubro {
	t.Helper()
	r := model.CatalogoRubro{ID: uuid.New(), Codigo: "AGUA", Nombre: "Consumo de agua", Tipo: model.RubroAgua, Activo: true}
	require.NoError(t, db.Create(&r).Error)
	return r
}

func TestIntegration(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	txr := service.NewTransactor(db, 2*time.Second)

	t.Run("secuencial sin huecos bajo concurrencia", func(t *testing.T) {
		repo := repository.NewSecuencialRepository(db)
		const n = 10
		var (
			mu  sync.Mutex
			got []int64
			wg  sync.WaitGroup
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := txr.Transaction(ctx, func(tx *gorm.DB) error {
					v, err := repo.Reserve(ctx, tx, "001", "002", "01")
					if err != nil {
						return err
					}
					mu.Lock()
					got = append(got, v)
					mu.Unlock()
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		require.Len(t, got, n)
		for i, v := range got {
			assert.Equal(t, int64(i+1), v)
		}
		actual, err := repo.Actual(ctx, "001", "002", "01")
		require.NoError(t, err)
		assert.Equal(t, int64(n), actual)

		// A rolled back reservation leaves no gap.
		_ = txr.Transaction(ctx, func(tx *gorm.DB) error {
			_, err := repo.Reserve(ctx, tx, "001", "002", "01")
			require.NoError(t, err)
			return apperror.Validation("x", "rollback")
		})
		actual, err = repo.Actual(ctx, "001", "002", "01")
		require.NoError(t, err)
		assert.Equal(t, int64(n), actual)
	})

	t.Run("origen duplicado es conflicto de integridad", func(t *testing.T) {
		socio := seedSocio(t, db, "1710034065")
		rubro := seedRubro(t, db)
		cuentas := repository.NewCuentaPorCobrarRepository(db)
		nueva := func() *model.CuentaPorCobrar {
			return &model.CuentaPorCobrar{
				ID: uuid.New(), SocioID: socio.ID, RubroID: rubro.ID,
				MontoInicial: decimal.NewFromInt(5), SaldoPendiente: decimal.NewFromInt(5),
				FechaEmision: time.Now(), FechaVencimiento: time.Now().AddDate(0, 0, 30),
				Estado: model.CxCPendiente, OrigenReferencia: "MULTA_EVENTO_X_SOCIO_Y",
			}
		}
		require.NoError(t, cuentas.Create(ctx, nil, nueva()))
		err := cuentas.Create(ctx, nil, nueva())
		assert.True(t, apperror.IsKind(err, apperror.KindIntegrityConflict), "got %v", err)

		existente, err := cuentas.FindByOrigen(ctx, nil, socio.ID, "MULTA_EVENTO_X_SOCIO_Y")
		require.NoError(t, err)
		require.NotNil(t, existente)
		falta, err := cuentas.FindByOrigen(ctx, nil, socio.ID, "NO_EXISTE")
		require.NoError(t, err)
		assert.Nil(t, falta)
	})

	t.Run("ledger imputa FIFO y resume la deuda", func(t *testing.T) {
		socio := seedSocio(t, db, "1790010937001")
		var rubro model.CatalogoRubro
		require.NoError(t, db.Where("codigo = ?", "AGUA").First(&rubro).Error)

		socios := repository.NewSocioRepository(db)
		cuentas := repository.NewCuentaPorCobrarRepository(db)
		pagos := repository.NewPagoRepository(db)
		ledger := service.NewLedgerService(txr, socios, cuentas, repository.NewRubroRepository(db), pagos,
			repository.NewFacturaRepository(db), repository.NewAuditoriaRepository(db), nil)

		hace := func(d int) time.Time { return time.Now().AddDate(0, 0, -d) }
		for i, origen := range []string{"SEED_ENERO", "SEED_FEBRERO"} {
			_, err := ledger.CreateObligation(ctx, nil, service.NuevaObligacion{
				SocioID: socio.ID, RubroID: rubro.ID, Monto: decimal.NewFromInt(4),
				FechaEmision: hace(90 - 30*i), FechaVencimiento: hace(60 - 30*i), Origen: origen,
			})
			require.NoError(t, err)
		}

		resumen, err := ledger.DebtSummary(ctx, nil, socio.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, resumen.CuentasVencidas)
		assert.True(t, resumen.Total.Equal(decimal.NewFromInt(8)))

		pago := &model.Pago{
			ID: uuid.New(), SocioID: socio.ID, NumeroRecibo: "IT-1", MontoTotal: decimal.NewFromInt(6),
			Validado: true, FechaPago: time.Now(),
		}
		err = txr.Transaction(ctx, func(tx *gorm.DB) error {
			if err := pagos.Create(ctx, tx, pago); err != nil {
				return err
			}
			_, err := ledger.ApplyPayment(ctx, tx, socio.ID, pago.MontoTotal, pago.ID)
			return err
		})
		require.NoError(t, err)

		enero, err := cuentas.FindByOrigen(ctx, nil, socio.ID, "SEED_ENERO")
		require.NoError(t, err)
		assert.Equal(t, model.CxCPagada, enero.Estado)
		febrero, err := cuentas.FindByOrigen(ctx, nil, socio.ID, "SEED_FEBRERO")
		require.NoError(t, err)
		assert.True(t, febrero.SaldoPendiente.Equal(decimal.NewFromInt(2)))

		aplicado, err := pagos.SumAplicadoCuenta(ctx, nil, febrero.ID)
		require.NoError(t, err)
		assert.True(t, aplicado.Equal(decimal.NewFromInt(2)))

		_, err = ledger.ApplyPayment(ctx, nil, socio.ID, decimal.NewFromInt(3), uuid.New())
		assert.True(t, apperror.IsRule(err, apperror.RuleOverpaymentRejected))
	})
}
