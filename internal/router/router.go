package router

import (
	"fmt"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/config"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/handler"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/infra"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/middleware"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/policy"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/sri"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Repos groups the repositories shared by the HTTP layer and the workers.
type Repos struct {
	Usuarios     repository.UsuarioRepository
	Socios       repository.SocioRepository
	Rubros       repository.RubroRepository
	Medidores    repository.MedidorRepository
	Servicios    repository.ServicioRepository
	Cuentas      repository.CuentaPorCobrarRepository
	Facturas     repository.FacturaRepository
	Pagos        repository.PagoRepository
	Eventos      repository.EventoRepository
	Productos    repository.ProductoRepository
	Movimientos  repository.MovimientoStockRepository
	Secuenciales repository.SecuencialRepository
	Auditoria    repository.AuditoriaRepository
}

func NewRepos(db *gorm.DB) Repos {
	return Repos{
		Usuarios:     repository.NewUsuarioRepository(db),
		Socios:       repository.NewSocioRepository(db),
		Rubros:       repository.NewRubroRepository(db),
		Medidores:    repository.NewMedidorRepository(db),
		Servicios:    repository.NewServicioRepository(db),
		Cuentas:      repository.NewCuentaPorCobrarRepository(db),
		Facturas:     repository.NewFacturaRepository(db),
		Pagos:        repository.NewPagoRepository(db),
		Eventos:      repository.NewEventoRepository(db),
		Productos:    repository.NewProductoRepository(db),
		Movimientos:  repository.NewMovimientoStockRepository(db),
		Secuenciales: repository.NewSecuencialRepository(db),
		Auditoria:    repository.NewAuditoriaRepository(db),
	}
}

// Services is the composed domain layer.
type Services struct {
	Auth       service.AuthService
	Socios     service.SocioService
	Catalogo   service.CatalogoService
	Ledger     service.LedgerService
	Facturas   service.FacturaService
	Pagos      service.PagoService
	Servicios  service.ServicioService
	Gobernanza service.GobernanzaService
	Productos  service.ProductoService
	Ventas     service.VentaService
}

// Deps are the adapters the services need from the outside world.
type Deps struct {
	Fiscal service.FiscalAdapter
	Cola   service.Encolador
}

// NewServices wires the domain layer.
// Dependency graph: Service ← Repository ← DB/Redis, plus the fiscal adapter.
func NewServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client, repos Repos, deps Deps) (*Services, error) {
	txr := service.NewTransactor(db, time.Duration(cfg.LockTimeoutMS)*time.Millisecond)

	evidencias, err := infra.NewEvidenceStore(cfg.EvidenciaStoragePath)
	if err != nil {
		return nil, fmt.Errorf("evidence store: %w", err)
	}
	recibos, err := infra.NewReceiptNumberer(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("receipt numberer: %w", err)
	}
	precios := infra.NewPrecioCache(rdb)
	ride := infra.NewRIDERenderer(cfg)

	params := service.ParametrosFacturacion{
		Ambiente:        cfg.SRIAmbiente,
		Establecimiento: cfg.SRIEstablecimiento,
		PuntoEmision:    cfg.SRIPuntoEmision,
		TipoDocumento:   cfg.SRITipoDocumento,
		RUC:             cfg.SRIRUC,
		TasaIVA:         cfg.IVATarifa,
		Tarifa: service.Tarifa{
			BaseM3:       cfg.TarifaBaseM3,
			PrecioBase:   cfg.TarifaPrecioBase,
			PrecioExceso: cfg.TarifaPrecioExceso,
		},
		TarifaFija:      cfg.TarifaFija,
		DiasVencimiento: cfg.DiasVencimiento,
		LoteParalelismo: cfg.WorkerPoolSize,
	}

	s := &Services{}
	s.Auth = service.NewAuthService(repos.Usuarios, repos.Socios, cfg, nil)
	s.Ledger = service.NewLedgerService(txr, repos.Socios, repos.Cuentas, repos.Rubros, repos.Pagos, repos.Facturas, repos.Auditoria, nil)
	s.Socios = service.NewSocioService(txr, repos.Socios, repos.Servicios, repos.Medidores, repos.Auditoria, s.Ledger, s.Auth)
	s.Catalogo = service.NewCatalogoService(txr, repos.Rubros, repos.Socios, repos.Medidores, repos.Servicios, repos.Auditoria, nil)

	emisor := service.NewEmisorFacturas(repos.Secuenciales, repos.Facturas, s.Ledger, deps.Fiscal, params, nil)
	s.Facturas = service.NewFacturaService(txr, emisor, repos.Facturas, repos.Cuentas, repos.Medidores, repos.Servicios,
		repos.Socios, repos.Rubros, repos.Auditoria, s.Ledger, deps.Fiscal, deps.Cola, ride,
		sri.NewClasificador(cfg.CodigosRecuperables()), nil)

	s.Servicios = service.NewServicioService(txr, repos.Servicios, repos.Socios, repos.Rubros, repos.Auditoria, s.Ledger, evidencias,
		service.ParametrosCorte{
			UmbralVencidas:  cfg.CorteMesesUmbral,
			ValorCargo:      cfg.CorteValor,
			DiasVencimiento: cfg.DiasVencimiento,
		}, nil)
	s.Pagos = service.NewPagoService(txr, repos.Pagos, repos.Facturas, repos.Cuentas, repos.Socios, repos.Auditoria, s.Ledger,
		evidencias, recibos, s.Servicios, nil)
	s.Gobernanza = service.NewGobernanzaService(txr, repos.Eventos, repos.Socios, repos.Rubros, repos.Cuentas, repos.Auditoria,
		s.Ledger, evidencias, deps.Cola, nil)
	s.Productos = service.NewProductoService(txr, repos.Productos, repos.Movimientos, precios)
	s.Ventas = service.NewVentaService(txr, emisor, repos.Productos, repos.Movimientos, repos.Socios, repos.Rubros, repos.Pagos,
		s.Ledger, s.Facturas, recibos, precios, nil)
	return s, nil
}

// Health carries what /health reports beyond DB and Redis.
type Health struct {
	Breaker *infra.CircuitBreaker
	DLQ     handler.QueueDepth
	Queues  []string
}

// New returns a configured Gin engine. Every protected route declares the
// single policy.Operation it runs; roles never appear here.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, svcs *Services, health Health) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(rdb, "api", 1000, time.Minute)) // 1000 req/min per IP

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(svcs.Auth)
	usuariosH := handler.NewUsuariosHandler(svcs.Auth)
	sociosH := handler.NewSociosHandler(svcs.Socios)
	catalogoH := handler.NewCatalogoHandler(svcs.Catalogo)
	facturasH := handler.NewFacturasHandler(svcs.Facturas)
	cuentasH := handler.NewCuentasHandler(svcs.Ledger)
	pagosH := handler.NewPagosHandler(svcs.Pagos)
	serviciosH := handler.NewServiciosHandler(svcs.Servicios)
	gobernanzaH := handler.NewGobernanzaHandler(svcs.Gobernanza)
	productosH := handler.NewProductosHandler(svcs.Productos)
	ventasH := handler.NewVentasHandler(svcs.Ventas)
	consultaH := handler.NewConsultaPreciosHandler(svcs.Productos)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, health.Breaker, health.DLQ, health.Queues...))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(rdb), authH.Login)
		auth.POST("/refresh", middleware.LoginRateLimiter(rdb), authH.Refresh)
	}

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	op := middleware.RequireOperation

	usuarios := v1.Group("/usuarios", op(policy.OpUsuarioAdmin))
	{
		usuarios.POST("", usuariosH.Crear)
		usuarios.GET("", usuariosH.Listar)
		usuarios.PUT("/:id", usuariosH.Actualizar)
		usuarios.DELETE("/:id", usuariosH.Desactivar)
		usuarios.PATCH("/:id/reactivar", usuariosH.Activar)
	}

	// Socios, terrenos, servicios
	v1.POST("/socios", op(policy.OpSocioWrite), sociosH.Crear)
	v1.GET("/socios", op(policy.OpSocioRead), sociosH.Listar)
	v1.GET("/socios/:id", op(policy.OpSocioRead), sociosH.Obtener)
	v1.PUT("/socios/:id", op(policy.OpSocioWrite), sociosH.Actualizar)
	v1.POST("/socios/:id/desactivar", op(policy.OpSocioWrite), sociosH.Desactivar)
	v1.POST("/socios/:id/reactivar", op(policy.OpSocioWrite), sociosH.Reactivar)
	v1.GET("/socios/:id/estado-cuenta", op(policy.OpEstadoCuenta), sociosH.EstadoCuenta)
	v1.GET("/socios/:id/cuentas", op(policy.OpSocioRead), cuentasH.Pendientes)
	v1.GET("/socios/:id/pagos", op(policy.OpSocioRead), pagosH.PorSocio)
	v1.POST("/socios/:id/terrenos", op(policy.OpSocioWrite), sociosH.CrearTerreno)
	v1.GET("/socios/:id/terrenos", op(policy.OpSocioRead), sociosH.ListarTerrenos)
	v1.GET("/socios/:id/servicios", op(policy.OpSocioRead), sociosH.ListarServicios)
	v1.POST("/servicios", op(policy.OpServicioWrite), sociosH.ContratarServicio)
	v1.POST("/servicios/:id/baja", op(policy.OpServicioWrite), sociosH.DarDeBajaServicio)
	v1.POST("/servicios/:id/estado", op(policy.OpServicioForce), serviciosH.ForzarEstado)
	v1.POST("/servicios/cortes", op(policy.OpCortesBatch), serviciosH.ProcesarCortes)

	// Catalogo
	v1.GET("/rubros", op(policy.OpCatalogoRead), catalogoH.ListarRubros)
	v1.POST("/rubros", op(policy.OpCatalogoWrite), catalogoH.CrearRubro)
	v1.PUT("/rubros/:id", op(policy.OpCatalogoWrite), catalogoH.ActualizarRubro)
	v1.DELETE("/rubros/:id", op(policy.OpCatalogoWrite), catalogoH.EliminarRubro)
	v1.GET("/barrios", op(policy.OpCatalogoRead), catalogoH.ListarBarrios)
	v1.POST("/barrios", op(policy.OpCatalogoWrite), catalogoH.CrearBarrio)
	v1.DELETE("/barrios/:id", op(policy.OpCatalogoWrite), catalogoH.EliminarBarrio)

	// Medidores y lecturas
	v1.GET("/medidores", op(policy.OpCatalogoRead), catalogoH.ListarMedidores)
	v1.POST("/medidores", op(policy.OpMedidorWrite), catalogoH.RegistrarMedidor)
	v1.GET("/medidores/:id", op(policy.OpCatalogoRead), catalogoH.ObtenerMedidor)
	v1.POST("/medidores/:id/instalar", op(policy.OpMedidorWrite), catalogoH.InstalarMedidor)
	v1.POST("/medidores/:id/estado", op(policy.OpMedidorWrite), catalogoH.CambiarEstadoMedidor)
	v1.GET("/medidores/:id/lecturas", op(policy.OpCatalogoRead), catalogoH.ListarLecturas)
	v1.POST("/terrenos/:id/medidor/reemplazo", op(policy.OpMedidorWrite), catalogoH.ReemplazarMedidor)
	v1.POST("/lecturas", op(policy.OpLecturaWrite), catalogoH.RegistrarLectura)

	// Facturas
	fact := v1.Group("/facturas")
	{
		fact.GET("", op(policy.OpFacturaRead), facturasH.Listar)
		fact.GET("/:id", op(policy.OpFacturaRead), facturasH.Obtener)
		fact.GET("/:id/pdf", op(policy.OpFacturaRead), facturasH.PDF)
		fact.POST("/lectura", op(policy.OpFacturaEmit), facturasH.EmitirPorLectura)
		fact.POST("/tarifa-fija", op(policy.OpFacturaEmit), facturasH.EmitirTarifaFija)
		fact.POST("/lote", op(policy.OpFacturaEmit), facturasH.EmitirLote)
		fact.POST("/cuentas", op(policy.OpFacturaEmit), facturasH.EmitirDesdeCuentas)
		fact.POST("/:id/enviar", op(policy.OpFacturaSRI), facturasH.Enviar)
		fact.POST("/:id/sincronizar", op(policy.OpFacturaSRI), facturasH.Sincronizar)
		fact.POST("/:id/reemitir", op(policy.OpFacturaSRI), facturasH.Reemitir)
		fact.POST("/:id/anular", op(policy.OpFacturaVoid), facturasH.Anular)
		fact.GET("/autorizacion/:clave", op(policy.OpFacturaSRI), facturasH.ConsultarAutorizacion)
	}

	// Cuentas por cobrar
	v1.GET("/cuentas", op(policy.OpObligacionAdm), cuentasH.Listar)
	v1.POST("/cuentas/:id/anular", op(policy.OpObligacionAdm), cuentasH.Anular)
	v1.POST("/cuentas/:id/revertir", op(policy.OpObligacionAdm), cuentasH.RevertirAnulacion)

	// Pagos
	pagos := v1.Group("/pagos")
	{
		pagos.POST("/caja", op(policy.OpPagoCaja), pagosH.RegistrarEnCaja)
		pagos.POST("/transferencias", op(policy.OpPagoTransferencia), pagosH.ReportarTransferencia)
		pagos.GET("/transferencias/pendientes", op(policy.OpPagoValidar), pagosH.PorValidar)
		pagos.POST("/:id/validar", op(policy.OpPagoValidar), pagosH.Validar)
		pagos.GET("/cierre", op(policy.OpCierreCaja), pagosH.Cierre)
		pagos.GET("/cierre/xlsx", op(policy.OpCierreCaja), pagosH.ExportarCierre)
		pagos.GET("/:id", op(policy.OpPagoCaja), pagosH.Obtener)
	}

	// Ordenes de trabajo
	ordenes := v1.Group("/ordenes", op(policy.OpOrdenTrabajo))
	{
		ordenes.POST("", serviciosH.CrearOrden)
		ordenes.GET("", serviciosH.ListarOrdenes)
		ordenes.POST("/:id/iniciar", serviciosH.IniciarOrden)
		ordenes.POST("/:id/completar", serviciosH.CompletarOrden)
		ordenes.POST("/:id/cancelar", serviciosH.CancelarOrden)
	}

	// Gobernanza
	v1.POST("/eventos", op(policy.OpEventoWrite), gobernanzaH.CrearEvento)
	v1.GET("/eventos", op(policy.OpEventoWrite), gobernanzaH.ListarEventos)
	v1.GET("/eventos/:id", op(policy.OpEventoWrite), gobernanzaH.ObtenerEvento)
	v1.POST("/eventos/:id/cancelar", op(policy.OpEventoWrite), gobernanzaH.CancelarEvento)
	v1.POST("/eventos/:id/asistencia", op(policy.OpAsistencia), gobernanzaH.RegistrarAsistencia)
	v1.POST("/eventos/:id/multas", op(policy.OpMultasBatch), gobernanzaH.ProcesarMultas)
	v1.POST("/justificaciones", op(policy.OpJustificacionEnviar), gobernanzaH.EnviarJustificacion)
	v1.GET("/justificaciones", op(policy.OpJustificacionResolver), gobernanzaH.ListarJustificaciones)
	v1.POST("/justificaciones/:id/resolver", op(policy.OpJustificacionResolver), gobernanzaH.ResolverJustificacion)

	// Materiales e inventario
	v1.GET("/precio/:sku", op(policy.OpVenta), consultaH.GetPrecioPorSKU)
	v1.POST("/ventas", op(policy.OpVenta), ventasH.RegistrarVenta)
	v1.GET("/productos", op(policy.OpVenta), productosH.Listar)
	v1.GET("/productos/:id", op(policy.OpVenta), productosH.ObtenerPorID)
	prods := v1.Group("/productos", op(policy.OpInventario))
	{
		prods.POST("", productosH.Crear)
		prods.PUT("/:id", productosH.Actualizar)
		prods.DELETE("/:id", productosH.Desactivar)
		prods.PATCH("/:id/stock", productosH.AjustarStock)
	}
	inv := v1.Group("/inventario", op(policy.OpInventario))
	{
		inv.GET("/alertas", productosH.Alertas)
		inv.GET("/movimientos", productosH.ListarMovimientos)
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
