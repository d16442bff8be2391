package service

import (
	"context"
	"strings"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Tipos de movimiento de stock.
const (
	MovimientoVenta   = "venta"
	MovimientoAjuste  = "ajuste_manual"
	MovimientoIngreso = "ingreso"
)

// ConsultaPrecio is the cached answer of a price check by SKU.
type ConsultaPrecio struct {
	ID              uuid.UUID       `json:"id"`
	SKU             string          `json:"sku"`
	Nombre          string          `json:"nombre"`
	PrecioUnitario  decimal.Decimal `json:"precio_unitario"`
	StockDisponible int             `json:"stock_disponible"`
	AplicaIVA       bool            `json:"aplica_iva"`
}

// PrecioCache is a best-effort read cache; every method swallows its own errors.
type PrecioCache interface {
	Get(ctx context.Context, sku string) (*ConsultaPrecio, bool)
	Set(ctx context.Context, c ConsultaPrecio)
	Invalidate(ctx context.Context, productoID uuid.UUID)
}

type NuevoMaterial struct {
	SKU            string
	Nombre         string
	PrecioUnitario decimal.Decimal
	StockInicial   int
	StockMinimo    int
	AplicaIVA      bool
}

type ActualizacionMaterial struct {
	Nombre         *string
	PrecioUnitario *decimal.Decimal
	StockMinimo    *int
	AplicaIVA      *bool
}

// ProductoService manages the material catalog and its stock.
type ProductoService interface {
	Crear(ctx context.Context, in NuevoMaterial) (*model.ProductoMaterial, error)
	ObtenerPorID(ctx context.Context, id uuid.UUID) (*model.ProductoMaterial, error)
	ConsultarPrecio(ctx context.Context, sku string) (*ConsultaPrecio, error)
	Listar(ctx context.Context, filter repository.ProductoFilter) ([]model.ProductoMaterial, int64, error)
	Actualizar(ctx context.Context, id uuid.UUID, in ActualizacionMaterial) (*model.ProductoMaterial, error)
	Desactivar(ctx context.Context, id uuid.UUID) error
	// AjustarStock applies delta under the product lock and records the movement.
	AjustarStock(ctx context.Context, id uuid.UUID, delta int, tipo, motivo string) (*model.MovimientoStock, error)
	ListarMovimientos(ctx context.Context, filter repository.MovimientoStockFilter) ([]model.MovimientoStock, int64, error)
	AlertasBajoStock(ctx context.Context) ([]model.ProductoMaterial, error)
}

type productoService struct {
	tx          Transactor
	repo        repository.ProductoRepository
	movimientos repository.MovimientoStockRepository
	cache       PrecioCache
}

func NewProductoService(tx Transactor, repo repository.ProductoRepository, movimientos repository.MovimientoStockRepository, cache PrecioCache) ProductoService {
	if cache == nil {
		cache = noopPrecioCache{}
	}
	return &productoService{tx: tx, repo: repo, movimientos: movimientos, cache: cache}
}

func (s *productoService) Crear(ctx context.Context, in NuevoMaterial) (*model.ProductoMaterial, error) {
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	if in.SKU == "" || in.Nombre == "" {
		return nil, apperror.Validation("sku", "sku y nombre son requeridos")
	}
	if !in.PrecioUnitario.IsPositive() {
		return nil, apperror.Validation("precio_unitario", "debe ser mayor que cero")
	}
	if in.StockInicial < 0 || in.StockMinimo < 0 {
		return nil, apperror.Validation("stock", "no puede ser negativo")
	}
	p := &model.ProductoMaterial{
		ID:             uuid.New(),
		SKU:            in.SKU,
		Nombre:         in.Nombre,
		PrecioUnitario: in.PrecioUnitario.Round(4),
		StockMinimo:    in.StockMinimo,
		AplicaIVA:      in.AplicaIVA,
		Activo:         true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	if in.StockInicial > 0 {
		if _, err := s.AjustarStock(ctx, p.ID, in.StockInicial, MovimientoIngreso, "stock inicial"); err != nil {
			return nil, err
		}
		p.StockActual = in.StockInicial
	}
	return p, nil
}

func (s *productoService) ObtenerPorID(ctx context.Context, id uuid.UUID) (*model.ProductoMaterial, error) {
	return s.repo.FindByID(ctx, nil, id)
}

func (s *productoService) ConsultarPrecio(ctx context.Context, sku string) (*ConsultaPrecio, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if c, ok := s.cache.Get(ctx, sku); ok {
		return c, nil
	}
	p, err := s.repo.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if !p.Activo {
		return nil, apperror.NotFound("material", sku)
	}
	c := ConsultaPrecio{
		ID: p.ID, SKU: p.SKU, Nombre: p.Nombre, PrecioUnitario: p.PrecioUnitario,
		StockDisponible: p.StockActual, AplicaIVA: p.AplicaIVA,
	}
	s.cache.Set(ctx, c)
	return &c, nil
}

func (s *productoService) Listar(ctx context.Context, filter repository.ProductoFilter) ([]model.ProductoMaterial, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *productoService) Actualizar(ctx context.Context, id uuid.UUID, in ActualizacionMaterial) (*model.ProductoMaterial, error) {
	p, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if in.Nombre != nil {
		p.Nombre = *in.Nombre
	}
	if in.PrecioUnitario != nil {
		if !in.PrecioUnitario.IsPositive() {
			return nil, apperror.Validation("precio_unitario", "debe ser mayor que cero")
		}
		p.PrecioUnitario = in.PrecioUnitario.Round(4)
	}
	if in.StockMinimo != nil {
		p.StockMinimo = *in.StockMinimo
	}
	if in.AplicaIVA != nil {
		p.AplicaIVA = *in.AplicaIVA
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, p.ID)
	return p, nil
}

func (s *productoService) Desactivar(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetActivo(ctx, id, false); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

func (s *productoService) AjustarStock(ctx context.Context, id uuid.UUID, delta int, tipo, motivo string) (*model.MovimientoStock, error) {
	if delta == 0 {
		return nil, apperror.Validation("cantidad", "no puede ser cero")
	}
	if tipo != MovimientoAjuste && tipo != MovimientoIngreso {
		return nil, apperror.Validation("tipo", "debe ser ajuste_manual o ingreso")
	}
	if tipo == MovimientoIngreso && delta < 0 {
		return nil, apperror.Validation("cantidad", "un ingreso no puede ser negativo")
	}
	var mov *model.MovimientoStock
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		p, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		nuevo := p.StockActual + delta
		if nuevo < 0 {
			return apperror.BusinessRule(apperror.RuleInsufficientStock, p.Nombre)
		}
		if err := s.repo.UpdateStock(ctx, tx, id, nuevo); err != nil {
			return err
		}
		mov = &model.MovimientoStock{
			ID:            uuid.New(),
			ProductoID:    id,
			Tipo:          tipo,
			Cantidad:      delta,
			StockAnterior: p.StockActual,
			StockNuevo:    nuevo,
			Motivo:        motivo,
		}
		return s.movimientos.Create(ctx, tx, mov)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, id)
	log.Info().Str("producto_id", id.String()).Int("delta", delta).Int("stock", mov.StockNuevo).Msg("inventario: stock ajustado")
	return mov, nil
}

func (s *productoService) ListarMovimientos(ctx context.Context, filter repository.MovimientoStockFilter) ([]model.MovimientoStock, int64, error) {
	return s.movimientos.List(ctx, filter)
}

func (s *productoService) AlertasBajoStock(ctx context.Context) ([]model.ProductoMaterial, error) {
	return s.repo.ListBajoStock(ctx)
}

type noopPrecioCache struct{}

func (noopPrecioCache) Get(context.Context, string) (*ConsultaPrecio, bool) { return nil, false }
func (noopPrecioCache) Set(context.Context, ConsultaPrecio)                 {}
func (noopPrecioCache) Invalidate(context.Context, uuid.UUID)               {}
