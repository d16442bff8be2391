package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ItemVenta struct {
	ProductoID uuid.UUID
	Cantidad   int
}

type NuevaVenta struct {
	SocioID    uuid.UUID
	Items      []ItemVenta
	Metodo     string
	Referencia *string
	UsuarioID  *uuid.UUID
}

type ResultadoVenta struct {
	Factura *model.Factura `json:"factura"`
	Pago    *model.Pago    `json:"pago"`
}

type VentaService interface {
	Sell(ctx context.Context, in NuevaVenta) (*ResultadoVenta, error)
}

type ventaService struct {
	tx          Transactor
	emisor      *EmisorFacturas
	productos   repository.ProductoRepository
	movimientos repository.MovimientoStockRepository
	socios      repository.SocioRepository
	rubros      repository.RubroRepository
	pagos       repository.PagoRepository
	ledger      LedgerService
	facturacion FacturaService
	recibos     ReceiptNumberer
	cache       PrecioCache
	clock       Clock
}

func NewVentaService(
	tx Transactor,
	emisor *EmisorFacturas,
	productos repository.ProductoRepository,
	movimientos repository.MovimientoStockRepository,
	socios repository.SocioRepository,
	rubros repository.RubroRepository,
	pagos repository.PagoRepository,
	ledger LedgerService,
	facturacion FacturaService,
	recibos ReceiptNumberer,
	cache PrecioCache,
	clock Clock,
) VentaService {
	if cache == nil {
		cache = noopPrecioCache{}
	}
	return &ventaService{
		tx: tx, emisor: emisor, productos: productos, movimientos: movimientos,
		socios: socios, rubros: rubros, pagos: pagos, ledger: ledger,
		facturacion: facturacion, recibos: recibos, cache: cache, clock: clock,
	}
}

// ── Sell ─────────────────────────────────────────────────────────────────────
// One transaction:
//   1. Lock the socio, then every product in id order
//   2. Check stock and price the lines
//   3. Emit the invoice with its receivable
//   4. Decrement stock and write the movements
//   5. Record the validated payment and impute it to the invoice
// After commit the invoice is submitted to the SRI; a failure there never
// undoes the sale.

func (s *ventaService) Sell(ctx context.Context, in NuevaVenta) (*ResultadoVenta, error) {
	if !model.MetodoPagoValido(in.Metodo) {
		return nil, apperror.Validation("metodo", "método de pago desconocido")
	}
	cantidades, orden, err := agruparItems(in.Items)
	if err != nil {
		return nil, err
	}

	res := &ResultadoVenta{}
	facturaID := uuid.New()
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		socio, err := s.socios.LockByID(ctx, tx, in.SocioID)
		if err != nil {
			return err
		}
		if !socio.Activo {
			return apperror.BusinessRule(apperror.RuleInactiveEntity, "socio "+socio.Identificacion)
		}

		// Every lock is taken before the first write.
		productos := make(map[uuid.UUID]*model.ProductoMaterial, len(orden))
		for _, id := range orden {
			p, err := s.productos.LockByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if !p.Activo {
				return apperror.BusinessRule(apperror.RuleInactiveEntity, "material "+p.SKU)
			}
			if p.StockActual < cantidades[id] {
				return apperror.BusinessRule(apperror.RuleInsufficientStock,
					fmt.Sprintf("%s: disponible %d, solicitado %d", p.Nombre, p.StockActual, cantidades[id]))
			}
			productos[id] = p
		}

		rubro, err := s.rubros.FindPorTipo(ctx, tx, model.RubroMaterial)
		if err != nil {
			return err
		}
		if rubro == nil {
			return apperror.BusinessRule(apperror.RuleMissingCatalogItem, "no hay rubro activo de tipo "+model.RubroMaterial)
		}

		lineas := make([]model.DetalleFactura, 0, len(orden))
		for _, id := range orden {
			p := productos[id]
			l := nuevaLinea(p.SKU, p.Nombre, decimal.NewFromInt(int64(cantidades[id])), p.PrecioUnitario, p.AplicaIVA)
			l.ProductoID = &p.ID
			lineas = append(lineas, l)
		}
		hoy := s.clock.now()
		f, err := s.emisor.emitir(ctx, tx, borradorFactura{
			ID:               facturaID,
			SocioID:          socio.ID,
			Origen:           model.OrigenVenta,
			Anio:             hoy.Year(),
			Mes:              int(hoy.Month()),
			FechaEmision:     hoy,
			FechaVencimiento: hoy,
			Lineas:           lineas,
			RubroID:          rubro.ID,
			OrigenCuenta:     "VENTA_" + facturaID.String(),
		})
		if err != nil {
			return err
		}
		res.Factura = f

		for _, id := range orden {
			p := productos[id]
			nuevo := p.StockActual - cantidades[id]
			if err := s.productos.UpdateStock(ctx, tx, p.ID, nuevo); err != nil {
				return err
			}
			mov := &model.MovimientoStock{
				ID:            uuid.New(),
				ProductoID:    p.ID,
				Tipo:          MovimientoVenta,
				Cantidad:      -cantidades[id],
				StockAnterior: p.StockActual,
				StockNuevo:    nuevo,
				Motivo:        "Venta " + f.NumeroFactura(),
				ReferenciaID:  &f.ID,
			}
			if err := s.movimientos.Create(ctx, tx, mov); err != nil {
				return err
			}
			p.StockActual = nuevo
		}

		pago := &model.Pago{
			ID:            uuid.New(),
			SocioID:       socio.ID,
			FacturaID:     &f.ID,
			NumeroRecibo:  s.recibos.Next(),
			MontoTotal:    f.Total,
			Validado:      true,
			RegistradoPor: in.UsuarioID,
			FechaPago:     hoy,
		}
		pago.Detalles = []model.DetallePago{{
			ID: uuid.New(), PagoID: pago.ID, Metodo: in.Metodo, Monto: f.Total, Referencia: in.Referencia,
		}}
		if err := s.pagos.Create(ctx, tx, pago); err != nil {
			return err
		}
		if pago.Aplicaciones, err = s.ledger.ApplyPaymentToInvoice(ctx, tx, socio.ID, f.ID, f.Total, pago.ID); err != nil {
			return err
		}
		f.Estado = model.FacturaPagada
		res.Pago = pago
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range orden {
		s.cache.Invalidate(ctx, id)
	}
	log.Info().
		Str("factura_id", res.Factura.ID.String()).
		Str("total", res.Factura.Total.StringFixed(2)).
		Int("items", len(orden)).
		Msg("venta: registrada")

	if f, err := s.facturacion.SubmitToAuthority(ctx, res.Factura.ID); err != nil {
		log.Warn().Err(err).Str("factura_id", res.Factura.ID.String()).Msg("venta: envío al SRI pendiente")
	} else if f != nil {
		res.Factura = f
	}
	return res, nil
}

// agruparItems merges repeated products and returns the ids sorted, which
// is the lock order.
func agruparItems(items []ItemVenta) (map[uuid.UUID]int, []uuid.UUID, error) {
	if len(items) == 0 {
		return nil, nil, apperror.Validation("items", "la venta no tiene items")
	}
	cantidades := make(map[uuid.UUID]int, len(items))
	for i, it := range items {
		if it.Cantidad <= 0 {
			return nil, nil, apperror.Validation(fmt.Sprintf("items[%d].cantidad", i), "debe ser mayor que cero")
		}
		cantidades[it.ProductoID] += it.Cantidad
	}
	orden := make([]uuid.UUID, 0, len(cantidades))
	for id := range cantidades {
		orden = append(orden, id)
	}
	sort.Slice(orden, func(i, j int) bool { return orden[i].String() < orden[j].String() })
	return cantidades, orden, nil
}
