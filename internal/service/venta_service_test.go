package service

import (
	"context"
	"testing"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/sri"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ventaFixture struct {
	*facturaFixture
	venta       VentaService
	productos   *fakeProductos
	movimientos *fakeMovimientos
	cache       *fakePrecioCache
	rubros      *fakeRubros
	material    model.CatalogoRubro
	tubo        model.ProductoMaterial
	codo        model.ProductoMaterial
}

func newVentaFixture() *ventaFixture {
	ff := newFacturaFixture()
	fx := &ventaFixture{
		facturaFixture: ff,
		movimientos:    &fakeMovimientos{},
		cache:          &fakePrecioCache{},
		material:       model.CatalogoRubro{ID: uuid.New(), Codigo: "MATERIAL", Tipo: model.RubroMaterial, Activo: true},
	}
	fx.tubo = model.ProductoMaterial{
		ID: uuid.New(), SKU: "TUB-050", Nombre: "Tubo PVC 1/2", PrecioUnitario: dec("2.50"),
		StockActual: 10, AplicaIVA: true, Activo: true,
	}
	fx.codo = model.ProductoMaterial{
		ID: uuid.New(), SKU: "COD-050", Nombre: "Codo 1/2", PrecioUnitario: dec("1.00"),
		StockActual: 3, Activo: true,
	}
	fx.productos = newFakeProductos(fx.tubo, fx.codo)
	fx.rubros = newFakeRubros(ff.agua, fx.material)

	ledger := NewLedgerService(fakeTx{}, ff.socios, ff.cuentas, fx.rubros, ff.pagos, ff.facturas, ff.auditoria, relojFijo())
	emisor := NewEmisorFacturas(ff.secuenciales, ff.facturas, ledger, ff.fiscal, ff.params, relojFijo())
	fx.venta = NewVentaService(fakeTx{}, emisor, fx.productos, fx.movimientos, ff.socios, fx.rubros,
		ff.pagos, ledger, ff.svc, &fakeRecibos{}, fx.cache, relojFijo())
	ff.fiscal.envio = sri.ResultadoEnvio{Estado: sri.EnvioRecibida}
	return fx
}

func (fx *ventaFixture) nueva(items ...ItemVenta) NuevaVenta {
	return NuevaVenta{SocioID: fx.socio.ID, Items: items, Metodo: model.MetodoEfectivo}
}

func TestSell_FacturaPagadaYDescuentaStock(t *testing.T) {
	fx := newVentaFixture()

	// The elbow appears twice and is merged into one line of 3.
	res, err := fx.venta.Sell(context.Background(), fx.nueva(
		ItemVenta{ProductoID: fx.tubo.ID, Cantidad: 2},
		ItemVenta{ProductoID: fx.codo.ID, Cantidad: 1},
		ItemVenta{ProductoID: fx.codo.ID, Cantidad: 2},
	))
	require.NoError(t, err)

	f := fx.facturas.get(res.Factura.ID)
	assert.Equal(t, model.OrigenVenta, f.Origen)
	assert.Len(t, f.Detalles, 2)
	assert.True(t, f.Subtotal.Equal(dec("8.00")), "subtotal %s", f.Subtotal)
	assert.True(t, f.Impuestos.Equal(dec("0.75")), "iva %s", f.Impuestos)
	assert.True(t, f.Total.Equal(dec("8.75")))
	assert.Equal(t, model.FacturaPagada, f.Estado)
	assert.Equal(t, int64(1), f.Secuencial)

	require.NotNil(t, res.Pago)
	assert.Equal(t, "REC-0001", res.Pago.NumeroRecibo)
	assert.True(t, res.Pago.Validado)
	assert.True(t, res.Pago.MontoTotal.Equal(dec("8.75")))
	require.Len(t, res.Pago.Aplicaciones, 1)

	cuenta, err := fx.cuentas.FindByOrigen(context.Background(), nil, fx.socio.ID, "VENTA_"+f.ID.String())
	require.NoError(t, err)
	require.NotNil(t, cuenta)
	assert.Equal(t, fx.material.ID, cuenta.RubroID)
	assert.Equal(t, model.CxCPagada, cuenta.Estado)

	assert.Equal(t, 8, fx.productos.stock(fx.tubo.ID))
	assert.Zero(t, fx.productos.stock(fx.codo.ID))
	require.Len(t, fx.movimientos.rows, 2)
	for _, m := range fx.movimientos.rows {
		assert.Equal(t, MovimientoVenta, m.Tipo)
		assert.Negative(t, m.Cantidad)
		assert.Equal(t, m.StockAnterior+m.Cantidad, m.StockNuevo)
		require.NotNil(t, m.ReferenciaID)
		assert.Equal(t, f.ID, *m.ReferenciaID)
	}

	assert.ElementsMatch(t, []uuid.UUID{fx.tubo.ID, fx.codo.ID}, fx.cache.invalidados)
	assert.Equal(t, 1, fx.fiscal.enviados)
}

func TestSell_StockInsuficienteNoEscribe(t *testing.T) {
	fx := newVentaFixture()

	_, err := fx.venta.Sell(context.Background(), fx.nueva(
		ItemVenta{ProductoID: fx.tubo.ID, Cantidad: 1},
		ItemVenta{ProductoID: fx.codo.ID, Cantidad: 4},
	))
	assert.True(t, apperror.IsRule(err, apperror.RuleInsufficientStock), "got %v", err)

	assert.Equal(t, 10, fx.productos.stock(fx.tubo.ID))
	assert.Empty(t, fx.movimientos.rows)
	assert.Empty(t, fx.facturas.rows)
	assert.Zero(t, fx.secuenciales.actual)
	assert.Empty(t, fx.cache.invalidados)
	assert.Zero(t, fx.fiscal.enviados)
}

func TestSell_EnvioFallidoNoDeshaceLaVenta(t *testing.T) {
	fx := newVentaFixture()
	fx.fiscal.envioErr = apperror.FiscalUnavailable(assert.AnError)

	res, err := fx.venta.Sell(context.Background(), fx.nueva(ItemVenta{ProductoID: fx.codo.ID, Cantidad: 1}))
	require.NoError(t, err)
	assert.Equal(t, model.FacturaPagada, fx.facturas.get(res.Factura.ID).Estado)
	assert.Equal(t, 2, fx.productos.stock(fx.codo.ID))
}

func TestSell_Validaciones(t *testing.T) {
	fx := newVentaFixture()
	ctx := context.Background()

	malMetodo := fx.nueva(ItemVenta{ProductoID: fx.tubo.ID, Cantidad: 1})
	malMetodo.Metodo = "TRUEQUE"
	_, err := fx.venta.Sell(ctx, malMetodo)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = fx.venta.Sell(ctx, fx.nueva())
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = fx.venta.Sell(ctx, fx.nueva(ItemVenta{ProductoID: fx.tubo.ID, Cantidad: 0}))
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = fx.venta.Sell(ctx, fx.nueva(ItemVenta{ProductoID: uuid.New(), Cantidad: 1}))
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestSell_EntidadesInactivas(t *testing.T) {
	fx := newVentaFixture()
	ctx := context.Background()
	item := ItemVenta{ProductoID: fx.tubo.ID, Cantidad: 1}

	tubo := fx.productos.rows[fx.tubo.ID]
	tubo.Activo = false
	fx.productos.rows[fx.tubo.ID] = tubo
	_, err := fx.venta.Sell(ctx, fx.nueva(item))
	assert.True(t, apperror.IsRule(err, apperror.RuleInactiveEntity))

	tubo.Activo = true
	fx.productos.rows[fx.tubo.ID] = tubo
	socio := fx.socios.rows[fx.socio.ID]
	socio.Activo = false
	fx.socios.rows[fx.socio.ID] = socio
	_, err = fx.venta.Sell(ctx, fx.nueva(item))
	assert.True(t, apperror.IsRule(err, apperror.RuleInactiveEntity))
}

func TestSell_SinRubroDeMaterial(t *testing.T) {
	fx := newVentaFixture()
	delete(fx.rubros.rows, fx.material.ID)

	_, err := fx.venta.Sell(context.Background(), fx.nueva(ItemVenta{ProductoID: fx.tubo.ID, Cantidad: 1}))
	assert.True(t, apperror.IsRule(err, apperror.RuleMissingCatalogItem))
	assert.Equal(t, 10, fx.productos.stock(fx.tubo.ID))
}
