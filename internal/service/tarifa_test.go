package service

import (
	"testing"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineasConsumo(t *testing.T) {
	tarifa := Tarifa{BaseM3: dec("15"), PrecioBase: dec("2.50"), PrecioExceso: dec("0.35")}

	bajo := LineasConsumo(dec("9"), tarifa, false)
	require.Len(t, bajo, 1)
	assert.True(t, bajo[0].Subtotal.Equal(dec("2.50")))

	justo := LineasConsumo(dec("15"), tarifa, false)
	assert.Len(t, justo, 1)

	alto := LineasConsumo(dec("22.5"), tarifa, false)
	require.Len(t, alto, 2)
	assert.True(t, alto[1].Cantidad.Equal(dec("7.5")))
	// 7.5 × 0.35 = 2.625 rounds half-up to 2.63.
	assert.True(t, alto[1].Subtotal.Equal(dec("2.63")))
}

func TestTarifaDe(t *testing.T) {
	def := Tarifa{BaseM3: dec("10"), PrecioBase: dec("3"), PrecioExceso: dec("0.5")}
	assert.Equal(t, def, TarifaDe(def, nil))

	base := dec("20")
	got := TarifaDe(def, &model.Servicio{BaseM3: &base})
	assert.True(t, got.BaseM3.Equal(base))
	assert.True(t, got.PrecioBase.Equal(def.PrecioBase))
}

func TestTotalizar_IVAPorLinea(t *testing.T) {
	lineas := []model.DetalleFactura{
		{Subtotal: dec("0.33"), AplicaIVA: true},
		{Subtotal: dec("0.33"), AplicaIVA: true},
		{Subtotal: dec("0.33"), AplicaIVA: true},
		{Subtotal: dec("4.00"), AplicaIVA: false},
	}
	tot := Totalizar(lineas, dec("0.15"))

	for i, l := range lineas {
		assert.Equal(t, i+1, l.Orden)
	}
	assert.True(t, tot.Subtotal.Equal(dec("4.99")))
	// Per line 0.0495 rounds to 0.05, but the total is round(0.1485) = 0.15.
	assert.True(t, lineas[0].ValorIVA.Equal(dec("0.05")))
	assert.True(t, tot.Impuestos.Equal(dec("0.15")))
	assert.True(t, tot.Total.Equal(dec("5.14")))
	assert.True(t, lineas[3].ValorIVA.Equal(decimal.Zero))
}
