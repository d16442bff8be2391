package infra

import (
	"bytes"
	"testing"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderInvoice_ProducesPDF(t *testing.T) {
	r := &RIDERenderer{RUC: "1790010937001", RazonSocial: "Junta de Agua San José", Direccion: "Calle Principal s/n"}
	autorizacion := "0101202501179001093700110010010000006011234567811"
	f := &model.Factura{
		Ambiente:           1,
		Establecimiento:    "001",
		PuntoEmision:       "001",
		Secuencial:         601,
		ClaveAcceso:        autorizacion,
		NumeroAutorizacion: &autorizacion,
		FechaEmision:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Subtotal:           decimal.RequireFromString("9.25"),
		Total:              decimal.RequireFromString("9.25"),
		Detalles: []model.DetalleFactura{
			{Codigo: "AGUA", Concepto: "Base (15 m³)", Cantidad: decimal.NewFromInt(1), PrecioUnitario: decimal.RequireFromString("3"), Subtotal: decimal.RequireFromString("3")},
			{Codigo: "AGUA-EXC", Concepto: "Exceso 25 m³ @ 0.25", Cantidad: decimal.NewFromInt(25), PrecioUnitario: decimal.RequireFromString("0.25"), Subtotal: decimal.RequireFromString("6.25")},
		},
	}
	s := &model.Socio{Identificacion: "1710034065", Nombres: "María", Apellidos: "Pérez"}

	out, err := r.RenderInvoice(f, s)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
