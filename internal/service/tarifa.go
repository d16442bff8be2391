package service

import (
	"fmt"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/shopspring/decimal"
)

// Tarifa holds the metered billing parameters of one servicio.
type Tarifa struct {
	BaseM3       decimal.Decimal
	PrecioBase   decimal.Decimal
	PrecioExceso decimal.Decimal
}

// TarifaDe applies the per-servicio overrides on top of the defaults.
func TarifaDe(def Tarifa, s *model.Servicio) Tarifa {
	t := def
	if s == nil {
		return t
	}
	if s.BaseM3 != nil {
		t.BaseM3 = *s.BaseM3
	}
	if s.PrecioBase != nil {
		t.PrecioBase = *s.PrecioBase
	}
	if s.PrecioExceso != nil {
		t.PrecioExceso = *s.PrecioExceso
	}
	return t
}

// Line codes printed on metered invoices.
const (
	CodigoAguaBase   = "AGUA-BASE"
	CodigoAguaExceso = "AGUA-EXC"
	CodigoAguaFija   = "AGUA-FIJA"
)

// LineasConsumo prices a metered consumption. Up to BaseM3 the socio pays
// the base price; every cubic meter above it is charged at PrecioExceso.
func LineasConsumo(consumo decimal.Decimal, t Tarifa, aplicaIVA bool) []model.DetalleFactura {
	lineas := []model.DetalleFactura{
		nuevaLinea(CodigoAguaBase, fmt.Sprintf("Base (%s m³)", t.BaseM3.String()),
			decimal.NewFromInt(1), t.PrecioBase, aplicaIVA),
	}
	if consumo.GreaterThan(t.BaseM3) {
		exceso := consumo.Sub(t.BaseM3)
		lineas = append(lineas, nuevaLinea(CodigoAguaExceso,
			fmt.Sprintf("Exceso %s m³ @ %s", exceso.String(), t.PrecioExceso.StringFixed(2)),
			exceso, t.PrecioExceso, aplicaIVA))
	}
	return lineas
}

// nuevaLinea rounds the unit price to four places and the subtotal to two,
// both half-up.
func nuevaLinea(codigo, concepto string, cantidad, precio decimal.Decimal, aplicaIVA bool) model.DetalleFactura {
	precio = precio.Round(4)
	return model.DetalleFactura{
		Codigo:         codigo,
		Concepto:       concepto,
		Cantidad:       cantidad,
		PrecioUnitario: precio,
		Subtotal:       cantidad.Mul(precio).Round(2),
		AplicaIVA:      aplicaIVA,
	}
}

// Totales is the result of Totalizar.
type Totales struct {
	Subtotal  decimal.Decimal
	Impuestos decimal.Decimal
	Total     decimal.Decimal
}

// Totalizar numbers the lines, fills the per-line VAT for the XML and
// computes the invoice totals. The tax total is the rounded sum of the
// unrounded per-line products, not the sum of the rounded line values.
func Totalizar(lineas []model.DetalleFactura, tasaIVA decimal.Decimal) Totales {
	subtotal, impuestoBruto := decimal.Zero, decimal.Zero
	for i := range lineas {
		lineas[i].Orden = i + 1
		subtotal = subtotal.Add(lineas[i].Subtotal)
		lineas[i].ValorIVA = decimal.Zero
		if lineas[i].AplicaIVA {
			iva := lineas[i].Subtotal.Mul(tasaIVA)
			impuestoBruto = impuestoBruto.Add(iva)
			lineas[i].ValorIVA = iva.Round(2)
		}
	}
	subtotal = subtotal.Round(2)
	impuestos := impuestoBruto.Round(2)
	return Totales{Subtotal: subtotal, Impuestos: impuestos, Total: subtotal.Add(impuestos)}
}
