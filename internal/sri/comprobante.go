package sri

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Emisor is the issuer block shared by every document.
type Emisor struct {
	RUC                  string
	RazonSocial          string
	NombreComercial      string
	DireccionMatriz      string
	ObligadoContabilidad bool
}

// Comprador identifies the buyer.
type Comprador struct {
	Tipo           TipoIdentificacion
	Identificacion string
	RazonSocial    string
	Direccion      string
	Email          string
}

// LineaFactura is one invoice detail line.
type LineaFactura struct {
	Codigo         string
	Descripcion    string
	Cantidad       decimal.Decimal
	PrecioUnitario decimal.Decimal
	Subtotal       decimal.Decimal
	AplicaIVA      bool
	ValorIVA       decimal.Decimal
}

// DatosFactura is everything the XML builder needs; it carries no
// persistence concerns.
type DatosFactura struct {
	Emisor          Emisor
	Comprador       Comprador
	Ambiente        int
	TipoEmision     int
	ClaveAcceso     string
	Establecimiento string
	PuntoEmision    string
	Secuencial      int64
	FechaEmision    time.Time
	Subtotal        decimal.Decimal
	Impuestos       decimal.Decimal
	Total           decimal.Decimal
	TarifaIVA       decimal.Decimal
	FormaPago       string
	Lineas          []LineaFactura
}

// Forma de pago codes (tabla 24).
const (
	FormaPagoSinSistemaFinanciero = "01"
	FormaPagoOtrosSistemaFinanc   = "20"
)

type facturaXML struct {
	XMLName        xml.Name          `xml:"factura"`
	ID             string            `xml:"id,attr"`
	Version        string            `xml:"version,attr"`
	InfoTributaria infoTributariaXML `xml:"infoTributaria"`
	InfoFactura    infoFacturaXML    `xml:"infoFactura"`
	Detalles       []detalleXML      `xml:"detalles>detalle"`
}

type infoTributariaXML struct {
	Ambiente        int    `xml:"ambiente"`
	TipoEmision     int    `xml:"tipoEmision"`
	RazonSocial     string `xml:"razonSocial"`
	NombreComercial string `xml:"nombreComercial,omitempty"`
	RUC             string `xml:"ruc"`
	ClaveAcceso     string `xml:"claveAcceso"`
	CodDoc          string `xml:"codDoc"`
	Estab           string `xml:"estab"`
	PtoEmi          string `xml:"ptoEmi"`
	Secuencial      string `xml:"secuencial"`
	DirMatriz       string `xml:"dirMatriz"`
}

type infoFacturaXML struct {
	FechaEmision                string             `xml:"fechaEmision"`
	DirEstablecimiento          string             `xml:"dirEstablecimiento,omitempty"`
	ObligadoContabilidad        string             `xml:"obligadoContabilidad"`
	TipoIdentificacionComprador string             `xml:"tipoIdentificacionComprador"`
	RazonSocialComprador        string             `xml:"razonSocialComprador"`
	IdentificacionComprador     string             `xml:"identificacionComprador"`
	DireccionComprador          string             `xml:"direccionComprador,omitempty"`
	TotalSinImpuestos           string             `xml:"totalSinImpuestos"`
	TotalDescuento              string             `xml:"totalDescuento"`
	TotalConImpuestos           []totalImpuestoXML `xml:"totalConImpuestos>totalImpuesto"`
	Propina                     string             `xml:"propina"`
	ImporteTotal                string             `xml:"importeTotal"`
	Moneda                      string             `xml:"moneda"`
	Pagos                       []pagoXML          `xml:"pagos>pago"`
}

type totalImpuestoXML struct {
	Codigo           string `xml:"codigo"`
	CodigoPorcentaje string `xml:"codigoPorcentaje"`
	BaseImponible    string `xml:"baseImponible"`
	Valor            string `xml:"valor"`
}

type pagoXML struct {
	FormaPago string `xml:"formaPago"`
	Total     string `xml:"total"`
}

type detalleXML struct {
	CodigoPrincipal        string        `xml:"codigoPrincipal"`
	Descripcion            string        `xml:"descripcion"`
	Cantidad               string        `xml:"cantidad"`
	PrecioUnitario         string        `xml:"precioUnitario"`
	Descuento              string        `xml:"descuento"`
	PrecioTotalSinImpuesto string        `xml:"precioTotalSinImpuesto"`
	Impuestos              []impuestoXML `xml:"impuestos>impuesto"`
}

type impuestoXML struct {
	Codigo           string `xml:"codigo"`
	CodigoPorcentaje string `xml:"codigoPorcentaje"`
	Tarifa           string `xml:"tarifa"`
	BaseImponible    string `xml:"baseImponible"`
	Valor            string `xml:"valor"`
}

const codigoImpuestoIVA = "2"

// CodigoPorcentajeIVA maps a VAT fraction to the tabla 17 code.
func CodigoPorcentajeIVA(tarifa decimal.Decimal) string {
	switch tarifa.Mul(decimal.NewFromInt(100)).StringFixed(0) {
	case "0":
		return "0"
	case "12":
		return "2"
	case "14":
		return "3"
	case "15":
		return "4"
	case "5":
		return "5"
	case "13":
		return "10"
	case "8":
		return "8"
	}
	return "4"
}

// ConstruirFacturaXML renders the unsigned factura v1.1.0 document.
func ConstruirFacturaXML(d DatosFactura) ([]byte, error) {
	if len(d.Lineas) == 0 {
		return nil, fmt.Errorf("xml: factura sin detalles")
	}
	cero := decimal.Zero
	codTarifa := CodigoPorcentajeIVA(d.TarifaIVA)
	tarifaPct := d.TarifaIVA.Mul(decimal.NewFromInt(100)).StringFixed(0)

	baseGravada, baseCero := cero, cero
	detalles := make([]detalleXML, 0, len(d.Lineas))
	for _, l := range d.Lineas {
		imp := impuestoXML{
			Codigo:           codigoImpuestoIVA,
			CodigoPorcentaje: "0",
			Tarifa:           "0",
			BaseImponible:    l.Subtotal.StringFixed(2),
			Valor:            "0.00",
		}
		if l.AplicaIVA {
			imp.CodigoPorcentaje = codTarifa
			imp.Tarifa = tarifaPct
			imp.Valor = l.ValorIVA.StringFixed(2)
			baseGravada = baseGravada.Add(l.Subtotal)
		} else {
			baseCero = baseCero.Add(l.Subtotal)
		}
		detalles = append(detalles, detalleXML{
			CodigoPrincipal:        l.Codigo,
			Descripcion:            l.Descripcion,
			Cantidad:               l.Cantidad.StringFixed(2),
			PrecioUnitario:         l.PrecioUnitario.StringFixed(4),
			Descuento:              "0.00",
			PrecioTotalSinImpuesto: l.Subtotal.StringFixed(2),
			Impuestos:              []impuestoXML{imp},
		})
	}

	var totales []totalImpuestoXML
	if !baseCero.IsZero() || baseGravada.IsZero() {
		totales = append(totales, totalImpuestoXML{
			Codigo: codigoImpuestoIVA, CodigoPorcentaje: "0",
			BaseImponible: baseCero.StringFixed(2), Valor: "0.00",
		})
	}
	if !baseGravada.IsZero() {
		totales = append(totales, totalImpuestoXML{
			Codigo: codigoImpuestoIVA, CodigoPorcentaje: codTarifa,
			BaseImponible: baseGravada.StringFixed(2), Valor: d.Impuestos.StringFixed(2),
		})
	}

	obligado := "NO"
	if d.Emisor.ObligadoContabilidad {
		obligado = "SI"
	}
	formaPago := d.FormaPago
	if formaPago == "" {
		formaPago = FormaPagoSinSistemaFinanciero
	}

	doc := facturaXML{
		ID:      "comprobante",
		Version: "1.1.0",
		InfoTributaria: infoTributariaXML{
			Ambiente:        d.Ambiente,
			TipoEmision:     d.TipoEmision,
			RazonSocial:     d.Emisor.RazonSocial,
			NombreComercial: d.Emisor.NombreComercial,
			RUC:             d.Emisor.RUC,
			ClaveAcceso:     d.ClaveAcceso,
			CodDoc:          DocFactura,
			Estab:           d.Establecimiento,
			PtoEmi:          d.PuntoEmision,
			Secuencial:      FormatearSecuencial(d.Secuencial),
			DirMatriz:       d.Emisor.DireccionMatriz,
		},
		InfoFactura: infoFacturaXML{
			FechaEmision:                d.FechaEmision.Format("02/01/2006"),
			DirEstablecimiento:          d.Emisor.DireccionMatriz,
			ObligadoContabilidad:        obligado,
			TipoIdentificacionComprador: string(d.Comprador.Tipo),
			RazonSocialComprador:        d.Comprador.RazonSocial,
			IdentificacionComprador:     d.Comprador.Identificacion,
			DireccionComprador:          d.Comprador.Direccion,
			TotalSinImpuestos:           d.Subtotal.StringFixed(2),
			TotalDescuento:              "0.00",
			TotalConImpuestos:           totales,
			Propina:                     "0.00",
			ImporteTotal:                d.Total.StringFixed(2),
			Moneda:                      "DOLAR",
			Pagos:                       []pagoXML{{FormaPago: formaPago, Total: d.Total.StringFixed(2)}},
		},
		Detalles: detalles,
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("xml: marshal factura: %w", err)
	}
	return out, nil
}
