package infra

// pdf.go renders the RIDE (printable representation of the electronic
// invoice) with go-pdf/fpdf. A4 portrait:
//   - issuer block and fiscal block (number, access key, authorization)
//   - buyer block
//   - line table
//   - totals

import (
	"bytes"
	"fmt"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/config"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/go-pdf/fpdf"
)

// RIDERenderer holds the issuer data printed on every invoice.
type RIDERenderer struct {
	RUC         string
	RazonSocial string
	Direccion   string
}

func NewRIDERenderer(cfg *config.Config) *RIDERenderer {
	return &RIDERenderer{RUC: cfg.SRIRUC, RazonSocial: cfg.SRIRazonSocial, Direccion: cfg.SRIDireccionMatriz}
}

// RenderInvoice returns the PDF bytes for f.
func (r *RIDERenderer) RenderInvoice(f *model.Factura, s *model.Socio) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24
	half := contentW / 2

	// Issuer
	top := pdf.GetY()
	pdf.SetFont("Helvetica", "B", 12)
	pdf.MultiCell(half-4, 6, tr(r.RazonSocial), "", "L", false)
	pdf.SetFont("Helvetica", "", 8)
	pdf.MultiCell(half-4, 4, tr("Dirección matriz: "+r.Direccion), "", "L", false)
	pdf.CellFormat(half-4, 4, "RUC: "+r.RUC, "", 1, "L", false, 0, "")
	bottomLeft := pdf.GetY()

	// Fiscal block
	pdf.SetXY(12+half, top)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(half, 6, "FACTURA", "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(half, 4, tr("No. "+f.NumeroFactura()), "", 2, "L", false, 0, "")
	ambiente := "PRUEBAS"
	if f.Ambiente == 2 {
		ambiente = "PRODUCCIÓN"
	}
	pdf.CellFormat(half, 4, tr("Ambiente: "+ambiente), "", 2, "L", false, 0, "")
	pdf.CellFormat(half, 4, tr("Emisión: NORMAL"), "", 2, "L", false, 0, "")
	if f.NumeroAutorizacion != nil {
		pdf.CellFormat(half, 4, tr("Autorización: "+*f.NumeroAutorizacion), "", 2, "L", false, 0, "")
	}
	if f.FechaAutorizacion != nil {
		pdf.CellFormat(half, 4, tr("Fecha autorización: "+f.FechaAutorizacion.Format("02/01/2006 15:04:05")), "", 2, "L", false, 0, "")
	}
	pdf.CellFormat(half, 4, "Clave de acceso:", "", 2, "L", false, 0, "")
	pdf.SetFont("Courier", "", 7)
	pdf.CellFormat(half, 4, f.ClaveAcceso, "", 2, "L", false, 0, "")

	if y := pdf.GetY(); y > bottomLeft {
		bottomLeft = y
	}
	pdf.SetXY(12, bottomLeft+4)

	// Buyer
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, tr("Razón social: "+s.NombreCompleto()), "LTR", 1, "L", false, 0, "")
	pdf.CellFormat(half, 5, tr("Identificación: "+s.Identificacion), "L", 0, "L", false, 0, "")
	pdf.CellFormat(half, 5, tr("Fecha emisión: "+f.FechaEmision.Format("02/01/2006")), "R", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, tr("Dirección: "+s.Direccion), "LBR", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Lines
	cols := []float64{contentW * 0.14, contentW * 0.44, contentW * 0.12, contentW * 0.14, contentW * 0.16}
	headers := []string{"Código", "Descripción", "Cant.", "P. Unit.", "Subtotal"}
	pdf.SetFont("Helvetica", "B", 8)
	for i, h := range headers {
		pdf.CellFormat(cols[i], 6, tr(h), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 8)
	for _, d := range f.Detalles {
		pdf.CellFormat(cols[0], 5, d.Codigo, "1", 0, "L", false, 0, "")
		pdf.CellFormat(cols[1], 5, tr(d.Concepto), "1", 0, "L", false, 0, "")
		pdf.CellFormat(cols[2], 5, d.Cantidad.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(cols[3], 5, d.PrecioUnitario.StringFixed(4), "1", 0, "R", false, 0, "")
		pdf.CellFormat(cols[4], 5, d.Subtotal.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	// Totals
	pdf.Ln(3)
	labelW := cols[0] + cols[1] + cols[2] + cols[3]
	for _, row := range []struct{ label, value string }{
		{"SUBTOTAL", f.Subtotal.StringFixed(2)},
		{"IVA", f.Impuestos.StringFixed(2)},
		{"VALOR TOTAL", f.Total.StringFixed(2)},
	} {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(labelW, 5, row.label, "", 0, "R", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(cols[4], 5, "$"+row.value, "1", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render factura %s: %w", f.NumeroFactura(), err)
	}
	return buf.Bytes(), nil
}
