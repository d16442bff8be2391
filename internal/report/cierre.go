package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// FilaMetodo is one tender method total of the closure.
type FilaMetodo struct {
	Metodo   string
	Total    decimal.Decimal
	Cantidad int
}

// FilaPago is one validated receipt of the closure.
type FilaPago struct {
	Recibo  string
	Fecha   time.Time
	Socio   string
	Metodos []string
	Monto   decimal.Decimal
}

// CierreDiario is the input of the XLSX export.
type CierreDiario struct {
	Desde     time.Time
	Hasta     time.Time
	Total     decimal.Decimal
	Cantidad  int
	PorMetodo []FilaMetodo
	Pagos     []FilaPago
}

const (
	hojaResumen = "Resumen"
	hojaPagos   = "Pagos"
)

// CierreXLSX renders the closure as a workbook with a summary sheet and one
// row per receipt.
func CierreXLSX(c CierreDiario) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	file.SetSheetName("Sheet1", hojaResumen)
	writeResumen(file, c)

	if _, err := file.NewSheet(hojaPagos); err != nil {
		return nil, fmt.Errorf("cierre: %w", err)
	}
	writePagos(file, c.Pagos)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("cierre: %w", err)
	}
	return buf.Bytes(), nil
}

func writeResumen(file *excelize.File, c CierreDiario) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(hojaResumen, cell, value)
	}

	set("A1", "Cierre de caja")
	set("A2", "Desde")
	set("B2", formatDateTime(c.Desde))
	set("A3", "Hasta")
	set("B3", formatDateTime(c.Hasta))
	set("A4", "Cantidad de pagos")
	set("B4", c.Cantidad)
	set("A5", "Total recaudado")
	set("B5", money(c.Total))

	tableRow := 7
	set(fmt.Sprintf("A%d", tableRow), "Método")
	set(fmt.Sprintf("B%d", tableRow), "Pagos")
	set(fmt.Sprintf("C%d", tableRow), "Total")
	for i, m := range c.PorMetodo {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), m.Metodo)
		set(fmt.Sprintf("B%d", row), m.Cantidad)
		set(fmt.Sprintf("C%d", row), money(m.Total))
	}

	_ = file.SetColWidth(hojaResumen, "A", "A", 24)
	_ = file.SetColWidth(hojaResumen, "B", "C", 18)
}

func writePagos(file *excelize.File, pagos []FilaPago) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(hojaPagos, cell, value)
	}

	headers := []string{"Recibo", "Fecha", "Socio", "Métodos", "Monto"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, h)
	}
	for i, p := range pagos {
		row := i + 2
		set(fmt.Sprintf("A%d", row), p.Recibo)
		set(fmt.Sprintf("B%d", row), formatDateTime(p.Fecha))
		set(fmt.Sprintf("C%d", row), p.Socio)
		set(fmt.Sprintf("D%d", row), strings.Join(p.Metodos, ", "))
		set(fmt.Sprintf("E%d", row), money(p.Monto))
	}

	_ = file.SetColWidth(hojaPagos, "A", "A", 22)
	_ = file.SetColWidth(hojaPagos, "B", "B", 18)
	_ = file.SetColWidth(hojaPagos, "C", "C", 40)
	_ = file.SetColWidth(hojaPagos, "D", "D", 28)
	_ = file.SetColWidth(hojaPagos, "E", "E", 14)
}

// money keeps two decimals; excelize stores float64 as a numeric cell.
func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02.01.2006 15:04")
}
