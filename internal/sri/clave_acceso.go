package sri

import (
	"fmt"
	"strconv"
	"time"
)

// Document type codes (tabla 3 of the SRI technical sheet).
const (
	DocFactura     = "01"
	DocNotaCredito = "04"
)

const (
	AmbientePruebas    = 1
	AmbienteProduccion = 2
	EmisionNormal      = 1
)

// LongitudClave is the fixed access key length.
const LongitudClave = 49

// ParametrosClave groups the positional fields of an access key.
type ParametrosClave struct {
	FechaEmision    time.Time
	TipoDocumento   string
	RUC             string
	Ambiente        int
	Establecimiento string
	PuntoEmision    string
	Secuencial      int64
	CodigoNumerico  string
	TipoEmision     int
}

// GenerarClaveAcceso builds the 49-character access key. The result depends
// only on p.
func GenerarClaveAcceso(p ParametrosClave) (string, error) {
	if len(p.TipoDocumento) != 2 {
		return "", fmt.Errorf("clave: tipo de documento %q", p.TipoDocumento)
	}
	if len(p.RUC) != 13 {
		return "", fmt.Errorf("clave: ruc %q", p.RUC)
	}
	if p.Ambiente != AmbientePruebas && p.Ambiente != AmbienteProduccion {
		return "", fmt.Errorf("clave: ambiente %d", p.Ambiente)
	}
	if len(p.Establecimiento) != 3 || len(p.PuntoEmision) != 3 {
		return "", fmt.Errorf("clave: establecimiento/punto %q/%q", p.Establecimiento, p.PuntoEmision)
	}
	if p.Secuencial <= 0 || p.Secuencial > 999999999 {
		return "", fmt.Errorf("clave: secuencial %d fuera de rango", p.Secuencial)
	}
	if len(p.CodigoNumerico) != 8 {
		return "", fmt.Errorf("clave: codigo numerico %q", p.CodigoNumerico)
	}
	if p.TipoEmision < 1 || p.TipoEmision > 9 {
		return "", fmt.Errorf("clave: tipo de emision %d", p.TipoEmision)
	}

	base := p.FechaEmision.Format("02012006") +
		p.TipoDocumento +
		p.RUC +
		strconv.Itoa(p.Ambiente) +
		p.Establecimiento +
		p.PuntoEmision +
		FormatearSecuencial(p.Secuencial) +
		p.CodigoNumerico +
		strconv.Itoa(p.TipoEmision)

	for _, r := range base {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("clave: caracter no numerico en %q", base)
		}
	}
	return base + strconv.Itoa(DigitoVerificador(base)), nil
}

// DigitoVerificador computes the mod-11 check digit with weights 2..7
// applied right to left.
func DigitoVerificador(digitos string) int {
	suma, peso := 0, 2
	for i := len(digitos) - 1; i >= 0; i-- {
		suma += int(digitos[i]-'0') * peso
		peso++
		if peso > 7 {
			peso = 2
		}
	}
	d := 11 - suma%11
	switch d {
	case 11:
		return 0
	case 10:
		return 1
	}
	return d
}

// ValidarClaveAcceso checks length, digits and check digit.
func ValidarClaveAcceso(clave string) error {
	if len(clave) != LongitudClave {
		return fmt.Errorf("clave: longitud %d", len(clave))
	}
	for _, r := range clave {
		if r < '0' || r > '9' {
			return fmt.Errorf("clave: caracter no numerico")
		}
	}
	if DigitoVerificador(clave[:48]) != int(clave[48]-'0') {
		return fmt.Errorf("clave: digito verificador invalido")
	}
	return nil
}

// FormatearSecuencial left-pads a sequential to 9 digits.
func FormatearSecuencial(n int64) string { return fmt.Sprintf("%09d", n) }

// NumeroDocumento renders the printed number, e.g. 001-001-000000601.
func NumeroDocumento(establecimiento, punto string, secuencial int64) string {
	return establecimiento + "-" + punto + "-" + FormatearSecuencial(secuencial)
}
