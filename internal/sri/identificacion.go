package sri

import (
	"errors"
	"fmt"
)

// TipoIdentificacion is the SRI buyer identification code.
type TipoIdentificacion string

const (
	IdentificacionRUC    TipoIdentificacion = "04"
	IdentificacionCedula TipoIdentificacion = "05"
	ConsumidorFinal      TipoIdentificacion = "07"
)

// ConsumidorFinalID is the fixed identification for anonymous buyers.
const ConsumidorFinalID = "9999999999999"

var ErrIdentificacionInvalida = errors.New("identificacion invalida")

// ValidarIdentificacion accepts a 10-digit cedula or a 13-digit RUC.
func ValidarIdentificacion(id string) (TipoIdentificacion, error) {
	switch len(id) {
	case 10:
		return IdentificacionCedula, ValidarCedula(id)
	case 13:
		return IdentificacionRUC, ValidarRUC(id)
	default:
		return "", fmt.Errorf("%w: longitud %d", ErrIdentificacionInvalida, len(id))
	}
}

// ValidarCedula applies the mod-10 check of the national identity card.
func ValidarCedula(id string) error {
	d, err := digitos(id, 10)
	if err != nil {
		return err
	}
	if err := validarProvincia(d); err != nil {
		return err
	}
	if d[2] >= 6 {
		return fmt.Errorf("%w: tercer digito %d", ErrIdentificacionInvalida, d[2])
	}
	coef := [9]int{2, 1, 2, 1, 2, 1, 2, 1, 2}
	suma := 0
	for i, c := range coef {
		p := d[i] * c
		if p >= 10 {
			p -= 9
		}
		suma += p
	}
	verificador := (10 - suma%10) % 10
	if verificador != d[9] {
		return fmt.Errorf("%w: digito verificador", ErrIdentificacionInvalida)
	}
	return nil
}

// ValidarRUC validates natural-person, public-entity and company RUCs.
func ValidarRUC(id string) error {
	d, err := digitos(id, 13)
	if err != nil {
		return err
	}
	if err := validarProvincia(d); err != nil {
		return err
	}
	switch {
	case d[2] < 6:
		if err := ValidarCedula(id[:10]); err != nil {
			return err
		}
		return sufijoNoCero(id[10:])
	case d[2] == 6:
		if err := modulo11(d[:9], []int{3, 2, 7, 6, 5, 4, 3, 2}); err != nil {
			return err
		}
		return sufijoNoCero(id[9:])
	case d[2] == 9:
		if err := modulo11(d[:10], []int{4, 3, 2, 7, 6, 5, 4, 3, 2}); err != nil {
			return err
		}
		return sufijoNoCero(id[10:])
	}
	return fmt.Errorf("%w: tercer digito %d", ErrIdentificacionInvalida, d[2])
}

// modulo11 checks the last digit of d against the weighted prefix.
func modulo11(d []int, pesos []int) error {
	suma := 0
	for i, p := range pesos {
		suma += d[i] * p
	}
	verificador := 11 - suma%11
	if verificador == 11 {
		verificador = 0
	}
	if verificador == 10 || verificador != d[len(pesos)] {
		return fmt.Errorf("%w: digito verificador", ErrIdentificacionInvalida)
	}
	return nil
}

func validarProvincia(d []int) error {
	prov := d[0]*10 + d[1]
	if (prov < 1 || prov > 24) && prov != 30 {
		return fmt.Errorf("%w: provincia %02d", ErrIdentificacionInvalida, prov)
	}
	return nil
}

func sufijoNoCero(s string) error {
	for _, r := range s {
		if r != '0' {
			return nil
		}
	}
	return fmt.Errorf("%w: establecimiento %s", ErrIdentificacionInvalida, s)
}

func digitos(s string, n int) ([]int, error) {
	if len(s) != n {
		return nil, fmt.Errorf("%w: se esperaban %d digitos", ErrIdentificacionInvalida, n)
	}
	out := make([]int, n)
	for i, r := range s {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("%w: caracter no numerico", ErrIdentificacionInvalida)
		}
		out[i] = int(r - '0')
	}
	return out, nil
}
