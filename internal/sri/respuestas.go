package sri

import (
	"strings"
	"time"
)

// EstadoEnvio is the outcome of the reception web service.
type EstadoEnvio string

const (
	EnvioRecibida  EstadoEnvio = "RECIBIDA"
	EnvioRechazada EstadoEnvio = "DEVUELTA"
	EnvioErrorRed  EstadoEnvio = "ERROR_RED"
)

// EstadoAutorizacion is the outcome of the authorization web service.
type EstadoAutorizacion string

const (
	AutorizacionAutorizado   EstadoAutorizacion = "AUTORIZADO"
	AutorizacionEnProceso    EstadoAutorizacion = "EN PROCESO"
	AutorizacionNoEncontrado EstadoAutorizacion = "NO ENCONTRADO"
	AutorizacionRechazada    EstadoAutorizacion = "NO AUTORIZADO"
)

// Mensaje is one entry of the SRI message list.
type Mensaje struct {
	Identificador        string `json:"identificador"`
	Mensaje              string `json:"mensaje"`
	InformacionAdicional string `json:"informacion_adicional,omitempty"`
	Tipo                 string `json:"tipo"`
}

func (m Mensaje) String() string {
	s := m.Identificador + ": " + m.Mensaje
	if m.InformacionAdicional != "" {
		s += " (" + m.InformacionAdicional + ")"
	}
	return s
}

// Textos flattens messages for logs and error payloads.
func Textos(ms []Mensaje) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.String()
	}
	return out
}

// ResultadoEnvio is returned by SignAndSubmit.
type ResultadoEnvio struct {
	Estado     EstadoEnvio
	Mensajes   []Mensaje
	XMLFirmado string
}

// ResultadoAutorizacion is returned by ConsultAuthorization.
type ResultadoAutorizacion struct {
	Estado             EstadoAutorizacion
	NumeroAutorizacion string
	FechaAutorizacion  *time.Time
	XMLAutorizado      string
	Mensajes           []Mensaje
}

const (
	// CodigoClaveRegistrada means the authority already holds this key.
	CodigoClaveRegistrada = "43"
)

// Clasificador decides whether a rejection can be corrected and resent
// under the same access key. The code list comes from configuration.
type Clasificador struct {
	recuperables map[string]bool
}

// DefaultCodigosRecuperables lists reception errors that leave the key unused.
var DefaultCodigosRecuperables = []string{"35", "36", "37", "39", "52", "65"}

func NewClasificador(codigos []string) *Clasificador {
	c := &Clasificador{recuperables: make(map[string]bool, len(codigos))}
	for _, cod := range codigos {
		if cod = strings.TrimSpace(cod); cod != "" {
			c.recuperables[cod] = true
		}
	}
	return c
}

// EsRecuperable is true when every ERROR message code is in the list.
// Warnings are ignored. A rejection without error codes is terminal.
func (c *Clasificador) EsRecuperable(ms []Mensaje) bool {
	errores := 0
	for _, m := range ms {
		if m.Tipo != "" && !strings.EqualFold(m.Tipo, "ERROR") {
			continue
		}
		errores++
		if !c.recuperables[m.Identificador] {
			return false
		}
	}
	return errores > 0
}

// YaRecibida reports a rejection that only says the key is already registered.
func YaRecibida(ms []Mensaje) bool {
	for _, m := range ms {
		if m.Identificador == CodigoClaveRegistrada {
			return true
		}
	}
	return false
}
