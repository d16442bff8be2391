package infra

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/sri"
)

// ErrSRIUnavailable wraps every transport-level failure: timeouts, refused
// connections, 5xx and SOAP faults. Callers treat it as retryable.
var ErrSRIUnavailable = errors.New("sri: servicio no disponible")

// SRIClient talks to the reception and authorization SOAP web services.
type SRIClient struct {
	recepcionURL    string
	autorizacionURL string
	httpClient      *http.Client
}

func NewSRIClient(recepcionURL, autorizacionURL string) *SRIClient {
	return &SRIClient{
		recepcionURL:    recepcionURL,
		autorizacionURL: autorizacionURL,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
	}
}

const envelopeRecepcion = `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ec="http://ec.gob.sri.ws.recepcion">` +
	`<soapenv:Header/><soapenv:Body><ec:validarComprobante><xml>%s</xml></ec:validarComprobante></soapenv:Body></soapenv:Envelope>`

const envelopeAutorizacion = `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ec="http://ec.gob.sri.ws.autorizacion">` +
	`<soapenv:Header/><soapenv:Body><ec:autorizacionComprobante><claveAccesoComprobante>%s</claveAccesoComprobante></ec:autorizacionComprobante></soapenv:Body></soapenv:Envelope>`

type mensajeSOAP struct {
	Identificador        string `xml:"identificador"`
	Mensaje              string `xml:"mensaje"`
	InformacionAdicional string `xml:"informacionAdicional"`
	Tipo                 string `xml:"tipo"`
}

type recepcionEnvelope struct {
	Estado   string        `xml:"Body>validarComprobanteResponse>RespuestaRecepcionComprobante>estado"`
	Mensajes []mensajeSOAP `xml:"Body>validarComprobanteResponse>RespuestaRecepcionComprobante>comprobantes>comprobante>mensajes>mensaje"`
	Fault    string        `xml:"Body>Fault>faultstring"`
}

type autorizacionSOAP struct {
	Estado             string        `xml:"estado"`
	NumeroAutorizacion string        `xml:"numeroAutorizacion"`
	FechaAutorizacion  string        `xml:"fechaAutorizacion"`
	Comprobante        string        `xml:"comprobante"`
	Mensajes           []mensajeSOAP `xml:"mensajes>mensaje"`
}

type autorizacionEnvelope struct {
	NumeroComprobantes string             `xml:"Body>autorizacionComprobanteResponse>RespuestaAutorizacionComprobante>numeroComprobantes"`
	Autorizaciones     []autorizacionSOAP `xml:"Body>autorizacionComprobanteResponse>RespuestaAutorizacionComprobante>autorizaciones>autorizacion"`
	Fault              string             `xml:"Body>Fault>faultstring"`
}

// Enviar posts a signed document to the reception service.
func (c *SRIClient) Enviar(ctx context.Context, xmlFirmado []byte) (sri.ResultadoEnvio, error) {
	body := fmt.Sprintf(envelopeRecepcion, base64.StdEncoding.EncodeToString(xmlFirmado))

	var env recepcionEnvelope
	if err := c.call(ctx, c.recepcionURL, body, &env); err != nil {
		return sri.ResultadoEnvio{Estado: sri.EnvioErrorRed}, err
	}
	if env.Fault != "" {
		return sri.ResultadoEnvio{Estado: sri.EnvioErrorRed}, fmt.Errorf("%w: %s", ErrSRIUnavailable, env.Fault)
	}

	res := sri.ResultadoEnvio{Mensajes: convertirMensajes(env.Mensajes), XMLFirmado: string(xmlFirmado)}
	switch strings.ToUpper(strings.TrimSpace(env.Estado)) {
	case string(sri.EnvioRecibida):
		res.Estado = sri.EnvioRecibida
	case string(sri.EnvioRechazada):
		res.Estado = sri.EnvioRechazada
	default:
		return sri.ResultadoEnvio{Estado: sri.EnvioErrorRed},
			fmt.Errorf("%w: estado de recepción desconocido %q", ErrSRIUnavailable, env.Estado)
	}
	return res, nil
}

// Consultar asks the authorization service for the state of a key.
func (c *SRIClient) Consultar(ctx context.Context, claveAcceso string) (sri.ResultadoAutorizacion, error) {
	body := fmt.Sprintf(envelopeAutorizacion, claveAcceso)

	var env autorizacionEnvelope
	if err := c.call(ctx, c.autorizacionURL, body, &env); err != nil {
		return sri.ResultadoAutorizacion{}, err
	}
	if env.Fault != "" {
		return sri.ResultadoAutorizacion{}, fmt.Errorf("%w: %s", ErrSRIUnavailable, env.Fault)
	}
	if strings.TrimSpace(env.NumeroComprobantes) == "0" || len(env.Autorizaciones) == 0 {
		return sri.ResultadoAutorizacion{Estado: sri.AutorizacionNoEncontrado}, nil
	}

	// The service returns every attempt; an authorization wins over older rejections.
	elegida := env.Autorizaciones[len(env.Autorizaciones)-1]
	for _, a := range env.Autorizaciones {
		if strings.EqualFold(strings.TrimSpace(a.Estado), string(sri.AutorizacionAutorizado)) {
			elegida = a
			break
		}
	}

	res := sri.ResultadoAutorizacion{
		Estado:             sri.EstadoAutorizacion(strings.ToUpper(strings.TrimSpace(elegida.Estado))),
		NumeroAutorizacion: strings.TrimSpace(elegida.NumeroAutorizacion),
		XMLAutorizado:      strings.TrimSpace(elegida.Comprobante),
		Mensajes:           convertirMensajes(elegida.Mensajes),
	}
	if t, ok := parseFechaSRI(elegida.FechaAutorizacion); ok {
		res.FechaAutorizacion = &t
	}
	switch res.Estado {
	case sri.AutorizacionAutorizado, sri.AutorizacionRechazada, sri.AutorizacionEnProceso:
	default:
		res.Estado = sri.AutorizacionEnProceso
	}
	return res, nil
}

func (c *SRIClient) call(ctx context.Context, url, body string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("sri: create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `""`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSRIUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrSRIUnavailable, err)
	}
	// SOAP faults come back as 500 with a parseable envelope.
	if resp.StatusCode >= 500 && !bytes.Contains(raw, []byte("Fault")) {
		return fmt.Errorf("%w: HTTP %d", ErrSRIUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 300 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: HTTP %d", ErrSRIUnavailable, resp.StatusCode)
	}
	if err := xml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrSRIUnavailable, err)
	}
	return nil
}

func convertirMensajes(in []mensajeSOAP) []sri.Mensaje {
	if len(in) == 0 {
		return nil
	}
	out := make([]sri.Mensaje, len(in))
	for i, m := range in {
		out[i] = sri.Mensaje{
			Identificador:        strings.TrimSpace(m.Identificador),
			Mensaje:              strings.TrimSpace(m.Mensaje),
			InformacionAdicional: strings.TrimSpace(m.InformacionAdicional),
			Tipo:                 strings.TrimSpace(m.Tipo),
		}
	}
	return out
}

var layoutsFechaSRI = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
}

func parseFechaSRI(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range layoutsFechaSRI {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
