package infra

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/sri"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const respuestaRecibida = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante><estado>RECIBIDA</estado><comprobantes/></RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse></soap:Body></soap:Envelope>`

const respuestaDevuelta = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante><estado>DEVUELTA</estado><comprobantes><comprobante>
<claveAcceso>0101202501179001093700110010010000006011234567811</claveAcceso>
<mensajes><mensaje><identificador>43</identificador><mensaje>CLAVE ACCESO REGISTRADA</mensaje><tipo>ERROR</tipo></mensaje></mensajes>
</comprobante></comprobantes></RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse></soap:Body></soap:Envelope>`

const respuestaAutorizada = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante><claveAccesoConsultada>X</claveAccesoConsultada><numeroComprobantes>2</numeroComprobantes>
<autorizaciones>
<autorizacion><estado>NO AUTORIZADO</estado><mensajes><mensaje><identificador>39</identificador><mensaje>FIRMA INVALIDA</mensaje><tipo>ERROR</tipo></mensaje></mensajes></autorizacion>
<autorizacion><estado>AUTORIZADO</estado><numeroAutorizacion>0101202501179001093700110010010000006011234567811</numeroAutorizacion>
<fechaAutorizacion>2025-01-01T10:15:00-05:00</fechaAutorizacion><ambiente>PRUEBAS</ambiente>
<comprobante><![CDATA[<?xml version="1.0" encoding="UTF-8"?><factura id="comprobante"></factura>]]></comprobante><mensajes/></autorizacion>
</autorizaciones></RespuestaAutorizacionComprobante>
</ns2:autorizacionComprobanteResponse></soap:Body></soap:Envelope>`

const respuestaSinComprobantes = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante><claveAccesoConsultada>X</claveAccesoConsultada><numeroComprobantes>0</numeroComprobantes><autorizaciones/></RespuestaAutorizacionComprobante>
</ns2:autorizacionComprobanteResponse></soap:Body></soap:Envelope>`

func servidorSRI(t *testing.T, status int, respuesta string, body *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if body != nil {
			*body = string(raw)
		}
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respuesta)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSRIClient_EnviarRecibida(t *testing.T) {
	var body string
	srv := servidorSRI(t, http.StatusOK, respuestaRecibida, &body)
	c := NewSRIClient(srv.URL, srv.URL)

	res, err := c.Enviar(context.Background(), []byte("<factura/>"))
	require.NoError(t, err)
	assert.Equal(t, sri.EnvioRecibida, res.Estado)

	m := regexp.MustCompile(`<xml>([^<]+)</xml>`).FindStringSubmatch(body)
	require.Len(t, m, 2)
	decoded, err := base64.StdEncoding.DecodeString(m[1])
	require.NoError(t, err)
	assert.Equal(t, "<factura/>", string(decoded))
}

func TestSRIClient_EnviarDevuelta(t *testing.T) {
	srv := servidorSRI(t, http.StatusOK, respuestaDevuelta, nil)
	res, err := NewSRIClient(srv.URL, srv.URL).Enviar(context.Background(), []byte("<factura/>"))
	require.NoError(t, err)
	assert.Equal(t, sri.EnvioRechazada, res.Estado)
	require.Len(t, res.Mensajes, 1)
	assert.Equal(t, "43", res.Mensajes[0].Identificador)
	assert.True(t, sri.YaRecibida(res.Mensajes))
}

func TestSRIClient_ErrorDeRed(t *testing.T) {
	srv := servidorSRI(t, http.StatusServiceUnavailable, "down", nil)
	res, err := NewSRIClient(srv.URL, srv.URL).Enviar(context.Background(), []byte("<factura/>"))
	assert.ErrorIs(t, err, ErrSRIUnavailable)
	assert.Equal(t, sri.EnvioErrorRed, res.Estado)

	_, err = NewSRIClient("http://127.0.0.1:1", "http://127.0.0.1:1").Consultar(context.Background(), "X")
	assert.ErrorIs(t, err, ErrSRIUnavailable)
}

func TestSRIClient_ConsultarPrefiereAutorizado(t *testing.T) {
	srv := servidorSRI(t, http.StatusOK, respuestaAutorizada, nil)
	res, err := NewSRIClient(srv.URL, srv.URL).Consultar(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, sri.AutorizacionAutorizado, res.Estado)
	assert.Equal(t, "0101202501179001093700110010010000006011234567811", res.NumeroAutorizacion)
	require.NotNil(t, res.FechaAutorizacion)
	assert.Equal(t, 15, res.FechaAutorizacion.UTC().Minute())
	assert.Contains(t, res.XMLAutorizado, `<factura id="comprobante">`)
}

func TestSRIClient_ConsultarNoEncontrado(t *testing.T) {
	srv := servidorSRI(t, http.StatusOK, respuestaSinComprobantes, nil)
	res, err := NewSRIClient(srv.URL, srv.URL).Consultar(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, sri.AutorizacionNoEncontrado, res.Estado)
}
