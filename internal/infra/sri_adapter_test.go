package infra

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/config"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/sri"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firmadorPrueba(t *testing.T) *sri.Firmador {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "JUNTA PRUEBA"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return sri.NewFirmador(key, cert)
}

func configPrueba() *config.Config {
	return &config.Config{
		SRIRUC:             "1790010937001",
		SRIRazonSocial:     "JUNTA DE AGUA",
		SRIDireccionMatriz: "Calle 1",
		SRICodigoNumerico:  "12345678",
		IVATarifa:          decimal.RequireFromString("0.15"),
	}
}

func facturaAdapter() (*model.Factura, *model.Socio) {
	f := &model.Factura{
		Ambiente: 1, TipoEmision: 1, Establecimiento: "001", PuntoEmision: "001", Secuencial: 601,
		ClaveAcceso:  "0101202501179001093700110010010000006011234567811",
		FechaEmision: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Subtotal:     decimal.RequireFromString("3.00"), Total: decimal.RequireFromString("3.00"),
		Detalles: []model.DetalleFactura{{Codigo: "AGUA", Concepto: "Base (15 m³)", Cantidad: decimal.NewFromInt(1),
			PrecioUnitario: decimal.RequireFromString("3"), Subtotal: decimal.RequireFromString("3.00")}},
	}
	return f, &model.Socio{Identificacion: "1710034065", Nombres: "Juan", Apellidos: "Perez"}
}

func TestSRIAdapter_SinCertificado(t *testing.T) {
	a := NewSRIAdapter(configPrueba(), NewSRIClient("http://127.0.0.1:1", "http://127.0.0.1:1"), nil, "test")
	f, s := facturaAdapter()
	res, err := a.SignAndSubmit(context.Background(), f, s)
	assert.ErrorIs(t, err, ErrSRIUnavailable)
	assert.Equal(t, sri.EnvioErrorRed, res.Estado)
}

func TestSRIAdapter_FirmaYEnvia(t *testing.T) {
	var body string
	srv := servidorSRI(t, http.StatusOK, respuestaRecibida, &body)
	a := NewSRIAdapter(configPrueba(), NewSRIClient(srv.URL, srv.URL), firmadorPrueba(t), "test")

	f, s := facturaAdapter()
	res, err := a.SignAndSubmit(context.Background(), f, s)
	require.NoError(t, err)
	assert.Equal(t, sri.EnvioRecibida, res.Estado)
	assert.Contains(t, res.XMLFirmado, "<ds:Signature")
	assert.Contains(t, res.XMLFirmado, "<identificacionComprador>1710034065</identificacionComprador>")
	assert.Contains(t, body, "validarComprobante")
}

func TestSRIAdapter_BreakerAbreTrasFallasDeRed(t *testing.T) {
	srv := servidorSRI(t, http.StatusBadGateway, "", nil)
	a := NewSRIAdapter(configPrueba(), NewSRIClient(srv.URL, srv.URL), firmadorPrueba(t), "test")
	for i := 0; i < 5; i++ {
		_, err := a.ConsultAuthorization(context.Background(), "X")
		require.ErrorIs(t, err, ErrSRIUnavailable)
	}
	assert.Equal(t, CBOpen, a.Breaker().State())

	_, err := a.ConsultAuthorization(context.Background(), "X")
	assert.ErrorIs(t, err, ErrSRIUnavailable)
}

func TestSRIAdapter_GenerateAccessKeyUsaCodigoConfigurado(t *testing.T) {
	a := NewSRIAdapter(configPrueba(), NewSRIClient("", ""), nil, "test")
	clave, err := a.GenerateAccessKey(sri.ParametrosClave{
		FechaEmision: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), TipoDocumento: sri.DocFactura,
		RUC: "1790010937001", Ambiente: sri.AmbientePruebas, Establecimiento: "001", PuntoEmision: "001",
		Secuencial: 601, TipoEmision: sri.EmisionNormal,
	})
	require.NoError(t, err)
	assert.Len(t, clave, sri.LongitudClave)
	assert.Equal(t, "12345678", clave[39:47])
}
