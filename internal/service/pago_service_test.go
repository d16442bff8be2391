package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pagoFixture struct {
	*ledgerFixture
	svc        PagoService
	evidencias *fakeEvidencias
	observer   *fakeObserver
}

func newPagoFixture() *pagoFixture {
	lf := newLedgerFixture()
	fx := &pagoFixture{ledgerFixture: lf, evidencias: newFakeEvidencias(), observer: &fakeObserver{}}
	fx.svc = NewPagoService(fakeTx{}, lf.pagos, lf.facturas, lf.cuentas, lf.socios, lf.auditoria,
		lf.svc, fx.evidencias, &fakeRecibos{}, fx.observer, relojFijo())
	return fx
}

// factura seeds a PENDIENTE invoice backed by one receivable per amount.
func (fx *pagoFixture) factura(montos ...string) model.Factura {
	f := model.Factura{
		ID: uuid.New(), SocioID: fx.socio.ID, Establecimiento: "001", PuntoEmision: "001",
		Secuencial: 7, Estado: model.FacturaPendiente,
	}
	fx.facturas.rows[f.ID] = f
	for _, m := range montos {
		fx.deuda(m, mes(time.February), &f.ID)
	}
	return f
}

func efectivo(monto string) []LineaPago {
	return []LineaPago{{Metodo: model.MetodoEfectivo, Monto: dec(monto)}}
}

func TestRecordAtCounter_FacturaExacta(t *testing.T) {
	fx := newPagoFixture()
	ctx := context.Background()
	f := fx.factura("3.00", "2.00")

	_, err := fx.svc.RecordAtCounter(ctx, PagoCaja{SocioID: fx.socio.ID, FacturaID: &f.ID, Lineas: efectivo("4.99")})
	assert.True(t, apperror.IsRule(err, apperror.RulePaymentAmountMismatch))
	assert.Empty(t, fx.pagos.rows)

	ref := "CH-991"
	p, err := fx.svc.RecordAtCounter(ctx, PagoCaja{
		SocioID:   fx.socio.ID,
		FacturaID: &f.ID,
		Lineas: []LineaPago{
			{Metodo: model.MetodoEfectivo, Monto: dec("1.50")},
			{Metodo: model.MetodoCheque, Monto: dec("3.50"), Referencia: &ref},
		},
	})
	require.NoError(t, err)
	assert.True(t, p.Validado)
	assert.Equal(t, "REC-0001", p.NumeroRecibo)
	assert.True(t, p.MontoTotal.Equal(dec("5")))
	assert.Len(t, p.Detalles, 2)
	assert.Len(t, p.Aplicaciones, 2)
	assert.Equal(t, model.FacturaPagada, fx.facturas.get(f.ID).Estado)
	assert.Equal(t, []uuid.UUID{fx.socio.ID}, fx.observer.socios)

	_, err = fx.svc.RecordAtCounter(ctx, PagoCaja{SocioID: fx.socio.ID, FacturaID: &f.ID, Lineas: efectivo("5")})
	assert.True(t, apperror.IsRule(err, apperror.RuleInvoiceAlreadyPaid))
}

func TestRecordAtCounter_AnticipoFIFO(t *testing.T) {
	fx := newPagoFixture()
	vieja := fx.deuda("4.00", mes(time.January), nil)
	nueva := fx.deuda("4.00", mes(time.February), nil)

	p, err := fx.svc.RecordAtCounter(context.Background(), PagoCaja{SocioID: fx.socio.ID, Lineas: efectivo("6")})
	require.NoError(t, err)
	require.Len(t, p.Aplicaciones, 2)
	assert.Nil(t, p.FacturaID)
	assert.Equal(t, model.CxCPagada, fx.cuentas.get(vieja.ID).Estado)
	assert.True(t, fx.cuentas.get(nueva.ID).SaldoPendiente.Equal(dec("2")))
}

func TestRecordAtCounter_Validaciones(t *testing.T) {
	fx := newPagoFixture()
	ctx := context.Background()

	_, err := fx.svc.RecordAtCounter(ctx, PagoCaja{SocioID: fx.socio.ID})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	_, err = fx.svc.RecordAtCounter(ctx, PagoCaja{SocioID: fx.socio.ID, Lineas: []LineaPago{{Metodo: "BITCOIN", Monto: dec("1")}}})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	_, err = fx.svc.RecordAtCounter(ctx, PagoCaja{SocioID: fx.socio.ID, Lineas: efectivo("0")})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	otro := fx.factura("2.00")
	otro.SocioID = uuid.New()
	fx.facturas.rows[otro.ID] = otro
	_, err = fx.svc.RecordAtCounter(ctx, PagoCaja{SocioID: fx.socio.ID, FacturaID: &otro.ID, Lineas: efectivo("2")})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestRecordAtCounter_ObserverFallaNoDeshaceElPago(t *testing.T) {
	fx := newPagoFixture()
	fx.observer.err = errors.New("cola caída")
	fx.deuda("3.00", mes(time.January), nil)

	p, err := fx.svc.RecordAtCounter(context.Background(), PagoCaja{SocioID: fx.socio.ID, Lineas: efectivo("3")})
	require.NoError(t, err)
	assert.Contains(t, fx.pagos.rows, p.ID)
}

func TestReportTransfer(t *testing.T) {
	fx := newPagoFixture()
	ctx := context.Background()
	f := fx.factura("5.00")

	_, err := fx.svc.ReportTransfer(ctx, ReporteTransferencia{SocioID: fx.socio.ID, FacturaID: f.ID, Monto: dec("5")})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation), "sin referencia")

	_, err = fx.svc.ReportTransfer(ctx, ReporteTransferencia{
		SocioID: fx.socio.ID, FacturaID: f.ID, Monto: dec("6"), Referencia: "TX-1",
		Evidencia: &Evidencia{Filename: "voucher.jpg", Content: strings.NewReader("jpg")},
	})
	assert.True(t, apperror.IsRule(err, apperror.RuleOverpaymentRejected))
	assert.Empty(t, fx.evidencias.files, "la evidencia se borra si la transacción falla")

	p, err := fx.svc.ReportTransfer(ctx, ReporteTransferencia{
		SocioID: fx.socio.ID, FacturaID: f.ID, Monto: dec("5"), Referencia: "TX-2",
		Evidencia: &Evidencia{Filename: "voucher.jpg", Content: strings.NewReader("jpg")},
	})
	require.NoError(t, err)
	assert.False(t, p.Validado)
	require.Len(t, p.Detalles, 1)
	assert.Equal(t, model.MetodoTransferencia, p.Detalles[0].Metodo)
	require.NotNil(t, p.Detalles[0].EvidenciaPath)
	assert.Contains(t, fx.evidencias.files, *p.Detalles[0].EvidenciaPath)
	assert.Equal(t, model.FacturaPorValidar, fx.facturas.get(f.ID).Estado)
	assert.Empty(t, fx.pagos.apps, "no se imputa hasta validar")

	_, err = fx.svc.ReportTransfer(ctx, ReporteTransferencia{SocioID: fx.socio.ID, FacturaID: f.ID, Monto: dec("5"), Referencia: "TX-3"})
	assert.True(t, apperror.IsRule(err, apperror.RuleTransferPending))
	_, err = fx.svc.RecordAtCounter(ctx, PagoCaja{SocioID: fx.socio.ID, FacturaID: &f.ID, Lineas: efectivo("5")})
	assert.True(t, apperror.IsRule(err, apperror.RuleTransferPending))
}

func (fx *pagoFixture) transferencia(t *testing.T, f model.Factura, monto string) *model.Pago {
	t.Helper()
	p, err := fx.svc.ReportTransfer(context.Background(), ReporteTransferencia{
		SocioID: fx.socio.ID, FacturaID: f.ID, Monto: dec(monto), Referencia: "TX-" + monto,
		Evidencia: &Evidencia{Filename: "v.png", Content: strings.NewReader("png")},
	})
	require.NoError(t, err)
	return p
}

func TestValidateTransfer_Aprobar(t *testing.T) {
	fx := newPagoFixture()
	ctx := context.Background()
	f := fx.factura("5.00")
	p := fx.transferencia(t, f, "5")

	admin := uuid.New()
	out, err := fx.svc.ValidateTransfer(ctx, p.ID, DecisionAprobar, "", &admin)
	require.NoError(t, err)
	assert.True(t, out.Validado)
	assert.Equal(t, hoyFijo, out.FechaPago)
	assert.Len(t, out.Aplicaciones, 1)
	assert.Equal(t, model.FacturaPagada, fx.facturas.get(f.ID).Estado)
	assert.Empty(t, fx.evidencias.files)
	assert.Equal(t, []string{"VALIDAR_TRANSFERENCIA"}, fx.auditoria.acciones())
	assert.Equal(t, []uuid.UUID{fx.socio.ID}, fx.observer.socios)

	_, err = fx.svc.ValidateTransfer(ctx, p.ID, DecisionAprobar, "", &admin)
	assert.True(t, apperror.IsRule(err, apperror.RulePaymentAlreadyValidated))
}

func TestValidateTransfer_AprobarParcialLiberaFactura(t *testing.T) {
	fx := newPagoFixture()
	f := fx.factura("5.00")
	p := fx.transferencia(t, f, "2")

	_, err := fx.svc.ValidateTransfer(context.Background(), p.ID, DecisionAprobar, "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.FacturaPendiente, fx.facturas.get(f.ID).Estado)

	_, err = fx.svc.RecordAtCounter(context.Background(), PagoCaja{SocioID: fx.socio.ID, FacturaID: &f.ID, Lineas: efectivo("3")})
	require.NoError(t, err)
	assert.Equal(t, model.FacturaPagada, fx.facturas.get(f.ID).Estado)
}

func TestValidateTransfer_Rechazar(t *testing.T) {
	fx := newPagoFixture()
	ctx := context.Background()
	f := fx.factura("5.00")
	p := fx.transferencia(t, f, "5")

	_, err := fx.svc.ValidateTransfer(ctx, p.ID, DecisionRechazar, "", nil)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation), "motivo requerido")
	_, err = fx.svc.ValidateTransfer(ctx, p.ID, "LATER", "x", nil)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = fx.svc.ValidateTransfer(ctx, p.ID, DecisionRechazar, "comprobante ilegible", nil)
	require.NoError(t, err)
	assert.NotContains(t, fx.pagos.rows, p.ID)
	assert.Equal(t, model.FacturaPendiente, fx.facturas.get(f.ID).Estado)
	assert.Empty(t, fx.evidencias.files)
	assert.Empty(t, fx.observer.socios)
	assert.Equal(t, []string{"RECHAZAR_TRANSFERENCIA"}, fx.auditoria.acciones())

	// The socio can report again once rejected.
	fx.transferencia(t, f, "5")
}

func TestDailyClosure(t *testing.T) {
	fx := newPagoFixture()
	ctx := context.Background()
	fx.deuda("20.00", mes(time.January), nil)
	f := fx.factura("5.00")

	_, err := fx.svc.RecordAtCounter(ctx, PagoCaja{SocioID: fx.socio.ID, Lineas: efectivo("4")})
	require.NoError(t, err)
	_, err = fx.svc.RecordAtCounter(ctx, PagoCaja{SocioID: fx.socio.ID, Lineas: []LineaPago{
		{Metodo: model.MetodoEfectivo, Monto: dec("1")},
		{Metodo: model.MetodoCheque, Monto: dec("2")},
	}})
	require.NoError(t, err)
	fx.transferencia(t, f, "5")

	desde := hoyFijo.Truncate(24 * time.Hour)
	c, err := fx.svc.DailyClosure(ctx, desde, desde.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Cantidad, "la transferencia sin validar no cuenta")
	assert.True(t, c.Total.Equal(dec("7")))
	require.Len(t, c.PorMetodo, 2)

	_, err = fx.svc.DailyClosure(ctx, desde, desde)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}
