package service

import (
	"context"
	"testing"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	svc       LedgerService
	socios    *fakeSocios
	cuentas   *fakeCuentas
	pagos     *fakePagos
	facturas  *fakeFacturas
	auditoria *fakeAuditoria
	socio     model.Socio
	agua      model.CatalogoRubro
	inactivo  model.CatalogoRubro
}

func newLedgerFixture() *ledgerFixture {
	fx := &ledgerFixture{
		socio:     model.Socio{ID: uuid.New(), Identificacion: "1712345678", Nombres: "Ana", Apellidos: "Quishpe", Activo: true},
		agua:      model.CatalogoRubro{ID: uuid.New(), Codigo: "AGUA", Tipo: model.RubroAgua, Activo: true},
		cuentas:   newFakeCuentas(),
		pagos:     &fakePagos{},
		facturas:  newFakeFacturas(),
		auditoria: &fakeAuditoria{},
	}
	fx.socios = newFakeSocios(fx.socio)
	fx.inactivo = model.CatalogoRubro{ID: uuid.New(), Codigo: "VIEJO", Tipo: model.RubroOtro, Activo: false}
	fx.svc = NewLedgerService(&fakeTx{}, fx.socios, fx.cuentas, newFakeRubros(fx.agua, fx.inactivo),
		fx.pagos, fx.facturas, fx.auditoria, relojFijo())
	return fx
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// deuda seeds a receivable directly, bypassing CreateObligation.
func (fx *ledgerFixture) deuda(monto string, emision time.Time, facturaID *uuid.UUID) model.CuentaPorCobrar {
	estado := model.CxCPendiente
	if facturaID != nil {
		estado = model.CxCFacturada
	}
	c := model.CuentaPorCobrar{
		ID:               uuid.New(),
		SocioID:          fx.socio.ID,
		FacturaID:        facturaID,
		RubroID:          fx.agua.ID,
		MontoInicial:     dec(monto),
		SaldoPendiente:   dec(monto),
		FechaEmision:     emision,
		FechaVencimiento: emision.AddDate(0, 0, 15),
		Estado:           estado,
		OrigenReferencia: "SEED_" + uuid.NewString(),
	}
	fx.cuentas.put(c)
	return c
}

func mes(m time.Month) time.Time { return time.Date(2026, m, 1, 0, 0, 0, 0, time.UTC) }

func TestCreateObligation_DefaultsYRedondeo(t *testing.T) {
	fx := newLedgerFixture()
	c, err := fx.svc.CreateObligation(context.Background(), nil, NuevaObligacion{
		SocioID: fx.socio.ID,
		RubroID: fx.agua.ID,
		Monto:   dec("10.005"),
		Origen:  "MULTA_EVENTO_1",
	})
	require.NoError(t, err)

	assert.Equal(t, model.CxCPendiente, c.Estado)
	assert.True(t, c.MontoInicial.Equal(dec("10.01")))
	assert.True(t, c.SaldoPendiente.Equal(c.MontoInicial))
	assert.Equal(t, hoyFijo, c.FechaEmision)
	assert.Equal(t, c.FechaEmision, c.FechaVencimiento)
}

func TestCreateObligation_OrigenDuplicado(t *testing.T) {
	fx := newLedgerFixture()
	ctx := context.Background()
	in := NuevaObligacion{SocioID: fx.socio.ID, RubroID: fx.agua.ID, Monto: dec("3"), Origen: "RECONEXION_X"}

	primera, err := fx.svc.CreateObligation(ctx, nil, in)
	require.NoError(t, err)

	_, err = fx.svc.CreateObligation(ctx, nil, in)
	require.True(t, apperror.IsRule(err, apperror.RuleDuplicateObligation))
	ae, ok := apperror.As(err)
	require.True(t, ok)
	existente, ok := ae.Existing.(*model.CuentaPorCobrar)
	require.True(t, ok)
	assert.Equal(t, primera.ID, existente.ID)
	assert.Len(t, fx.cuentas.all(), 1)
}

func TestCreateObligation_Validaciones(t *testing.T) {
	fx := newLedgerFixture()
	ctx := context.Background()

	_, err := fx.svc.CreateObligation(ctx, nil, NuevaObligacion{SocioID: fx.socio.ID, RubroID: fx.agua.ID, Monto: dec("0"), Origen: "X"})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = fx.svc.CreateObligation(ctx, nil, NuevaObligacion{SocioID: fx.socio.ID, RubroID: fx.agua.ID, Monto: dec("1")})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = fx.svc.CreateObligation(ctx, nil, NuevaObligacion{SocioID: uuid.New(), RubroID: fx.agua.ID, Monto: dec("1"), Origen: "X"})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = fx.svc.CreateObligation(ctx, nil, NuevaObligacion{SocioID: fx.socio.ID, RubroID: fx.inactivo.ID, Monto: dec("1"), Origen: "X"})
	assert.True(t, apperror.IsRule(err, apperror.RuleInactiveEntity))
}

func TestApplyPayment_FIFO(t *testing.T) {
	fx := newLedgerFixture()
	marzo := fx.deuda("10.00", mes(time.March), nil)
	enero := fx.deuda("10.00", mes(time.January), nil)
	febrero := fx.deuda("10.00", mes(time.February), nil)

	apps, err := fx.svc.ApplyPayment(context.Background(), nil, fx.socio.ID, dec("15.00"), uuid.New())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, enero.ID, apps[0].CuentaPorCobrarID)
	assert.True(t, apps[0].Monto.Equal(dec("10")))
	assert.Equal(t, febrero.ID, apps[1].CuentaPorCobrarID)
	assert.True(t, apps[1].Monto.Equal(dec("5")))

	assert.Equal(t, model.CxCPagada, fx.cuentas.get(enero.ID).Estado)
	assert.True(t, fx.cuentas.get(enero.ID).SaldoPendiente.IsZero())
	assert.Equal(t, model.CxCPagoParcial, fx.cuentas.get(febrero.ID).Estado)
	assert.True(t, fx.cuentas.get(febrero.ID).SaldoPendiente.Equal(dec("5")))
	assert.Equal(t, model.CxCPendiente, fx.cuentas.get(marzo.ID).Estado)
	assert.Len(t, fx.pagos.apps, 2)
}

func TestApplyPayment_SobrepagoNoModificaNada(t *testing.T) {
	fx := newLedgerFixture()
	a := fx.deuda("10.00", mes(time.January), nil)
	b := fx.deuda("20.00", mes(time.February), nil)

	_, err := fx.svc.ApplyPayment(context.Background(), nil, fx.socio.ID, dec("30.01"), uuid.New())
	require.True(t, apperror.IsRule(err, apperror.RuleOverpaymentRejected))

	assert.True(t, fx.cuentas.get(a.ID).SaldoPendiente.Equal(dec("10")))
	assert.True(t, fx.cuentas.get(b.ID).SaldoPendiente.Equal(dec("20")))
	assert.Empty(t, fx.pagos.apps)
}

func TestApplyPaymentToInvoice_PrimeroLaFacturaYLaLiquida(t *testing.T) {
	fx := newLedgerFixture()
	facturaID := uuid.New()
	fx.facturas.rows[facturaID] = model.Factura{ID: facturaID, SocioID: fx.socio.ID, Estado: model.FacturaPendiente}

	vieja := fx.deuda("4.00", mes(time.January), nil)
	deFactura := fx.deuda("6.50", mes(time.March), &facturaID)

	apps, err := fx.svc.ApplyPaymentToInvoice(context.Background(), nil, fx.socio.ID, facturaID, dec("8.00"), uuid.New())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, deFactura.ID, apps[0].CuentaPorCobrarID)
	assert.Equal(t, vieja.ID, apps[1].CuentaPorCobrarID)

	assert.Equal(t, model.CxCPagada, fx.cuentas.get(deFactura.ID).Estado)
	assert.True(t, fx.cuentas.get(vieja.ID).SaldoPendiente.Equal(dec("2.5")))
	assert.Equal(t, model.FacturaPagada, fx.facturas.get(facturaID).Estado)
}

func TestApplyPayment_MontoInvalido(t *testing.T) {
	fx := newLedgerFixture()
	_, err := fx.svc.ApplyPayment(context.Background(), nil, fx.socio.ID, dec("-1"), uuid.New())
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestVoidYRevert(t *testing.T) {
	fx := newLedgerFixture()
	ctx := context.Background()
	usuario := uuid.New()
	c := fx.deuda("20.00", mes(time.January), nil)

	_, err := fx.svc.ApplyPayment(ctx, nil, fx.socio.ID, dec("5"), uuid.New())
	require.NoError(t, err)

	anulada, err := fx.svc.VoidObligation(ctx, nil, c.ID, "error de digitación", &usuario)
	require.NoError(t, err)
	assert.Equal(t, model.CxCAnulada, anulada.Estado)
	assert.True(t, anulada.SaldoPendiente.IsZero())

	_, err = fx.svc.VoidObligation(ctx, nil, c.ID, "otra vez", &usuario)
	assert.True(t, apperror.IsRule(err, apperror.RuleObligationAlreadyVoid))

	restaurada, err := fx.svc.RevertVoid(ctx, c.ID, "anulación equivocada", &usuario)
	require.NoError(t, err)
	assert.Equal(t, model.CxCPagoParcial, restaurada.Estado)
	assert.True(t, restaurada.SaldoPendiente.Equal(dec("15")))
	assert.Nil(t, restaurada.MotivoAnulacion)

	_, err = fx.svc.RevertVoid(ctx, c.ID, "de nuevo", &usuario)
	assert.True(t, apperror.IsRule(err, apperror.RuleObligationNotVoid))

	assert.Equal(t, []string{"ANULAR", "REVERTIR_ANULACION"}, fx.auditoria.acciones())
}

func TestVoid_PagadaYMotivo(t *testing.T) {
	fx := newLedgerFixture()
	ctx := context.Background()
	c := fx.deuda("3.00", mes(time.January), nil)

	_, err := fx.svc.VoidObligation(ctx, nil, c.ID, "", nil)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = fx.svc.ApplyPayment(ctx, nil, fx.socio.ID, dec("3"), uuid.New())
	require.NoError(t, err)
	_, err = fx.svc.VoidObligation(ctx, nil, c.ID, "tarde", nil)
	assert.True(t, apperror.IsRule(err, apperror.RuleObligationAlreadyPaid))
}

func TestRevert_SinAbonosVuelveAFacturada(t *testing.T) {
	fx := newLedgerFixture()
	ctx := context.Background()
	facturaID := uuid.New()
	c := fx.deuda("7.25", mes(time.February), &facturaID)

	_, err := fx.svc.VoidObligation(ctx, nil, c.ID, "prueba", nil)
	require.NoError(t, err)
	r, err := fx.svc.RevertVoid(ctx, c.ID, "prueba", nil)
	require.NoError(t, err)
	assert.Equal(t, model.CxCFacturada, r.Estado)
	assert.True(t, r.SaldoPendiente.Equal(dec("7.25")))
}

func TestJustificacion_ExcluyeDelPago(t *testing.T) {
	fx := newLedgerFixture()
	ctx := context.Background()
	multa := fx.deuda("10.00", mes(time.January), nil)

	require.NoError(t, fx.svc.HoldForJustification(ctx, nil, multa.ID))
	assert.Equal(t, model.CxCEnJustificacion, fx.cuentas.get(multa.ID).Estado)

	_, err := fx.svc.ApplyPayment(ctx, nil, fx.socio.ID, dec("1"), uuid.New())
	assert.True(t, apperror.IsRule(err, apperror.RuleOverpaymentRejected))

	require.NoError(t, fx.svc.ReleaseJustification(ctx, nil, multa.ID))
	assert.Equal(t, model.CxCPendiente, fx.cuentas.get(multa.ID).Estado)

	_, err = fx.svc.ApplyPayment(ctx, nil, fx.socio.ID, dec("1"), uuid.New())
	assert.NoError(t, err)
}

func TestPlanFIFO(t *testing.T) {
	cuentas := []model.CuentaPorCobrar{
		{ID: uuid.New(), SaldoPendiente: dec("0")},
		{ID: uuid.New(), SaldoPendiente: dec("2.50")},
		{ID: uuid.New(), SaldoPendiente: dec("4.00")},
	}
	plan, resto := planFIFO(cuentas, dec("3.00"))
	require.Len(t, plan, 2)
	assert.Equal(t, cuentas[1].ID, plan[0].cuenta.ID)
	assert.True(t, plan[0].monto.Equal(dec("2.5")))
	assert.True(t, plan[1].monto.Equal(dec("0.5")))
	assert.True(t, resto.IsZero())

	_, resto = planFIFO(cuentas, dec("10"))
	assert.True(t, resto.Equal(dec("3.5")))
}
