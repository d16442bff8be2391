package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type servicioFixture struct {
	*ledgerFixture
	svc        ServicioService
	servicios  *fakeServicios
	evidencias *fakeEvidencias
	terreno    model.Terreno
	servicio   model.Servicio
}

func newServicioFixture() *servicioFixture {
	lf := newLedgerFixture()
	fx := &servicioFixture{ledgerFixture: lf, evidencias: newFakeEvidencias()}
	fx.terreno = model.Terreno{ID: uuid.New(), SocioID: lf.socio.ID, Direccion: "Sector La Merced", EsCometidaActiva: true}
	lf.socios.conTerrenos(fx.terreno)
	fx.servicio = model.Servicio{
		ID: uuid.New(), SocioID: lf.socio.ID, TerrenoID: fx.terreno.ID,
		Tipo: model.ServicioFijo, Estado: model.ServicioActivo, Activo: true,
	}
	fx.servicios = newFakeServicios(fx.servicio)

	rubros := newFakeRubros(lf.agua, model.CatalogoRubro{ID: uuid.New(), Codigo: "RECONEXION", Tipo: model.RubroReconexion, Activo: true})
	lf.svc = NewLedgerService(fakeTx{}, lf.socios, lf.cuentas, rubros, lf.pagos, lf.facturas, lf.auditoria, relojFijo())
	fx.svc = NewServicioService(fakeTx{}, fx.servicios, lf.socios, rubros, lf.auditoria, lf.svc, fx.evidencias,
		ParametrosCorte{UmbralVencidas: 2, ValorCargo: dec("5"), DiasVencimiento: 30}, relojFijo())
	return fx
}

// moroso leaves the socio with two overdue receivables of 4.00.
func (fx *servicioFixture) moroso() {
	fx.deuda("4.00", mes(time.January), nil)
	fx.deuda("4.00", mes(time.February), nil)
}

func (fx *servicioFixture) ordenCorte(t *testing.T) model.OrdenTrabajo {
	t.Helper()
	ordenes := fx.servicios.ordenesDe(fx.servicio.ID, model.OrdenCorte)
	require.Len(t, ordenes, 1)
	return ordenes[0]
}

func TestProcessCutsBatch_EncolaCorteConCargo(t *testing.T) {
	fx := newServicioFixture()
	ctx := context.Background()
	fx.moroso()

	res, err := fx.svc.ProcessCutsBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluados)
	assert.Equal(t, 1, res.OrdenesCorte)
	assert.Equal(t, 1, res.Cargos)
	assert.Zero(t, res.Errores)

	o := fx.ordenCorte(t)
	assert.Equal(t, model.OrdenPendiente, o.Estado)
	assert.Equal(t, model.ServicioActivo, fx.servicios.rows[fx.servicio.ID].Estado, "suspende recién al completar la orden")

	cargo, err := fx.cuentas.FindByOrigen(ctx, nil, fx.socio.ID, "CARGO_CORTE_"+o.ID.String())
	require.NoError(t, err)
	require.NotNil(t, cargo)
	assert.True(t, cargo.MontoInicial.Equal(dec("5")))
	assert.Equal(t, hoyFijo.AddDate(0, 0, 30), cargo.FechaVencimiento)

	again, err := fx.svc.ProcessCutsBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.OrdenesCorte)
	assert.Zero(t, again.Cargos)
	assert.Len(t, fx.servicios.ordenesDe(fx.servicio.ID, ""), 1)
}

func TestProcessCutsBatch_BajoElUmbral(t *testing.T) {
	fx := newServicioFixture()
	fx.deuda("4.00", mes(time.January), nil)
	fx.deuda("4.00", mes(time.March), nil)

	res, err := fx.svc.ProcessCutsBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.OrdenesCorte)
	assert.Empty(t, fx.servicios.ordenes)
}

func TestCicloCorteYReconexion(t *testing.T) {
	fx := newServicioFixture()
	ctx := context.Background()
	fx.moroso()
	_, err := fx.svc.ProcessCutsBatch(ctx)
	require.NoError(t, err)
	corte := fx.ordenCorte(t)

	tecnico := uuid.New()
	o, err := fx.svc.StartWorkOrder(ctx, corte.ID, &tecnico)
	require.NoError(t, err)
	assert.Equal(t, model.OrdenEnProceso, o.Estado)
	_, err = fx.svc.StartWorkOrder(ctx, corte.ID, &tecnico)
	assert.True(t, apperror.IsRule(err, apperror.RuleWorkOrderClosed))

	o, err = fx.svc.CompleteWorkOrder(ctx, corte.ID,
		[]Evidencia{{Filename: "valvula.jpg", Content: strings.NewReader("img")}}, "válvula sellada")
	require.NoError(t, err)
	assert.Equal(t, model.OrdenCompletada, o.Estado)
	require.NotNil(t, o.FechaCompletada)
	var rutas []string
	require.NoError(t, json.Unmarshal(o.Evidencias, &rutas))
	assert.Len(t, rutas, 1)
	assert.Equal(t, model.ServicioSuspendido, fx.servicios.rows[fx.servicio.ID].Estado)
	assert.False(t, fx.socios.terrenos[fx.terreno.ID].EsCometidaActiva)

	_, err = fx.svc.CompleteWorkOrder(ctx, corte.ID, nil, "")
	assert.True(t, apperror.IsRule(err, apperror.RuleWorkOrderClosed))

	// Settling the whole debt (two receivables plus the fee) queues the reconnection.
	_, err = fx.ledgerFixture.svc.ApplyPayment(ctx, nil, fx.socio.ID, dec("13"), uuid.New())
	require.NoError(t, err)
	require.NoError(t, fx.svc.OnBalanceChanged(ctx, fx.socio.ID))
	assert.Equal(t, model.ServicioPendienteReconexion, fx.servicios.rows[fx.servicio.ID].Estado)
	reconexiones := fx.servicios.ordenesDe(fx.servicio.ID, model.OrdenReconexion)
	require.Len(t, reconexiones, 1)

	require.NoError(t, fx.svc.OnBalanceChanged(ctx, fx.socio.ID))
	assert.Len(t, fx.servicios.ordenesDe(fx.servicio.ID, model.OrdenReconexion), 1)

	_, err = fx.svc.CompleteWorkOrder(ctx, reconexiones[0].ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, model.ServicioActivo, fx.servicios.rows[fx.servicio.ID].Estado)
	assert.True(t, fx.socios.terrenos[fx.terreno.ID].EsCometidaActiva)
}

func TestOnBalanceChanged_CancelaCortePendiente(t *testing.T) {
	fx := newServicioFixture()
	ctx := context.Background()
	fx.moroso()
	_, err := fx.svc.ProcessCutsBatch(ctx)
	require.NoError(t, err)

	_, err = fx.ledgerFixture.svc.ApplyPayment(ctx, nil, fx.socio.ID, dec("4"), uuid.New())
	require.NoError(t, err)
	require.NoError(t, fx.svc.OnBalanceChanged(ctx, fx.socio.ID))

	o := fx.ordenCorte(t)
	assert.Equal(t, model.OrdenCancelada, o.Estado)
	assert.Equal(t, model.ServicioActivo, fx.servicios.rows[fx.servicio.ID].Estado)
}

func TestCompleteWorkOrder_CorteSinDeudaVencida(t *testing.T) {
	fx := newServicioFixture()
	ctx := context.Background()

	o, err := fx.svc.CreateWorkOrder(ctx, fx.servicio.ID, model.OrdenCorte, "pedido manual")
	require.NoError(t, err)
	dup, err := fx.svc.CreateWorkOrder(ctx, fx.servicio.ID, model.OrdenCorte, "otra vez")
	require.NoError(t, err)
	assert.Equal(t, o.ID, dup.ID)

	_, err = fx.svc.CompleteWorkOrder(ctx, o.ID,
		[]Evidencia{{Filename: "foto.jpg", Content: strings.NewReader("img")}}, "")
	assert.True(t, apperror.IsRule(err, apperror.RuleCutOnActiveWithoutDebt))
	assert.Empty(t, fx.evidencias.files, "la evidencia se borra si la transición falla")
	assert.Equal(t, model.ServicioActivo, fx.servicios.rows[fx.servicio.ID].Estado)

	_, err = fx.svc.CreateWorkOrder(ctx, fx.servicio.ID, "PINTAR", "")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestCompleteWorkOrder_ReconexionIlegal(t *testing.T) {
	fx := newServicioFixture()
	ctx := context.Background()
	o, err := fx.svc.CreateWorkOrder(ctx, fx.servicio.ID, model.OrdenReconexion, "")
	require.NoError(t, err)

	_, err = fx.svc.CompleteWorkOrder(ctx, o.ID, nil, "")
	assert.True(t, apperror.IsRule(err, apperror.RuleIllegalServiceTransition))
}

func TestCancelWorkOrder(t *testing.T) {
	fx := newServicioFixture()
	ctx := context.Background()
	o, err := fx.svc.CreateWorkOrder(ctx, fx.servicio.ID, model.OrdenInspeccion, "fuga reportada")
	require.NoError(t, err)

	_, err = fx.svc.CancelWorkOrder(ctx, o.ID, "", nil)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	out, err := fx.svc.CancelWorkOrder(ctx, o.ID, "duplicada", nil)
	require.NoError(t, err)
	assert.Equal(t, model.OrdenCancelada, out.Estado)
	assert.Equal(t, []string{"CANCELAR"}, fx.auditoria.acciones())

	_, err = fx.svc.CancelWorkOrder(ctx, o.ID, "otra", nil)
	assert.True(t, apperror.IsRule(err, apperror.RuleWorkOrderClosed))
}

func TestAdminOverride(t *testing.T) {
	fx := newServicioFixture()
	ctx := context.Background()
	fx.moroso()
	_, err := fx.svc.ProcessCutsBatch(ctx)
	require.NoError(t, err)

	_, err = fx.svc.AdminOverride(ctx, fx.servicio.ID, "BORRADO", "x", nil)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	_, err = fx.svc.AdminOverride(ctx, fx.servicio.ID, model.ServicioSuspendido, "", nil)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	sv, err := fx.svc.AdminOverride(ctx, fx.servicio.ID, model.ServicioSuspendido, "corte ejecutado sin sistema", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ServicioSuspendido, sv.Estado)
	assert.False(t, fx.socios.terrenos[fx.terreno.ID].EsCometidaActiva)
	assert.Equal(t, model.OrdenCancelada, fx.ordenCorte(t).Estado)
	assert.Equal(t, []string{"CAMBIO_ESTADO"}, fx.auditoria.acciones())
}
