package service

import (
	"context"
	"testing"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalogoFixture struct {
	svc       CatalogoService
	medidores *fakeMedidores
	servicios *fakeServicios
	auditoria *fakeAuditoria
	terreno   model.Terreno
	servicio  model.Servicio
}

func newCatalogoFixture() *catalogoFixture {
	socio := model.Socio{ID: uuid.New(), Identificacion: "1712345678", Activo: true}
	fx := &catalogoFixture{
		medidores: newFakeMedidores(),
		auditoria: &fakeAuditoria{},
		terreno:   model.Terreno{ID: uuid.New(), SocioID: socio.ID, BarrioID: uuid.New(), Direccion: "Calle 1"},
	}
	fx.servicio = model.Servicio{
		ID: uuid.New(), SocioID: socio.ID, TerrenoID: fx.terreno.ID,
		Tipo: model.ServicioMedido, Estado: model.ServicioActivo, Activo: true,
	}
	fx.servicios = newFakeServicios(fx.servicio)
	socios := newFakeSocios(socio).conTerrenos(fx.terreno)
	fx.svc = NewCatalogoService(fakeTx{}, newFakeRubros(), socios, fx.medidores, fx.servicios, fx.auditoria, relojFijo())
	return fx
}

// instalado registers and installs a meter on the fixture's terreno.
func (fx *catalogoFixture) instalado(t *testing.T, codigo, inicial string) *model.Medidor {
	t.Helper()
	ctx := context.Background()
	m, err := fx.svc.RegistrarMedidor(ctx, NuevoMedidor{Codigo: codigo, LecturaInicial: dec(inicial)})
	require.NoError(t, err)
	m, err = fx.svc.InstalarMedidor(ctx, m.ID, fx.terreno.ID, time.Time{})
	require.NoError(t, err)
	return m
}

func TestRegistrarMedidor(t *testing.T) {
	fx := newCatalogoFixture()
	ctx := context.Background()

	m, err := fx.svc.RegistrarMedidor(ctx, NuevoMedidor{Codigo: " med-10 ", LecturaInicial: dec("100")})
	require.NoError(t, err)
	assert.Equal(t, "MED-10", m.Codigo)
	assert.Equal(t, model.MedidorInactivo, m.Estado)
	assert.Nil(t, m.TerrenoID)

	_, err = fx.svc.RegistrarMedidor(ctx, NuevoMedidor{Codigo: "MED-10"})
	assert.True(t, apperror.IsRule(err, apperror.RuleDuplicateMeterCode))

	_, err = fx.svc.RegistrarMedidor(ctx, NuevoMedidor{Codigo: "MED-11", LecturaInicial: dec("-1")})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestInstalarMedidor_EnlazaServicio(t *testing.T) {
	fx := newCatalogoFixture()
	m := fx.instalado(t, "MED-1", "0")

	assert.Equal(t, model.MedidorActivo, m.Estado)
	require.NotNil(t, m.FechaInstalacion)
	assert.Equal(t, hoyFijo, *m.FechaInstalacion)
	require.NotNil(t, fx.servicios.rows[fx.servicio.ID].MedidorID)
	assert.Equal(t, m.ID, *fx.servicios.rows[fx.servicio.ID].MedidorID)

	otro, err := fx.svc.RegistrarMedidor(context.Background(), NuevoMedidor{Codigo: "MED-2"})
	require.NoError(t, err)
	_, err = fx.svc.InstalarMedidor(context.Background(), otro.ID, fx.terreno.ID, time.Time{})
	assert.True(t, apperror.IsRule(err, apperror.RuleTerrenoHasActiveMeter))

	_, err = fx.svc.InstalarMedidor(context.Background(), otro.ID, uuid.New(), time.Time{})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestRegistrarLectura_Orden(t *testing.T) {
	fx := newCatalogoFixture()
	ctx := context.Background()
	m := fx.instalado(t, "MED-1", "100")
	enero := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	l, err := fx.svc.RegistrarLectura(ctx, NuevaLectura{MedidorID: m.ID, Fecha: enero, Valor: dec("112.5")})
	require.NoError(t, err)
	assert.True(t, l.LecturaAnterior.Equal(dec("100")))
	assert.True(t, l.ConsumoDelMes.Equal(dec("12.5")))

	_, err = fx.svc.RegistrarLectura(ctx, NuevaLectura{MedidorID: m.ID, Fecha: enero, Valor: dec("120")})
	assert.True(t, apperror.IsRule(err, apperror.RuleReadingOutOfOrder), "misma fecha")

	_, err = fx.svc.RegistrarLectura(ctx, NuevaLectura{MedidorID: m.ID, Fecha: enero.AddDate(0, 1, 0), Valor: dec("110")})
	assert.True(t, apperror.IsRule(err, apperror.RuleReadingOutOfOrder), "valor menor")

	l, err = fx.svc.RegistrarLectura(ctx, NuevaLectura{MedidorID: m.ID, Fecha: enero.AddDate(0, 1, 0), Valor: dec("112.5")})
	require.NoError(t, err)
	assert.True(t, l.ConsumoDelMes.IsZero())
}

func TestRegistrarLectura_MedidorInactivo(t *testing.T) {
	fx := newCatalogoFixture()
	m, err := fx.svc.RegistrarMedidor(context.Background(), NuevoMedidor{Codigo: "MED-9"})
	require.NoError(t, err)

	_, err = fx.svc.RegistrarLectura(context.Background(), NuevaLectura{MedidorID: m.ID, Valor: dec("1")})
	assert.True(t, apperror.IsRule(err, apperror.RuleMeterNotActive))
}

func TestReemplazarMedidor(t *testing.T) {
	fx := newCatalogoFixture()
	ctx := context.Background()
	viejo := fx.instalado(t, "MED-OLD", "0")
	_, err := fx.svc.RegistrarLectura(ctx, NuevaLectura{MedidorID: viejo.ID, Fecha: hoyFijo.AddDate(0, 0, -20), Valor: dec("40")})
	require.NoError(t, err)

	nuevo, err := fx.svc.ReemplazarMedidor(ctx, fx.terreno.ID, Reemplazo{
		MedidorAnteriorID: viejo.ID,
		LecturaFinal:      dec("46"),
		EstadoAnterior:    model.MedidorDanado,
		Nuevo:             NuevoMedidor{Codigo: "MED-NEW", LecturaInicial: dec("0")},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MedidorActivo, nuevo.Estado)
	assert.Equal(t, model.MedidorDanado, fx.medidores.medidores[viejo.ID].Estado)
	assert.Equal(t, nuevo.ID, *fx.servicios.rows[fx.servicio.ID].MedidorID)

	final, err := fx.medidores.UltimaLectura(ctx, nil, viejo.ID)
	require.NoError(t, err)
	assert.True(t, final.EsFinal)
	assert.True(t, final.ConsumoDelMes.Equal(dec("6")))
	assert.Contains(t, fx.auditoria.acciones(), "REEMPLAZO")

	_, err = fx.svc.ReemplazarMedidor(ctx, fx.terreno.ID, Reemplazo{
		MedidorAnteriorID: viejo.ID, LecturaFinal: dec("50"), Nuevo: NuevoMedidor{Codigo: "MED-X"},
	})
	assert.True(t, apperror.IsRule(err, apperror.RuleMeterNotActive))
}

func TestCambiarEstadoMedidor_DesenlazaServicio(t *testing.T) {
	fx := newCatalogoFixture()
	ctx := context.Background()
	m := fx.instalado(t, "MED-1", "0")

	_, err := fx.svc.CambiarEstadoMedidor(ctx, m.ID, model.MedidorActivo, "x", nil)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	out, err := fx.svc.CambiarEstadoMedidor(ctx, m.ID, model.MedidorRobado, "denuncia 123", nil)
	require.NoError(t, err)
	assert.Equal(t, model.MedidorRobado, out.Estado)
	assert.Nil(t, out.TerrenoID)
	assert.Nil(t, fx.servicios.rows[fx.servicio.ID].MedidorID)
	assert.Equal(t, []string{"CAMBIO_ESTADO"}, fx.auditoria.acciones())
}
