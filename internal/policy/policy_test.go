package policy

import (
	"testing"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize_AdministradorTodo(t *testing.T) {
	for _, op := range []Operation{OpUsuarioAdmin, OpServicioForce, OpFacturaVoid, OpCatalogoWrite} {
		assert.True(t, Authorize(model.RolAdministrador, op), op)
	}
}

func TestAuthorize_Matriz(t *testing.T) {
	cases := []struct {
		rol  string
		op   Operation
		want bool
	}{
		{model.RolTesorero, OpPagoValidar, true},
		{model.RolTesorero, OpUsuarioAdmin, false},
		{model.RolOperador, OpLecturaWrite, true},
		{model.RolOperador, OpPagoValidar, false},
		{model.RolOperador, OpFacturaVoid, false},
		{model.RolSocio, OpPagoTransferencia, true},
		{model.RolSocio, OpPagoCaja, false},
		{model.RolSocio, OpJustificacionResolver, false},
		{"desconocido", OpFacturaRead, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Authorize(c.rol, c.op), "%s %s", c.rol, c.op)
	}
}

func TestMustBeOwner(t *testing.T) {
	assert.True(t, MustBeOwner(model.RolSocio, OpEstadoCuenta))
	assert.False(t, MustBeOwner(model.RolTesorero, OpEstadoCuenta))
	assert.False(t, MustBeOwner(model.RolSocio, OpCatalogoRead))
}
