// Package policy holds the static role to operation matrix. Every route
// declares one Operation and middleware.RequireOperation checks it.
package policy

import "github.com/FerQode/facturacion-sri-api2-sub000/internal/model"

type Operation string

const (
	// Padrón
	OpSocioWrite    Operation = "socio.write"
	OpSocioRead     Operation = "socio.read"
	OpEstadoCuenta  Operation = "socio.estado_cuenta"
	OpServicioWrite Operation = "servicio.write"
	OpCatalogoWrite Operation = "catalogo.write"
	OpCatalogoRead  Operation = "catalogo.read"
	OpUsuarioAdmin  Operation = "usuario.admin"

	// Lecturas y facturación
	OpLecturaWrite  Operation = "lectura.write"
	OpMedidorWrite  Operation = "medidor.write"
	OpFacturaEmit   Operation = "factura.emit"
	OpFacturaRead   Operation = "factura.read"
	OpFacturaVoid   Operation = "factura.void"
	OpFacturaSRI    Operation = "factura.sri"
	OpObligacionAdm Operation = "obligacion.admin"

	// Caja
	OpPagoCaja          Operation = "pago.caja"
	OpPagoTransferencia Operation = "pago.transferencia"
	OpPagoValidar       Operation = "pago.validar"
	OpCierreCaja        Operation = "pago.cierre"
	OpVenta             Operation = "venta.registrar"
	OpInventario        Operation = "inventario.write"

	// Servicio y órdenes
	OpCortesBatch   Operation = "servicio.cortes"
	OpOrdenTrabajo  Operation = "orden.trabajo"
	OpServicioForce Operation = "servicio.override"

	// Gobernanza
	OpEventoWrite           Operation = "evento.write"
	OpAsistencia            Operation = "evento.asistencia"
	OpMultasBatch           Operation = "evento.multas"
	OpJustificacionEnviar   Operation = "justificacion.enviar"
	OpJustificacionResolver Operation = "justificacion.resolver"
)

var matrix = map[string]map[Operation]bool{
	model.RolAdministrador: nil, // everything
	model.RolTesorero: set(
		OpSocioRead, OpEstadoCuenta, OpCatalogoRead,
		OpFacturaEmit, OpFacturaRead, OpFacturaVoid, OpFacturaSRI, OpObligacionAdm,
		OpPagoCaja, OpPagoTransferencia, OpPagoValidar, OpCierreCaja, OpVenta, OpInventario,
		OpCortesBatch, OpMultasBatch, OpJustificacionResolver,
	),
	model.RolOperador: set(
		OpSocioRead, OpEstadoCuenta, OpCatalogoRead,
		OpLecturaWrite, OpMedidorWrite, OpFacturaRead,
		OpOrdenTrabajo, OpAsistencia, OpPagoCaja, OpVenta,
	),
	model.RolSocio: set(
		OpEstadoCuenta, OpFacturaRead, OpPagoTransferencia, OpJustificacionEnviar,
	),
}

// SelfScoped lists the operations a socio may only run on its own account.
var SelfScoped = set(OpEstadoCuenta, OpFacturaRead, OpPagoTransferencia, OpJustificacionEnviar)

func set(ops ...Operation) map[Operation]bool {
	m := make(map[Operation]bool, len(ops))
	for _, op := range ops {
		m[op] = true
	}
	return m
}

// Authorize reports whether rol may run op.
func Authorize(rol string, op Operation) bool {
	ops, ok := matrix[rol]
	if !ok {
		return false
	}
	if rol == model.RolAdministrador {
		return true
	}
	return ops[op]
}

// MustBeOwner reports whether rol only sees its own records for op.
func MustBeOwner(rol string, op Operation) bool {
	return rol == model.RolSocio && SelfScoped[op]
}
