package handler

import (
	"net/http"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/dto"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/middleware"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

// CuentasHandler exposes the receivables ledger to staff.
type CuentasHandler struct{ svc service.LedgerService }

func NewCuentasHandler(svc service.LedgerService) *CuentasHandler {
	return &CuentasHandler{svc: svc}
}

func (h *CuentasHandler) Listar(c *gin.Context) {
	var q dto.CuentaFilter
	if !bindQuery(c, &q) {
		return
	}
	data, total, err := h.svc.List(c.Request.Context(), repository.CuentaPorCobrarFilter{
		SocioID: optionalUUID(q.SocioID),
		Estado:  q.Estado,
		Page:    q.Page,
		Limit:   q.Limit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPage(data, total, q.Page, q.Limit))
}

func (h *CuentasHandler) Pendientes(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	data, err := h.svc.ListPendingBySocio(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *CuentasHandler) Anular(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.MotivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cxc, err := h.svc.VoidObligation(c.Request.Context(), nil, id, req.Motivo, middleware.UsuarioID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cxc)
}

func (h *CuentasHandler) RevertirAnulacion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.MotivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cxc, err := h.svc.RevertVoid(c.Request.Context(), id, req.Motivo, middleware.UsuarioID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cxc)
}
