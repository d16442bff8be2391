package handler

import (
	"net/http"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/dto"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type ProductosHandler struct{ svc service.ProductoService }

func NewProductosHandler(svc service.ProductoService) *ProductosHandler {
	return &ProductosHandler{svc: svc}
}

func (h *ProductosHandler) Crear(c *gin.Context) {
	var req dto.CrearProductoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	p, err := h.svc.Crear(c.Request.Context(), service.NuevoMaterial{
		SKU:            req.SKU,
		Nombre:         req.Nombre,
		PrecioUnitario: req.PrecioUnitario,
		StockInicial:   req.StockInicial,
		StockMinimo:    req.StockMinimo,
		AplicaIVA:      req.AplicaIVA,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ProductosHandler) Listar(c *gin.Context) {
	var q dto.ProductoFilter
	if !bindQuery(c, &q) {
		return
	}
	data, total, err := h.svc.Listar(c.Request.Context(), repository.ProductoFilter{
		Nombre: q.Nombre,
		Activo: q.Activo,
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPage(data, total, q.Page, q.Limit))
}

func (h *ProductosHandler) ObtenerPorID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.ObtenerPorID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProductosHandler) Actualizar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarProductoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	p, err := h.svc.Actualizar(c.Request.Context(), id, service.ActualizacionMaterial{
		Nombre:         req.Nombre,
		PrecioUnitario: req.PrecioUnitario,
		StockMinimo:    req.StockMinimo,
		AplicaIVA:      req.AplicaIVA,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProductosHandler) Desactivar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Desactivar(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ── Inventario ───────────────────────────────────────────────────────────────

func (h *ProductosHandler) AjustarStock(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AjustarStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	mov, err := h.svc.AjustarStock(c.Request.Context(), id, req.Delta, req.Tipo, req.Motivo)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mov)
}

func (h *ProductosHandler) ListarMovimientos(c *gin.Context) {
	var q dto.MovimientoFilter
	if !bindQuery(c, &q) {
		return
	}
	data, total, err := h.svc.ListarMovimientos(c.Request.Context(), repository.MovimientoStockFilter{
		ProductoID: optionalUUID(q.ProductoID),
		Tipo:       q.Tipo,
		Page:       q.Page,
		Limit:      q.Limit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPage(data, total, q.Page, q.Limit))
}

func (h *ProductosHandler) Alertas(c *gin.Context) {
	data, err := h.svc.AlertasBajoStock(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}
