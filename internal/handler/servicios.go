package handler

import (
	"net/http"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/dto"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/middleware"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

// maxEvidencias caps the photos accepted when closing a work order.
const maxEvidencias = 5

type ServiciosHandler struct{ svc service.ServicioService }

func NewServiciosHandler(svc service.ServicioService) *ServiciosHandler {
	return &ServiciosHandler{svc: svc}
}

func (h *ServiciosHandler) ProcesarCortes(c *gin.Context) {
	res, err := h.svc.ProcessCutsBatch(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ServiciosHandler) ForzarEstado(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ForzarEstadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	s, err := h.svc.AdminOverride(c.Request.Context(), id, req.Estado, req.Motivo, middleware.UsuarioID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// ── Ordenes de trabajo ───────────────────────────────────────────────────────

func (h *ServiciosHandler) CrearOrden(c *gin.Context) {
	var req dto.CrearOrdenRequest
	if !bindAndValidate(c, &req) {
		return
	}
	o, err := h.svc.CreateWorkOrder(c.Request.Context(), req.ServicioID, req.Tipo, req.Motivo)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *ServiciosHandler) ListarOrdenes(c *gin.Context) {
	var q dto.OrdenFilter
	if !bindQuery(c, &q) {
		return
	}
	data, err := h.svc.ListOrdenes(c.Request.Context(), q.Estado, q.Tipo)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *ServiciosHandler) IniciarOrden(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.IniciarOrdenRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	asignado := req.AsignadoA
	if asignado == nil {
		asignado = middleware.UsuarioID(c)
	}
	o, err := h.svc.StartWorkOrder(c.Request.Context(), id, asignado)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// CompletarOrden godoc
// @Summary Cerrar una orden de trabajo con fotos de evidencia
// @Tags ordenes
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Orden ID"
// @Param nota formData string false "Nota del tecnico"
// @Param evidencias formData file true "Fotos"
// @Success 200 {object} model.OrdenTrabajo
// @Router /v1/ordenes/{id}/completar [post]
func (h *ServiciosHandler) CompletarOrden(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		fail(c, apperror.Validation("evidencias", err.Error()))
		return
	}
	files := form.File["evidencias"]
	if len(files) > maxEvidencias {
		files = files[:maxEvidencias]
	}
	evidencias := make([]service.Evidencia, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			fail(c, err)
			return
		}
		defer f.Close()
		evidencias = append(evidencias, service.Evidencia{Filename: fh.Filename, Content: f})
	}
	o, err := h.svc.CompleteWorkOrder(c.Request.Context(), id, evidencias, c.PostForm("nota"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *ServiciosHandler) CancelarOrden(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.MotivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	o, err := h.svc.CancelWorkOrder(c.Request.Context(), id, req.Motivo, middleware.UsuarioID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
