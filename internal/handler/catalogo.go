package handler

import (
	"net/http"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/dto"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/middleware"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type CatalogoHandler struct{ svc service.CatalogoService }

func NewCatalogoHandler(svc service.CatalogoService) *CatalogoHandler {
	return &CatalogoHandler{svc: svc}
}

// ── Rubros ───────────────────────────────────────────────────────────────────

func (h *CatalogoHandler) CrearRubro(c *gin.Context) {
	var req dto.CrearRubroRequest
	if !bindAndValidate(c, &req) {
		return
	}
	r, err := h.svc.CrearRubro(c.Request.Context(), service.NuevoRubro{
		Codigo:        req.Codigo,
		Nombre:        req.Nombre,
		Tipo:          req.Tipo,
		ValorUnitario: req.ValorUnitario,
		AplicaIVA:     req.AplicaIVA,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *CatalogoHandler) ActualizarRubro(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarRubroRequest
	if !bindAndValidate(c, &req) {
		return
	}
	r, err := h.svc.ActualizarRubro(c.Request.Context(), id, service.ActualizacionRubro{
		Nombre:        req.Nombre,
		ValorUnitario: req.ValorUnitario,
		AplicaIVA:     req.AplicaIVA,
		Activo:        req.Activo,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *CatalogoHandler) EliminarRubro(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.EliminarRubro(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogoHandler) ListarRubros(c *gin.Context) {
	data, err := h.svc.ListarRubros(c.Request.Context(), c.Query("todos") != "true")
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// ── Barrios ──────────────────────────────────────────────────────────────────

func (h *CatalogoHandler) CrearBarrio(c *gin.Context) {
	var req dto.CrearBarrioRequest
	if !bindAndValidate(c, &req) {
		return
	}
	b, err := h.svc.CrearBarrio(c.Request.Context(), req.Nombre, req.Descripcion)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *CatalogoHandler) ListarBarrios(c *gin.Context) {
	data, err := h.svc.ListarBarrios(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *CatalogoHandler) EliminarBarrio(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.EliminarBarrio(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ── Medidores ────────────────────────────────────────────────────────────────

func (h *CatalogoHandler) RegistrarMedidor(c *gin.Context) {
	var req dto.RegistrarMedidorRequest
	if !bindAndValidate(c, &req) {
		return
	}
	m, err := h.svc.RegistrarMedidor(c.Request.Context(), nuevoMedidor(req))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *CatalogoHandler) InstalarMedidor(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.InstalarMedidorRequest
	if !bindAndValidate(c, &req) {
		return
	}
	m, err := h.svc.InstalarMedidor(c.Request.Context(), id, req.TerrenoID, fecha(req.Fecha, time.Now()))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ReemplazarMedidor godoc
// @Summary Reemplazar el medidor activo de un terreno
// @Tags medidores
// @Accept json
// @Produce json
// @Param id path string true "Terreno ID"
// @Param body body dto.ReemplazarMedidorRequest true "Reemplazo"
// @Success 200 {object} model.Medidor
// @Failure 409 {object} apierror.APIError
// @Router /v1/terrenos/{id}/medidor/reemplazo [post]
func (h *CatalogoHandler) ReemplazarMedidor(c *gin.Context) {
	terrenoID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ReemplazarMedidorRequest
	if !bindAndValidate(c, &req) {
		return
	}
	m, err := h.svc.ReemplazarMedidor(c.Request.Context(), terrenoID, service.Reemplazo{
		MedidorAnteriorID: req.MedidorAnteriorID,
		LecturaFinal:      req.LecturaFinal,
		EstadoAnterior:    req.EstadoAnterior,
		Nuevo:             nuevoMedidor(req.Nuevo),
		Fecha:             fecha(req.Fecha, time.Now()),
		UsuarioID:         middleware.UsuarioID(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *CatalogoHandler) CambiarEstadoMedidor(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.CambiarEstadoMedidorRequest
	if !bindAndValidate(c, &req) {
		return
	}
	m, err := h.svc.CambiarEstadoMedidor(c.Request.Context(), id, req.Estado, req.Motivo, middleware.UsuarioID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *CatalogoHandler) ObtenerMedidor(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	m, err := h.svc.ObtenerMedidor(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *CatalogoHandler) ListarMedidores(c *gin.Context) {
	data, err := h.svc.ListarMedidores(c.Request.Context(), c.Query("estado"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// ── Lecturas ─────────────────────────────────────────────────────────────────

func (h *CatalogoHandler) RegistrarLectura(c *gin.Context) {
	var req dto.RegistrarLecturaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	l, err := h.svc.RegistrarLectura(c.Request.Context(), service.NuevaLectura{
		MedidorID:     req.MedidorID,
		Fecha:         fecha(req.Fecha, time.Now()),
		Valor:         req.Valor,
		Observacion:   req.Observacion,
		RegistradoPor: middleware.UsuarioID(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *CatalogoHandler) ListarLecturas(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	data, err := h.svc.ListarLecturas(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func nuevoMedidor(req dto.RegistrarMedidorRequest) service.NuevoMedidor {
	return service.NuevoMedidor{Codigo: req.Codigo, Marca: req.Marca, LecturaInicial: req.LecturaInicial}
}
