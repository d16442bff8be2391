package handler

import (
	"net/http"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apierror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/dto"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/middleware"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type SociosHandler struct{ svc service.SocioService }

func NewSociosHandler(svc service.SocioService) *SociosHandler {
	return &SociosHandler{svc: svc}
}

// Crear godoc
// @Summary Registrar socio (opcionalmente con cuenta de acceso)
// @Tags socios
// @Accept json
// @Produce json
// @Param body body dto.CrearSocioRequest true "Socio"
// @Success 201 {object} model.Socio
// @Failure 409 {object} apierror.APIError
// @Router /v1/socios [post]
func (h *SociosHandler) Crear(c *gin.Context) {
	var req dto.CrearSocioRequest
	if !bindAndValidate(c, &req) {
		return
	}
	in := service.NuevoSocio{
		Identificacion: req.Identificacion,
		Nombres:        req.Nombres,
		Apellidos:      req.Apellidos,
		Email:          req.Email,
		Telefono:       req.Telefono,
		Direccion:      req.Direccion,
		BarrioID:       req.BarrioID,
	}
	if req.Cuenta != nil {
		in.Cuenta = &service.CuentaAcceso{Username: req.Cuenta.Username, Password: req.Cuenta.Password}
	}
	s, err := h.svc.Crear(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *SociosHandler) Listar(c *gin.Context) {
	var q dto.SocioFilter
	if !bindQuery(c, &q) {
		return
	}
	filter := repository.SocioFilter{
		BarrioID: optionalUUID(q.BarrioID),
		Texto:    q.Texto,
		Page:     q.Page,
		Limit:    q.Limit,
	}
	if q.Activo != "" {
		activo := q.Activo == "true"
		filter.Activo = &activo
	}
	data, total, err := h.svc.Listar(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPage(data, total, q.Page, q.Limit))
}

func (h *SociosHandler) Obtener(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SociosHandler) Actualizar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarSocioRequest
	if !bindAndValidate(c, &req) {
		return
	}
	s, err := h.svc.Actualizar(c.Request.Context(), id, service.ActualizacionSocio{
		Nombres:   req.Nombres,
		Apellidos: req.Apellidos,
		Email:     req.Email,
		Telefono:  req.Telefono,
		Direccion: req.Direccion,
		BarrioID:  req.BarrioID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SociosHandler) Desactivar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.MotivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Desactivar(c.Request.Context(), id, req.Motivo, middleware.UsuarioID(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SociosHandler) Reactivar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Reactivar(c.Request.Context(), id, middleware.UsuarioID(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EstadoCuenta godoc
// @Summary Estado de cuenta del socio
// @Tags socios
// @Produce json
// @Param id path string true "Socio ID"
// @Success 200 {object} service.EstadoCuenta
// @Failure 403 {object} apierror.APIError
// @Router /v1/socios/{id}/estado-cuenta [get]
func (h *SociosHandler) EstadoCuenta(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if !middleware.PuedeVerSocio(c, id) {
		c.JSON(http.StatusForbidden, apierror.New("Solo puede consultar su propia cuenta"))
		return
	}
	ec, err := h.svc.EstadoCuenta(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ec)
}

// ── Terrenos / Servicios ─────────────────────────────────────────────────────

func (h *SociosHandler) CrearTerreno(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.CrearTerrenoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	t, err := h.svc.CrearTerreno(c.Request.Context(), id, req.BarrioID, req.Direccion)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *SociosHandler) ListarTerrenos(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	data, err := h.svc.ListarTerrenos(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *SociosHandler) ContratarServicio(c *gin.Context) {
	var req dto.ContratarServicioRequest
	if !bindAndValidate(c, &req) {
		return
	}
	s, err := h.svc.ContratarServicio(c.Request.Context(), service.NuevoServicio{
		TerrenoID:    req.TerrenoID,
		Tipo:         req.Tipo,
		TarifaFija:   req.TarifaFija,
		BaseM3:       req.BaseM3,
		PrecioBase:   req.PrecioBase,
		PrecioExceso: req.PrecioExceso,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *SociosHandler) DarDeBajaServicio(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.MotivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.DarDeBajaServicio(c.Request.Context(), id, req.Motivo, middleware.UsuarioID(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SociosHandler) ListarServicios(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	data, err := h.svc.ListarServicios(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}
