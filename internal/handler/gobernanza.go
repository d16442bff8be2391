package handler

import (
	"net/http"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apierror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/dto"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/middleware"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GobernanzaHandler covers community events, attendance and fines.
type GobernanzaHandler struct{ svc service.GobernanzaService }

func NewGobernanzaHandler(svc service.GobernanzaService) *GobernanzaHandler {
	return &GobernanzaHandler{svc: svc}
}

func (h *GobernanzaHandler) CrearEvento(c *gin.Context) {
	var req dto.CrearEventoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	e, err := h.svc.CreateEvent(c.Request.Context(), service.NuevoEvento{
		Nombre:     req.Nombre,
		Tipo:       req.Tipo,
		Fecha:      fecha(req.Fecha, time.Now()),
		ValorMulta: req.ValorMulta,
		Alcance:    req.Alcance,
		BarrioID:   req.BarrioID,
		SocioIDs:   req.SocioIDs,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *GobernanzaHandler) ListarEventos(c *gin.Context) {
	data, err := h.svc.ListEvents(c.Request.Context(), c.Query("estado"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *GobernanzaHandler) ObtenerEvento(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	e, asistencias, err := h.svc.GetEvent(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evento": e, "asistencias": asistencias})
}

func (h *GobernanzaHandler) CancelarEvento(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.MotivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	e, err := h.svc.CancelEvent(c.Request.Context(), id, req.Motivo, middleware.UsuarioID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *GobernanzaHandler) RegistrarAsistencia(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.RegistrarAsistenciaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	registros := make([]service.RegistroAsistencia, 0, len(req.Registros))
	for _, r := range req.Registros {
		registros = append(registros, service.RegistroAsistencia{SocioID: r.SocioID, Estado: r.Estado, Observacion: r.Observacion})
	}
	data, err := h.svc.RegisterAttendance(c.Request.Context(), id, registros)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// ProcesarMultas godoc
// @Summary Generar multas por inasistencia de un evento realizado
// @Tags gobernanza
// @Produce json
// @Param id path string true "Evento ID"
// @Success 200 {object} service.ResultadoMultas
// @Failure 409 {object} apierror.APIError
// @Router /v1/eventos/{id}/multas [post]
func (h *GobernanzaHandler) ProcesarMultas(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.ProcessFinesBatch(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ── Justificaciones ──────────────────────────────────────────────────────────

func (h *GobernanzaHandler) EnviarJustificacion(c *gin.Context) {
	var form dto.JustificacionForm
	if !bindForm(c, &form) {
		return
	}
	in := service.NuevaJustificacion{
		AsistenciaID: uuid.MustParse(form.AsistenciaID),
		Motivo:       form.Motivo,
		Descripcion:  form.Descripcion,
	}
	if claims := middleware.GetClaims(c); claims != nil && claims.Rol == model.RolSocio {
		socioID, err := uuid.Parse(claims.SocioID)
		if err != nil {
			c.JSON(http.StatusForbidden, apierror.New("Cuenta sin socio asociado"))
			return
		}
		in.SocioID = &socioID
	}
	ev, closeEv, err := evidencia(c, "evidencia")
	if err != nil {
		fail(c, err)
		return
	}
	defer closeEv()
	in.Evidencia = ev

	sol, err := h.svc.SubmitJustification(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sol)
}

func (h *GobernanzaHandler) ResolverJustificacion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ResolverJustificacionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	sol, err := h.svc.ResolveJustification(c.Request.Context(), id, req.Decision, req.Nota, middleware.UsuarioID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sol)
}

func (h *GobernanzaHandler) ListarJustificaciones(c *gin.Context) {
	data, err := h.svc.ListJustifications(c.Request.Context(), c.Query("estado"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}
