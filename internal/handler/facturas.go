package handler

import (
	"net/http"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apierror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/dto"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/middleware"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type FacturasHandler struct{ svc service.FacturaService }

func NewFacturasHandler(svc service.FacturaService) *FacturasHandler {
	return &FacturasHandler{svc: svc}
}

// ── Emision ──────────────────────────────────────────────────────────────────

// EmitirPorLectura godoc
// @Summary Emitir factura de consumo a partir de una lectura
// @Tags facturas
// @Accept json
// @Produce json
// @Param body body dto.EmitirLecturaRequest true "Lectura"
// @Success 201 {object} model.Factura
// @Failure 409 {object} apierror.APIError
// @Router /v1/facturas/lectura [post]
func (h *FacturasHandler) EmitirPorLectura(c *gin.Context) {
	var req dto.EmitirLecturaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	f, err := h.svc.EmitFromReading(c.Request.Context(), service.EmisionLectura{
		LecturaID:        req.LecturaID,
		FechaEmision:     fecha(req.FechaEmision, time.Time{}),
		FechaVencimiento: fecha(req.FechaVencimiento, time.Time{}),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *FacturasHandler) EmitirTarifaFija(c *gin.Context) {
	var req dto.EmitirTarifaFijaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	f, created, err := h.svc.EmitFlatRate(c.Request.Context(), req.ServicioID, req.Anio, req.Mes, req.Monto)
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, f)
}

func (h *FacturasHandler) EmitirLote(c *gin.Context) {
	var req dto.EmitirLoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	res, err := h.svc.EmitBatch(c.Request.Context(), req.Anio, req.Mes)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *FacturasHandler) EmitirDesdeCuentas(c *gin.Context) {
	var req dto.EmitirCuentasRequest
	if !bindAndValidate(c, &req) {
		return
	}
	f, err := h.svc.EmitFromReceivables(c.Request.Context(), req.SocioID, req.CuentaIDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// ── SRI ──────────────────────────────────────────────────────────────────────

func (h *FacturasHandler) Enviar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	f, err := h.svc.SubmitToAuthority(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *FacturasHandler) ConsultarAutorizacion(c *gin.Context) {
	f, err := h.svc.ConsultAuthorization(c.Request.Context(), c.Param("clave"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *FacturasHandler) Sincronizar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	f, err := h.svc.Reconcile(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *FacturasHandler) Reemitir(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	f, err := h.svc.Reissue(c.Request.Context(), id, middleware.UsuarioID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *FacturasHandler) Anular(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.MotivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	f, err := h.svc.Void(c.Request.Context(), id, req.Motivo, middleware.UsuarioID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// ── Consulta ─────────────────────────────────────────────────────────────────

func (h *FacturasHandler) Obtener(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	f, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if !h.propia(c, f) {
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *FacturasHandler) Listar(c *gin.Context) {
	var q dto.FacturaFilter
	if !bindQuery(c, &q) {
		return
	}
	filter := repository.FacturaFilter{
		SocioID:     optionalUUID(q.SocioID),
		Estado:      q.Estado,
		EstadoSRI:   q.EstadoSRI,
		PeriodoAnio: q.PeriodoAnio,
		PeriodoMes:  q.PeriodoMes,
		Page:        q.Page,
		Limit:       q.Limit,
	}
	// A socio only ever lists its own invoices.
	if claims := middleware.GetClaims(c); claims != nil && claims.Rol == model.RolSocio {
		id, err := uuid.Parse(claims.SocioID)
		if err != nil {
			c.JSON(http.StatusForbidden, apierror.New("Cuenta sin socio asociado"))
			return
		}
		filter.SocioID = &id
	}
	data, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPage(data, total, q.Page, q.Limit))
}

// PDF godoc
// @Summary Representacion impresa (RIDE) de la factura
// @Tags facturas
// @Produce application/pdf
// @Param id path string true "Factura ID"
// @Success 200 {file} binary
// @Router /v1/facturas/{id}/pdf [get]
func (h *FacturasHandler) PDF(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pdf, f, err := h.svc.RenderPDF(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if !h.propia(c, f) {
		return
	}
	c.Header("Content-Disposition", `inline; filename="factura-`+f.NumeroFactura()+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *FacturasHandler) propia(c *gin.Context, f *model.Factura) bool {
	if middleware.PuedeVerSocio(c, f.SocioID) {
		return true
	}
	c.JSON(http.StatusNotFound, apierror.New("Factura no encontrada"))
	return false
}
