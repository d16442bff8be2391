package handler

import (
	"net/http"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apierror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/dto"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/middleware"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type PagosHandler struct{ svc service.PagoService }

func NewPagosHandler(svc service.PagoService) *PagosHandler {
	return &PagosHandler{svc: svc}
}

// RegistrarEnCaja godoc
// @Summary Cobro en ventanilla (efectivo, transferencia o cheque)
// @Tags pagos
// @Accept json
// @Produce json
// @Param body body dto.PagoCajaRequest true "Pago"
// @Success 201 {object} model.Pago
// @Failure 409 {object} apierror.APIError
// @Router /v1/pagos/caja [post]
func (h *PagosHandler) RegistrarEnCaja(c *gin.Context) {
	var req dto.PagoCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	lineas := make([]service.LineaPago, 0, len(req.Lineas))
	for _, l := range req.Lineas {
		lineas = append(lineas, service.LineaPago{Metodo: l.Metodo, Monto: l.Monto, Referencia: l.Referencia, Banco: l.Banco})
	}
	p, err := h.svc.RecordAtCounter(c.Request.Context(), service.PagoCaja{
		SocioID:     req.SocioID,
		FacturaID:   req.FacturaID,
		Lineas:      lineas,
		UsuarioID:   middleware.UsuarioID(c),
		Observacion: req.Observacion,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// ReportarTransferencia godoc
// @Summary El socio reporta una transferencia con su comprobante
// @Tags pagos
// @Accept multipart/form-data
// @Produce json
// @Param socio_id formData string true "Socio ID"
// @Param factura_id formData string true "Factura ID"
// @Param monto formData string true "Monto"
// @Param referencia formData string true "Referencia bancaria"
// @Param evidencia formData file false "Comprobante"
// @Success 201 {object} model.Pago
// @Router /v1/pagos/transferencias [post]
func (h *PagosHandler) ReportarTransferencia(c *gin.Context) {
	var form dto.ReporteTransferenciaForm
	if !bindForm(c, &form) {
		return
	}
	socioID := uuid.MustParse(form.SocioID)
	if !middleware.PuedeVerSocio(c, socioID) {
		c.JSON(http.StatusForbidden, apierror.New("Solo puede reportar pagos de su propia cuenta"))
		return
	}
	monto, err := decimal.NewFromString(form.Monto)
	if err != nil || !monto.IsPositive() {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"Monto": "gt"}))
		return
	}
	ev, closeEv, err := evidencia(c, "evidencia")
	if err != nil {
		fail(c, err)
		return
	}
	defer closeEv()

	in := service.ReporteTransferencia{
		SocioID:    socioID,
		FacturaID:  uuid.MustParse(form.FacturaID),
		Monto:      monto,
		Referencia: form.Referencia,
		Evidencia:  ev,
		UsuarioID:  middleware.UsuarioID(c),
	}
	if form.Banco != "" {
		in.Banco = &form.Banco
	}
	p, err := h.svc.ReportTransfer(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *PagosHandler) Validar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.DecisionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	p, err := h.svc.ValidateTransfer(c.Request.Context(), id, req.Decision, req.Motivo, middleware.UsuarioID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PagosHandler) PorValidar(c *gin.Context) {
	data, err := h.svc.ListPorValidar(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *PagosHandler) Obtener(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PagosHandler) PorSocio(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	data, err := h.svc.ListBySocio(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// ── Cierre de caja ───────────────────────────────────────────────────────────

func (h *PagosHandler) Cierre(c *gin.Context) {
	desde, hasta, ok := rangoCierre(c)
	if !ok {
		return
	}
	res, err := h.svc.DailyClosure(c.Request.Context(), desde, hasta)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ExportarCierre godoc
// @Summary Cierre de caja en Excel
// @Tags pagos
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param desde query string false "YYYY-MM-DD"
// @Param hasta query string false "YYYY-MM-DD (exclusivo)"
// @Success 200 {file} binary
// @Router /v1/pagos/cierre/xlsx [get]
func (h *PagosHandler) ExportarCierre(c *gin.Context) {
	desde, hasta, ok := rangoCierre(c)
	if !ok {
		return
	}
	data, err := h.svc.ExportDailyClosure(c.Request.Context(), desde, hasta)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="cierre-`+desde.Format(fechaLayout)+`.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// rangoCierre defaults to today: [00:00, 00:00 of tomorrow).
func rangoCierre(c *gin.Context) (time.Time, time.Time, bool) {
	var q dto.CierreQuery
	if !bindQuery(c, &q) {
		return time.Time{}, time.Time{}, false
	}
	now := time.Now()
	hoy := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	desde := fecha(q.Desde, hoy)
	hasta := fecha(q.Hasta, desde.AddDate(0, 0, 1))
	if !hasta.After(desde) {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"Hasta": "gtfield"}))
		return time.Time{}, time.Time{}, false
	}
	return desde, hasta, true
}
