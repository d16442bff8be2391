package handler

import (
	"net/http"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/dto"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/middleware"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type VentasHandler struct{ svc service.VentaService }

func NewVentasHandler(svc service.VentaService) *VentasHandler {
	return &VentasHandler{svc: svc}
}

// RegistrarVenta godoc
// @Summary Venta de materiales al contado, facturada al socio
// @Tags ventas
// @Accept json
// @Produce json
// @Param body body dto.VentaRequest true "Venta"
// @Success 201 {object} service.ResultadoVenta
// @Failure 409 {object} apierror.APIError
// @Router /v1/ventas [post]
func (h *VentasHandler) RegistrarVenta(c *gin.Context) {
	var req dto.VentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	items := make([]service.ItemVenta, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.ItemVenta{ProductoID: it.ProductoID, Cantidad: it.Cantidad})
	}
	res, err := h.svc.Sell(c.Request.Context(), service.NuevaVenta{
		SocioID:    req.SocioID,
		Items:      items,
		Metodo:     req.Metodo,
		Referencia: req.Referencia,
		UsuarioID:  middleware.UsuarioID(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
