package handler

import (
	"net/http"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

// ConsultaPreciosHandler serves the counter price check. Reads go through
// the Redis-backed price cache inside ProductoService.
type ConsultaPreciosHandler struct {
	svc service.ProductoService
}

func NewConsultaPreciosHandler(svc service.ProductoService) *ConsultaPreciosHandler {
	return &ConsultaPreciosHandler{svc: svc}
}

// GetPrecioPorSKU godoc
// @Summary Consulta de precio de material por SKU
// @Tags precio
// @Produce json
// @Param sku path string true "SKU"
// @Success 200 {object} service.ConsultaPrecio
// @Failure 404 {object} apierror.APIError
// @Router /v1/precio/{sku} [get]
func (h *ConsultaPreciosHandler) GetPrecioPorSKU(c *gin.Context) {
	resp, err := h.svc.ConsultarPrecio(c.Request.Context(), c.Param("sku"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
