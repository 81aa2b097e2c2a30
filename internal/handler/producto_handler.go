package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/repository"
	"github.com/sigea-dev/almacen-api/internal/service"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
	"github.com/sigea-dev/almacen-api/pkg/response"
)

// ProductoHandler exposes product and stock-ledger endpoints.
type ProductoHandler struct {
	productos *service.ProductoService
}

// NewProductoHandler constructs ProductoHandler.
func NewProductoHandler(productos *service.ProductoService) *ProductoHandler {
	return &ProductoHandler{productos: productos}
}

// List godoc
// @Summary List products
// @Tags Productos
// @Produce json
// @Param ubicacion query string false "Warehouse location (AG, AD, IU)"
// @Param estado query string false "Status (DISP, AGOT, BAJO)"
// @Param search query string false "Search by name or code"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /productos [get]
func (h *ProductoHandler) List(c *gin.Context) {
	var filter models.ProductoFilter
	filter.Ubicacion = models.UbicacionAlmacen(c.Query("ubicacion"))
	filter.Estado = models.EstadoProducto(c.Query("estado"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	productos, pagination, err := h.productos.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, productos, pagination)
}

// Ultimo godoc
// @Summary Last created product of a warehouse
// @Description Answers in the shape the stock pages consume.
// @Tags Productos
// @Produce json
// @Param ubicacion query string true "Warehouse location (AG, AD, IU)"
// @Success 200 {object} models.UltimoProducto
// @Router /productos/ultimo [get]
func (h *ProductoHandler) Ultimo(c *gin.Context) {
	ultimo, err := h.productos.Ultimo(c.Request.Context(), models.UbicacionAlmacen(c.Query("ubicacion")))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, ultimo)
}

// Get godoc
// @Summary Get product detail
// @Tags Productos
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} response.Envelope
// @Router /productos/{id} [get]
func (h *ProductoHandler) Get(c *gin.Context) {
	producto, err := h.productos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, producto, nil)
}

// Create godoc
// @Summary Create product
// @Tags Productos
// @Accept json
// @Produce json
// @Param payload body service.CreateProductoRequest true "Product payload"
// @Success 201 {object} response.Envelope
// @Router /productos [post]
func (h *ProductoHandler) Create(c *gin.Context) {
	var req service.CreateProductoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	producto, err := h.productos.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, producto)
}

// Update godoc
// @Summary Update product
// @Tags Productos
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param payload body service.UpdateProductoRequest true "Product payload"
// @Success 200 {object} response.Envelope
// @Router /productos/{id} [put]
func (h *ProductoHandler) Update(c *gin.Context) {
	var req service.UpdateProductoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	producto, err := h.productos.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, producto, nil)
}

// Delete godoc
// @Summary Delete product
// @Tags Productos
// @Produce json
// @Param id path string true "Product ID"
// @Success 204 "No Content"
// @Router /productos/{id} [delete]
func (h *ProductoHandler) Delete(c *gin.Context) {
	if err := h.productos.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RegistrarMovimiento godoc
// @Summary Register stock movement
// @Description Appends a ledger entry and reconciles quantity and status.
// @Tags Productos
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param payload body service.MovimientoRequest true "Movement payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /productos/{id}/movimientos [post]
func (h *ProductoHandler) RegistrarMovimiento(c *gin.Context) {
	var req service.MovimientoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	movimiento, err := h.productos.RegistrarMovimiento(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, movimiento)
}

// Movimientos godoc
// @Summary List stock movements of a product
// @Tags Productos
// @Produce json
// @Param id path string true "Product ID"
// @Param tipo query string false "Movement kind"
// @Param desde query string false "From date (RFC 3339)"
// @Param hasta query string false "To date (RFC 3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /productos/{id}/movimientos [get]
func (h *ProductoHandler) Movimientos(c *gin.Context) {
	var filter repository.MovimientoFilter
	filter.ProductoID = c.Param("id")
	filter.Tipo = models.TipoMovimiento(c.Query("tipo"))
	if desde := c.Query("desde"); desde != "" {
		if ts, err := time.Parse(time.RFC3339, desde); err == nil {
			filter.Desde = &ts
		}
	}
	if hasta := c.Query("hasta"); hasta != "" {
		if ts, err := time.Parse(time.RFC3339, hasta); err == nil {
			filter.Hasta = &ts
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	movimientos, pagination, err := h.productos.Movimientos(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, movimientos, pagination)
}
