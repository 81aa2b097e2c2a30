package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/repository"
	"github.com/sigea-dev/almacen-api/internal/service"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
	"github.com/sigea-dev/almacen-api/pkg/response"
)

// PedidoHandler exposes the purchase order workflow endpoints.
type PedidoHandler struct {
	pedidos *service.PedidoService
}

// NewPedidoHandler constructs PedidoHandler.
func NewPedidoHandler(pedidos *service.PedidoService) *PedidoHandler {
	return &PedidoHandler{pedidos: pedidos}
}

// uploadFromForm reads an optional multipart file field. Returns nil when the
// field is absent.
func uploadFromForm(c *gin.Context, field string) (*service.Upload, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s upload", field))
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload")
	}
	return &service.Upload{Filename: fileHeader.Filename, Size: fileHeader.Size, Reader: src}, nil
}

// List godoc
// @Summary List purchase orders
// @Tags Pedidos
// @Produce json
// @Param estado query string false "State (PEND, COMP, ENTR)"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /pedidos [get]
func (h *PedidoHandler) List(c *gin.Context) {
	var filter repository.PedidoFilter
	filter.Estado = models.EstadoPedido(c.Query("estado"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	pedidos, pagination, err := h.pedidos.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pedidos, pagination)
}

// Get godoc
// @Summary Get purchase order detail
// @Tags Pedidos
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /pedidos/{id} [get]
func (h *PedidoHandler) Get(c *gin.Context) {
	pedido, err := h.pedidos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pedido, nil)
}

// Create godoc
// @Summary Create purchase order
// @Tags Pedidos
// @Accept multipart/form-data
// @Produce json
// @Param nombre formData string true "Order name"
// @Param descripcion formData string false "Description"
// @Param archivo formData file false "Supporting document (pdf, doc, docx)"
// @Success 201 {object} response.Envelope
// @Router /pedidos [post]
func (h *PedidoHandler) Create(c *gin.Context) {
	req := service.CreatePedidoRequest{
		Nombre:      c.PostForm("nombre"),
		Descripcion: c.PostForm("descripcion"),
	}
	archivo, err := uploadFromForm(c, "archivo")
	if err != nil {
		response.Error(c, err)
		return
	}
	pedido, err := h.pedidos.Create(c.Request.Context(), req, archivo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pedido)
}

// Update godoc
// @Summary Update purchase order
// @Tags Pedidos
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Order ID"
// @Param nombre formData string true "Order name"
// @Param descripcion formData string false "Description"
// @Param archivo formData file false "Replacement document"
// @Success 200 {object} response.Envelope
// @Router /pedidos/{id} [put]
func (h *PedidoHandler) Update(c *gin.Context) {
	req := service.CreatePedidoRequest{
		Nombre:      c.PostForm("nombre"),
		Descripcion: c.PostForm("descripcion"),
	}
	archivo, err := uploadFromForm(c, "archivo")
	if err != nil {
		response.Error(c, err)
		return
	}
	pedido, err := h.pedidos.Update(c.Request.Context(), c.Param("id"), req, archivo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pedido, nil)
}

// Delete godoc
// @Summary Delete purchase order
// @Tags Pedidos
// @Produce json
// @Param id path string true "Order ID"
// @Success 204 "No Content"
// @Router /pedidos/{id} [delete]
func (h *PedidoHandler) Delete(c *gin.Context) {
	if err := h.pedidos.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Items godoc
// @Summary List order lines
// @Tags Pedidos
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /pedidos/{id}/items [get]
func (h *PedidoHandler) Items(c *gin.Context) {
	items, err := h.pedidos.Items(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// GetItem godoc
// @Summary Get one order line
// @Description Answers in the shape the edit page consumes.
// @Tags Pedidos
// @Produce json
// @Param itemId path string true "Item ID"
// @Success 200 {object} models.ItemPedidoRespuesta
// @Router /pedidos/items/{itemId} [get]
func (h *PedidoHandler) GetItem(c *gin.Context) {
	item, err := h.pedidos.GetItem(c.Request.Context(), c.Param("itemId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// AddItem godoc
// @Summary Add order line
// @Tags Pedidos
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param payload body service.ItemPedidoRequest true "Item payload"
// @Success 201 {object} response.Envelope
// @Router /pedidos/{id}/items [post]
func (h *PedidoHandler) AddItem(c *gin.Context) {
	var req service.ItemPedidoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.pedidos.AddItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateItem godoc
// @Summary Update order line
// @Tags Pedidos
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param itemId path string true "Item ID"
// @Param payload body service.ItemPedidoRequest true "Item payload"
// @Success 200 {object} response.Envelope
// @Router /pedidos/{id}/items/{itemId} [put]
func (h *PedidoHandler) UpdateItem(c *gin.Context) {
	var req service.ItemPedidoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.pedidos.UpdateItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// RemoveItem godoc
// @Summary Remove order line
// @Tags Pedidos
// @Produce json
// @Param id path string true "Order ID"
// @Param itemId path string true "Item ID"
// @Success 204 "No Content"
// @Router /pedidos/{id}/items/{itemId} [delete]
func (h *PedidoHandler) RemoveItem(c *gin.Context) {
	if err := h.pedidos.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Cotizaciones godoc
// @Summary List quotations of an order
// @Tags Pedidos
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /pedidos/{id}/cotizaciones [get]
func (h *PedidoHandler) Cotizaciones(c *gin.Context) {
	cotizaciones, err := h.pedidos.Cotizaciones(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cotizaciones, nil)
}

// AddCotizacion godoc
// @Summary Register supplier quotation
// @Tags Pedidos
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Order ID"
// @Param proveedor formData string true "Supplier"
// @Param monto formData string true "Amount"
// @Param descripcion formData string false "Description"
// @Param documento formData file true "Quotation document"
// @Success 201 {object} response.Envelope
// @Router /pedidos/{id}/cotizaciones [post]
func (h *PedidoHandler) AddCotizacion(c *gin.Context) {
	req := service.CotizacionRequest{
		Proveedor:   c.PostForm("proveedor"),
		Monto:       c.PostForm("monto"),
		Descripcion: c.PostForm("descripcion"),
	}
	documento, err := uploadFromForm(c, "documento")
	if err != nil {
		response.Error(c, err)
		return
	}
	cotizacion, err := h.pedidos.AddCotizacion(c.Request.Context(), c.Param("id"), req, documento)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cotizacion)
}

// UpdateCotizacion godoc
// @Summary Update supplier quotation
// @Tags Pedidos
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Order ID"
// @Param cotizacionId path string true "Quotation ID"
// @Param proveedor formData string true "Supplier"
// @Param monto formData string true "Amount"
// @Param descripcion formData string false "Description"
// @Param documento formData file false "Replacement document"
// @Success 200 {object} response.Envelope
// @Router /pedidos/{id}/cotizaciones/{cotizacionId} [put]
func (h *PedidoHandler) UpdateCotizacion(c *gin.Context) {
	req := service.CotizacionRequest{
		Proveedor:   c.PostForm("proveedor"),
		Monto:       c.PostForm("monto"),
		Descripcion: c.PostForm("descripcion"),
	}
	documento, err := uploadFromForm(c, "documento")
	if err != nil {
		response.Error(c, err)
		return
	}
	cotizacion, err := h.pedidos.UpdateCotizacion(c.Request.Context(), c.Param("id"), c.Param("cotizacionId"), req, documento)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cotizacion, nil)
}

// DeleteCotizacion godoc
// @Summary Delete supplier quotation
// @Tags Pedidos
// @Produce json
// @Param id path string true "Order ID"
// @Param cotizacionId path string true "Quotation ID"
// @Success 204 "No Content"
// @Router /pedidos/{id}/cotizaciones/{cotizacionId} [delete]
func (h *PedidoHandler) DeleteCotizacion(c *gin.Context) {
	if err := h.pedidos.DeleteCotizacion(c.Request.Context(), c.Param("id"), c.Param("cotizacionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SeleccionarCotizacion godoc
// @Summary Select the winning quotation
// @Description Elects one quotation, rejects the rest and completes the order.
// @Tags Pedidos
// @Produce json
// @Param id path string true "Order ID"
// @Param cotizacionId path string true "Quotation ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pedidos/{id}/cotizaciones/{cotizacionId}/seleccionar [post]
func (h *PedidoHandler) SeleccionarCotizacion(c *gin.Context) {
	pedido, err := h.pedidos.SeleccionarCotizacion(c.Request.Context(), c.Param("id"), c.Param("cotizacionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pedido, nil)
}

// MarcarEntregado godoc
// @Summary Mark order delivered
// @Description Terminal transition, only from Completado and with a proof document.
// @Tags Pedidos
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Order ID"
// @Param documento formData file true "Delivery document"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pedidos/{id}/entregar [post]
func (h *PedidoHandler) MarcarEntregado(c *gin.Context) {
	documento, err := uploadFromForm(c, "documento")
	if err != nil {
		response.Error(c, err)
		return
	}
	pedido, err := h.pedidos.MarcarEntregado(c.Request.Context(), c.Param("id"), documento)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pedido, nil)
}

// PDF godoc
// @Summary Download the printable order document
// @Tags Pedidos
// @Produce application/pdf
// @Param id path string true "Order ID"
// @Success 200 {file} binary
// @Router /pedidos/{id}/pdf [get]
func (h *PedidoHandler) PDF(c *gin.Context) {
	payload, filename, err := h.pedidos.GenerarPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", payload)
}

// FirmarDocumento godoc
// @Summary Issue a signed download link for an order document
// @Tags Pedidos
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /pedidos/{id}/documento/firmar [get]
func (h *PedidoHandler) FirmarDocumento(c *gin.Context) {
	pedido, err := h.pedidos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	archivo := c.Query("archivo")
	if archivo == "" {
		if pedido.Archivo == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "order has no document"))
			return
		}
		archivo = *pedido.Archivo
	}

	token, expira, err := h.pedidos.FirmarDocumento(pedido.ID, archivo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "expira": expira}, nil)
}

// DescargarDocumento godoc
// @Summary Download an order document through a signed token
// @Tags Pedidos
// @Produce application/octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /pedidos/documentos [get]
func (h *PedidoHandler) DescargarDocumento(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, filename, err := h.pedidos.AbrirDocumento(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", file, nil)
}
