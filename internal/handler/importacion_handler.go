package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/service"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
	"github.com/sigea-dev/almacen-api/pkg/response"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ImportacionHandler exposes spreadsheet import and export endpoints.
type ImportacionHandler struct {
	importaciones *service.ImportacionService
}

// NewImportacionHandler constructs ImportacionHandler.
func NewImportacionHandler(importaciones *service.ImportacionService) *ImportacionHandler {
	return &ImportacionHandler{importaciones: importaciones}
}

// ImportarProductos godoc
// @Summary Bulk import products from a workbook
// @Description Upserts rows by product code; row failures are collected and
// @Description returned with the summary instead of aborting the batch.
// @Tags Importaciones
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "xlsx workbook"
// @Success 200 {object} models.ResultadoImportacion
// @Failure 400 {object} response.Envelope
// @Router /importaciones/productos [post]
func (h *ImportacionHandler) ImportarProductos(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close() //nolint:errcheck

	resultado, err := h.importaciones.ImportarProductos(c.Request.Context(), src, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, resultado)
}

// Plantilla godoc
// @Summary Download the product import template
// @Tags Importaciones
// @Produce application/octet-stream
// @Success 200 {file} binary
// @Router /importaciones/productos/plantilla [get]
func (h *ImportacionHandler) Plantilla(c *gin.Context) {
	payload, err := h.importaciones.Plantilla()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="plantilla_productos.xlsx"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, mimeXLSX, payload)
}

// ExportarProductos godoc
// @Summary Export the current inventory
// @Tags Importaciones
// @Produce application/octet-stream
// @Param ubicacion query string false "Warehouse location (AG, AD, IU); empty for all"
// @Param formato query string false "csv or xlsx (default xlsx)"
// @Success 200 {file} binary
// @Router /importaciones/productos/export [get]
func (h *ImportacionHandler) ExportarProductos(c *gin.Context) {
	formato := models.FormatoReporte(c.DefaultQuery("formato", string(models.FormatoXLSX)))
	payload, filename, err := h.importaciones.ExportarProductos(c.Request.Context(), models.UbicacionAlmacen(c.Query("ubicacion")), formato)
	if err != nil {
		response.Error(c, err)
		return
	}

	mime := mimeXLSX
	if formato == models.FormatoCSV {
		mime = "text/csv"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, mime, payload)
}

// ImportarAlumnos godoc
// @Summary Import a classroom roster from the institutional workbook
// @Tags Importaciones
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Classroom ID"
// @Param file formData file true "xlsx roster"
// @Success 200 {object} models.ResultadoImportacionAlumnos
// @Failure 404 {object} response.Envelope
// @Router /salones/{id}/alumnos/importar [post]
func (h *ImportacionHandler) ImportarAlumnos(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close() //nolint:errcheck

	resultado, err := h.importaciones.ImportarAlumnos(c.Request.Context(), c.Param("id"), src)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, resultado)
}
