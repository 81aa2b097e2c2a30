package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/service"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
	"github.com/sigea-dev/almacen-api/pkg/response"
)

// ReporteHandler exposes asynchronous report generation.
type ReporteHandler struct {
	reportes *service.ReporteService
}

// NewReporteHandler constructs ReporteHandler.
func NewReporteHandler(reportes *service.ReporteService) *ReporteHandler {
	return &ReporteHandler{reportes: reportes}
}

// Solicitar godoc
// @Summary Request a report
// @Description Queues a report build and answers immediately with its pending record.
// @Tags Reportes
// @Accept json
// @Produce json
// @Param payload body models.ReporteRequest true "Report request"
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reportes [post]
func (h *ReporteHandler) Solicitar(c *gin.Context) {
	var req models.ReporteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	reporte, err := h.reportes.Solicitar(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, reporte, nil)
}

// Estado godoc
// @Summary Get report status
// @Tags Reportes
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reportes/{id} [get]
func (h *ReporteHandler) Estado(c *gin.Context) {
	reporte, err := h.reportes.Estado(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reporte, nil)
}

// Recientes godoc
// @Summary List recent reports
// @Tags Reportes
// @Produce json
// @Param limit query int false "Max results (20 default, 100 max)"
// @Success 200 {object} response.Envelope
// @Router /reportes [get]
func (h *ReporteHandler) Recientes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	reportes, err := h.reportes.Recientes(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reportes, nil)
}

// Descargar godoc
// @Summary Issue a signed download link for a finished report
// @Tags Reportes
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reportes/{id}/descarga [get]
func (h *ReporteHandler) Descargar(c *gin.Context) {
	token, expira, err := h.reportes.Descargar(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "expira": expira}, nil)
}

// Archivo godoc
// @Summary Download a report file through a signed token
// @Tags Reportes
// @Produce application/octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /reportes/archivo [get]
func (h *ReporteHandler) Archivo(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, filename, err := h.reportes.AbrirArchivo(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := "application/octet-stream"
	if strings.HasSuffix(filename, string("."+models.FormatoCSV)) {
		contentType = "text/csv"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, -1, contentType, file, nil)
}
