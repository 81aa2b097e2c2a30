package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/service"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
	"github.com/sigea-dev/almacen-api/pkg/response"
)

// UnidadHandler exposes unit-of-measure endpoints.
type UnidadHandler struct {
	unidades *service.UnidadService
}

// NewUnidadHandler constructs UnidadHandler.
func NewUnidadHandler(unidades *service.UnidadService) *UnidadHandler {
	return &UnidadHandler{unidades: unidades}
}

// List godoc
// @Summary List units
// @Tags Unidades
// @Produce json
// @Param activo query bool false "Filter by active state"
// @Param search query string false "Search by name"
// @Success 200 {object} response.Envelope
// @Router /unidades [get]
func (h *UnidadHandler) List(c *gin.Context) {
	var filter models.UnidadFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if activo := c.Query("activo"); activo != "" {
		v := activo == "true"
		filter.Activo = &v
	}

	unidades, err := h.unidades.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, unidades, nil)
}

// Get godoc
// @Summary Get unit
// @Tags Unidades
// @Produce json
// @Param id path string true "Unit ID"
// @Success 200 {object} response.Envelope
// @Router /unidades/{id} [get]
func (h *UnidadHandler) Get(c *gin.Context) {
	unidad, err := h.unidades.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, unidad, nil)
}

// Create godoc
// @Summary Create unit
// @Description Registers a unit and answers in the legacy page-script shape.
// @Tags Unidades
// @Accept json
// @Produce json
// @Param payload body service.CreateUnidadRequest true "Unit payload"
// @Success 201 {object} map[string]interface{}
// @Router /unidades [post]
func (h *UnidadHandler) Create(c *gin.Context) {
	var req service.CreateUnidadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid payload"})
		return
	}
	unidad, err := h.unidades.Create(c.Request.Context(), req)
	if err != nil {
		appErr := appErrors.FromError(err)
		c.JSON(appErr.Status, gin.H{"success": false, "error": appErr.Message})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"unidad": gin.H{
			"id":          unidad.ID,
			"nombre":      unidad.Nombre,
			"abreviatura": unidad.Abreviatura,
		},
	})
}

// Update godoc
// @Summary Update unit
// @Tags Unidades
// @Accept json
// @Produce json
// @Param id path string true "Unit ID"
// @Param payload body service.UpdateUnidadRequest true "Unit payload"
// @Success 200 {object} response.Envelope
// @Router /unidades/{id} [put]
func (h *UnidadHandler) Update(c *gin.Context) {
	var req service.UpdateUnidadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	unidad, err := h.unidades.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, unidad, nil)
}

// Delete godoc
// @Summary Delete unit
// @Description Rejected with 409 while products still reference the unit.
// @Tags Unidades
// @Produce json
// @Param id path string true "Unit ID"
// @Success 204 "No Content"
// @Failure 409 {object} response.Envelope
// @Router /unidades/{id} [delete]
func (h *UnidadHandler) Delete(c *gin.Context) {
	if err := h.unidades.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
