package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/service"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
	"github.com/sigea-dev/almacen-api/pkg/response"
)

// SalonHandler exposes classroom endpoints and the distribution summary.
type SalonHandler struct {
	salones *service.SalonService
}

// NewSalonHandler constructs SalonHandler.
func NewSalonHandler(salones *service.SalonService) *SalonHandler {
	return &SalonHandler{salones: salones}
}

// List godoc
// @Summary List classrooms
// @Tags Salones
// @Produce json
// @Param grado query int false "Grade (1-6)"
// @Param turno query string false "Shift (M, T)"
// @Param search query string false "Search by name or teacher"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /salones [get]
func (h *SalonHandler) List(c *gin.Context) {
	var filter models.SalonFilter
	if grado, err := strconv.Atoi(c.Query("grado")); err == nil {
		filter.Grado = grado
	}
	filter.Turno = models.Turno(c.Query("turno"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	salones, pagination, err := h.salones.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, salones, pagination)
}

// Resumen godoc
// @Summary Distribution summary across classrooms
// @Tags Salones
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /salones/resumen [get]
func (h *SalonHandler) Resumen(c *gin.Context) {
	resumen, err := h.salones.Resumen(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resumen, nil)
}

// Get godoc
// @Summary Get classroom detail
// @Tags Salones
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /salones/{id} [get]
func (h *SalonHandler) Get(c *gin.Context) {
	salon, err := h.salones.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, salon, nil)
}

// Create godoc
// @Summary Create classroom
// @Tags Salones
// @Accept json
// @Produce json
// @Param payload body service.SalonRequest true "Classroom payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /salones [post]
func (h *SalonHandler) Create(c *gin.Context) {
	var req service.SalonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	salon, err := h.salones.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, salon)
}

// Update godoc
// @Summary Update classroom
// @Tags Salones
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body service.SalonRequest true "Classroom payload"
// @Success 200 {object} response.Envelope
// @Router /salones/{id} [put]
func (h *SalonHandler) Update(c *gin.Context) {
	var req service.SalonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	salon, err := h.salones.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, salon, nil)
}

// Delete godoc
// @Summary Delete classroom and its roster
// @Tags Salones
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 204 "No Content"
// @Router /salones/{id} [delete]
func (h *SalonHandler) Delete(c *gin.Context) {
	if err := h.salones.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
