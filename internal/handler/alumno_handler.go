package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sigea-dev/almacen-api/internal/service"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
	"github.com/sigea-dev/almacen-api/pkg/response"
)

// AlumnoHandler exposes roster, supply list and delivery tracking endpoints.
//
// The delivery toggles answer with the flat {ok, ...} shape the distribution
// page scripts consume instead of the common envelope.
type AlumnoHandler struct {
	alumnos *service.AlumnoService
}

// NewAlumnoHandler constructs AlumnoHandler.
func NewAlumnoHandler(alumnos *service.AlumnoService) *AlumnoHandler {
	return &AlumnoHandler{alumnos: alumnos}
}

// toggleError renders the flat failure shape of the toggle endpoints.
func toggleError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.JSON(appErr.Status, gin.H{"ok": false, "error": appErr.Message})
}

// List godoc
// @Summary List the roster of a classroom
// @Tags Alumnos
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /salones/{id}/alumnos [get]
func (h *AlumnoHandler) List(c *gin.Context) {
	alumnos, err := h.alumnos.ListPorSalon(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alumnos, nil)
}

// Get godoc
// @Summary Get student detail with delivery progress
// @Tags Alumnos
// @Produce json
// @Param alumnoId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /alumnos/{alumnoId} [get]
func (h *AlumnoHandler) Get(c *gin.Context) {
	alumno, err := h.alumnos.Get(c.Request.Context(), c.Param("alumnoId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alumno, nil)
}

// Create godoc
// @Summary Enroll a student
// @Description Also seeds one zero-quantity delivery per supply item of the classroom.
// @Tags Alumnos
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body service.AlumnoRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /salones/{id}/alumnos [post]
func (h *AlumnoHandler) Create(c *gin.Context) {
	var req service.AlumnoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	alumno, err := h.alumnos.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, alumno)
}

// Update godoc
// @Summary Update student data
// @Tags Alumnos
// @Accept json
// @Produce json
// @Param alumnoId path string true "Student ID"
// @Param payload body service.AlumnoRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /alumnos/{alumnoId} [put]
func (h *AlumnoHandler) Update(c *gin.Context) {
	var req service.AlumnoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	alumno, err := h.alumnos.Update(c.Request.Context(), c.Param("alumnoId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alumno, nil)
}

// Delete godoc
// @Summary Remove a student and their deliveries
// @Tags Alumnos
// @Produce json
// @Param alumnoId path string true "Student ID"
// @Success 204 "No Content"
// @Router /alumnos/{alumnoId} [delete]
func (h *AlumnoHandler) Delete(c *gin.Context) {
	if err := h.alumnos.Delete(c.Request.Context(), c.Param("alumnoId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Utiles godoc
// @Summary List the supply items of a classroom
// @Tags Alumnos
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /salones/{id}/utiles [get]
func (h *AlumnoHandler) Utiles(c *gin.Context) {
	utiles, err := h.alumnos.Utiles(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, utiles, nil)
}

// CreateUtil godoc
// @Summary Add a supply item to a classroom
// @Description Also seeds one zero-quantity delivery per enrolled student.
// @Tags Alumnos
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body service.UtilRequest true "Supply item payload"
// @Success 201 {object} response.Envelope
// @Router /salones/{id}/utiles [post]
func (h *AlumnoHandler) CreateUtil(c *gin.Context) {
	var req service.UtilRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	util, err := h.alumnos.CreateUtil(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, util)
}

// UpdateUtil godoc
// @Summary Update a supply item
// @Tags Alumnos
// @Accept json
// @Produce json
// @Param utilId path string true "Supply item ID"
// @Param payload body service.UtilRequest true "Supply item payload"
// @Success 200 {object} response.Envelope
// @Router /utiles/{utilId} [put]
func (h *AlumnoHandler) UpdateUtil(c *gin.Context) {
	var req service.UtilRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	util, err := h.alumnos.UpdateUtil(c.Request.Context(), c.Param("utilId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, util, nil)
}

// DeleteUtil godoc
// @Summary Remove a supply item and its deliveries
// @Tags Alumnos
// @Produce json
// @Param utilId path string true "Supply item ID"
// @Success 204 "No Content"
// @Router /utiles/{utilId} [delete]
func (h *AlumnoHandler) DeleteUtil(c *gin.Context) {
	if err := h.alumnos.DeleteUtil(c.Request.Context(), c.Param("utilId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Entregas godoc
// @Summary List a student's deliveries
// @Tags Alumnos
// @Produce json
// @Param alumnoId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /alumnos/{alumnoId}/entregas [get]
func (h *AlumnoHandler) Entregas(c *gin.Context) {
	entregas, err := h.alumnos.Entregas(c.Request.Context(), c.Param("alumnoId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entregas, nil)
}

// ActualizarEntrega godoc
// @Summary Set the delivered quantity of one delivery
// @Tags Alumnos
// @Accept json
// @Produce json
// @Param entregaId path string true "Delivery ID"
// @Param payload body service.EntregaRequest true "Delivery payload"
// @Success 200 {object} map[string]interface{}
// @Router /entregas/{entregaId} [put]
func (h *AlumnoHandler) ActualizarEntrega(c *gin.Context) {
	var req service.EntregaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		toggleError(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	entrega, err := h.alumnos.ActualizarEntrega(c.Request.Context(), c.Param("entregaId"), req)
	if err != nil {
		toggleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                 true,
		"entrega_id":         entrega.ID,
		"cantidad_entregada": entrega.CantidadEntregada,
		"entregado":          entrega.Entregado(),
		"fecha_entrega":      entrega.FechaEntrega,
	})
}

// MarcarEntregaCompleta godoc
// @Summary Set every delivery of a student to its required quantity
// @Tags Alumnos
// @Produce json
// @Param alumnoId path string true "Student ID"
// @Success 200 {object} map[string]interface{}
// @Router /alumnos/{alumnoId}/entregar-todo [post]
func (h *AlumnoHandler) MarcarEntregaCompleta(c *gin.Context) {
	alumno, err := h.alumnos.MarcarEntregaCompleta(c.Request.Context(), c.Param("alumnoId"))
	if err != nil {
		toggleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                 true,
		"alumno_id":          alumno.ID,
		"estado":             alumno.Estado,
		"progreso":           alumno.Progreso,
		"entrega_completada": alumno.EntregaCompleta,
	})
}

// ReiniciarEntregas godoc
// @Summary Reset every delivery of a student to zero
// @Tags Alumnos
// @Produce json
// @Param alumnoId path string true "Student ID"
// @Success 200 {object} map[string]interface{}
// @Router /alumnos/{alumnoId}/reiniciar [post]
func (h *AlumnoHandler) ReiniciarEntregas(c *gin.Context) {
	alumno, err := h.alumnos.ReiniciarEntregas(c.Request.Context(), c.Param("alumnoId"))
	if err != nil {
		toggleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                 true,
		"alumno_id":          alumno.ID,
		"estado":             alumno.Estado,
		"progreso":           alumno.Progreso,
		"entrega_completada": alumno.EntregaCompleta,
	})
}

// Historial godoc
// @Summary List the audit trail of one delivery
// @Tags Alumnos
// @Produce json
// @Param entregaId path string true "Delivery ID"
// @Success 200 {object} response.Envelope
// @Router /entregas/{entregaId}/historial [get]
func (h *AlumnoHandler) Historial(c *gin.Context) {
	historial, err := h.alumnos.Historial(c.Request.Context(), c.Param("entregaId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, historial, nil)
}
