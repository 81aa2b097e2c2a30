package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/service"
)

type alumnoRepoMock struct {
	alumnos map[string]*models.AlumnoDetalle
}

func (m *alumnoRepoMock) ListConEstado(_ context.Context, _ string) ([]models.AlumnoDetalle, error) {
	return nil, nil
}

func (m *alumnoRepoMock) FindByID(_ context.Context, id string) (*models.AlumnoDetalle, error) {
	if a, ok := m.alumnos[id]; ok {
		detalle := *a
		detalle.Clasificar()
		detalle.EntregaCompleta = detalle.EntregaCompletada()
		return &detalle, nil
	}
	return nil, sql.ErrNoRows
}

func (m *alumnoRepoMock) ExistsByDNI(_ context.Context, _ string, _ string) (bool, error) {
	return false, nil
}

func (m *alumnoRepoMock) Create(_ context.Context, _ *models.Alumno) error { return nil }

func (m *alumnoRepoMock) Update(_ context.Context, _ *models.Alumno) error { return nil }

func (m *alumnoRepoMock) Delete(_ context.Context, _ string) error { return nil }

type entregaRepoMock struct {
	entregas   map[string]*models.EntregaDetalle
	completado map[string]bool
}

func (m *entregaRepoMock) ListUtiles(_ context.Context, _ string) ([]models.UtilSalon, error) {
	return nil, nil
}

func (m *entregaRepoMock) GetUtil(_ context.Context, _ string) (*models.UtilSalon, error) {
	return nil, sql.ErrNoRows
}

func (m *entregaRepoMock) CreateUtil(_ context.Context, _ *models.UtilSalon) error { return nil }

func (m *entregaRepoMock) UpdateUtil(_ context.Context, _ *models.UtilSalon) error { return nil }

func (m *entregaRepoMock) DeleteUtil(_ context.Context, _ string) error { return nil }

func (m *entregaRepoMock) ListEntregas(_ context.Context, _ string) ([]models.EntregaDetalle, error) {
	return nil, nil
}

func (m *entregaRepoMock) GetEntrega(_ context.Context, id string) (*models.EntregaDetalle, error) {
	if e, ok := m.entregas[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *entregaRepoMock) ActualizarCantidad(_ context.Context, entregaID string, cantidad int, observaciones *string) (*models.EntregaDetalle, error) {
	entrega, ok := m.entregas[entregaID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if cantidad < 0 {
		cantidad = 0
	}
	if cantidad > entrega.CantidadRequerida {
		cantidad = entrega.CantidadRequerida
	}
	entrega.CantidadEntregada = cantidad
	entrega.Observaciones = observaciones
	now := time.Now()
	entrega.FechaEntrega = &now
	return entrega, nil
}

func (m *entregaRepoMock) MarcarCompleta(_ context.Context, alumnoID string) error {
	m.completado[alumnoID] = true
	return nil
}

func (m *entregaRepoMock) Reiniciar(_ context.Context, alumnoID string) error {
	m.completado[alumnoID] = false
	return nil
}

func (m *entregaRepoMock) ListHistorial(_ context.Context, _ string) ([]models.HistorialEntrega, error) {
	return nil, nil
}

type salonLookupMock struct{}

func (m *salonLookupMock) FindByID(_ context.Context, _ string) (*models.SalonDetalle, error) {
	return &models.SalonDetalle{}, nil
}

type resumenInvalidatorMock struct{ llamadas int }

func (m *resumenInvalidatorMock) InvalidateResumen(_ context.Context) { m.llamadas++ }

func newAlumnoHandlerFixture() (*AlumnoHandler, *alumnoRepoMock, *entregaRepoMock, *resumenInvalidatorMock) {
	alumnos := &alumnoRepoMock{alumnos: map[string]*models.AlumnoDetalle{}}
	entregas := &entregaRepoMock{entregas: map[string]*models.EntregaDetalle{}, completado: map[string]bool{}}
	resumen := &resumenInvalidatorMock{}
	svc := service.NewAlumnoService(alumnos, entregas, &salonLookupMock{}, resumen, nil, nil)
	return NewAlumnoHandler(svc), alumnos, entregas, resumen
}

func TestAlumnoHandlerActualizarEntregaToggleShape(t *testing.T) {
	handler, _, entregas, resumen := newAlumnoHandlerFixture()
	entregas.entregas["e1"] = &models.EntregaDetalle{
		EntregaUtil:       models.EntregaUtil{ID: "e1", AlumnoID: "a1", UtilID: "u1"},
		UtilNombre:        "Cuaderno",
		CantidadRequerida: 3,
	}

	w, c := postJSON(t, service.EntregaRequest{Cantidad: 5}, "/entregas/e1")
	c.Request.Method = http.MethodPut
	c.Params = gin.Params{{Key: "entregaId", Value: "e1"}}
	handler.ActualizarEntrega(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		OK                bool   `json:"ok"`
		EntregaID         string `json:"entrega_id"`
		CantidadEntregada int    `json:"cantidad_entregada"`
		Entregado         bool   `json:"entregado"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "e1", resp.EntregaID)
	// over-delivery is clamped to the required quantity
	assert.Equal(t, 3, resp.CantidadEntregada)
	assert.True(t, resp.Entregado)
	assert.Equal(t, 1, resumen.llamadas)
}

func TestAlumnoHandlerActualizarEntregaNotFound(t *testing.T) {
	handler, _, _, _ := newAlumnoHandlerFixture()

	w, c := postJSON(t, service.EntregaRequest{Cantidad: 1}, "/entregas/nope")
	c.Request.Method = http.MethodPut
	c.Params = gin.Params{{Key: "entregaId", Value: "nope"}}
	handler.ActualizarEntrega(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.NotEmpty(t, resp.Error)
}

func TestAlumnoHandlerMarcarEntregaCompletaToggleShape(t *testing.T) {
	handler, alumnos, entregas, _ := newAlumnoHandlerFixture()
	alumnos.alumnos["a1"] = &models.AlumnoDetalle{
		Alumno: models.Alumno{ID: "a1", SalonID: "s1", Nombre: "Quispe Mamani, Rosa", DNI: "71234567"},
		EstadoAlumno: models.EstadoAlumno{
			TotalRequerido: 5,
			TotalEntregado: 5,
			TotalItems:     2,
		},
	}

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/alumnos/a1/entregar-todo", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "alumnoId", Value: "a1"}}

	handler.MarcarEntregaCompleta(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, entregas.completado["a1"])
	var resp struct {
		OK                bool   `json:"ok"`
		AlumnoID          string `json:"alumno_id"`
		Estado            string `json:"estado"`
		Progreso          string `json:"progreso"`
		EntregaCompletada bool   `json:"entrega_completada"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "a1", resp.AlumnoID)
	assert.Equal(t, models.EstadoCompleto, resp.Estado)
	assert.Equal(t, "5/5", resp.Progreso)
	assert.True(t, resp.EntregaCompletada)
}
