package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/service"
)

type unidadRepoMock struct {
	unidades  map[string]*models.Unidad
	productos map[string]int
}

func newUnidadRepoMock() *unidadRepoMock {
	return &unidadRepoMock{unidades: map[string]*models.Unidad{}, productos: map[string]int{}}
}

func (m *unidadRepoMock) List(_ context.Context, _ models.UnidadFilter) ([]models.Unidad, error) {
	out := make([]models.Unidad, 0, len(m.unidades))
	for _, u := range m.unidades {
		out = append(out, *u)
	}
	return out, nil
}

func (m *unidadRepoMock) FindByID(_ context.Context, id string) (*models.Unidad, error) {
	if u, ok := m.unidades[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *unidadRepoMock) FindByNombre(_ context.Context, nombre string) (*models.Unidad, error) {
	for _, u := range m.unidades {
		if u.Nombre == nombre {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *unidadRepoMock) ExistsByNombre(_ context.Context, nombre string, excludeID string) (bool, error) {
	for _, u := range m.unidades {
		if u.Nombre == nombre && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *unidadRepoMock) Create(_ context.Context, unidad *models.Unidad) error {
	if unidad.ID == "" {
		unidad.ID = uuid.NewString()
	}
	m.unidades[unidad.ID] = unidad
	return nil
}

func (m *unidadRepoMock) Update(_ context.Context, unidad *models.Unidad) error {
	m.unidades[unidad.ID] = unidad
	return nil
}

func (m *unidadRepoMock) CountProductos(_ context.Context, unidadID string) (int, error) {
	return m.productos[unidadID], nil
}

func (m *unidadRepoMock) Delete(_ context.Context, id string) error {
	delete(m.unidades, id)
	return nil
}

func postJSON(t *testing.T, payload interface{}, path string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return w, c
}

func TestUnidadHandlerCreateLegacyShape(t *testing.T) {
	repo := newUnidadRepoMock()
	handler := NewUnidadHandler(service.NewUnidadService(repo, nil, nil))

	w, c := postJSON(t, service.CreateUnidadRequest{Nombre: "Docena", Abreviatura: "doc"}, "/unidades")
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Success bool `json:"success"`
		Unidad  struct {
			ID          string `json:"id"`
			Nombre      string `json:"nombre"`
			Abreviatura string `json:"abreviatura"`
		} `json:"unidad"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Unidad.ID)
	assert.Equal(t, "Docena", resp.Unidad.Nombre)
	assert.Equal(t, "doc", resp.Unidad.Abreviatura)
}

func TestUnidadHandlerCreateDuplicateLegacyShape(t *testing.T) {
	repo := newUnidadRepoMock()
	repo.unidades["u1"] = &models.Unidad{ID: "u1", Nombre: "Docena", Abreviatura: "doc", Activo: true}
	handler := NewUnidadHandler(service.NewUnidadService(repo, nil, nil))

	w, c := postJSON(t, service.CreateUnidadRequest{Nombre: "Docena", Abreviatura: "doc"}, "/unidades")
	handler.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestUnidadHandlerDeleteInUse(t *testing.T) {
	repo := newUnidadRepoMock()
	repo.unidades["u1"] = &models.Unidad{ID: "u1", Nombre: "Unidad", Abreviatura: "und", Activo: true}
	repo.productos["u1"] = 3
	handler := NewUnidadHandler(service.NewUnidadService(repo, nil, nil))

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/unidades/u1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "u1"}}

	handler.Delete(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, repo.unidades, "u1")
}
