package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigea-dev/almacen-api/internal/models"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
)

type fakeUnidadRepo struct {
	porNombre map[string]*models.Unidad
	porID     map[string]*models.Unidad
	productos map[string]int
	creadas   []*models.Unidad
	borradas  []string
}

func (f *fakeUnidadRepo) List(_ context.Context, _ models.UnidadFilter) ([]models.Unidad, error) {
	return nil, nil
}

func (f *fakeUnidadRepo) FindByID(_ context.Context, id string) (*models.Unidad, error) {
	if u, ok := f.porID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUnidadRepo) FindByNombre(_ context.Context, nombre string) (*models.Unidad, error) {
	if u, ok := f.porNombre[nombre]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUnidadRepo) ExistsByNombre(_ context.Context, nombre string, _ string) (bool, error) {
	_, ok := f.porNombre[nombre]
	return ok, nil
}

func (f *fakeUnidadRepo) Create(_ context.Context, unidad *models.Unidad) error {
	unidad.ID = "uni-nueva"
	f.creadas = append(f.creadas, unidad)
	return nil
}

func (f *fakeUnidadRepo) Update(_ context.Context, _ *models.Unidad) error { return nil }

func (f *fakeUnidadRepo) CountProductos(_ context.Context, id string) (int, error) {
	return f.productos[id], nil
}

func (f *fakeUnidadRepo) Delete(_ context.Context, id string) error {
	f.borradas = append(f.borradas, id)
	return nil
}

func TestUnidadDeleteRejectedWhenInUse(t *testing.T) {
	repo := &fakeUnidadRepo{
		porID:     map[string]*models.Unidad{"uni-1": {ID: "uni-1", Nombre: "unidad"}},
		productos: map[string]int{"uni-1": 3},
	}
	svc := NewUnidadService(repo, nil, nil)

	err := svc.Delete(context.Background(), "uni-1")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnitInUse.Code, appErr.Code)
	assert.Empty(t, repo.borradas)
}

func TestUnidadDeleteWhenUnused(t *testing.T) {
	repo := &fakeUnidadRepo{
		porID: map[string]*models.Unidad{"uni-1": {ID: "uni-1", Nombre: "caja"}},
	}
	svc := NewUnidadService(repo, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "uni-1"))
	assert.Equal(t, []string{"uni-1"}, repo.borradas)
}

func TestUnidadFindOrCreateReusesExisting(t *testing.T) {
	repo := &fakeUnidadRepo{
		porNombre: map[string]*models.Unidad{"docena": {ID: "uni-7", Nombre: "docena"}},
	}
	svc := NewUnidadService(repo, nil, nil)

	unidad, creada, err := svc.FindOrCreate(context.Background(), "  docena ")
	require.NoError(t, err)
	assert.False(t, creada)
	assert.Equal(t, "uni-7", unidad.ID)
	assert.Empty(t, repo.creadas)
}

func TestUnidadFindOrCreateCreatesWithDerivedAbbreviation(t *testing.T) {
	repo := &fakeUnidadRepo{}
	svc := NewUnidadService(repo, nil, nil)

	unidad, creada, err := svc.FindOrCreate(context.Background(), "Paquete Grande")
	require.NoError(t, err)
	assert.True(t, creada)
	assert.Equal(t, "Paquete Grande", unidad.Nombre)
	assert.Equal(t, "paquete gr", unidad.Abreviatura)
	assert.True(t, unidad.Activo)
}

func TestUnidadFindOrCreateRequiresName(t *testing.T) {
	svc := NewUnidadService(&fakeUnidadRepo{}, nil, nil)

	_, _, err := svc.FindOrCreate(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
