package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/pkg/config"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
)

type fakeSalonRepo struct {
	salones        map[string]*models.SalonDetalle
	codigos        map[string]bool
	resumen        *models.ResumenEntrega
	resumenLlamado int
	borrados       []string
}

func (f *fakeSalonRepo) List(_ context.Context, _ models.SalonFilter) ([]models.SalonDetalle, int, error) {
	return nil, 0, nil
}

func (f *fakeSalonRepo) FindByID(_ context.Context, id string) (*models.SalonDetalle, error) {
	if s, ok := f.salones[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSalonRepo) ExistsByCodigo(_ context.Context, codigo string, _ string) (bool, error) {
	return f.codigos[codigo], nil
}

func (f *fakeSalonRepo) Create(_ context.Context, salon *models.Salon) error {
	salon.ID = "sal-nuevo"
	if f.salones == nil {
		f.salones = map[string]*models.SalonDetalle{}
	}
	f.salones[salon.ID] = &models.SalonDetalle{Salon: *salon}
	return nil
}

func (f *fakeSalonRepo) Update(_ context.Context, _ *models.Salon) error { return nil }

func (f *fakeSalonRepo) Delete(_ context.Context, id string) error {
	f.borrados = append(f.borrados, id)
	return nil
}

func (f *fakeSalonRepo) Resumen(_ context.Context) (*models.ResumenEntrega, error) {
	f.resumenLlamado++
	return f.resumen, nil
}

type fakeResumenCache struct {
	entradas       map[string][]byte
	invalidaciones []string
}

func newFakeResumenCache() *fakeResumenCache {
	return &fakeResumenCache{entradas: map[string][]byte{}}
}

func (f *fakeResumenCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := f.entradas[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeResumenCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entradas[key] = raw
	return nil
}

func (f *fakeResumenCache) DeleteByPattern(_ context.Context, pattern string) error {
	f.invalidaciones = append(f.invalidaciones, pattern)
	f.entradas = map[string][]byte{}
	return nil
}

func TestResumenCachesSecondRead(t *testing.T) {
	repo := &fakeSalonRepo{resumen: &models.ResumenEntrega{
		TotalSalones:      4,
		TotalAlumnos:      120,
		EntregasCompletas: 75,
		Pendientes:        45,
	}}
	cache := newFakeResumenCache()
	cfg := config.ResumenConfig{CacheEnabled: true, CacheTTL: time.Minute}
	svc := NewSalonService(repo, cache, cfg, nil, nil)

	primero, err := svc.Resumen(context.Background())
	require.NoError(t, err)
	segundo, err := svc.Resumen(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, repo.resumenLlamado)
	assert.Equal(t, primero, segundo)
	assert.Equal(t, 75, segundo.EntregasCompletas)
}

func TestResumenSkipsCacheWhenDisabled(t *testing.T) {
	repo := &fakeSalonRepo{resumen: &models.ResumenEntrega{TotalSalones: 1}}
	cache := newFakeResumenCache()
	svc := NewSalonService(repo, cache, config.ResumenConfig{CacheEnabled: false}, nil, nil)

	_, err := svc.Resumen(context.Background())
	require.NoError(t, err)
	_, err = svc.Resumen(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, repo.resumenLlamado)
	assert.Empty(t, cache.entradas)
}

func TestResumenWorksWithoutCache(t *testing.T) {
	repo := &fakeSalonRepo{resumen: &models.ResumenEntrega{TotalAlumnos: 9}}
	svc := NewSalonService(repo, nil, config.ResumenConfig{CacheEnabled: true}, nil, nil)

	resumen, err := svc.Resumen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, resumen.TotalAlumnos)
}

func TestSalonDeleteInvalidatesResumen(t *testing.T) {
	repo := &fakeSalonRepo{
		salones: map[string]*models.SalonDetalle{"sal-1": {}},
		resumen: &models.ResumenEntrega{},
	}
	cache := newFakeResumenCache()
	cache.entradas["resumen:entregas"] = []byte(`{}`)
	svc := NewSalonService(repo, cache, config.ResumenConfig{CacheEnabled: true}, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "sal-1"))

	assert.Equal(t, []string{"sal-1"}, repo.borrados)
	assert.Equal(t, []string{"resumen:*"}, cache.invalidaciones)
	assert.Empty(t, cache.entradas)
}

func TestSalonCreateRejectsDuplicateCode(t *testing.T) {
	repo := &fakeSalonRepo{codigos: map[string]bool{"3A": true}}
	svc := NewSalonService(repo, nil, config.ResumenConfig{}, nil, nil)

	_, err := svc.Create(context.Background(), SalonRequest{
		Nombre:    "Los Girasoles",
		Codigo:    "3A",
		Profesora: "Rosa Campos",
		Grado:     3,
		Turno:     "M",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
