package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/repository"
	"github.com/sigea-dev/almacen-api/pkg/config"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
	"github.com/sigea-dev/almacen-api/pkg/jobs"
	"github.com/sigea-dev/almacen-api/pkg/storage"
)

type fakeReporteRepo struct {
	reportes map[string]*models.Reporte
}

func (f *fakeReporteRepo) Create(_ context.Context, reporte *models.Reporte) error {
	if f.reportes == nil {
		f.reportes = map[string]*models.Reporte{}
	}
	f.reportes[reporte.ID] = reporte
	return nil
}

func (f *fakeReporteRepo) GetByID(_ context.Context, id string) (*models.Reporte, error) {
	if r, ok := f.reportes[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeReporteRepo) MarkProcessing(_ context.Context, id string) error {
	f.reportes[id].Estado = models.ReporteProcesando
	return nil
}

func (f *fakeReporteRepo) MarkReady(_ context.Context, id string, archivo string) error {
	f.reportes[id].Estado = models.ReporteListo
	f.reportes[id].Archivo = &archivo
	return nil
}

func (f *fakeReporteRepo) MarkFailed(_ context.Context, id string, cause string) error {
	f.reportes[id].Estado = models.ReporteFallido
	f.reportes[id].Error = &cause
	return nil
}

func (f *fakeReporteRepo) ListRecent(_ context.Context, _ int) ([]models.Reporte, error) {
	return nil, nil
}

type fakeReporteProductoLister struct {
	productos []models.ProductoDetalle
}

func (f *fakeReporteProductoLister) ListAll(_ context.Context, _ models.UbicacionAlmacen) ([]models.ProductoDetalle, error) {
	return f.productos, nil
}

type fakeReporteMovimientoLister struct {
	movimientos []models.Movimiento
}

func (f *fakeReporteMovimientoLister) List(_ context.Context, filter repository.MovimientoFilter) ([]models.Movimiento, int, error) {
	if filter.Page > 1 {
		return nil, len(f.movimientos), nil
	}
	return f.movimientos, len(f.movimientos), nil
}

func newReporteService(t *testing.T, enabled bool, repo *fakeReporteRepo) (*ReporteService, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("reports-secret", time.Minute)

	producto := models.ProductoDetalle{}
	producto.CodigoAlmacen = "01"
	producto.CodigoProducto = "01-0001"
	producto.Nombre = "Lapiceros"
	producto.Cantidad = 10
	producto.Estado = models.EstadoDisponible
	producto.UnidadNombre = "unidad"

	cfg := config.ReportsConfig{
		Enabled:         enabled,
		SignedURLTTL:    time.Minute,
		CleanupInterval: time.Minute,
	}

	svc := NewReporteService(
		repo,
		&fakeReporteProductoLister{productos: []models.ProductoDetalle{producto}},
		&fakeReporteMovimientoLister{movimientos: []models.Movimiento{{
			ProductoID:      "prod-1",
			Tipo:            models.MovimientoEntrada,
			Cantidad:        10,
			CantidadNueva:   10,
			FechaMovimiento: time.Now(),
		}}},
		store, signer, cfg, nil, nil, nil,
	)
	return svc, dir
}

func TestSolicitarRejectedWhenDisabled(t *testing.T) {
	svc, _ := newReporteService(t, false, &fakeReporteRepo{})

	_, err := svc.Solicitar(context.Background(), models.ReporteRequest{
		Tipo:    ReporteInventario,
		Formato: models.FormatoCSV,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestProcessBuildsInventoryReport(t *testing.T) {
	repo := &fakeReporteRepo{}
	svc, dir := newReporteService(t, true, repo)

	reporte := &models.Reporte{ID: "rep-1", Tipo: ReporteInventario, Formato: models.FormatoCSV, Estado: models.ReportePendiente}
	require.NoError(t, repo.Create(context.Background(), reporte))

	job := jobs.Job{ID: "rep-1", Type: ReporteInventario, Payload: reporteJobPayload{
		ReporteID: "rep-1",
		Request:   models.ReporteRequest{Tipo: ReporteInventario, Formato: models.FormatoCSV},
	}}
	require.NoError(t, svc.process(context.Background(), job))

	guardado := repo.reportes["rep-1"]
	assert.Equal(t, models.ReporteListo, guardado.Estado)
	require.NotNil(t, guardado.Archivo)

	payload, err := os.ReadFile(filepath.Join(dir, *guardado.Archivo))
	require.NoError(t, err)
	contenido := string(payload)
	assert.Contains(t, contenido, "codigo_producto")
	assert.Contains(t, contenido, "01-0001")
}

func TestProcessBuildsMovementReport(t *testing.T) {
	repo := &fakeReporteRepo{}
	svc, dir := newReporteService(t, true, repo)

	reporte := &models.Reporte{ID: "rep-2", Tipo: ReporteMovimientos, Formato: models.FormatoCSV, Estado: models.ReportePendiente}
	require.NoError(t, repo.Create(context.Background(), reporte))

	job := jobs.Job{ID: "rep-2", Type: ReporteMovimientos, Payload: reporteJobPayload{
		ReporteID: "rep-2",
		Request:   models.ReporteRequest{Tipo: ReporteMovimientos, Formato: models.FormatoCSV},
	}}
	require.NoError(t, svc.process(context.Background(), job))

	guardado := repo.reportes["rep-2"]
	require.Equal(t, models.ReporteListo, guardado.Estado)
	require.NotNil(t, guardado.Archivo)
	assert.True(t, strings.HasSuffix(*guardado.Archivo, ".csv"))

	payload, err := os.ReadFile(filepath.Join(dir, *guardado.Archivo))
	require.NoError(t, err)
	assert.Contains(t, string(payload), "ENTRADA")
}

func TestDescargarRequiresFinishedReport(t *testing.T) {
	repo := &fakeReporteRepo{reportes: map[string]*models.Reporte{
		"rep-3": {ID: "rep-3", Estado: models.ReporteProcesando},
	}}
	svc, _ := newReporteService(t, true, repo)

	_, _, err := svc.Descargar(context.Background(), "rep-3")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}
