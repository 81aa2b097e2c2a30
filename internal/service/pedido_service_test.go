package service

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/repository"
	"github.com/sigea-dev/almacen-api/pkg/config"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
	"github.com/sigea-dev/almacen-api/pkg/storage"
)

type fakePedidoRepo struct {
	pedidos      map[string]*models.PedidoDetalle
	selecciones  [][2]string
	entregados   []string
	cotizaciones []*models.Cotizacion
	seleccionErr error
	entregadoErr error
}

func (f *fakePedidoRepo) List(_ context.Context, _ repository.PedidoFilter) ([]models.PedidoDetalle, int, error) {
	return nil, 0, nil
}

func (f *fakePedidoRepo) GetByID(_ context.Context, id string) (*models.PedidoDetalle, error) {
	if p, ok := f.pedidos[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePedidoRepo) Create(_ context.Context, _ *models.Pedido) error { return nil }
func (f *fakePedidoRepo) Update(_ context.Context, _ *models.Pedido) error { return nil }
func (f *fakePedidoRepo) Delete(_ context.Context, _ string) error         { return nil }

func (f *fakePedidoRepo) ListItems(_ context.Context, _ string) ([]models.ItemPedidoDetalle, error) {
	return nil, nil
}
func (f *fakePedidoRepo) GetItem(_ context.Context, _ string) (*models.ItemPedido, error) {
	return nil, sql.ErrNoRows
}
func (f *fakePedidoRepo) AddItem(_ context.Context, _ *models.ItemPedido) error    { return nil }
func (f *fakePedidoRepo) UpdateItem(_ context.Context, _ *models.ItemPedido) error { return nil }
func (f *fakePedidoRepo) RemoveItem(_ context.Context, _, _ string) error          { return nil }

func (f *fakePedidoRepo) ListCotizaciones(_ context.Context, _ string) ([]models.Cotizacion, error) {
	return nil, nil
}
func (f *fakePedidoRepo) GetCotizacion(_ context.Context, _ string) (*models.Cotizacion, error) {
	return nil, sql.ErrNoRows
}

func (f *fakePedidoRepo) AddCotizacion(_ context.Context, cotizacion *models.Cotizacion) error {
	cotizacion.ID = "cot-nueva"
	f.cotizaciones = append(f.cotizaciones, cotizacion)
	return nil
}

func (f *fakePedidoRepo) UpdateCotizacion(_ context.Context, _ *models.Cotizacion) error { return nil }
func (f *fakePedidoRepo) DeleteCotizacion(_ context.Context, _, _ string) error          { return nil }

func (f *fakePedidoRepo) SeleccionarCotizacion(_ context.Context, pedidoID, cotizacionID string) error {
	if f.seleccionErr != nil {
		return f.seleccionErr
	}
	f.selecciones = append(f.selecciones, [2]string{pedidoID, cotizacionID})
	if p, ok := f.pedidos[pedidoID]; ok {
		p.Estado = models.PedidoCompletado
	}
	return nil
}

func (f *fakePedidoRepo) MarcarEntregado(_ context.Context, pedidoID string, _ string) error {
	if f.entregadoErr != nil {
		return f.entregadoErr
	}
	f.entregados = append(f.entregados, pedidoID)
	if p, ok := f.pedidos[pedidoID]; ok {
		p.Estado = models.PedidoEntregado
	}
	return nil
}

type fakePedidoProductoRepo struct{}

func (f *fakePedidoProductoRepo) FindByID(_ context.Context, _ string) (*models.ProductoDetalle, error) {
	return &models.ProductoDetalle{}, nil
}

func pedidoEnEstado(id string, estado models.EstadoPedido) *models.PedidoDetalle {
	detalle := &models.PedidoDetalle{}
	detalle.ID = id
	detalle.Nombre = "Compra de útiles"
	detalle.Estado = estado
	return detalle
}

func newPedidoService(t *testing.T, repo *fakePedidoRepo) *PedidoService {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	cfg := config.DocumentsConfig{
		MaxFileSizeBytes:  1024,
		AllowedExtensions: []string{"pdf"},
	}
	return NewPedidoService(repo, &fakePedidoProductoRepo{}, store, signer, cfg, nil, nil)
}

func uploadPDF(contenido string) *Upload {
	return &Upload{Filename: "documento.pdf", Size: int64(len(contenido)), Reader: strings.NewReader(contenido)}
}

func TestSeleccionarCotizacionCompletesOrder(t *testing.T) {
	repo := &fakePedidoRepo{pedidos: map[string]*models.PedidoDetalle{
		"ped-1": pedidoEnEstado("ped-1", models.PedidoPendiente),
	}}
	svc := newPedidoService(t, repo)

	pedido, err := svc.SeleccionarCotizacion(context.Background(), "ped-1", "cot-2")
	require.NoError(t, err)

	assert.Equal(t, models.PedidoCompletado, pedido.Estado)
	assert.Equal(t, [][2]string{{"ped-1", "cot-2"}}, repo.selecciones)
}

func TestSeleccionarCotizacionRejectedWhenDelivered(t *testing.T) {
	repo := &fakePedidoRepo{pedidos: map[string]*models.PedidoDetalle{
		"ped-1": pedidoEnEstado("ped-1", models.PedidoEntregado),
	}}
	svc := newPedidoService(t, repo)

	_, err := svc.SeleccionarCotizacion(context.Background(), "ped-1", "cot-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.selecciones)
}

func TestSeleccionarCotizacionUnknownQuotation(t *testing.T) {
	repo := &fakePedidoRepo{
		pedidos:      map[string]*models.PedidoDetalle{"ped-1": pedidoEnEstado("ped-1", models.PedidoPendiente)},
		seleccionErr: sql.ErrNoRows,
	}
	svc := newPedidoService(t, repo)

	_, err := svc.SeleccionarCotizacion(context.Background(), "ped-1", "cot-x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMarcarEntregadoRequiresDocument(t *testing.T) {
	repo := &fakePedidoRepo{pedidos: map[string]*models.PedidoDetalle{
		"ped-1": pedidoEnEstado("ped-1", models.PedidoCompletado),
	}}
	svc := newPedidoService(t, repo)

	_, err := svc.MarcarEntregado(context.Background(), "ped-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.entregados)
}

func TestMarcarEntregadoOnlyFromCompletado(t *testing.T) {
	repo := &fakePedidoRepo{
		pedidos:      map[string]*models.PedidoDetalle{"ped-1": pedidoEnEstado("ped-1", models.PedidoPendiente)},
		entregadoErr: sql.ErrNoRows,
	}
	svc := newPedidoService(t, repo)

	_, err := svc.MarcarEntregado(context.Background(), "ped-1", uploadPDF("acta"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestMarcarEntregadoRejectionLeavesNoDocument(t *testing.T) {
	repo := &fakePedidoRepo{
		pedidos:      map[string]*models.PedidoDetalle{"ped-1": pedidoEnEstado("ped-1", models.PedidoCompletado)},
		entregadoErr: sql.ErrNoRows,
	}
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	cfg := config.DocumentsConfig{MaxFileSizeBytes: 1024, AllowedExtensions: []string{"pdf"}}
	svc := NewPedidoService(repo, &fakePedidoProductoRepo{}, store, signer, cfg, nil, nil)

	_, err = svc.MarcarEntregado(context.Background(), "ped-1", uploadPDF("acta"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	restos, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, restos)
}

func TestMarcarEntregado(t *testing.T) {
	repo := &fakePedidoRepo{pedidos: map[string]*models.PedidoDetalle{
		"ped-1": pedidoEnEstado("ped-1", models.PedidoCompletado),
	}}
	svc := newPedidoService(t, repo)

	pedido, err := svc.MarcarEntregado(context.Background(), "ped-1", uploadPDF("acta de entrega"))
	require.NoError(t, err)
	assert.Equal(t, models.PedidoEntregado, pedido.Estado)
	assert.Equal(t, []string{"ped-1"}, repo.entregados)
}

func TestAddCotizacionRejectsWrongExtension(t *testing.T) {
	repo := &fakePedidoRepo{pedidos: map[string]*models.PedidoDetalle{
		"ped-1": pedidoEnEstado("ped-1", models.PedidoPendiente),
	}}
	svc := newPedidoService(t, repo)

	doc := &Upload{Filename: "cotizacion.exe", Size: 10, Reader: strings.NewReader("0123456789")}
	_, err := svc.AddCotizacion(context.Background(), "ped-1", CotizacionRequest{Proveedor: "Distribuidora Sur", Monto: "120.50"}, doc)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFileType.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.cotizaciones)
}

func TestAddCotizacionRejectsOversizedFile(t *testing.T) {
	repo := &fakePedidoRepo{pedidos: map[string]*models.PedidoDetalle{
		"ped-1": pedidoEnEstado("ped-1", models.PedidoPendiente),
	}}
	svc := newPedidoService(t, repo)

	doc := &Upload{Filename: "cotizacion.pdf", Size: 4096, Reader: strings.NewReader("x")}
	_, err := svc.AddCotizacion(context.Background(), "ped-1", CotizacionRequest{Proveedor: "Distribuidora Sur", Monto: "120.50"}, doc)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFileTooLarge.Code, appErrors.FromError(err).Code)
}

func TestAddCotizacionStoresDocument(t *testing.T) {
	repo := &fakePedidoRepo{pedidos: map[string]*models.PedidoDetalle{
		"ped-1": pedidoEnEstado("ped-1", models.PedidoPendiente),
	}}
	svc := newPedidoService(t, repo)

	cotizacion, err := svc.AddCotizacion(context.Background(), "ped-1", CotizacionRequest{Proveedor: "Distribuidora Sur", Monto: "120.50"}, uploadPDF("propuesta"))
	require.NoError(t, err)

	assert.Equal(t, models.CotizacionPendiente, cotizacion.Estado)
	assert.True(t, strings.HasSuffix(cotizacion.Documento, ".pdf"))

	file, nombre, err := svc.AbrirDocumento(mustSign(t, svc, "ped-1", cotizacion.Documento))
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	assert.Equal(t, cotizacion.Documento, nombre)
}

func mustSign(t *testing.T, svc *PedidoService, pedidoID, archivo string) string {
	t.Helper()
	token, _, err := svc.FirmarDocumento(pedidoID, archivo)
	require.NoError(t, err)
	return token
}
