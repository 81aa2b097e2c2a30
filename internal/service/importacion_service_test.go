package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sigea-dev/almacen-api/internal/models"
)

type movimientoRegistrado struct {
	ProductoID  string
	Tipo        models.TipoMovimiento
	Cantidad    int
	Observacion string
}

type fakeImportProductoRepo struct {
	existentes  map[string]*models.ProductoDetalle
	creados     []*models.Producto
	movimientos []movimientoRegistrado
}

func (f *fakeImportProductoRepo) FindByCodigo(_ context.Context, codigo string) (*models.ProductoDetalle, error) {
	if p, ok := f.existentes[codigo]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeImportProductoRepo) CreateImportado(_ context.Context, producto *models.Producto, _ *string) error {
	producto.ID = fmt.Sprintf("prod-%d", len(f.creados)+1)
	f.creados = append(f.creados, producto)
	return nil
}

func (f *fakeImportProductoRepo) RegistrarMovimiento(_ context.Context, productoID string, tipo models.TipoMovimiento, cantidad int, _ *string, observacion *string, _ *string) (*models.Movimiento, error) {
	obs := ""
	if observacion != nil {
		obs = *observacion
	}
	f.movimientos = append(f.movimientos, movimientoRegistrado{ProductoID: productoID, Tipo: tipo, Cantidad: cantidad, Observacion: obs})
	return &models.Movimiento{ProductoID: productoID, Tipo: tipo, Cantidad: cantidad}, nil
}

func (f *fakeImportProductoRepo) ListAll(_ context.Context, _ models.UbicacionAlmacen) ([]models.ProductoDetalle, error) {
	return nil, nil
}

type fakeUnidadResolver struct {
	unidades map[string]*models.Unidad
}

func (f *fakeUnidadResolver) FindOrCreate(_ context.Context, nombre string) (*models.Unidad, bool, error) {
	key := strings.ToLower(strings.TrimSpace(nombre))
	if u, ok := f.unidades[key]; ok {
		return u, false, nil
	}
	u := &models.Unidad{ID: fmt.Sprintf("uni-%d", len(f.unidades)+1), Nombre: strings.TrimSpace(nombre), Activo: true}
	if f.unidades == nil {
		f.unidades = map[string]*models.Unidad{}
	}
	f.unidades[key] = u
	return u, true, nil
}

type fakeImportSalonRepo struct {
	salon *models.SalonDetalle
}

func (f *fakeImportSalonRepo) FindByID(_ context.Context, id string) (*models.SalonDetalle, error) {
	if f.salon != nil && f.salon.ID == id {
		return f.salon, nil
	}
	return nil, sql.ErrNoRows
}

type fakeImportAlumnoRepo struct {
	dnis    map[string]bool
	creados []*models.Alumno
}

func (f *fakeImportAlumnoRepo) ExistsByDNI(_ context.Context, dni string, _ string) (bool, error) {
	return f.dnis[dni], nil
}

func (f *fakeImportAlumnoRepo) Create(_ context.Context, alumno *models.Alumno) error {
	alumno.ID = fmt.Sprintf("alu-%d", len(f.creados)+1)
	f.creados = append(f.creados, alumno)
	if f.dnis == nil {
		f.dnis = map[string]bool{}
	}
	f.dnis[alumno.DNI] = true
	return nil
}

func buildWorkbook(t *testing.T, rows [][]string) io.Reader {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

var cabeceraProductos = []string{"codigo_almacen", "codigo_producto", "nombre", "descripcion", "cantidad", "unidad", "estado", "estante", "observaciones"}

func newImportService(productos *fakeImportProductoRepo, unidades *fakeUnidadResolver) *ImportacionService {
	return NewImportacionService(productos, unidades, &fakeImportSalonRepo{}, &fakeImportAlumnoRepo{}, nil)
}

func TestImportarProductosMissingColumnAborts(t *testing.T) {
	productos := &fakeImportProductoRepo{}
	svc := newImportService(productos, &fakeUnidadResolver{})

	libro := buildWorkbook(t, [][]string{
		{"codigo_almacen", "nombre", "cantidad", "unidad", "estado"},
		{"01", "Lapiceros", "10", "unidad", "DISP"},
	})

	resultado, err := svc.ImportarProductos(context.Background(), libro, nil)
	require.Error(t, err)
	assert.Nil(t, resultado)
	assert.Contains(t, err.Error(), "codigo_producto")
	assert.Empty(t, productos.creados)
}

func TestImportarProductosRowNumbering(t *testing.T) {
	productos := &fakeImportProductoRepo{}
	svc := newImportService(productos, &fakeUnidadResolver{})

	libro := buildWorkbook(t, [][]string{
		cabeceraProductos,
		{"01", "01-0001", "Lapiceros", "", "10", "unidad", "DISP"},
		{"09", "01-0002", "Plumones", "", "5", "unidad", "DISP"},
	})

	resultado, err := svc.ImportarProductos(context.Background(), libro, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, resultado.Creados)
	require.Len(t, resultado.Errores, 1)
	assert.Equal(t, 3, resultado.Errores[0].Fila)
	assert.Contains(t, resultado.Errores[0].Mensaje, "almacén")
}

func TestImportarProductosSumsExistingQuantities(t *testing.T) {
	existente := &models.ProductoDetalle{}
	existente.ID = "prod-9"
	existente.CodigoProducto = "01-0009"
	existente.Ubicacion = models.UbicacionGeneral
	existente.Cantidad = 10

	productos := &fakeImportProductoRepo{existentes: map[string]*models.ProductoDetalle{"01-0009": existente}}
	svc := newImportService(productos, &fakeUnidadResolver{})

	libro := buildWorkbook(t, [][]string{
		cabeceraProductos,
		{"01", "01-0009", "Lapiceros", "", "5", "unidad", "DISP"},
	})

	resultado, err := svc.ImportarProductos(context.Background(), libro, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, resultado.Creados)
	assert.Equal(t, 1, resultado.Actualizados)
	assert.Empty(t, productos.creados)

	require.Len(t, productos.movimientos, 1)
	mov := productos.movimientos[0]
	assert.Equal(t, "prod-9", mov.ProductoID)
	assert.Equal(t, models.MovimientoEntrada, mov.Tipo)
	assert.Equal(t, 5, mov.Cantidad)
	assert.Equal(t, "Importación Excel", mov.Observacion)
}

func TestImportarProductosPreservesRowCode(t *testing.T) {
	productos := &fakeImportProductoRepo{}
	svc := newImportService(productos, &fakeUnidadResolver{})

	libro := buildWorkbook(t, [][]string{
		cabeceraProductos,
		{"02", "02-0123", "Pelotas", "futbol", "4", "unidad", "DISP", "B2"},
	})

	resultado, err := svc.ImportarProductos(context.Background(), libro, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, resultado.Creados)
	require.Len(t, productos.creados, 1)
	creado := productos.creados[0]
	assert.Equal(t, "02-0123", creado.CodigoProducto)
	assert.Equal(t, models.UbicacionDeporte, creado.Ubicacion)
	assert.Equal(t, 4, creado.Cantidad)
	require.NotNil(t, creado.Estante)
	assert.Equal(t, "B2", *creado.Estante)

	assert.Equal(t, 1, resultado.StatsPorAlmacen["AD"].Creados)
}

func TestImportarProductosCreatesMissingUnits(t *testing.T) {
	productos := &fakeImportProductoRepo{}
	unidades := &fakeUnidadResolver{}
	svc := newImportService(productos, unidades)

	libro := buildWorkbook(t, [][]string{
		cabeceraProductos,
		{"01", "01-0001", "Cajas chicas", "", "3", "Caja", "DISP"},
		{"01", "01-0002", "Cajas grandes", "", "2", "caja", "DISP"},
	})

	resultado, err := svc.ImportarProductos(context.Background(), libro, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, resultado.Creados)
	assert.Equal(t, []string{"Caja"}, resultado.UnidadesCreadas)
}

func rosterRow(salon, nombre, dni, sexo string) []string {
	row := make([]string, 12)
	row[4] = salon
	row[8] = nombre
	row[10] = dni
	row[11] = sexo
	return row
}

func TestImportarAlumnos(t *testing.T) {
	salon := &models.SalonDetalle{}
	salon.ID = "sal-1"
	salon.Nombre = "Los Girasoles"
	salon.Codigo = "3A"

	alumnos := &fakeImportAlumnoRepo{dnis: map[string]bool{"70000002": true}}
	svc := NewImportacionService(&fakeImportProductoRepo{}, &fakeUnidadResolver{}, &fakeImportSalonRepo{salon: salon}, alumnos, nil)

	rows := [][]string{
		{"NÓMINA DE MATRÍCULA"},
		{""},
		{"colegio"},
		{""},
		{"cabecera"},
		rosterRow("los girasoles", "PEREZ QUISPE, ANA", "70000001", "F"),
		rosterRow("Las Rosas", "DIAZ TORRES, LUIS", "70000009", "M"),
		rosterRow("3A", "ROJAS MAMANI, JOSE", "70000002", "M"),
		rosterRow("Los Girasoles", "", "70000003", "M"),
		rosterRow("Los Girasoles", "CASTRO NUÑEZ, EVA", "70000004", "X"),
	}

	resultado, err := svc.ImportarAlumnos(context.Background(), "sal-1", buildWorkbook(t, rows))
	require.NoError(t, err)

	assert.Equal(t, 2, resultado.Creados)
	assert.Equal(t, 1, resultado.Duplicados)
	// the other classroom and the nameless row
	assert.Equal(t, 2, resultado.Ignorados)
	assert.Empty(t, resultado.Errores)

	require.Len(t, alumnos.creados, 2)
	assert.Equal(t, "PEREZ QUISPE, ANA", alumnos.creados[0].Nombre)
	assert.Equal(t, "F", alumnos.creados[0].Sexo)
	assert.Equal(t, "", alumnos.creados[1].Sexo)
	assert.Equal(t, "sal-1", alumnos.creados[1].SalonID)
}

func TestImportarAlumnosUnknownClassroom(t *testing.T) {
	svc := NewImportacionService(&fakeImportProductoRepo{}, &fakeUnidadResolver{}, &fakeImportSalonRepo{}, &fakeImportAlumnoRepo{}, nil)

	_, err := svc.ImportarAlumnos(context.Background(), "missing", buildWorkbook(t, [][]string{{"x"}}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classroom not found")
}
