package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sigea-dev/almacen-api/internal/models"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
	"github.com/sigea-dev/almacen-api/pkg/export"
)

// Movement notes stamped by the bulk importer.
const (
	notaImportacion     = "Importación Excel"
	notaCreacionInicial = "Creación inicial"
)

type importProductoRepository interface {
	FindByCodigo(ctx context.Context, codigo string) (*models.ProductoDetalle, error)
	CreateImportado(ctx context.Context, producto *models.Producto, usuario *string) error
	RegistrarMovimiento(ctx context.Context, productoID string, tipo models.TipoMovimiento, cantidad int, estanteNuevo *string, observacion *string, usuario *string) (*models.Movimiento, error)
	ListAll(ctx context.Context, ubicacion models.UbicacionAlmacen) ([]models.ProductoDetalle, error)
}

type unidadResolver interface {
	FindOrCreate(ctx context.Context, nombre string) (*models.Unidad, bool, error)
}

type importSalonRepository interface {
	FindByID(ctx context.Context, id string) (*models.SalonDetalle, error)
}

type importAlumnoRepository interface {
	ExistsByDNI(ctx context.Context, dni string, excludeID string) (bool, error)
	Create(ctx context.Context, alumno *models.Alumno) error
}

// ImportacionService handles spreadsheet import and export for products and
// student rosters.
type ImportacionService struct {
	productos importProductoRepository
	unidades  unidadResolver
	salones   importSalonRepository
	alumnos   importAlumnoRepository
	xlsx      *export.XLSXExporter
	csv       *export.CSVExporter
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewImportacionService constructs the import/export service.
func NewImportacionService(productos importProductoRepository, unidades unidadResolver, salones importSalonRepository, alumnos importAlumnoRepository, logger *zap.Logger) *ImportacionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportacionService{
		productos: productos,
		unidades:  unidades,
		salones:   salones,
		alumnos:   alumnos,
		xlsx:      export.NewXLSXExporter(),
		csv:       export.NewCSVExporter(),
		logger:    logger,
	}
}

// WithMetrics attaches the metrics service so import batches feed the row
// counters.
func (s *ImportacionService) WithMetrics(metrics *MetricsService) *ImportacionService {
	s.metrics = metrics
	return s
}

// Columns every product spreadsheet must carry. descripcion, estante and
// observaciones are optional per row but the headers must be present.
var columnasRequeridas = []string{"codigo_almacen", "codigo_producto", "nombre", "cantidad", "unidad", "estado"}

// ImportarProductos parses a product workbook and upserts every row by
// product code. Row failures are collected without aborting the batch; the
// reported row numbers match the spreadsheet as the user sees it.
func (s *ImportacionService) ImportarProductos(ctx context.Context, r io.Reader, usuario *string) (*models.ResultadoImportacion, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read the workbook")
	}
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read the worksheet")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the workbook is empty")
	}

	columnas := map[string]int{}
	for j, header := range rows[0] {
		columnas[strings.ToLower(strings.TrimSpace(header))] = j
	}
	var faltantes []string
	for _, requerida := range columnasRequeridas {
		if _, ok := columnas[requerida]; !ok {
			faltantes = append(faltantes, requerida)
		}
	}
	if len(faltantes) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("missing required columns: %s", strings.Join(faltantes, ", ")))
	}

	resultado := models.NewResultadoImportacion()
	unidadesNuevas := map[string]bool{}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		fila := i + 1
		if filaVacia(row) {
			continue
		}

		codigoAlmacen := celda(row, columnas["codigo_almacen"])
		ubicacion, ok := models.UbicacionPorCodigo(codigoAlmacen)
		if !ok {
			resultado.Errores = append(resultado.Errores, models.ErrorFila{Fila: fila,
				Mensaje: fmt.Sprintf("código de almacén inválido: %q (se espera 01, 02 o 03)", codigoAlmacen)})
			continue
		}

		codigo := celda(row, columnas["codigo_producto"])
		if codigo == "" {
			resultado.Errores = append(resultado.Errores, models.ErrorFila{Fila: fila, Mensaje: "código de producto vacío"})
			continue
		}
		nombre := celda(row, columnas["nombre"])
		if nombre == "" {
			resultado.Errores = append(resultado.Errores, models.ErrorFila{Fila: fila, Mensaje: "nombre vacío"})
			continue
		}

		cantidad, err := strconv.Atoi(celda(row, columnas["cantidad"]))
		if err != nil || cantidad < 0 {
			resultado.Errores = append(resultado.Errores, models.ErrorFila{Fila: fila,
				Mensaje: fmt.Sprintf("cantidad inválida: %q", celda(row, columnas["cantidad"]))})
			continue
		}

		estado := models.EstadoProducto(strings.ToUpper(celda(row, columnas["estado"])))
		if !estado.Valid() {
			resultado.Errores = append(resultado.Errores, models.ErrorFila{Fila: fila,
				Mensaje: fmt.Sprintf("estado inválido: %q (se espera DISP, AGOT o BAJO)", celda(row, columnas["estado"]))})
			continue
		}

		unidad, creada, err := s.unidades.FindOrCreate(ctx, celda(row, columnas["unidad"]))
		if err != nil {
			resultado.Errores = append(resultado.Errores, models.ErrorFila{Fila: fila,
				Mensaje: fmt.Sprintf("unidad inválida: %v", err)})
			continue
		}
		if creada && !unidadesNuevas[unidad.Nombre] {
			unidadesNuevas[unidad.Nombre] = true
			resultado.UnidadesCreadas = append(resultado.UnidadesCreadas, unidad.Nombre)
		}

		estante := celdaOpcional(row, columnas, "estante")
		observaciones := celdaOpcional(row, columnas, "observaciones")
		descripcion := ""
		if j, ok := columnas["descripcion"]; ok {
			descripcion = celda(row, j)
		}

		existente, err := s.productos.FindByCodigo(ctx, codigo)
		switch {
		case err == nil:
			// existing product: quantities accumulate, the row never overwrites
			if cantidad > 0 {
				nota := notaImportacion
				if _, err := s.productos.RegistrarMovimiento(ctx, existente.ID, models.MovimientoEntrada, cantidad, nil, &nota, usuario); err != nil {
					resultado.Errores = append(resultado.Errores, models.ErrorFila{Fila: fila,
						Mensaje: fmt.Sprintf("no se pudo actualizar %s: %v", codigo, err)})
					continue
				}
			}
			resultado.Actualizados++
			resultado.Stat(string(existente.Ubicacion)).Actualizados++
		case err == sql.ErrNoRows:
			producto := &models.Producto{
				CodigoProducto: codigo,
				Nombre:         nombre,
				Descripcion:    descripcion,
				Ubicacion:      ubicacion,
				Estante:        estante,
				Cantidad:       cantidad,
				UnidadID:       unidad.ID,
				Estado:         estado,
				Observaciones:  observaciones,
			}
			if err := s.productos.CreateImportado(ctx, producto, usuario); err != nil {
				resultado.Errores = append(resultado.Errores, models.ErrorFila{Fila: fila,
					Mensaje: fmt.Sprintf("no se pudo crear %s: %v", codigo, err)})
				continue
			}
			resultado.Creados++
			resultado.Stat(string(ubicacion)).Creados++
		default:
			resultado.Errores = append(resultado.Errores, models.ErrorFila{Fila: fila,
				Mensaje: fmt.Sprintf("no se pudo consultar %s: %v", codigo, err)})
		}
	}

	s.metrics.RecordImportacion("creado", resultado.Creados)
	s.metrics.RecordImportacion("actualizado", resultado.Actualizados)
	s.metrics.RecordImportacion("error", len(resultado.Errores))
	s.logger.Info("importación de productos finalizada",
		zap.Int("creados", resultado.Creados),
		zap.Int("actualizados", resultado.Actualizados),
		zap.Int("errores", len(resultado.Errores)))
	return resultado, nil
}

// Plantilla builds the downloadable import template workbook.
func (s *ImportacionService) Plantilla() ([]byte, error) {
	return s.xlsx.ProductTemplate()
}

// ExportarProductos renders the current inventory of a location (or every
// location) in the requested format. Returns the payload and a filename.
func (s *ImportacionService) ExportarProductos(ctx context.Context, ubicacion models.UbicacionAlmacen, formato models.FormatoReporte) ([]byte, string, error) {
	if ubicacion != "" && !ubicacion.Valid() {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unknown warehouse location")
	}
	if !formato.Valid() {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	productos, err := s.productos.ListAll(ctx, ubicacion)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list products")
	}

	data := DatasetProductos(productos)
	sufijo := "todos"
	if ubicacion != "" {
		sufijo = strings.ToLower(string(ubicacion))
	}

	switch formato {
	case models.FormatoCSV:
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, fmt.Sprintf("inventario_%s.csv", sufijo), nil
	default:
		payload, err := s.xlsx.Render(data, "Inventario")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render xlsx")
		}
		return payload, fmt.Sprintf("inventario_%s.xlsx", sufijo), nil
	}
}

// DatasetProductos converts products into the canonical 9-column dataset
// shared by exports and report builds.
func DatasetProductos(productos []models.ProductoDetalle) export.Dataset {
	rows := make([]map[string]string, 0, len(productos))
	for _, p := range productos {
		rows = append(rows, map[string]string{
			"codigo_almacen":  p.CodigoAlmacen,
			"codigo_producto": p.CodigoProducto,
			"nombre":          p.Nombre,
			"descripcion":     p.Descripcion,
			"cantidad":        strconv.Itoa(p.Cantidad),
			"unidad":          p.UnidadNombre,
			"estado":          string(p.Estado),
			"estante":         deref(p.Estante),
			"observaciones":   deref(p.Observaciones),
		})
	}
	return export.Dataset{Headers: export.ProductColumns, Rows: rows}
}

// Fixed positions of the institutional roster layout. Data starts at sheet
// row 6; shorter rows are ignored.
const (
	filaInicioAlumnos  = 6
	columnaSalon       = 4  // E
	columnaNombre      = 8  // I
	columnaDNI         = 10 // K
	columnaSexo        = 11 // L
	columnasMinAlumnos = 12
)

// ImportarAlumnos loads a roster workbook into one classroom. Rows belonging
// to other classrooms, or missing name or national ID, are ignored; an ID
// already registered anywhere counts as a duplicate and is skipped.
func (s *ImportacionService) ImportarAlumnos(ctx context.Context, salonID string, r io.Reader) (*models.ResultadoImportacionAlumnos, error) {
	salon, err := s.salones.FindByID(ctx, salonID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read the workbook")
	}
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read the worksheet")
	}

	resultado := &models.ResultadoImportacionAlumnos{Errores: []models.ErrorFila{}}
	for i := filaInicioAlumnos - 1; i < len(rows); i++ {
		row := rows[i]
		fila := i + 1
		if len(row) < columnasMinAlumnos {
			resultado.Ignorados++
			continue
		}

		salonCelda := celda(row, columnaSalon)
		if !strings.EqualFold(salonCelda, salon.Nombre) && !strings.EqualFold(salonCelda, salon.Codigo) {
			resultado.Ignorados++
			continue
		}

		nombre := celda(row, columnaNombre)
		dni := celda(row, columnaDNI)
		if nombre == "" || dni == "" {
			resultado.Ignorados++
			continue
		}

		existe, err := s.alumnos.ExistsByDNI(ctx, dni, "")
		if err != nil {
			resultado.Errores = append(resultado.Errores, models.ErrorFila{Fila: fila,
				Mensaje: fmt.Sprintf("no se pudo verificar el DNI %s: %v", dni, err)})
			continue
		}
		if existe {
			resultado.Duplicados++
			continue
		}

		sexo := strings.ToUpper(celda(row, columnaSexo))
		if sexo != "M" && sexo != "F" {
			sexo = ""
		}

		alumno := &models.Alumno{SalonID: salonID, Nombre: nombre, DNI: dni, Sexo: sexo}
		if err := s.alumnos.Create(ctx, alumno); err != nil {
			resultado.Errores = append(resultado.Errores, models.ErrorFila{Fila: fila,
				Mensaje: fmt.Sprintf("no se pudo registrar a %s: %v", nombre, err)})
			continue
		}
		resultado.Creados++
	}

	s.logger.Info("importación de alumnos finalizada",
		zap.String("salon_id", salonID),
		zap.Int("creados", resultado.Creados),
		zap.Int("duplicados", resultado.Duplicados),
		zap.Int("ignorados", resultado.Ignorados))
	return resultado, nil
}

func celda(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func celdaOpcional(row []string, columnas map[string]int, nombre string) *string {
	j, ok := columnas[nombre]
	if !ok {
		return nil
	}
	valor := celda(row, j)
	if valor == "" {
		return nil
	}
	return &valor
}

func filaVacia(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
