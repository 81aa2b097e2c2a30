package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sigea-dev/almacen-api/internal/models"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
)

// ProductoRepository manages persistence for warehouse products and their
// movement ledger.
type ProductoRepository struct {
	db *sqlx.DB
}

// NewProductoRepository constructs a ProductoRepository.
func NewProductoRepository(db *sqlx.DB) *ProductoRepository {
	return &ProductoRepository{db: db}
}

const productoDetalleColumns = `p.id, p.codigo_almacen, p.codigo_producto, p.nombre, p.descripcion, p.ubicacion_almacen,
        p.estante, p.cantidad, p.unidad_id, p.estado, p.fecha_ingreso, p.ultima_actualizacion, p.observaciones,
        u.nombre AS unidad_nombre, u.abreviatura AS unidad_abreviatura`

// List returns products matching the filter with their unit joined, plus the
// total count for pagination.
func (r *ProductoRepository) List(ctx context.Context, filter models.ProductoFilter) ([]models.ProductoDetalle, int, error) {
	base := "FROM productos p INNER JOIN unidades u ON u.id = p.unidad_id"
	args := make([]interface{}, 0, 3)
	conditions := []string{"1=1"}

	if filter.Ubicacion != "" {
		args = append(args, filter.Ubicacion)
		conditions = append(conditions, fmt.Sprintf("p.ubicacion_almacen = $%d", len(args)))
	}
	if filter.Estado != "" {
		args = append(args, filter.Estado)
		conditions = append(conditions, fmt.Sprintf("p.estado = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(p.nombre) LIKE $%d OR LOWER(p.codigo_producto) LIKE $%d)", len(args), len(args)))
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY p.fecha_ingreso DESC LIMIT %d OFFSET %d",
		productoDetalleColumns, base, size, offset)

	var productos []models.ProductoDetalle
	if err := r.db.SelectContext(ctx, &productos, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list productos: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count productos: %w", err)
	}
	return productos, total, nil
}

// ListAll returns every product of a location without pagination, ordered by
// code. Used by exports and report builds.
func (r *ProductoRepository) ListAll(ctx context.Context, ubicacion models.UbicacionAlmacen) ([]models.ProductoDetalle, error) {
	query := fmt.Sprintf("SELECT %s FROM productos p INNER JOIN unidades u ON u.id = p.unidad_id", productoDetalleColumns)
	args := make([]interface{}, 0, 1)
	if ubicacion != "" {
		args = append(args, ubicacion)
		query += " WHERE p.ubicacion_almacen = $1"
	}
	query += " ORDER BY p.codigo_producto ASC"

	var productos []models.ProductoDetalle
	if err := r.db.SelectContext(ctx, &productos, query, args...); err != nil {
		return nil, fmt.Errorf("list all productos: %w", err)
	}
	return productos, nil
}

// FindByID fetches a product detail by identifier.
func (r *ProductoRepository) FindByID(ctx context.Context, id string) (*models.ProductoDetalle, error) {
	query := fmt.Sprintf(`SELECT %s FROM productos p INNER JOIN unidades u ON u.id = p.unidad_id WHERE p.id = $1`, productoDetalleColumns)
	var detalle models.ProductoDetalle
	if err := r.db.GetContext(ctx, &detalle, query, id); err != nil {
		return nil, err
	}
	return &detalle, nil
}

// FindByCodigo fetches a product by its immutable product code.
func (r *ProductoRepository) FindByCodigo(ctx context.Context, codigo string) (*models.ProductoDetalle, error) {
	query := fmt.Sprintf(`SELECT %s FROM productos p INNER JOIN unidades u ON u.id = p.unidad_id WHERE p.codigo_producto = $1`, productoDetalleColumns)
	var detalle models.ProductoDetalle
	if err := r.db.GetContext(ctx, &detalle, query, codigo); err != nil {
		return nil, err
	}
	return &detalle, nil
}

// UltimoPorUbicacion returns the most recently created product of a location.
func (r *ProductoRepository) UltimoPorUbicacion(ctx context.Context, ubicacion models.UbicacionAlmacen) (*models.ProductoDetalle, error) {
	query := fmt.Sprintf(`SELECT %s FROM productos p INNER JOIN unidades u ON u.id = p.unidad_id
        WHERE p.ubicacion_almacen = $1 ORDER BY p.fecha_ingreso DESC LIMIT 1`, productoDetalleColumns)
	var detalle models.ProductoDetalle
	if err := r.db.GetContext(ctx, &detalle, query, ubicacion); err != nil {
		return nil, err
	}
	return &detalle, nil
}

// nextCodigo reserves the next sequence number for a warehouse code inside
// the transaction and formats the product code. The counter row is created
// on first use, seeded past the highest numeric suffix already present so
// codes carried in by imports are never reissued.
func nextCodigo(ctx context.Context, tx *sqlx.Tx, codigoAlmacen string) (string, error) {
	const query = `INSERT INTO product_sequences (codigo_almacen, ultimo_numero)
        VALUES ($1, COALESCE((
            SELECT MAX(CAST(SUBSTRING(codigo_producto FROM '[0-9]+$') AS INTEGER))
            FROM productos
            WHERE codigo_almacen = $1 AND codigo_producto ~ ('^' || $1 || '-[0-9]+$')
        ), 0) + 1)
        ON CONFLICT (codigo_almacen) DO UPDATE SET ultimo_numero = product_sequences.ultimo_numero + 1
        RETURNING ultimo_numero`
	var numero int
	if err := tx.GetContext(ctx, &numero, query, codigoAlmacen); err != nil {
		return "", fmt.Errorf("next codigo for %s: %w", codigoAlmacen, err)
	}
	return fmt.Sprintf("%s-%04d", codigoAlmacen, numero), nil
}

// sufijoCodigo parses the numeric suffix of a product code belonging to the
// given warehouse, e.g. "01-0500" -> 500.
func sufijoCodigo(codigo, codigoAlmacen string) (int, bool) {
	resto, ok := strings.CutPrefix(codigo, codigoAlmacen+"-")
	if !ok {
		return 0, false
	}
	numero, err := strconv.Atoi(resto)
	if err != nil || numero < 0 {
		return 0, false
	}
	return numero, true
}

// avanzarSecuencia raises the warehouse counter to at least the given number
// so the sequence never reissues a code carried in by an import.
func avanzarSecuencia(ctx context.Context, tx *sqlx.Tx, codigoAlmacen string, numero int) error {
	const query = `INSERT INTO product_sequences (codigo_almacen, ultimo_numero)
        VALUES ($1, $2)
        ON CONFLICT (codigo_almacen) DO UPDATE
        SET ultimo_numero = GREATEST(product_sequences.ultimo_numero, EXCLUDED.ultimo_numero)`
	if _, err := tx.ExecContext(ctx, query, codigoAlmacen, numero); err != nil {
		return fmt.Errorf("avanzar secuencia for %s: %w", codigoAlmacen, err)
	}
	return nil
}

// Create inserts a product and its initial ENTRADA ledger entry in one
// transaction. The product code is assigned here from the per-warehouse
// sequence and is final.
func (r *ProductoRepository) Create(ctx context.Context, producto *models.Producto, usuario *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create producto: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if producto.ID == "" {
		producto.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if producto.FechaIngreso.IsZero() {
		producto.FechaIngreso = now
	}
	producto.UltimaActualizacion = now
	producto.CodigoAlmacen = producto.Ubicacion.CodigoAlmacen()

	codigo, err := nextCodigo(ctx, tx, producto.CodigoAlmacen)
	if err != nil {
		return err
	}
	producto.CodigoProducto = codigo

	const insertProducto = `INSERT INTO productos
        (id, codigo_almacen, codigo_producto, nombre, descripcion, ubicacion_almacen, estante, cantidad, unidad_id, estado, fecha_ingreso, ultima_actualizacion, observaciones)
        VALUES (:id, :codigo_almacen, :codigo_producto, :nombre, :descripcion, :ubicacion_almacen, :estante, :cantidad, :unidad_id, :estado, :fecha_ingreso, :ultima_actualizacion, :observaciones)`
	if _, err := tx.NamedExecContext(ctx, insertProducto, producto); err != nil {
		return fmt.Errorf("create producto: %w", err)
	}

	observacion := "Creación inicial"
	movimiento := models.Movimiento{
		ID:               uuid.NewString(),
		ProductoID:       producto.ID,
		Tipo:             models.MovimientoEntrada,
		Cantidad:         producto.Cantidad,
		CantidadAnterior: 0,
		CantidadNueva:    producto.Cantidad,
		EstanteNuevo:     producto.Estante,
		FechaMovimiento:  now,
		Observacion:      &observacion,
		Usuario:          usuario,
	}
	if err := insertMovimiento(ctx, tx, &movimiento); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create producto: %w", err)
	}
	commit = true
	return nil
}

// CreateImportado inserts a product keeping the code carried by the import
// row, with the initial ENTRADA ledger entry, in one transaction. The
// per-warehouse sequence is raised past the imported suffix so later
// generated codes never collide with it.
func (r *ProductoRepository) CreateImportado(ctx context.Context, producto *models.Producto, usuario *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create producto importado: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if producto.ID == "" {
		producto.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if producto.FechaIngreso.IsZero() {
		producto.FechaIngreso = now
	}
	producto.UltimaActualizacion = now
	producto.CodigoAlmacen = producto.Ubicacion.CodigoAlmacen()

	const insertProducto = `INSERT INTO productos
        (id, codigo_almacen, codigo_producto, nombre, descripcion, ubicacion_almacen, estante, cantidad, unidad_id, estado, fecha_ingreso, ultima_actualizacion, observaciones)
        VALUES (:id, :codigo_almacen, :codigo_producto, :nombre, :descripcion, :ubicacion_almacen, :estante, :cantidad, :unidad_id, :estado, :fecha_ingreso, :ultima_actualizacion, :observaciones)`
	if _, err := tx.NamedExecContext(ctx, insertProducto, producto); err != nil {
		return fmt.Errorf("create producto importado: %w", err)
	}

	if numero, ok := sufijoCodigo(producto.CodigoProducto, producto.CodigoAlmacen); ok {
		if err := avanzarSecuencia(ctx, tx, producto.CodigoAlmacen, numero); err != nil {
			return err
		}
	}

	observacion := "Creación inicial"
	movimiento := models.Movimiento{
		ID:               uuid.NewString(),
		ProductoID:       producto.ID,
		Tipo:             models.MovimientoEntrada,
		Cantidad:         producto.Cantidad,
		CantidadAnterior: 0,
		CantidadNueva:    producto.Cantidad,
		EstanteNuevo:     producto.Estante,
		FechaMovimiento:  now,
		Observacion:      &observacion,
		Usuario:          usuario,
	}
	if err := insertMovimiento(ctx, tx, &movimiento); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create producto importado: %w", err)
	}
	commit = true
	return nil
}

// Update modifies the mutable descriptive fields of a product. Quantity and
// code changes go through RegistrarMovimiento.
func (r *ProductoRepository) Update(ctx context.Context, producto *models.Producto) error {
	producto.UltimaActualizacion = time.Now().UTC()
	const query = `UPDATE productos SET nombre = :nombre, descripcion = :descripcion, estante = :estante,
        unidad_id = :unidad_id, estado = :estado, observaciones = :observaciones, ultima_actualizacion = :ultima_actualizacion
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, producto); err != nil {
		return fmt.Errorf("update producto: %w", err)
	}
	return nil
}

// RegistrarMovimiento applies a signed stock delta and appends the ledger
// entry atomically. The product row is locked for the duration so the
// before/after snapshot is consistent; a delta that would drive the stock
// negative is rejected.
func (r *ProductoRepository) RegistrarMovimiento(ctx context.Context, productoID string, tipo models.TipoMovimiento, cantidad int, estanteNuevo *string, observacion *string, usuario *string) (*models.Movimiento, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin movimiento: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var actual struct {
		Cantidad int                   `db:"cantidad"`
		Estante  *string               `db:"estante"`
		Estado   models.EstadoProducto `db:"estado"`
	}
	const lock = `SELECT cantidad, estante, estado FROM productos WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &actual, lock, productoID); err != nil {
		return nil, err
	}

	delta := tipo.SignedDelta(cantidad)
	nueva := actual.Cantidad + delta
	if nueva < 0 {
		return nil, appErrors.ErrInsufficientStock
	}

	estado := actual.Estado
	switch {
	case nueva == 0:
		estado = models.EstadoAgotado
	case estado == models.EstadoAgotado:
		estado = models.EstadoDisponible
	}

	estante := actual.Estante
	if estanteNuevo != nil {
		estante = estanteNuevo
	}

	now := time.Now().UTC()
	const update = `UPDATE productos SET cantidad = $2, estante = $3, estado = $4, ultima_actualizacion = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, productoID, nueva, estante, estado, now); err != nil {
		return nil, fmt.Errorf("apply movimiento: %w", err)
	}

	movimiento := models.Movimiento{
		ID:               uuid.NewString(),
		ProductoID:       productoID,
		Tipo:             tipo,
		Cantidad:         delta,
		CantidadAnterior: actual.Cantidad,
		CantidadNueva:    nueva,
		EstanteAnterior:  actual.Estante,
		EstanteNuevo:     estante,
		FechaMovimiento:  now,
		Observacion:      observacion,
		Usuario:          usuario,
	}
	if err := insertMovimiento(ctx, tx, &movimiento); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit movimiento: %w", err)
	}
	commit = true
	return &movimiento, nil
}

// Delete removes a product and, through the schema cascade, its ledger.
func (r *ProductoRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM productos WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete producto: %w", err)
	}
	return nil
}

func insertMovimiento(ctx context.Context, tx *sqlx.Tx, movimiento *models.Movimiento) error {
	const query = `INSERT INTO movimientos
        (id, producto_id, tipo_movimiento, cantidad, cantidad_anterior, cantidad_nueva, estante_anterior, estante_nuevo, fecha_movimiento, observacion, usuario)
        VALUES (:id, :producto_id, :tipo_movimiento, :cantidad, :cantidad_anterior, :cantidad_nueva, :estante_anterior, :estante_nuevo, :fecha_movimiento, :observacion, :usuario)`
	if _, err := tx.NamedExecContext(ctx, query, movimiento); err != nil {
		return fmt.Errorf("insert movimiento: %w", err)
	}
	return nil
}
