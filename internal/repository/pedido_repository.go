package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sigea-dev/almacen-api/internal/models"
)

// PedidoFilter restricts purchase order listings.
type PedidoFilter struct {
	Estado   models.EstadoPedido
	Search   string
	Page     int
	PageSize int
}

// PedidoRepository manages purchase orders, their items and quotations.
type PedidoRepository struct {
	db *sqlx.DB
}

// NewPedidoRepository constructs a PedidoRepository.
func NewPedidoRepository(db *sqlx.DB) *PedidoRepository {
	return &PedidoRepository{db: db}
}

const pedidoDetalleColumns = `p.id, p.nombre, p.descripcion, p.archivo, p.estado, p.fecha_creacion, p.fecha_modificacion,
        p.documento_entrega, p.fecha_entrega,
        (SELECT COUNT(*) FROM items_pedido i WHERE i.pedido_id = p.id) AS total_items,
        (SELECT COUNT(*) FROM cotizaciones c WHERE c.pedido_id = p.id) AS total_cotizaciones,
        COALESCE((SELECT SUM(i.cantidad_solicitada * i.precio_unitario) FROM items_pedido i WHERE i.pedido_id = p.id), 0) AS total_general`

// List returns orders matching the filter with recomputed aggregates, newest
// first, plus the total count for pagination.
func (r *PedidoRepository) List(ctx context.Context, filter PedidoFilter) ([]models.PedidoDetalle, int, error) {
	base := "FROM pedidos p"
	args := make([]interface{}, 0, 2)
	conditions := []string{"1=1"}

	if filter.Estado != "" {
		args = append(args, filter.Estado)
		conditions = append(conditions, fmt.Sprintf("p.estado = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(p.nombre) LIKE $%d", len(args)))
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY p.fecha_creacion DESC LIMIT %d OFFSET %d",
		pedidoDetalleColumns, base, size, offset)

	var pedidos []models.PedidoDetalle
	if err := r.db.SelectContext(ctx, &pedidos, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list pedidos: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count pedidos: %w", err)
	}
	return pedidos, total, nil
}

// GetByID fetches an order with aggregates and its selected quotation, if any.
func (r *PedidoRepository) GetByID(ctx context.Context, id string) (*models.PedidoDetalle, error) {
	query := fmt.Sprintf("SELECT %s FROM pedidos p WHERE p.id = $1", pedidoDetalleColumns)
	var detalle models.PedidoDetalle
	if err := r.db.GetContext(ctx, &detalle, query, id); err != nil {
		return nil, err
	}

	const seleccionada = `SELECT id, pedido_id, proveedor, monto, descripcion, documento, estado, fecha_creacion, fecha_modificacion
        FROM cotizaciones WHERE pedido_id = $1 AND estado = $2 LIMIT 1`
	var cotizacion models.Cotizacion
	err := r.db.GetContext(ctx, &cotizacion, seleccionada, id, models.CotizacionSeleccionada)
	switch {
	case err == nil:
		detalle.CotizacionSeleccionada = &cotizacion
	case err == sql.ErrNoRows:
	default:
		return nil, fmt.Errorf("get cotizacion seleccionada: %w", err)
	}
	return &detalle, nil
}

// Create inserts a new order in the Pendiente state.
func (r *PedidoRepository) Create(ctx context.Context, pedido *models.Pedido) error {
	if pedido.ID == "" {
		pedido.ID = uuid.NewString()
	}
	if pedido.Estado == "" {
		pedido.Estado = models.PedidoPendiente
	}
	now := time.Now().UTC()
	if pedido.FechaCreacion.IsZero() {
		pedido.FechaCreacion = now
	}
	pedido.FechaModificacion = now
	const query = `INSERT INTO pedidos (id, nombre, descripcion, archivo, estado, fecha_creacion, fecha_modificacion, documento_entrega, fecha_entrega)
        VALUES (:id, :nombre, :descripcion, :archivo, :estado, :fecha_creacion, :fecha_modificacion, :documento_entrega, :fecha_entrega)`
	if _, err := r.db.NamedExecContext(ctx, query, pedido); err != nil {
		return fmt.Errorf("create pedido: %w", err)
	}
	return nil
}

// Update modifies the descriptive fields of an order.
func (r *PedidoRepository) Update(ctx context.Context, pedido *models.Pedido) error {
	pedido.FechaModificacion = time.Now().UTC()
	const query = `UPDATE pedidos SET nombre = :nombre, descripcion = :descripcion, archivo = :archivo, fecha_modificacion = :fecha_modificacion
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, pedido); err != nil {
		return fmt.Errorf("update pedido: %w", err)
	}
	return nil
}

// Delete removes an order and, through the schema cascade, its items and
// quotations.
func (r *PedidoRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM pedidos WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete pedido: %w", err)
	}
	return nil
}

// ListItems returns the order lines with product fields joined, in the order
// they were added.
func (r *PedidoRepository) ListItems(ctx context.Context, pedidoID string) ([]models.ItemPedidoDetalle, error) {
	const query = `SELECT i.id, i.pedido_id, i.producto_id, i.cantidad_solicitada, i.precio_unitario, i.observaciones, i.fecha_agregado,
        pr.codigo_producto, pr.nombre AS producto_nombre, u.nombre AS unidad_nombre
        FROM items_pedido i
        INNER JOIN productos pr ON pr.id = i.producto_id
        INNER JOIN unidades u ON u.id = pr.unidad_id
        WHERE i.pedido_id = $1 ORDER BY i.fecha_agregado ASC`
	var items []models.ItemPedidoDetalle
	if err := r.db.SelectContext(ctx, &items, query, pedidoID); err != nil {
		return nil, fmt.Errorf("list items pedido: %w", err)
	}
	return items, nil
}

// GetItem fetches one order line by identifier.
func (r *PedidoRepository) GetItem(ctx context.Context, itemID string) (*models.ItemPedido, error) {
	const query = `SELECT id, pedido_id, producto_id, cantidad_solicitada, precio_unitario, observaciones, fecha_agregado
        FROM items_pedido WHERE id = $1`
	var item models.ItemPedido
	if err := r.db.GetContext(ctx, &item, query, itemID); err != nil {
		return nil, err
	}
	return &item, nil
}

// AddItem inserts an order line and touches the order timestamp.
func (r *PedidoRepository) AddItem(ctx context.Context, item *models.ItemPedido) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.FechaAgregado.IsZero() {
		item.FechaAgregado = time.Now().UTC()
	}
	const query = `INSERT INTO items_pedido (id, pedido_id, producto_id, cantidad_solicitada, precio_unitario, observaciones, fecha_agregado)
        VALUES (:id, :pedido_id, :producto_id, :cantidad_solicitada, :precio_unitario, :observaciones, :fecha_agregado)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("add item pedido: %w", err)
	}
	return r.touch(ctx, item.PedidoID)
}

// UpdateItem modifies an order line.
func (r *PedidoRepository) UpdateItem(ctx context.Context, item *models.ItemPedido) error {
	const query = `UPDATE items_pedido SET producto_id = :producto_id, cantidad_solicitada = :cantidad_solicitada,
        precio_unitario = :precio_unitario, observaciones = :observaciones WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("update item pedido: %w", err)
	}
	return r.touch(ctx, item.PedidoID)
}

// RemoveItem deletes an order line.
func (r *PedidoRepository) RemoveItem(ctx context.Context, pedidoID, itemID string) error {
	const query = `DELETE FROM items_pedido WHERE id = $1 AND pedido_id = $2`
	if _, err := r.db.ExecContext(ctx, query, itemID, pedidoID); err != nil {
		return fmt.Errorf("remove item pedido: %w", err)
	}
	return r.touch(ctx, pedidoID)
}

// ListCotizaciones returns the quotations of an order, newest first.
func (r *PedidoRepository) ListCotizaciones(ctx context.Context, pedidoID string) ([]models.Cotizacion, error) {
	const query = `SELECT id, pedido_id, proveedor, monto, descripcion, documento, estado, fecha_creacion, fecha_modificacion
        FROM cotizaciones WHERE pedido_id = $1 ORDER BY fecha_creacion DESC`
	var cotizaciones []models.Cotizacion
	if err := r.db.SelectContext(ctx, &cotizaciones, query, pedidoID); err != nil {
		return nil, fmt.Errorf("list cotizaciones: %w", err)
	}
	return cotizaciones, nil
}

// GetCotizacion fetches one quotation by identifier.
func (r *PedidoRepository) GetCotizacion(ctx context.Context, id string) (*models.Cotizacion, error) {
	const query = `SELECT id, pedido_id, proveedor, monto, descripcion, documento, estado, fecha_creacion, fecha_modificacion
        FROM cotizaciones WHERE id = $1`
	var cotizacion models.Cotizacion
	if err := r.db.GetContext(ctx, &cotizacion, query, id); err != nil {
		return nil, err
	}
	return &cotizacion, nil
}

// AddCotizacion inserts a quotation in the Pendiente state.
func (r *PedidoRepository) AddCotizacion(ctx context.Context, cotizacion *models.Cotizacion) error {
	if cotizacion.ID == "" {
		cotizacion.ID = uuid.NewString()
	}
	if cotizacion.Estado == "" {
		cotizacion.Estado = models.CotizacionPendiente
	}
	now := time.Now().UTC()
	if cotizacion.FechaCreacion.IsZero() {
		cotizacion.FechaCreacion = now
	}
	cotizacion.FechaModificacion = now
	const query = `INSERT INTO cotizaciones (id, pedido_id, proveedor, monto, descripcion, documento, estado, fecha_creacion, fecha_modificacion)
        VALUES (:id, :pedido_id, :proveedor, :monto, :descripcion, :documento, :estado, :fecha_creacion, :fecha_modificacion)`
	if _, err := r.db.NamedExecContext(ctx, query, cotizacion); err != nil {
		return fmt.Errorf("add cotizacion: %w", err)
	}
	return nil
}

// UpdateCotizacion modifies a quotation's supplier data.
func (r *PedidoRepository) UpdateCotizacion(ctx context.Context, cotizacion *models.Cotizacion) error {
	cotizacion.FechaModificacion = time.Now().UTC()
	const query = `UPDATE cotizaciones SET proveedor = :proveedor, monto = :monto, descripcion = :descripcion,
        documento = :documento, fecha_modificacion = :fecha_modificacion WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, cotizacion); err != nil {
		return fmt.Errorf("update cotizacion: %w", err)
	}
	return nil
}

// DeleteCotizacion removes a quotation.
func (r *PedidoRepository) DeleteCotizacion(ctx context.Context, pedidoID, cotizacionID string) error {
	const query = `DELETE FROM cotizaciones WHERE id = $1 AND pedido_id = $2`
	if _, err := r.db.ExecContext(ctx, query, cotizacionID, pedidoID); err != nil {
		return fmt.Errorf("delete cotizacion: %w", err)
	}
	return nil
}

// SeleccionarCotizacion marks one quotation as selected, rejects the rest and
// moves the order to Completado, all in one transaction.
func (r *PedidoRepository) SeleccionarCotizacion(ctx context.Context, pedidoID, cotizacionID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seleccionar cotizacion: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const reject = `UPDATE cotizaciones SET estado = $3, fecha_modificacion = $4 WHERE pedido_id = $1 AND id <> $2`
	if _, err := tx.ExecContext(ctx, reject, pedidoID, cotizacionID, models.CotizacionRechazada, now); err != nil {
		return fmt.Errorf("reject cotizaciones: %w", err)
	}

	const elect = `UPDATE cotizaciones SET estado = $3, fecha_modificacion = $4 WHERE id = $1 AND pedido_id = $2`
	res, err := tx.ExecContext(ctx, elect, cotizacionID, pedidoID, models.CotizacionSeleccionada, now)
	if err != nil {
		return fmt.Errorf("select cotizacion: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	const complete = `UPDATE pedidos SET estado = $2, fecha_modificacion = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, complete, pedidoID, models.PedidoCompletado, now); err != nil {
		return fmt.Errorf("complete pedido: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seleccionar cotizacion: %w", err)
	}
	commit = true
	return nil
}

// MarcarEntregado moves a Completado order to the terminal Entregado state,
// storing the delivery document. Returns sql.ErrNoRows when the order is not
// in Completado.
func (r *PedidoRepository) MarcarEntregado(ctx context.Context, pedidoID string, documento string) error {
	now := time.Now().UTC()
	const query = `UPDATE pedidos SET estado = $2, documento_entrega = $3, fecha_entrega = $4, fecha_modificacion = $4
        WHERE id = $1 AND estado = $5`
	res, err := r.db.ExecContext(ctx, query, pedidoID, models.PedidoEntregado, documento, now, models.PedidoCompletado)
	if err != nil {
		return fmt.Errorf("marcar pedido entregado: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PedidoRepository) touch(ctx context.Context, pedidoID string) error {
	const query = `UPDATE pedidos SET fecha_modificacion = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, pedidoID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch pedido: %w", err)
	}
	return nil
}
