package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sigea-dev/almacen-api/internal/models"
)

// MovimientoFilter restricts ledger listings.
type MovimientoFilter struct {
	ProductoID string
	Tipo       models.TipoMovimiento
	Desde      *time.Time
	Hasta      *time.Time
	Page       int
	PageSize   int
}

// MovimientoRepository reads the append-only stock ledger. Writes happen
// inside the product transactions.
type MovimientoRepository struct {
	db *sqlx.DB
}

// NewMovimientoRepository constructs a MovimientoRepository.
func NewMovimientoRepository(db *sqlx.DB) *MovimientoRepository {
	return &MovimientoRepository{db: db}
}

// List returns ledger entries matching the filter, newest first, plus the
// total count for pagination.
func (r *MovimientoRepository) List(ctx context.Context, filter MovimientoFilter) ([]models.Movimiento, int, error) {
	base := "FROM movimientos"
	args := make([]interface{}, 0, 4)
	conditions := []string{"1=1"}

	if filter.ProductoID != "" {
		args = append(args, filter.ProductoID)
		conditions = append(conditions, fmt.Sprintf("producto_id = $%d", len(args)))
	}
	if filter.Tipo != "" {
		args = append(args, filter.Tipo)
		conditions = append(conditions, fmt.Sprintf("tipo_movimiento = $%d", len(args)))
	}
	if filter.Desde != nil {
		args = append(args, *filter.Desde)
		conditions = append(conditions, fmt.Sprintf("fecha_movimiento >= $%d", len(args)))
	}
	if filter.Hasta != nil {
		args = append(args, *filter.Hasta)
		conditions = append(conditions, fmt.Sprintf("fecha_movimiento <= $%d", len(args)))
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, producto_id, tipo_movimiento, cantidad, cantidad_anterior, cantidad_nueva,
        estante_anterior, estante_nuevo, fecha_movimiento, observacion, usuario
        %s ORDER BY fecha_movimiento DESC LIMIT %d OFFSET %d`, base, size, offset)

	var movimientos []models.Movimiento
	if err := r.db.SelectContext(ctx, &movimientos, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list movimientos: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count movimientos: %w", err)
	}
	return movimientos, total, nil
}
