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

// UnidadRepository manages persistence for units of measure.
type UnidadRepository struct {
	db *sqlx.DB
}

// NewUnidadRepository constructs a UnidadRepository.
func NewUnidadRepository(db *sqlx.DB) *UnidadRepository {
	return &UnidadRepository{db: db}
}

// List returns units matching the provided filter, ordered by name.
func (r *UnidadRepository) List(ctx context.Context, filter models.UnidadFilter) ([]models.Unidad, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT id, nombre, abreviatura, activo, fecha_creacion FROM unidades")
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)

	if filter.Activo != nil {
		args = append(args, *filter.Activo)
		conditions = append(conditions, fmt.Sprintf("activo = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(nombre) LIKE $%d OR LOWER(abreviatura) LIKE $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY nombre ASC")

	var unidades []models.Unidad
	if err := r.db.SelectContext(ctx, &unidades, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list unidades: %w", err)
	}
	return unidades, nil
}

// FindByID fetches a unit by identifier.
func (r *UnidadRepository) FindByID(ctx context.Context, id string) (*models.Unidad, error) {
	const query = `SELECT id, nombre, abreviatura, activo, fecha_creacion FROM unidades WHERE id = $1`
	var unidad models.Unidad
	if err := r.db.GetContext(ctx, &unidad, query, id); err != nil {
		return nil, err
	}
	return &unidad, nil
}

// FindByNombre fetches a unit by case-insensitive match on name or
// abbreviation. Imports resolve unit strings through this.
func (r *UnidadRepository) FindByNombre(ctx context.Context, nombre string) (*models.Unidad, error) {
	const query = `SELECT id, nombre, abreviatura, activo, fecha_creacion FROM unidades
        WHERE LOWER(nombre) = LOWER($1) OR LOWER(abreviatura) = LOWER($1) LIMIT 1`
	var unidad models.Unidad
	if err := r.db.GetContext(ctx, &unidad, query, nombre); err != nil {
		return nil, err
	}
	return &unidad, nil
}

// ExistsByNombre checks whether a unit with the given name exists, optionally
// excluding an ID during updates.
func (r *UnidadRepository) ExistsByNombre(ctx context.Context, nombre string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM unidades WHERE LOWER(nombre) = LOWER($1)"
	args := []interface{}{nombre}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check unidad nombre: %w", err)
	}
	return true, nil
}

// Create inserts a new unit.
func (r *UnidadRepository) Create(ctx context.Context, unidad *models.Unidad) error {
	if unidad.ID == "" {
		unidad.ID = uuid.NewString()
	}
	if unidad.FechaCreacion.IsZero() {
		unidad.FechaCreacion = time.Now().UTC()
	}
	const query = `INSERT INTO unidades (id, nombre, abreviatura, activo, fecha_creacion)
        VALUES (:id, :nombre, :abreviatura, :activo, :fecha_creacion)`
	if _, err := r.db.NamedExecContext(ctx, query, unidad); err != nil {
		return fmt.Errorf("create unidad: %w", err)
	}
	return nil
}

// Update modifies an existing unit.
func (r *UnidadRepository) Update(ctx context.Context, unidad *models.Unidad) error {
	const query = `UPDATE unidades SET nombre = :nombre, abreviatura = :abreviatura, activo = :activo WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, unidad); err != nil {
		return fmt.Errorf("update unidad: %w", err)
	}
	return nil
}

// CountProductos returns how many products reference the unit.
func (r *UnidadRepository) CountProductos(ctx context.Context, unidadID string) (int, error) {
	const query = `SELECT COUNT(*) FROM productos WHERE unidad_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, unidadID); err != nil {
		return 0, fmt.Errorf("count productos por unidad: %w", err)
	}
	return total, nil
}

// Delete removes a unit. Callers must first verify it is unreferenced.
func (r *UnidadRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM unidades WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete unidad: %w", err)
	}
	return nil
}
