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

// SalonRepository manages classrooms and the distribution summary.
type SalonRepository struct {
	db *sqlx.DB
}

// NewSalonRepository constructs a SalonRepository.
func NewSalonRepository(db *sqlx.DB) *SalonRepository {
	return &SalonRepository{db: db}
}

const salonDetalleColumns = `s.id, s.nombre, s.codigo, s.profesora, s.grado, s.turno, s.fecha_creacion,
        (SELECT COUNT(*) FROM alumnos a WHERE a.salon_id = s.id) AS total_alumnos,
        (SELECT COUNT(*) FROM utiles_salon us WHERE us.salon_id = s.id) AS total_utiles`

// List returns classrooms matching the filter with roster counts, plus the
// total count for pagination.
func (r *SalonRepository) List(ctx context.Context, filter models.SalonFilter) ([]models.SalonDetalle, int, error) {
	base := "FROM salones s"
	args := make([]interface{}, 0, 3)
	conditions := []string{"1=1"}

	if filter.Grado > 0 {
		args = append(args, filter.Grado)
		conditions = append(conditions, fmt.Sprintf("s.grado = $%d", len(args)))
	}
	if filter.Turno != "" {
		args = append(args, filter.Turno)
		conditions = append(conditions, fmt.Sprintf("s.turno = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.nombre) LIKE $%d OR LOWER(s.codigo) LIKE $%d OR LOWER(s.profesora) LIKE $%d)", len(args), len(args), len(args)))
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY s.grado ASC, s.nombre ASC LIMIT %d OFFSET %d",
		salonDetalleColumns, base, size, offset)

	var salones []models.SalonDetalle
	if err := r.db.SelectContext(ctx, &salones, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list salones: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count salones: %w", err)
	}
	return salones, total, nil
}

// FindByID fetches a classroom with roster counts.
func (r *SalonRepository) FindByID(ctx context.Context, id string) (*models.SalonDetalle, error) {
	query := fmt.Sprintf("SELECT %s FROM salones s WHERE s.id = $1", salonDetalleColumns)
	var detalle models.SalonDetalle
	if err := r.db.GetContext(ctx, &detalle, query, id); err != nil {
		return nil, err
	}
	return &detalle, nil
}

// ExistsByCodigo checks whether a classroom with the given code exists,
// optionally excluding an ID during updates.
func (r *SalonRepository) ExistsByCodigo(ctx context.Context, codigo string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM salones WHERE LOWER(codigo) = LOWER($1)"
	args := []interface{}{codigo}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check salon codigo: %w", err)
	}
	return true, nil
}

// Create inserts a new classroom.
func (r *SalonRepository) Create(ctx context.Context, salon *models.Salon) error {
	if salon.ID == "" {
		salon.ID = uuid.NewString()
	}
	if salon.FechaCreacion.IsZero() {
		salon.FechaCreacion = time.Now().UTC()
	}
	const query = `INSERT INTO salones (id, nombre, codigo, profesora, grado, turno, fecha_creacion)
        VALUES (:id, :nombre, :codigo, :profesora, :grado, :turno, :fecha_creacion)`
	if _, err := r.db.NamedExecContext(ctx, query, salon); err != nil {
		return fmt.Errorf("create salon: %w", err)
	}
	return nil
}

// Update modifies a classroom.
func (r *SalonRepository) Update(ctx context.Context, salon *models.Salon) error {
	const query = `UPDATE salones SET nombre = :nombre, codigo = :codigo, profesora = :profesora, grado = :grado, turno = :turno
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, salon); err != nil {
		return fmt.Errorf("update salon: %w", err)
	}
	return nil
}

// Delete removes a classroom and, through the schema cascade, its roster,
// supply list and deliveries.
func (r *SalonRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM salones WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete salon: %w", err)
	}
	return nil
}

// Resumen computes the distribution dashboard counters. A student counts as
// complete when every supply item of their classroom is fully delivered.
func (r *SalonRepository) Resumen(ctx context.Context) (*models.ResumenEntrega, error) {
	var resumen models.ResumenEntrega

	if err := r.db.GetContext(ctx, &resumen.TotalSalones, "SELECT COUNT(*) FROM salones"); err != nil {
		return nil, fmt.Errorf("count salones: %w", err)
	}
	if err := r.db.GetContext(ctx, &resumen.TotalAlumnos, "SELECT COUNT(*) FROM alumnos"); err != nil {
		return nil, fmt.Errorf("count alumnos: %w", err)
	}

	const completas = `SELECT COUNT(*) FROM (
        SELECT a.id FROM alumnos a
        INNER JOIN utiles_salon us ON us.salon_id = a.salon_id
        INNER JOIN entregas_utiles e ON e.alumno_id = a.id AND e.util_id = us.id
        GROUP BY a.id
        HAVING SUM(e.cantidad_entregada) >= SUM(us.cantidad_requerida)
    ) t`
	if err := r.db.GetContext(ctx, &resumen.EntregasCompletas, completas); err != nil {
		return nil, fmt.Errorf("count entregas completas: %w", err)
	}

	resumen.Pendientes = resumen.TotalAlumnos - resumen.EntregasCompletas
	return &resumen, nil
}
