package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sigea-dev/almacen-api/internal/models"
)

// AlumnoRepository manages students and keeps the delivery grid backfilled:
// every student holds exactly one delivery row per supply item of their
// classroom.
type AlumnoRepository struct {
	db *sqlx.DB
}

// NewAlumnoRepository constructs an AlumnoRepository.
func NewAlumnoRepository(db *sqlx.DB) *AlumnoRepository {
	return &AlumnoRepository{db: db}
}

const alumnoAggregateColumns = `a.id, a.salon_id, a.nombre, a.dni, a.sexo, a.email, a.fecha_entrega, a.fecha_registro,
        COALESCE(SUM(us.cantidad_requerida), 0) AS total_requerido,
        COALESCE(SUM(e.cantidad_entregada), 0) AS total_entregado,
        COUNT(us.id) AS total_items`

const alumnoAggregateJoins = `FROM alumnos a
        LEFT JOIN utiles_salon us ON us.salon_id = a.salon_id
        LEFT JOIN entregas_utiles e ON e.alumno_id = a.id AND e.util_id = us.id`

// ListConEstado returns the roster of a classroom with delivery aggregates,
// ordered by name.
func (r *AlumnoRepository) ListConEstado(ctx context.Context, salonID string) ([]models.AlumnoDetalle, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE a.salon_id = $1 GROUP BY a.id ORDER BY a.nombre ASC`,
		alumnoAggregateColumns, alumnoAggregateJoins)
	var alumnos []models.AlumnoDetalle
	if err := r.db.SelectContext(ctx, &alumnos, query, salonID); err != nil {
		return nil, fmt.Errorf("list alumnos: %w", err)
	}
	for i := range alumnos {
		alumnos[i].Clasificar()
		alumnos[i].EntregaCompleta = alumnos[i].EntregaCompletada()
	}
	return alumnos, nil
}

// FindByID fetches a student with delivery aggregates.
func (r *AlumnoRepository) FindByID(ctx context.Context, id string) (*models.AlumnoDetalle, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE a.id = $1 GROUP BY a.id`,
		alumnoAggregateColumns, alumnoAggregateJoins)
	var detalle models.AlumnoDetalle
	if err := r.db.GetContext(ctx, &detalle, query, id); err != nil {
		return nil, err
	}
	detalle.Clasificar()
	detalle.EntregaCompleta = detalle.EntregaCompletada()
	return &detalle, nil
}

// ExistsByDNI checks whether a student with the national ID exists anywhere
// in the institution, optionally excluding an ID during updates.
func (r *AlumnoRepository) ExistsByDNI(ctx context.Context, dni string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM alumnos WHERE dni = $1"
	args := []interface{}{dni}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check alumno dni: %w", err)
	}
	return true, nil
}

// Create inserts a student and backfills one zero-quantity delivery row per
// supply item of the classroom, in one transaction.
func (r *AlumnoRepository) Create(ctx context.Context, alumno *models.Alumno) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create alumno: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if alumno.ID == "" {
		alumno.ID = uuid.NewString()
	}
	if alumno.FechaReg.IsZero() {
		alumno.FechaReg = time.Now().UTC()
	}
	const insert = `INSERT INTO alumnos (id, salon_id, nombre, dni, sexo, email, fecha_entrega, fecha_registro)
        VALUES (:id, :salon_id, :nombre, :dni, :sexo, :email, :fecha_entrega, :fecha_registro)`
	if _, err := tx.NamedExecContext(ctx, insert, alumno); err != nil {
		return fmt.Errorf("create alumno: %w", err)
	}

	if err := backfillEntregasAlumno(ctx, tx, alumno.ID, alumno.SalonID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create alumno: %w", err)
	}
	commit = true
	return nil
}

// Update modifies a student's personal data. The classroom assignment is
// immutable once created.
func (r *AlumnoRepository) Update(ctx context.Context, alumno *models.Alumno) error {
	const query = `UPDATE alumnos SET nombre = :nombre, dni = :dni, sexo = :sexo, email = :email WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, alumno); err != nil {
		return fmt.Errorf("update alumno: %w", err)
	}
	return nil
}

// Delete removes a student and, through the schema cascade, their delivery
// rows and history.
func (r *AlumnoRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM alumnos WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete alumno: %w", err)
	}
	return nil
}

// backfillEntregasAlumno creates the missing delivery rows of one student for
// every supply item of the classroom.
func backfillEntregasAlumno(ctx context.Context, tx *sqlx.Tx, alumnoID, salonID string) error {
	var utilIDs []string
	const utiles = `SELECT us.id FROM utiles_salon us WHERE us.salon_id = $1
        AND NOT EXISTS (SELECT 1 FROM entregas_utiles e WHERE e.alumno_id = $2 AND e.util_id = us.id)`
	if err := tx.SelectContext(ctx, &utilIDs, utiles, salonID, alumnoID); err != nil {
		return fmt.Errorf("pending utiles for alumno: %w", err)
	}

	now := time.Now().UTC()
	const insert = `INSERT INTO entregas_utiles (id, alumno_id, util_id, cantidad_entregada, fecha_entrega, fecha_modificacion, observaciones)
        VALUES ($1, $2, $3, 0, NULL, $4, NULL)`
	for _, utilID := range utilIDs {
		if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), alumnoID, utilID, now); err != nil {
			return fmt.Errorf("backfill entrega: %w", err)
		}
	}
	return nil
}
